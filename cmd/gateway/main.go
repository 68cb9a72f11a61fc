// Command gateway runs the WMS-to-Shuttle Gateway: it accepts commands from
// a Warehouse Management System collaborator, dispatches them to physical
// shuttles over TCP, and reports their status back via webhook.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.corp.example.com/shuttlegateway/internal/config"
	"go.corp.example.com/shuttlegateway/internal/dispatch"
	"go.corp.example.com/shuttlegateway/internal/heartbeat"
	"go.corp.example.com/shuttlegateway/internal/interpreter"
	"go.corp.example.com/shuttlegateway/internal/logging"
	"go.corp.example.com/shuttlegateway/internal/metrics"
	"go.corp.example.com/shuttlegateway/internal/state"
	"go.corp.example.com/shuttlegateway/internal/statemachine"
	"go.corp.example.com/shuttlegateway/internal/transport"
	"go.corp.example.com/shuttlegateway/internal/webhook"
)

func main() {
	logFlags := logging.RegisterFlags()
	coreFlags := config.RegisterFlags()
	redisFlags := state.RegisterRedisFlags()
	useRedis := flag.Bool("use-redis", config.GetEnvBool("GATEWAY_USE_REDIS", false),
		"Back the State Store with Redis instead of an in-process map")
	flag.Parse()

	logCfg := logFlags.ToConfig()
	logger := logging.InitLogger("shuttlegateway", logCfg)

	cfg := coreFlags.ToConfig()

	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		logger.Error("failed to load seed file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := buildStore(ctx, *useRedis, redisFlags, logger)
	if err != nil {
		logger.Error("failed to initialize state store", "error", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}

	directoryEntries := make(map[string]dispatch.ShuttleAddr, len(seed.ShuttlesConfig))
	for id, s := range seed.ShuttlesConfig {
		directoryEntries[id] = dispatch.ShuttleAddr{Host: s.Host, Port: s.CommandPort}
		if err := store.InitIfAbsent(ctx, id); err != nil {
			logger.Error("failed to seed shuttle state", "shuttle", id, "error", err)
		}
	}
	directory := dispatch.NewStaticDirectory(directoryEntries)

	machine := statemachine.New(logger)
	registry := dispatch.NewRegistry(0, 0, logger)
	sender := transport.NewSender(cfg.TCPConnectTimeout, cfg.TCPWriteTimeout)
	core := dispatch.New(store, machine, registry, sender, directory, cfg.CommandQueueMaxSize, logger)

	recorder := metrics.Recorder(metrics.NoopRecorder{})
	reporter := webhook.New(cfg.WebhookURL, logger)

	resolver := func(peerIP string) (string, bool) {
		for id, entry := range directoryEntries {
			if entry.Host == peerIP {
				return id, true
			}
		}
		return "", false
	}

	onLine := func(ctx context.Context, shuttleID, line string) {
		result := interpreter.Interpret(line, cfg.LowBatteryThreshold)

		updated, err := store.Update(ctx, shuttleID, func(current state.ShuttleState) state.ShuttleState {
			next := result.Mutate(current)
			if result.HasTrigger {
				if resolved, ok := machine.TryTransition(ctx, shuttleID, current.Status, result.Trigger, statemachine.TransitionContext{
					ShuttleID:  shuttleID,
					Message:    line,
					ExternalID: current.ExternalID,
				}); ok {
					next.Status = resolved
				}
			}
			return next
		})
		if err != nil {
			logger.Warn("failed to apply inbound line to state", "shuttle", shuttleID, "error", err)
			return
		}

		if result.HasBatteryPercent {
			recorder.BatteryLevel(shuttleID, result.BatteryPercent)
		}

		reporter.Report(webhook.Event{
			ShuttleID:  shuttleID,
			Message:    line,
			Status:     string(updated.Status),
			ErrorCode:  updated.ErrorCode,
			ExternalID: updated.ExternalID,
			Timestamp:  updated.LastSeen,
		})
	}

	onIdleTimeout := func(ctx context.Context, shuttleID string) {
		store.Update(ctx, shuttleID, func(s state.ShuttleState) state.ShuttleState {
			s.Status = state.StatusError
			s.ErrorCode = "TIMEOUT_NO_RESPONSE"
			return s
		})
	}

	listener := transport.NewListener(cfg.ShuttleListenerPort, cfg.TCPReadTimeout, cfg.TCPWriteTimeout,
		time.Duration(cfg.ShuttleTimeoutSeconds)*time.Second, resolver, onLine, onIdleTimeout, logger)
	listener.Gauge = connGauge{recorder: recorder}

	probe := func(ctx context.Context, shuttleID string) error {
		return dispatch.HeartbeatReconnectRetryPolicy.Run(ctx, func(ctx context.Context) (bool, error) {
			host, port, ok := directory.Lookup(shuttleID)
			if !ok {
				return false, state.ErrUnknownShuttle
			}
			sendErr := sender.Send(ctx, host, port, heartbeat.BypassStatusCommand, "")
			if sendErr == nil {
				return false, nil
			}
			return transport.IsRetriable(sendErr.Class), sendErr
		})
	}
	monitor := heartbeat.New(store, directory, probe, cfg.HeartbeatInterval, logger)

	go core.RunWorkers(ctx, cfg.CommandProcessorWorkers)
	go monitor.Run(ctx)
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("inbound listener stopped", "error", err)
		}
	}()

	logger.Info("gateway started",
		"shuttle-listener-port", cfg.ShuttleListenerPort,
		"shuttle-count", len(directoryEntries),
		"command-processor-workers", cfg.CommandProcessorWorkers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
}

// buildStore selects the State Store backend per the -use-redis flag,
// returning a close function (nil for the in-memory backend).
func buildStore(ctx context.Context, useRedis bool, redisFlags *state.RedisFlagPointers, logger *slog.Logger) (state.Store, func(), error) {
	if !useRedis {
		return state.NewMemoryStore(), nil, nil
	}
	redisCfg := redisFlags.ToRedisConfig()
	store, err := state.NewRedisStore(ctx, redisCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// connGauge adapts metrics.Recorder's InboundConnections to the small
// ConnGauge shape transport.Listener expects, keeping transport decoupled
// from the metrics package.
type connGauge struct {
	recorder metrics.Recorder
}

func (g connGauge) Inc() { g.recorder.InboundConnections(1) }
func (g connGauge) Dec() { g.recorder.InboundConnections(-1) }
