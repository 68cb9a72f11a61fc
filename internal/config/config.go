// Package config holds the gateway's flag/env-backed tunables and the YAML
// seed loader for shuttle inventory and stock-to-shuttle routing.
package config

import (
	"flag"
	"time"
)

// Config holds the core tunables from the gateway's environment/tunables
// table. All fields have defaults matching the documented defaults.
type Config struct {
	TCPConnectTimeout       time.Duration
	TCPReadTimeout          time.Duration
	TCPWriteTimeout         time.Duration
	CommandQueueMaxSize     int
	CommandProcessorWorkers int
	ShuttleListenerPort     int
	ShuttleTimeoutSeconds   int
	HeartbeatInterval       time.Duration
	LowBatteryThreshold     float64
	WebhookURL              string
	SeedFile                string
}

// FlagPointers holds pointers to flag values for the core tunables.
type FlagPointers struct {
	tcpConnectTimeout       *int
	tcpReadTimeout          *int
	tcpWriteTimeout         *int
	commandQueueMaxSize     *int
	commandProcessorWorkers *int
	shuttleListenerPort     *int
	shuttleTimeoutSeconds   *int
	heartbeatIntervalSec    *int
	lowBatteryThreshold     *float64
	webhookURL              *string
	seedFile                *string
}

// RegisterFlags registers the gateway's command-line flags, backed by
// environment variable defaults except -low-battery-threshold, whose default
// is the constant defaultLowBatteryThreshold. Call ToConfig() after flag.Parse().
func RegisterFlags() *FlagPointers {
	return &FlagPointers{
		tcpConnectTimeout: flag.Int("tcp-connect-timeout",
			GetEnvInt("TCP_CONNECT_TIMEOUT", 5),
			"Timeout in seconds for outbound TCP connect to a shuttle"),
		tcpReadTimeout: flag.Int("tcp-read-timeout",
			GetEnvInt("TCP_READ_TIMEOUT", 20),
			"Timeout in seconds for reading a line from a shuttle connection"),
		tcpWriteTimeout: flag.Int("tcp-write-timeout",
			GetEnvInt("TCP_WRITE_TIMEOUT", 5),
			"Timeout in seconds for writing a command/ack to a shuttle"),
		commandQueueMaxSize: flag.Int("command-queue-max-size",
			GetEnvInt("COMMAND_QUEUE_MAX_SIZE", 1000),
			"Maximum number of queued (non-bypass) commands per shuttle"),
		commandProcessorWorkers: flag.Int("command-processor-workers",
			GetEnvInt("COMMAND_PROCESSOR_WORKERS", 1),
			"Number of dispatch worker goroutines scanning shuttle queues"),
		shuttleListenerPort: flag.Int("shuttle-listener-port",
			GetEnvInt("SHUTTLE_LISTENER_PORT", 5000),
			"TCP port shuttles connect to for the inbound status stream"),
		shuttleTimeoutSeconds: flag.Int("shuttle-timeout-seconds",
			GetEnvInt("SHUTTLE_TIMEOUT_SECONDS", 30),
			"Seconds of inbound silence before a connection is marked timed out"),
		heartbeatIntervalSec: flag.Int("heartbeat-interval-seconds",
			GetEnvInt("HEARTBEAT_INTERVAL_SECONDS", 30),
			"Seconds between heartbeat liveness sweeps"),
		lowBatteryThreshold: flag.Float64("low-battery-threshold",
			defaultLowBatteryThreshold,
			"Battery percentage below which BATTERY_LOW fires"),
		webhookURL: flag.String("wms-webhook-url",
			GetEnv("WMS_WEBHOOK_URL", ""),
			"URL to POST WMS status webhooks to; empty disables webhook delivery"),
		seedFile: flag.String("seed-file",
			GetEnv("GATEWAY_SEED_FILE", ""),
			"Path to the YAML seed file (shuttles_config / stock_to_shuttle)"),
	}
}

const defaultLowBatteryThreshold = 20.0

// ToConfig converts flag pointers to Config. Must be called after flag.Parse().
func (f *FlagPointers) ToConfig() Config {
	return Config{
		TCPConnectTimeout:       time.Duration(*f.tcpConnectTimeout) * time.Second,
		TCPReadTimeout:          time.Duration(*f.tcpReadTimeout) * time.Second,
		TCPWriteTimeout:         time.Duration(*f.tcpWriteTimeout) * time.Second,
		CommandQueueMaxSize:     *f.commandQueueMaxSize,
		CommandProcessorWorkers: *f.commandProcessorWorkers,
		ShuttleListenerPort:     *f.shuttleListenerPort,
		ShuttleTimeoutSeconds:   *f.shuttleTimeoutSeconds,
		HeartbeatInterval:       time.Duration(*f.heartbeatIntervalSec) * time.Second,
		LowBatteryThreshold:     *f.lowBatteryThreshold,
		WebhookURL:              *f.webhookURL,
		SeedFile:                *f.seedFile,
	}
}
