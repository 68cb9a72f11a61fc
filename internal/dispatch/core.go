package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.corp.example.com/shuttlegateway/internal/state"
	"go.corp.example.com/shuttlegateway/internal/statemachine"
	"go.corp.example.com/shuttlegateway/internal/transport"
	"go.corp.example.com/shuttlegateway/pkg/shuttleproto"
)

// workerPollInterval is the sleep between worker scans of the shuttle set,
// chosen to avoid busy-spinning (spec §4.5).
const workerPollInterval = 500 * time.Millisecond

// CommandSender sends one command to a shuttle and classifies the failure.
// *transport.Sender satisfies this.
type CommandSender interface {
	Send(ctx context.Context, host string, port int, cmd shuttleproto.Command, params string) *transport.SendError
}

// SubmitOutcome distinguishes how Submit admitted a command.
type SubmitOutcome int

const (
	OutcomeQueued SubmitOutcome = iota
	OutcomeBypassed
)

// SubmitResult is the admission outcome of Submit (spec §4.5's
// "admission result contract").
type SubmitResult struct {
	Outcome   SubmitOutcome
	CommandID string // set only when Outcome == OutcomeQueued
}

// shuttleQueue pairs one shuttle's priority queue with the mutex that
// enforces per-shuttle mutual exclusion across bypass execution, worker
// dispatch, and cancellation.
type shuttleQueue struct {
	mu    sync.Mutex
	queue *priorityQueue
}

// Core is the Dispatch Core (C5).
type Core struct {
	store        state.Store
	machine      *statemachine.Machine
	registry     *Registry
	sender       CommandSender
	directory    ShuttleDirectory
	logger       *slog.Logger
	maxQueueSize int

	mu       sync.Mutex
	shuttles map[string]*shuttleQueue
}

// New builds a Core.
func New(store state.Store, machine *statemachine.Machine, registry *Registry, sender CommandSender, directory ShuttleDirectory, maxQueueSize int, logger *slog.Logger) *Core {
	return &Core{
		store:        store,
		machine:      machine,
		registry:     registry,
		sender:       sender,
		directory:    directory,
		logger:       logger,
		maxQueueSize: maxQueueSize,
		shuttles:     make(map[string]*shuttleQueue),
	}
}

func (c *Core) shuttleQueueFor(shuttleID string) *shuttleQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	sq, ok := c.shuttles[shuttleID]
	if !ok {
		sq = &shuttleQueue{queue: newPriorityQueue(c.maxQueueSize)}
		c.shuttles[shuttleID] = sq
	}
	return sq
}

// Submit admits a command for shuttleID per spec §4.5: bypass commands
// execute immediately under the per-shuttle mutex; others pass admission
// control and parameter validation before being enqueued.
func (c *Core) Submit(ctx context.Context, shuttleID string, cmd shuttleproto.Command, params string, callerPriority int, externalID string) (SubmitResult, error) {
	if shuttleproto.RequiresNumericParam(cmd) {
		if params == "" {
			return SubmitResult{}, ErrBadParams
		}
		for _, r := range params {
			if r < '0' || r > '9' {
				return SubmitResult{}, ErrBadParams
			}
		}
	}

	sq := c.shuttleQueueFor(shuttleID)

	if shuttleproto.IsBypass(cmd) {
		sq.mu.Lock()
		defer sq.mu.Unlock()
		if err := c.execute(ctx, shuttleID, cmd, params, externalID); err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Outcome: OutcomeBypassed}, nil
	}

	if err := c.admit(ctx, shuttleID, cmd); err != nil {
		return SubmitResult{}, err
	}

	priority := shuttleproto.ResolvePriority(cmd, callerPriority)
	env := newEnvelope(shuttleID, cmd, params, priority, externalID, time.Now())

	sq.mu.Lock()
	ok := sq.queue.tryPush(env)
	sq.mu.Unlock()
	if !ok {
		return SubmitResult{}, ErrQueueFull
	}

	c.registry.Put(env)
	return SubmitResult{Outcome: OutcomeQueued, CommandID: env.ID}, nil
}

// admit applies the non-bypass admission control rule of spec §4.5.
func (c *Core) admit(ctx context.Context, shuttleID string, cmd shuttleproto.Command) error {
	cur, err := c.store.Get(ctx, shuttleID)
	if err != nil {
		return ErrBusy
	}
	if cmd == shuttleproto.CommandPalletOut && cur.Status == state.StatusBusy {
		return nil
	}
	if cur.Status != state.StatusFree && cur.Status != state.StatusUnknown {
		return ErrBusy
	}
	return nil
}

// Cancel marks commandID cancelled and drains it out of its shuttle's
// queue, best-effort (spec §4.5). Returns false if the command is already
// processing or terminal.
func (c *Core) Cancel(shuttleID, commandID string) bool {
	sq := c.shuttleQueueFor(shuttleID)
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if !c.registry.Cancel(commandID) {
		return false
	}
	sq.queue.removeByID(commandID)
	return true
}

// execute sends cmd to shuttleID with retry, then applies the matching
// success or failure state update. Callers hold the shuttle's mutex.
func (c *Core) execute(ctx context.Context, shuttleID string, cmd shuttleproto.Command, params, externalID string) error {
	host, port, ok := c.directory.Lookup(shuttleID)
	if !ok {
		return state.ErrUnknownShuttle
	}

	var lastSendErr *transport.SendError
	runErr := CommandSendRetryPolicy.Run(ctx, func(ctx context.Context) (bool, error) {
		sendErr := c.sender.Send(ctx, host, port, cmd, params)
		if sendErr == nil {
			return false, nil
		}
		lastSendErr = sendErr
		return transport.IsRetriable(sendErr.Class), sendErr
	})

	if runErr != nil {
		c.onSendFailure(ctx, shuttleID, lastSendErr)
		return runErr
	}
	c.onSendSuccess(ctx, shuttleID, cmd, params, externalID)
	return nil
}

func (c *Core) onSendSuccess(ctx context.Context, shuttleID string, cmd shuttleproto.Command, params, externalID string) {
	c.store.Update(ctx, shuttleID, func(current state.ShuttleState) state.ShuttleState {
		current.LastMessageReceivedFromWMS = string(cmd)
		current.ExternalID = externalID
		switch {
		case cmd == shuttleproto.CommandHome:
			// HOME is the emergency-stop/park command: the gateway drives
			// the shuttle straight back to FREE rather than waiting for
			// the shuttle's own HOME_DONE line.
			current.Status = state.StatusFree
			current.CurrentCommand = ""
		case cmd != shuttleproto.CommandMRCD:
			current.CurrentCommand = commandLabel(cmd, params)
		}
		return current
	})
}

func (c *Core) onSendFailure(ctx context.Context, shuttleID string, sendErr *transport.SendError) {
	errorCode := string(transport.FailureUnknown)
	if sendErr != nil {
		errorCode = sendErr.ErrorCode
	}
	c.store.Update(ctx, shuttleID, func(current state.ShuttleState) state.ShuttleState {
		next, ok := c.machine.Next(current.Status, statemachine.TriggerError)
		if !ok {
			// A failed send always records ERROR with its code, even from a
			// status (UNKNOWN, NOT_READY, ERROR) with no ERROR edge in the table.
			next = state.StatusError
		}
		current.Status = next
		current.ErrorCode = errorCode
		return current
	})
}

// commandLabel renders the current_command value recorded on successful
// dispatch, matching the wire line shape for FIFO/FILO.
func commandLabel(cmd shuttleproto.Command, params string) string {
	if params == "" {
		return string(cmd)
	}
	return string(cmd) + "-" + params
}

// RunWorkers starts numWorkers worker goroutines scanning every known
// shuttle for ready work, until ctx is cancelled.
func (c *Core) RunWorkers(ctx context.Context, numWorkers int) {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (c *Core) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(workerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scanOnce(ctx)
		}
	}
}

// scanOnce gives every shuttle one opportunity to have its next command
// dispatched, per spec §4.5's worker loop.
func (c *Core) scanOnce(ctx context.Context) {
	for _, shuttleID := range c.directory.ShuttleIDs() {
		c.tryDispatchOne(ctx, shuttleID)
	}
}

func (c *Core) tryDispatchOne(ctx context.Context, shuttleID string) {
	sq := c.shuttleQueueFor(shuttleID)
	if !sq.mu.TryLock() {
		return
	}
	defer sq.mu.Unlock()

	cur, err := c.store.Get(ctx, shuttleID)
	if err != nil || cur.Status != state.StatusFree {
		return
	}

	var env CommandEnvelope
	found := false
	for {
		next, ok := sq.queue.popNext()
		if !ok {
			break
		}
		if c.registry.IsCancelled(next.ID) {
			continue
		}
		env, found = next, true
		break
	}
	if !found {
		return
	}

	c.registry.MarkProcessing(env.ID)
	if err := c.execute(ctx, shuttleID, env.Command, env.Params, env.ExternalID); err != nil {
		c.logger.Warn("command dispatch failed", "shuttle", shuttleID, "command", env.Command, "error", err)
		c.registry.Finish(env.ID, StatusFailed)
		return
	}
	c.registry.Finish(env.ID, StatusCompleted)
}
