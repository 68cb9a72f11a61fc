// Package statemachine implements the State Machine (C2): a pure function
// over (current status, trigger) -> next status, plus optional
// per-transition side-effect hooks for the Webhook Reporter.
package statemachine

import (
	"context"
	"log/slog"

	"go.corp.example.com/shuttlegateway/internal/state"
)

// Trigger is either a command kind or a synthetic event recognized by the
// transition table.
type Trigger string

const (
	TriggerPalletIn  Trigger = "PALLET_IN"
	TriggerPalletOut Trigger = "PALLET_OUT"
	TriggerFIFO      Trigger = "FIFO"
	TriggerFILO      Trigger = "FILO"
	TriggerStackIn   Trigger = "STACK_IN"
	TriggerStackOut  Trigger = "STACK_OUT"
	TriggerHome      Trigger = "HOME"

	TriggerDone       Trigger = "DONE"
	TriggerError      Trigger = "ERROR"
	TriggerBatteryLow Trigger = "BATTERY_LOW"
	TriggerCharging   Trigger = "CHARGING"
	TriggerCharged    Trigger = "CHARGED"
	TriggerReset      Trigger = "RESET"
)

type transitionKey struct {
	from    state.Status
	trigger Trigger
}

// table is the legal-transitions map from spec §4.2. Any (from, trigger)
// pair absent from this table is rejected: the caller keeps its current
// status.
var table = map[transitionKey]state.Status{
	{state.StatusFree, TriggerPalletIn}:  state.StatusLoading,
	{state.StatusFree, TriggerStackIn}:   state.StatusLoading,
	{state.StatusFree, TriggerPalletOut}: state.StatusUnloading,
	{state.StatusFree, TriggerStackOut}:  state.StatusUnloading,
	{state.StatusFree, TriggerFIFO}:      state.StatusMoving,
	{state.StatusFree, TriggerFILO}:      state.StatusMoving,
	{state.StatusFree, TriggerHome}:      state.StatusMoving,
	{state.StatusFree, TriggerBatteryLow}: state.StatusLowBattery,
	{state.StatusFree, TriggerError}:     state.StatusError,

	{state.StatusBusy, TriggerDone}:  state.StatusFree,
	{state.StatusBusy, TriggerHome}:  state.StatusMoving,
	{state.StatusBusy, TriggerError}: state.StatusError,

	{state.StatusLoading, TriggerDone}:  state.StatusFree,
	{state.StatusLoading, TriggerHome}:  state.StatusMoving,
	{state.StatusLoading, TriggerError}: state.StatusError,

	{state.StatusUnloading, TriggerDone}:  state.StatusFree,
	{state.StatusUnloading, TriggerHome}:  state.StatusMoving,
	{state.StatusUnloading, TriggerError}: state.StatusError,

	{state.StatusMoving, TriggerDone}:  state.StatusFree,
	{state.StatusMoving, TriggerError}: state.StatusError,

	{state.StatusError, TriggerReset}: state.StatusFree,

	{state.StatusLowBattery, TriggerCharging}: state.StatusCharging,
	{state.StatusLowBattery, TriggerError}:    state.StatusError,

	{state.StatusCharging, TriggerCharged}: state.StatusFree,
	{state.StatusCharging, TriggerError}:   state.StatusError,
}

// TransitionContext carries the information a registered hook needs to
// react to a transition (e.g. Webhook Reporter composing its post body).
type TransitionContext struct {
	ShuttleID  string
	Message    string
	ExternalID string
}

// TransitionHandler is invoked after a legal transition is resolved. Errors
// are logged and otherwise swallowed: a reporting hook must never be able to
// block or fail the state transition itself.
type TransitionHandler func(ctx context.Context, shuttleID string, from, to state.Status, tctx TransitionContext) error

// Machine resolves transitions and dispatches optional side-effect hooks
// registered by "<from>:<trigger>:<to>" key, as spec §4.2 describes. It
// replaces the Python original's module-level global with an explicit,
// constructor-built instance (spec §9 design notes).
type Machine struct {
	logger   *slog.Logger
	handlers map[string]TransitionHandler
}

// New creates a Machine with no registered handlers.
func New(logger *slog.Logger) *Machine {
	return &Machine{
		logger:   logger,
		handlers: make(map[string]TransitionHandler),
	}
}

// RegisterHandler attaches a side-effect hook to a specific
// "<from>:<trigger>:<to>" transition.
func (m *Machine) RegisterHandler(from state.Status, trigger Trigger, to state.Status, handler TransitionHandler) {
	m.handlers[handlerKey(from, trigger, to)] = handler
}

func handlerKey(from state.Status, trigger Trigger, to state.Status) string {
	return string(from) + ":" + string(trigger) + ":" + string(to)
}

// Next returns the status (current, trigger) transitions to, and whether the
// transition is legal. An illegal transition returns (current, false) and
// the caller's status is left unchanged.
func (m *Machine) Next(current state.Status, trigger Trigger) (state.Status, bool) {
	next, ok := table[transitionKey{current, trigger}]
	if !ok {
		return current, false
	}
	return next, true
}

// TryTransition resolves the transition and, if legal, invokes any
// registered handler for it. Handler errors are logged, never propagated:
// a broken reporting hook must not roll back or block the transition. It
// returns the resolved next status and whether the transition was legal.
func (m *Machine) TryTransition(ctx context.Context, shuttleID string, current state.Status, trigger Trigger, tctx TransitionContext) (state.Status, bool) {
	next, ok := m.Next(current, trigger)
	if !ok {
		m.logger.Debug("rejected transition",
			slog.String("shuttle", shuttleID),
			slog.String("from", string(current)),
			slog.String("trigger", string(trigger)))
		return current, false
	}

	if handler, found := m.handlers[handlerKey(current, trigger, next)]; found {
		if err := handler(ctx, shuttleID, current, next, tctx); err != nil {
			m.logger.Error("transition handler failed",
				slog.String("shuttle", shuttleID),
				slog.String("transition", handlerKey(current, trigger, next)),
				slog.Any("error", err))
		}
	}

	return next, true
}
