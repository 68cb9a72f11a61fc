package statemachine

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"go.corp.example.com/shuttlegateway/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextLegalTransitions(t *testing.T) {
	m := New(testLogger())

	tests := []struct {
		from    state.Status
		trigger Trigger
		want    state.Status
	}{
		{state.StatusFree, TriggerPalletIn, state.StatusLoading},
		{state.StatusFree, TriggerStackIn, state.StatusLoading},
		{state.StatusFree, TriggerPalletOut, state.StatusUnloading},
		{state.StatusFree, TriggerFIFO, state.StatusMoving},
		{state.StatusFree, TriggerFILO, state.StatusMoving},
		{state.StatusFree, TriggerHome, state.StatusMoving},
		{state.StatusFree, TriggerBatteryLow, state.StatusLowBattery},
		{state.StatusBusy, TriggerDone, state.StatusFree},
		{state.StatusBusy, TriggerHome, state.StatusMoving},
		{state.StatusLoading, TriggerDone, state.StatusFree},
		{state.StatusUnloading, TriggerDone, state.StatusFree},
		{state.StatusMoving, TriggerDone, state.StatusFree},
		{state.StatusMoving, TriggerError, state.StatusError},
		{state.StatusError, TriggerReset, state.StatusFree},
		{state.StatusLowBattery, TriggerCharging, state.StatusCharging},
		{state.StatusCharging, TriggerCharged, state.StatusFree},
		{state.StatusCharging, TriggerError, state.StatusError},
	}

	for _, tt := range tests {
		got, ok := m.Next(tt.from, tt.trigger)
		if !ok {
			t.Errorf("Next(%s, %s) rejected, want %s", tt.from, tt.trigger, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tt.from, tt.trigger, got, tt.want)
		}
	}
}

func TestNextRejectsIllegalTransitions(t *testing.T) {
	m := New(testLogger())

	illegal := []struct {
		from    state.Status
		trigger Trigger
	}{
		{state.StatusFree, TriggerDone},
		{state.StatusCharging, TriggerBatteryLow},
		{state.StatusError, TriggerDone},
		{state.StatusLowBattery, TriggerDone},
	}

	for _, tt := range illegal {
		got, ok := m.Next(tt.from, tt.trigger)
		if ok {
			t.Errorf("Next(%s, %s) unexpectedly legal -> %s", tt.from, tt.trigger, got)
		}
		if got != tt.from {
			t.Errorf("illegal transition must preserve current status: got %s, want %s", got, tt.from)
		}
	}
}

func TestTryTransitionInvokesHandler(t *testing.T) {
	m := New(testLogger())

	var calledWith TransitionContext
	var called bool
	m.RegisterHandler(state.StatusFree, TriggerPalletIn, state.StatusLoading,
		func(_ context.Context, shuttleID string, from, to state.Status, tctx TransitionContext) error {
			called = true
			calledWith = tctx
			return nil
		})

	next, ok := m.TryTransition(context.Background(), "s1", state.StatusFree, TriggerPalletIn,
		TransitionContext{ShuttleID: "s1", Message: "PALLET_IN_STARTED", ExternalID: "E1"})

	if !ok || next != state.StatusLoading {
		t.Fatalf("TryTransition = (%s, %v), want (LOADING, true)", next, ok)
	}
	if !called {
		t.Fatal("expected registered handler to be invoked")
	}
	if calledWith.ExternalID != "E1" {
		t.Errorf("handler received wrong context: %+v", calledWith)
	}
}

func TestTryTransitionHandlerErrorDoesNotBlockTransition(t *testing.T) {
	m := New(testLogger())
	m.RegisterHandler(state.StatusMoving, TriggerDone, state.StatusFree,
		func(_ context.Context, _ string, _, _ state.Status, _ TransitionContext) error {
			return errBoom
		})

	next, ok := m.TryTransition(context.Background(), "s1", state.StatusMoving, TriggerDone, TransitionContext{})
	if !ok || next != state.StatusFree {
		t.Fatalf("handler error should not affect the resolved transition; got (%s, %v)", next, ok)
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestTryTransitionRejectedDoesNotInvokeHandler(t *testing.T) {
	m := New(testLogger())
	called := false
	m.RegisterHandler(state.StatusFree, TriggerDone, state.StatusFree,
		func(context.Context, string, state.Status, state.Status, TransitionContext) error {
			called = true
			return nil
		})

	_, ok := m.TryTransition(context.Background(), "s1", state.StatusFree, TriggerDone, TransitionContext{})
	if ok {
		t.Fatal("FREE + DONE should not be a legal transition")
	}
	if called {
		t.Fatal("handler must not run for a rejected transition")
	}
}
