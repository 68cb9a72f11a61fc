package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.corp.example.com/shuttlegateway/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDirectory struct{ ids []string }

func (d fakeDirectory) ShuttleIDs() []string { return d.ids }

func TestSweepMarksStaleShuttleFailing(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	store.InitIfAbsent(ctx, "s1")
	store.Update(ctx, "s1", func(s state.ShuttleState) state.ShuttleState {
		s.LastSeen = float64(time.Now().Unix()) - 1000
		return s
	})

	var probed []string
	probe := func(_ context.Context, shuttleID string) error {
		probed = append(probed, shuttleID)
		return errors.New("still unreachable")
	}

	m := New(store, fakeDirectory{ids: []string{"s1"}}, probe, time.Second, testLogger())
	m.sweepOnce(ctx)

	if len(probed) != 1 || probed[0] != "s1" {
		t.Fatalf("probed = %v, want [s1]", probed)
	}
	if !m.IsFailing("s1") {
		t.Error("s1 should be marked failing after a stale sweep with a failed probe")
	}
}

func TestSweepClearsFailingOnSuccessfulProbe(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	store.InitIfAbsent(ctx, "s1")
	store.Update(ctx, "s1", func(s state.ShuttleState) state.ShuttleState {
		s.Status = state.StatusError
		s.ErrorCode = "TIMEOUT_NO_RESPONSE"
		s.LastSeen = float64(time.Now().Unix())
		return s
	})

	probe := func(context.Context, string) error { return nil }
	m := New(store, fakeDirectory{ids: []string{"s1"}}, probe, time.Second, testLogger())
	m.sweepOnce(ctx)

	if m.IsFailing("s1") {
		t.Error("s1 should no longer be failing after a successful probe")
	}

	got, _ := store.Get(ctx, "s1")
	if got.Status != state.StatusUnknown {
		t.Errorf("Status after successful reconnect probe = %s, want UNKNOWN (not FREE)", got.Status)
	}
	if got.ErrorCode != "" {
		t.Errorf("ErrorCode = %q, want cleared", got.ErrorCode)
	}
}

func TestSweepIgnoresHealthyShuttle(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	store.InitIfAbsent(ctx, "s1")
	store.Update(ctx, "s1", func(s state.ShuttleState) state.ShuttleState {
		s.Status = state.StatusFree
		s.LastSeen = float64(time.Now().Unix())
		return s
	})

	called := false
	probe := func(context.Context, string) error { called = true; return nil }
	m := New(store, fakeDirectory{ids: []string{"s1"}}, probe, time.Second, testLogger())
	m.sweepOnce(ctx)

	if called {
		t.Error("probe should not be invoked for a healthy, recently-seen shuttle")
	}
}

func TestMarkFailingLogsOnlyOnFirstTransition(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	store.InitIfAbsent(ctx, "s1")
	store.Update(ctx, "s1", func(s state.ShuttleState) state.ShuttleState {
		s.LastSeen = float64(time.Now().Unix()) - 1000
		return s
	})

	var mu sync.Mutex
	probeCalls := 0
	probe := func(context.Context, string) error {
		mu.Lock()
		probeCalls++
		mu.Unlock()
		return errors.New("still down")
	}

	m := New(store, fakeDirectory{ids: []string{"s1"}}, probe, time.Second, testLogger())
	m.sweepOnce(ctx)
	m.sweepOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	if probeCalls != 2 {
		t.Errorf("probeCalls = %d, want 2 (probe runs every sweep even though the warning only logs once)", probeCalls)
	}
	if !m.IsFailing("s1") {
		t.Error("s1 should remain failing across sweeps until a probe succeeds")
	}
}
