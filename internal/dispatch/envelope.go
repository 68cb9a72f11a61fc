// Package dispatch implements the Dispatch Core (C5): per-shuttle priority
// queues, bypass execution, admission control, a worker pool, and the
// in-memory command registry.
package dispatch

import (
	"time"

	"github.com/google/uuid"

	"go.corp.example.com/shuttlegateway/pkg/shuttleproto"
)

// LifecycleStatus is a CommandEnvelope's position in its queued →
// processing → completed|failed|cancelled lifecycle (spec §4.5).
type LifecycleStatus string

const (
	StatusQueued     LifecycleStatus = "queued"
	StatusProcessing LifecycleStatus = "processing"
	StatusCompleted  LifecycleStatus = "completed"
	StatusFailed     LifecycleStatus = "failed"
	StatusCancelled  LifecycleStatus = "cancelled"
)

// CommandEnvelope is one admitted command awaiting or undergoing dispatch.
type CommandEnvelope struct {
	ID         string
	ShuttleID  string
	Command    shuttleproto.Command
	Params     string
	Priority   int
	EnqueuedAt time.Time
	ExternalID string
}

// newEnvelope mints a fresh envelope with a random ID.
func newEnvelope(shuttleID string, cmd shuttleproto.Command, params string, priority int, externalID string, enqueuedAt time.Time) CommandEnvelope {
	return CommandEnvelope{
		ID:         uuid.NewString(),
		ShuttleID:  shuttleID,
		Command:    cmd,
		Params:     params,
		Priority:   priority,
		EnqueuedAt: enqueuedAt,
		ExternalID: externalID,
	}
}
