package state

import "context"

// Mutator applies a change to a ShuttleState and returns the updated record.
// Mutators must not retain the state argument or any transient connection
// object; Update may invoke a Mutator more than once if the backend's
// compare-and-set loses a race.
type Mutator func(current ShuttleState) ShuttleState

// Store is the State Store (C1) contract. Implementations must preserve
// optimistic compare-and-set semantics for Update regardless of backend: an
// in-process map guarded by a single writer lock and an external key/value
// service using WATCH/MULTI (or an equivalent atomic script) are both
// conforming.
type Store interface {
	// Get returns the current record for shuttleID. Returns ErrUnknownShuttle
	// if no record exists.
	Get(ctx context.Context, shuttleID string) (ShuttleState, error)

	// Update reads the current record, applies mutate, and writes the result
	// back conditionally on the version being unchanged since the read,
	// retrying the whole read-mutate-write cycle on conflict. LastSeen is
	// always refreshed to the current time as part of the write. Returns
	// ErrUnknownShuttle if no record exists for shuttleID.
	Update(ctx context.Context, shuttleID string, mutate Mutator) (ShuttleState, error)

	// AllStates returns every currently stored record, keyed by shuttle_id.
	AllStates(ctx context.Context) (map[string]ShuttleState, error)

	// InitIfAbsent creates a fresh UNKNOWN-status record for shuttleID if one
	// does not already exist. It is a no-op (not an error) if a record
	// already exists. Used by the Configuration Source collaborator at boot.
	InitIfAbsent(ctx context.Context, shuttleID string) error
}
