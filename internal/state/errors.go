package state

import "errors"

// ErrStoreUnavailable is returned when the backing store cannot be reached.
var ErrStoreUnavailable = errors.New("state: store unavailable")

// ErrUnknownShuttle is returned when an operation targets a shuttle_id with
// no existing record and the operation does not create one.
var ErrUnknownShuttle = errors.New("state: unknown shuttle")

// ErrCASConflict marks a conditional write that lost a race. RedisStore.Update
// retries on a conflict and returns this error, wrapped, only once its
// attempts are exhausted.
var ErrCASConflict = errors.New("state: compare-and-set conflict")
