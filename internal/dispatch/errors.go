package dispatch

import "errors"

// ErrQueueFull is returned by Submit when the target shuttle's queue is at
// COMMAND_QUEUE_MAX_SIZE.
var ErrQueueFull = errors.New("dispatch: queue full")

// ErrBadParams is returned by Submit when a command requiring a numeric
// params string (FIFO/FILO) was not given one.
var ErrBadParams = errors.New("dispatch: bad params")

// ErrBusy is returned by Submit when the shuttle's current status does not
// admit a new non-bypass command.
var ErrBusy = errors.New("dispatch: shuttle busy")

// ErrUnknownCommand names a command id this registry has never seen.
// Core.Cancel does not return it: an unknown id yields a false result.
var ErrUnknownCommand = errors.New("dispatch: unknown command id")
