package transport

import "errors"

// ErrUnknownPeer names a connection from a peer no shuttle is configured
// for. The listener does not return it: a ShuttleResolver signals an unknown
// peer through its bool result, and the listener logs and closes.
var ErrUnknownPeer = errors.New("transport: unrecognized peer")
