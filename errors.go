package selector

import "errors"

// ErrNotReady reports that the selector has no active input yet. No
// operation in this package returns it; Block returns 0 when there is no
// active input.
var ErrNotReady = errors.New("inputselector: no active input yet")

// ErrNotBlocked is returned by Switch when called without a prior Block.
var ErrNotBlocked = errors.New("inputselector: switch called while not blocked")

// ErrNotReadyState is returned by SetConfig when the selector is
// flushing/shutting down; sync-streams, sync-mode and cache-buffers are
// only mutable in the ready state (spec.md §4.6).
var ErrNotReadyState = errors.New("inputselector: config is only mutable in the ready state")

// ErrUnknownPort reports a port the selector does not own. No operation
// in this package returns it; Switch and SetActivePad do not check port
// ownership.
var ErrUnknownPort = errors.New("inputselector: unknown input port")
