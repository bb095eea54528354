package keylock

import "errors"

// ErrTimeout is returned by Lock when the registry wait budget runs out.
var ErrTimeout = errors.New("keylock: timed out waiting for lock")
