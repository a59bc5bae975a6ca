package profile

import "errors"

// ErrNotFound means the user has no mirrored subscription yet. It is an
// expected state, not a failure.
var ErrNotFound = errors.New("profile not found")
