// Package sentinel holds the sentinel errors shared by store implementations
// so callers can errors.Is against one identity regardless of backend.
package sentinel

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyUsed is returned when a uniqueness constraint would be
	// violated (duplicate name, duplicate fingerprint).
	ErrAlreadyUsed = errors.New("value already used")

	// ErrConflict is returned when a concurrent mutation invalidated the
	// caller's view of a record.
	ErrConflict = errors.New("conflicting update")
)
