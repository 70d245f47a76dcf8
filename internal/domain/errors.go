package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks any failure of a score or seen store. Callers drop
	// the affected operation and keep processing.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreCorrupt is returned when a stored value has an unexpected shape.
	// It matches ErrStoreUnavailable so callers fail closed.
	ErrStoreCorrupt = fmt.Errorf("%w: corrupt value", ErrStoreUnavailable)

	ErrNotSeen = errors.New("user not seen")
)
