package realtime

import (
	"time"

	"unileap/cmd/identity/ids"
)

// NewSessionID returns a ULID used as relay connection id.
func NewSessionID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

// NewEnvelopeID returns a ULID used as envelope id.
// ULIDs sort by time, which keeps relay logs readable.
func NewEnvelopeID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
