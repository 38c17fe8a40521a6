package ids

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID returns a new sortable-by-creation-time identifier, used for
// sessions and messages. Matches the teacher's generateID/generatePartID.
func NewULID() string {
	return ulid.Make().String()
}

// NewULIDAt returns a ULID seeded at t, for deterministic tests.
func NewULIDAt(t time.Time, entropy ulid.MonotonicReader) string {
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewMonotonicEntropy returns a monotonic entropy source for ULID generation
// seeded from crypto/rand, suitable for stuffing into a long-lived generator
// so IDs minted within the same millisecond still sort correctly.
func NewMonotonicEntropy() ulid.MonotonicReader {
	return ulid.Monotonic(cryptoRandReader{}, 0)
}

type cryptoRandReader struct{}

func (cryptoRandReader) Read(p []byte) (int, error) {
	n, err := rand.Read(p)
	return n, err
}

// NewPublicID returns a UUID v7 (sortable by creation time), used for the
// public identifiers of Task, Decision, Progress, Artifact, and Delegation
// rows per the data model.
func NewPublicID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system entropy source is broken;
		// fall back to a random v4 rather than panic on the hot path.
		return uuid.NewString()
	}
	return id.String()
}
