package storage

import (
	"errors"
	"fmt"

	"github.com/scrypster/recall/pkg/types"
)

var (
	// ErrNotFound indicates that the requested node was not found.
	ErrNotFound = errors.New("node not found")

	// ErrConflict indicates an append of an immutable node whose ID
	// already exists. The ingestion pipeline treats this as an idempotent
	// no-op, never a failure.
	ErrConflict = errors.New("node already exists")

	// ErrUnavailable indicates the underlying store is unreachable.
	// Retrieval degrades to empty context; ingestion retries then drops.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ContactKey is the stable identity key for a contact node.
type ContactKey struct {
	Platform       string
	NormalizedName string
}

// NewContactKey builds a key from a platform and raw display name.
func NewContactKey(platform, displayName string) ContactKey {
	return ContactKey{
		Platform:       platform,
		NormalizedName: types.NormalizeName(displayName),
	}
}

// Validate checks that both key components are present.
func (k ContactKey) Validate() error {
	if k.Platform == "" {
		return fmt.Errorf("%w: contact key missing platform", ErrInvalidInput)
	}
	if k.NormalizedName == "" {
		return fmt.Errorf("%w: contact key missing normalized name", ErrInvalidInput)
	}
	return nil
}

// String renders the key in platform/name form, used for lane IDs and logs.
func (k ContactKey) String() string {
	return k.Platform + "/" + k.NormalizedName
}

// Query limit defaults shared by backends.
const (
	DefaultMessageLimit = 10
	DefaultTurnLimit    = 20
	MaxQueryLimit       = 100
)

// ClampLimit applies the default for non-positive limits and the global cap.
func ClampLimit(limit, def int) int {
	if limit < 1 {
		limit = def
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	return limit
}
