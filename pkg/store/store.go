// Package store persists fingerprint records and visitor associations. The
// core depends only on the Store interface; Postgres backs production and the
// in-memory implementation backs tests and DISABLE_DB mode.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps any backend failure. A submission fails fast on it;
// no partial writes happen beyond what already committed.
var ErrUnavailable = errors.New("store: unavailable")

// FingerprintRecord is the persisted form of one observed fingerprint.
// ExactHash is unique; FingerprintID is assigned at first creation and never
// changes. Components holds the canonical (volatility-stripped) sub-fields
// per signal group so repeat submissions can be re-scored against stored
// candidates; raw collector output is never persisted. Records are never
// deleted by this core.
type FingerprintRecord struct {
	FingerprintID string                       `json:"fingerprint_id"`
	ExactHash     string                       `json:"exact_hash"`
	FuzzyHashes   []string                     `json:"fuzzy_hashes"`
	Components    map[string]map[string]string `json:"components"`
	UserID        string                       `json:"user_id,omitempty"`
	SessionIDs    []string                     `json:"session_ids"`
	CreatedAt     time.Time                    `json:"created_at"`
	LastSeenAt    time.Time                    `json:"last_seen_at"`
}

// VisitorAssociation links one fingerprint to exactly one visitor. Written at
// most once per fingerprint; the first successful reconciliation wins.
type VisitorAssociation struct {
	VisitorID     string    `json:"visitor_id"`
	FingerprintID string    `json:"fingerprint_id"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the complete persistence contract the core depends on. The
// fingerprint upsert is always issued before the association write, so an
// association can never reference a nonexistent fingerprint.
type Store interface {
	// GetByExactHash returns the record for a hash, or nil when absent.
	GetByExactHash(ctx context.Context, hash string) (*FingerprintRecord, error)

	// FindByFuzzyHashes returns all records whose fuzzy hash set intersects
	// the given hashes. Empty input or no overlap yields an empty slice.
	FindByFuzzyHashes(ctx context.Context, hashes []string) ([]FingerprintRecord, error)

	// UpsertFingerprint creates the record when its exact hash is unseen.
	// With ifAbsentOnly the existing record is left untouched; otherwise a
	// repeat observation updates LastSeenAt and appends new session IDs.
	// Returns the stored record (existing or created).
	UpsertFingerprint(ctx context.Context, rec FingerprintRecord, ifAbsentOnly bool) (*FingerprintRecord, error)

	// GetAssociation returns the association for a fingerprint, or nil.
	GetAssociation(ctx context.Context, fingerprintID string) (*VisitorAssociation, error)

	// CreateAssociationIfAbsent writes the association unless one already
	// exists for the fingerprint. Returns the association now in effect,
	// which may be a previously written one (first writer wins).
	CreateAssociationIfAbsent(ctx context.Context, assoc VisitorAssociation) (*VisitorAssociation, error)

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
