// Package reconcile decides whether an incoming fingerprint belongs to a
// previously seen visitor. It owns the ordering guarantees around the store:
// the fingerprint record is always persisted before any association is
// written, and association creation is first-writer-wins.
package reconcile

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"revisit/pkg/behavior"
	"revisit/pkg/fingerprint"
	"revisit/pkg/match"
	"revisit/pkg/store"
)

// DefaultThreshold is the minimum match confidence at which a candidate's
// visitor identity is reused instead of minting a new one.
const DefaultThreshold = 0.7

// Submission is one collector payload: raw signal groups plus optional
// session context and behavioral telemetry.
type Submission struct {
	Signals   map[string]map[string]any `json:"signals"`
	SessionID string                    `json:"session_id,omitempty"`
	UserID    string                    `json:"user_id,omitempty"`
	Events    []behavior.Event          `json:"events,omitempty"`
}

// Result is the reconciliation outcome returned to the caller.
type Result struct {
	VisitorID    string  `json:"visitor_id"`
	SessionID    string  `json:"session_id"`
	IsNewVisitor bool    `json:"is_new_visitor"`
	Confidence   float64 `json:"confidence"`

	// FingerprintID identifies the stored record the decision attached to.
	FingerprintID string `json:"fingerprint_id"`

	// MatchedSignals names the agreeing sub-fields when the visitor was
	// recognized through fuzzy matching; empty on exact hits and mints.
	MatchedSignals []string `json:"matched_signals,omitempty"`

	// Behavior carries the humanness verdict when the submission included
	// telemetry events.
	Behavior *behavior.HumanVerification `json:"behavior,omitempty"`
}

// Decider wires the canonicalizer, hash synthesizer, matcher and store into
// the identify operation.
type Decider struct {
	store     store.Store
	cache     *store.VisitorCache
	matcher   *match.Matcher
	behavior  behavior.Config
	threshold float64
}

// NewDecider builds a decider. The cache may be nil; threshold values outside
// (0,1] fall back to DefaultThreshold.
func NewDecider(st store.Store, cache *store.VisitorCache, m *match.Matcher, threshold float64) *Decider {
	if m == nil {
		m = match.NewMatcher(nil)
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Decider{
		store:     st,
		cache:     cache,
		matcher:   m,
		behavior:  behavior.DefaultConfig(),
		threshold: threshold,
	}
}

// WithBehaviorConfig overrides the telemetry analysis bounds and blend
// weights.
func (d *Decider) WithBehaviorConfig(cfg behavior.Config) *Decider {
	d.behavior = cfg
	return d
}

// Identify runs the full pipeline for one submission. Resubmitting identical
// signals always yields the same visitor ID, and a store failure surfaces as
// an error with no partial association left behind.
func (d *Decider) Identify(ctx context.Context, sub Submission) (*Result, error) {
	canonical, err := fingerprint.Canonicalize(sub.Signals)
	if err != nil {
		return nil, err
	}
	hashes := fingerprint.Synthesize(canonical)

	sessionID := sub.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var verdict *behavior.HumanVerification
	if len(sub.Events) > 0 {
		v := behavior.Analyze(sub.Events, d.behavior)
		verdict = &v
	}

	res, err := d.reconcile(ctx, canonical, hashes, sessionID, sub.UserID)
	if err != nil {
		return nil, err
	}
	res.SessionID = sessionID
	res.Behavior = verdict
	return res, nil
}

func (d *Decider) reconcile(ctx context.Context, canonical *fingerprint.Canonical, hashes fingerprint.Hashes, sessionID, userID string) (*Result, error) {
	existing, err := d.store.GetByExactHash(ctx, hashes.Exact)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	if existing != nil {
		return d.reconcileExact(ctx, existing, hashes, sessionID, userID)
	}
	return d.reconcileFuzzy(ctx, canonical, hashes, sessionID, userID)
}

// reconcileExact handles a fingerprint seen before byte-for-byte. The record
// is touched, then its association is resolved with full confidence.
func (d *Decider) reconcileExact(ctx context.Context, existing *store.FingerprintRecord, hashes fingerprint.Hashes, sessionID, userID string) (*Result, error) {
	touch := *existing
	touch.SessionIDs = []string{sessionID}
	touch.UserID = userID
	stored, err := d.store.UpsertFingerprint(ctx, touch, false)
	if err != nil {
		return nil, fmt.Errorf("touch fingerprint: %w", err)
	}

	if visitorID := d.cache.Get(ctx, hashes.Exact); visitorID != "" {
		return &Result{
			VisitorID:     visitorID,
			FingerprintID: stored.FingerprintID,
			Confidence:    1.0,
		}, nil
	}

	assoc, err := d.store.GetAssociation(ctx, stored.FingerprintID)
	if err != nil {
		return nil, fmt.Errorf("get association: %w", err)
	}
	if assoc != nil {
		d.cache.Set(ctx, hashes.Exact, assoc.VisitorID)
		return &Result{
			VisitorID:     assoc.VisitorID,
			FingerprintID: stored.FingerprintID,
			Confidence:    1.0,
		}, nil
	}

	// A stored fingerprint without an association means a previous run
	// failed between the two writes. Repair by minting a fresh visitor.
	log.Printf("[identity] fingerprint %s has no association, minting new visitor", stored.FingerprintID)
	return d.mint(ctx, stored, hashes, 1.0)
}

// reconcileFuzzy persists the new fingerprint, scores stored candidates and
// either adopts the best candidate's visitor or mints a new one.
func (d *Decider) reconcileFuzzy(ctx context.Context, canonical *fingerprint.Canonical, hashes fingerprint.Hashes, sessionID, userID string) (*Result, error) {
	candidates, err := d.store.FindByFuzzyHashes(ctx, hashes.NonEmpty())
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}
	ranked := d.matcher.Rank(canonical, hashes, candidates)

	rec := store.FingerprintRecord{
		FingerprintID: uuid.NewString(),
		ExactHash:     hashes.Exact,
		FuzzyHashes:   hashes.Fuzzy,
		Components:    canonical.Components(),
		UserID:        userID,
		SessionIDs:    []string{sessionID},
	}
	// ifAbsentOnly: a concurrent identical submission must not reassign the
	// fingerprint ID the first writer already committed.
	stored, err := d.store.UpsertFingerprint(ctx, rec, true)
	if err != nil {
		return nil, fmt.Errorf("create fingerprint: %w", err)
	}

	if len(ranked) > 0 && ranked[0].Confidence >= d.threshold {
		best := ranked[0]
		assoc, err := d.store.GetAssociation(ctx, best.Record.FingerprintID)
		if err != nil {
			return nil, fmt.Errorf("get candidate association: %w", err)
		}
		if assoc == nil {
			log.Printf("[identity] matched fingerprint %s has no association, minting new visitor", best.Record.FingerprintID)
			return d.mint(ctx, stored, hashes, 1.0)
		}
		effective, err := d.store.CreateAssociationIfAbsent(ctx, store.VisitorAssociation{
			VisitorID:     assoc.VisitorID,
			FingerprintID: stored.FingerprintID,
			Confidence:    best.Confidence,
		})
		if err != nil {
			return nil, fmt.Errorf("create association: %w", err)
		}
		d.cache.Set(ctx, hashes.Exact, effective.VisitorID)
		return &Result{
			VisitorID:      effective.VisitorID,
			FingerprintID:  stored.FingerprintID,
			Confidence:     effective.Confidence,
			MatchedSignals: best.Signals,
		}, nil
	}

	return d.mint(ctx, stored, hashes, 1.0)
}

// mint assigns a brand-new visitor to the fingerprint. If a concurrent writer
// associated it first, their visitor wins and the result reports a returning
// visitor instead.
func (d *Decider) mint(ctx context.Context, stored *store.FingerprintRecord, hashes fingerprint.Hashes, confidence float64) (*Result, error) {
	visitorID := uuid.NewString()
	effective, err := d.store.CreateAssociationIfAbsent(ctx, store.VisitorAssociation{
		VisitorID:     visitorID,
		FingerprintID: stored.FingerprintID,
		Confidence:    confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("create association: %w", err)
	}
	d.cache.Set(ctx, hashes.Exact, effective.VisitorID)
	return &Result{
		VisitorID:     effective.VisitorID,
		FingerprintID: stored.FingerprintID,
		IsNewVisitor:  effective.VisitorID == visitorID,
		Confidence:    effective.Confidence,
	}, nil
}
