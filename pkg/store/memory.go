package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and by DISABLE_DB deployments.
// Semantics match the Postgres implementation, including first-writer-wins
// association creation.
type Memory struct {
	mu           sync.RWMutex
	byExact      map[string]*FingerprintRecord
	associations map[string]*VisitorAssociation // fingerprintID -> assoc
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byExact:      make(map[string]*FingerprintRecord),
		associations: make(map[string]*VisitorAssociation),
	}
}

func (m *Memory) GetByExactHash(_ context.Context, hash string) (*FingerprintRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byExact[hash]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.FuzzyHashes = append([]string(nil), rec.FuzzyHashes...)
	cp.SessionIDs = append([]string(nil), rec.SessionIDs...)
	cp.Components = copyComponents(rec.Components)
	return &cp, nil
}

func (m *Memory) FindByFuzzyHashes(_ context.Context, hashes []string) ([]FingerprintRecord, error) {
	want := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		if h != "" {
			want[h] = true
		}
	}
	if len(want) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FingerprintRecord
	for _, rec := range m.byExact {
		for _, fh := range rec.FuzzyHashes {
			if want[fh] {
				cp := *rec
				cp.FuzzyHashes = append([]string(nil), rec.FuzzyHashes...)
				cp.SessionIDs = append([]string(nil), rec.SessionIDs...)
				cp.Components = copyComponents(rec.Components)
				out = append(out, cp)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) UpsertFingerprint(_ context.Context, rec FingerprintRecord, ifAbsentOnly bool) (*FingerprintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byExact[rec.ExactHash]
	if !ok {
		cp := rec
		cp.FuzzyHashes = append([]string(nil), rec.FuzzyHashes...)
		cp.SessionIDs = append([]string(nil), rec.SessionIDs...)
		cp.Components = copyComponents(rec.Components)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		if cp.LastSeenAt.IsZero() {
			cp.LastSeenAt = cp.CreatedAt
		}
		m.byExact[rec.ExactHash] = &cp
		out := cp
		return &out, nil
	}
	if !ifAbsentOnly {
		existing.LastSeenAt = time.Now().UTC()
		for _, sid := range rec.SessionIDs {
			if sid != "" && !containsString(existing.SessionIDs, sid) {
				existing.SessionIDs = append(existing.SessionIDs, sid)
			}
		}
		if existing.UserID == "" {
			existing.UserID = rec.UserID
		}
	}
	out := *existing
	out.FuzzyHashes = append([]string(nil), existing.FuzzyHashes...)
	out.SessionIDs = append([]string(nil), existing.SessionIDs...)
	out.Components = copyComponents(existing.Components)
	return &out, nil
}

func (m *Memory) GetAssociation(_ context.Context, fingerprintID string) (*VisitorAssociation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	assoc, ok := m.associations[fingerprintID]
	if !ok {
		return nil, nil
	}
	cp := *assoc
	return &cp, nil
}

func (m *Memory) CreateAssociationIfAbsent(_ context.Context, assoc VisitorAssociation) (*VisitorAssociation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.associations[assoc.FingerprintID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := assoc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.associations[assoc.FingerprintID] = &cp
	out := cp
	return &out, nil
}

func (m *Memory) Close() error { return nil }

func copyComponents(src map[string]map[string]string) map[string]map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(src))
	for group, fields := range src {
		cp := make(map[string]string, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		out[group] = cp
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
