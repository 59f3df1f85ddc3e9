package match

import (
	"sort"

	"revisit/pkg/fingerprint"
	"revisit/pkg/store"
)

// Candidate is one stored fingerprint scored against a submission.
type Candidate struct {
	Record store.FingerprintRecord

	// Similarity is the weighted per-group similarity in [0,1] over the
	// signal groups both fingerprints report.
	Similarity float64

	// Confidence scales Similarity by how much evidence backed it and caps
	// it by the stability of the strongest shared fuzzy subset. It is the
	// value reconciliation compares against its threshold.
	Confidence float64

	// Signals names the sub-fields that agreed, e.g. "webgl.renderer".
	Signals []string

	// ComparedFields is the total number of sub-fields compared across all
	// shared groups.
	ComparedFields int

	// SharedSubset is the index of the most stable fuzzy subset both
	// fingerprints hashed identically, or -1 when they only met through a
	// less direct route.
	SharedSubset int
}

// Matcher ranks stored candidates against a new submission. Scoring policy
// lives in the Strategy; the matcher owns evidence scaling, the stability cap
// and ordering.
type Matcher struct {
	strategy   Strategy
	maxResults int
}

const defaultMaxResults = 10

// NewMatcher builds a matcher around a strategy. A nil strategy selects
// DefaultStrategy.
func NewMatcher(s Strategy) *Matcher {
	if s == nil {
		s = DefaultStrategy{}
	}
	return &Matcher{strategy: s, maxResults: defaultMaxResults}
}

// WithMaxResults bounds the number of ranked candidates returned.
func (m *Matcher) WithMaxResults(n int) *Matcher {
	if n > 0 {
		m.maxResults = n
	}
	return m
}

// Rank scores every candidate and returns them ordered by confidence, then by
// recency for equal confidence. Candidates sharing no comparable signal
// groups with the submission score zero and are dropped.
func (m *Matcher) Rank(sub *fingerprint.Canonical, hashes fingerprint.Hashes, candidates []store.FingerprintRecord) []Candidate {
	components := sub.Components()

	out := make([]Candidate, 0, len(candidates))
	for _, rec := range candidates {
		if rec.ExactHash == hashes.Exact {
			// The exact record is handled by the fast path upstream;
			// scoring it here would just restate identity.
			continue
		}
		c := m.score(components, hashes, rec)
		if c.Confidence <= 0 {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Record.LastSeenAt.After(out[j].Record.LastSeenAt)
	})
	if len(out) > m.maxResults {
		out = out[:m.maxResults]
	}
	return out
}

func (m *Matcher) score(components map[string]map[string]string, hashes fingerprint.Hashes, rec store.FingerprintRecord) Candidate {
	c := Candidate{Record: rec, SharedSubset: sharedSubset(hashes, rec.FuzzyHashes)}

	// Fixed iteration order keeps float accumulation deterministic, so
	// identical candidates always score identically.
	groups := make([]string, 0, len(components))
	for group := range components {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	var weightedSum, weightTotal float64
	for _, group := range groups {
		fields := components[group]
		theirs, ok := rec.Components[group]
		if !ok || len(theirs) == 0 {
			continue
		}
		sim, compared, matched := m.strategy.GroupSimilarity(group, fields, theirs)
		if compared == 0 {
			continue
		}
		w := m.strategy.GroupWeight(group)
		weightedSum += w * sim
		weightTotal += w
		c.ComparedFields += compared
		c.Signals = append(c.Signals, matched...)
	}
	if weightTotal == 0 {
		return c
	}
	sort.Strings(c.Signals)
	c.Similarity = weightedSum / weightTotal

	// Confidence discounts thin evidence (one shared field should never
	// clear the reuse threshold alone) and is capped by the stability of
	// the strongest subset the two fingerprints agreed on: a match seen
	// only through drift-prone groups cannot claim full confidence.
	evidence := float64(c.ComparedFields) / float64(c.ComparedFields+1)
	confidence := c.Similarity * evidence
	if limit := stabilityCap(c.SharedSubset); confidence > limit {
		confidence = limit
	}
	c.Confidence = confidence
	return c
}

// sharedSubset returns the lowest fuzzy subset index at which both hash lists
// agree on a non-placeholder digest, or -1.
func sharedSubset(hashes fingerprint.Hashes, theirs []string) int {
	seen := make(map[string]bool, len(theirs))
	for _, h := range theirs {
		if h != "" {
			seen[h] = true
		}
	}
	for i, h := range hashes.Fuzzy {
		if h != "" && seen[h] {
			return i
		}
	}
	return -1
}

func stabilityCap(sharedSubset int) float64 {
	if sharedSubset < 0 {
		// Met without any agreeing fuzzy digest: weakest cap applies.
		return fingerprint.SubsetStabilityRank(fingerprint.FuzzySubsetCount - 1)
	}
	return fingerprint.SubsetStabilityRank(sharedSubset)
}
