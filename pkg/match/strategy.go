// Package match ranks stored fingerprints against a new submission by
// weighted per-signal similarity and derives a reconciliation confidence.
package match

import (
	"strings"

	"revisit/pkg/fingerprint"
)

// Strategy computes per-group similarity and the discriminative weight of a
// group. Pluggable so weighting policy can evolve without touching the
// matcher's control flow.
type Strategy interface {
	// GroupSimilarity compares the retained sub-fields of one group across
	// two fingerprints, returning a similarity in [0,1], the number of
	// sub-fields actually compared, and the names of sub-fields that agreed.
	GroupSimilarity(group string, a, b map[string]string) (sim float64, compared int, matched []string)

	// GroupWeight returns the discriminative power of a group. Higher for
	// groups with higher cardinality across the population.
	GroupWeight(group string) float64
}

// DefaultStrategy implements the production policy: exact-match ratio for
// structured groups, Jaccard overlap for enumerable ones, weights reflecting
// each modality's observed cardinality (a full font list identifies far more
// than a boolean WASM flag).
type DefaultStrategy struct{}

var defaultWeights = map[string]float64{
	fingerprint.GroupCanvas:  1.0,
	fingerprint.GroupFonts:   1.0,
	fingerprint.GroupWebGL:   0.9,
	fingerprint.GroupAudio:   0.8,
	fingerprint.GroupPlugins: 0.6,
	fingerprint.GroupWebRTC:  0.5,
	fingerprint.GroupSensors: 0.4,
	fingerprint.GroupWASM:    0.2,
}

func (DefaultStrategy) GroupWeight(group string) float64 {
	if w, ok := defaultWeights[group]; ok {
		return w
	}
	return 0.3
}

func (DefaultStrategy) GroupSimilarity(group string, a, b map[string]string) (float64, int, []string) {
	if fingerprint.IsEnumerable(group) {
		return enumerableSimilarity(group, a, b)
	}
	return structuredSimilarity(group, a, b)
}

// structuredSimilarity is the exact-match ratio over sub-fields present on
// both sides; fields only one side reports are not evidence either way.
func structuredSimilarity(group string, a, b map[string]string) (float64, int, []string) {
	compared := 0
	var matched []string
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			continue
		}
		compared++
		if av == bv {
			matched = append(matched, group+"."+key)
		}
	}
	if compared == 0 {
		return 0, 0, nil
	}
	return float64(len(matched)) / float64(compared), compared, matched
}

// enumerableSimilarity treats every sub-field value as a delimited set and
// pools them into one Jaccard comparison per group.
func enumerableSimilarity(group string, a, b map[string]string) (float64, int, []string) {
	setA := pooledSet(a)
	setB := pooledSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0, 0, nil
	}
	inter := 0
	for v := range setA {
		if setB[v] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	var matched []string
	if inter > 0 {
		matched = []string{group + ".overlap"}
	}
	return float64(inter) / float64(union), union, matched
}

func pooledSet(fields map[string]string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range fields {
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				set[item] = true
			}
		}
	}
	return set
}
