package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hashes carries the exact content hash of a canonical fingerprint and the
// ordered fuzzy digests used for approximate candidate lookup. Fuzzy[0] covers
// the most stable subset; later entries add progressively drift-prone groups.
type Hashes struct {
	Exact string
	Fuzzy []string
}

// fuzzySubsets ranks group subsets by stability. Fonts, WebGL identity strings
// and WASM capability flags survive driver and browser updates that shift
// canvas or audio DSP output, so a device whose canvas drifted still matches
// on the earlier subsets.
var fuzzySubsets = [][]string{
	{GroupFonts, GroupWebGL, GroupWASM},
	{GroupFonts, GroupWebGL, GroupWASM, GroupPlugins},
	{GroupFonts, GroupWebGL, GroupWASM, GroupPlugins, GroupWebRTC, GroupSensors},
	{GroupFonts, GroupWebGL, GroupWASM, GroupPlugins, GroupWebRTC, GroupSensors, GroupAudio},
	{GroupFonts, GroupWebGL, GroupWASM, GroupPlugins, GroupWebRTC, GroupSensors, GroupAudio, GroupCanvas},
}

// FuzzySubsetCount is the fixed number of fuzzy hashes per fingerprint.
var FuzzySubsetCount = len(fuzzySubsets)

// SubsetStabilityRank maps a fuzzy hash's index to a stability factor in
// (0,1]: 1.0 for the most stable subset, decreasing linearly for subsets that
// include drift-prone groups. The matcher uses it to cap confidence for
// matches found only on less-stable subsets.
func SubsetStabilityRank(index int) float64 {
	if index < 0 || index >= FuzzySubsetCount {
		return 0
	}
	return 1.0 - float64(index)*(0.5/float64(FuzzySubsetCount-1))
}

// Synthesize derives the exact hash over the full canonical content and one
// fuzzy hash per stability subset. Exact-hash equality implies fuzzy-hash
// equality; the converse does not hold. A subset with none of its groups
// present yields an empty placeholder so sparse submissions do not all
// collide on the digest of nothing; lookups skip empty entries.
func Synthesize(c *Canonical) Hashes {
	h := Hashes{
		Exact: digest("exact:v1", c.serialize(nil)),
		Fuzzy: make([]string, 0, FuzzySubsetCount),
	}
	for i, subset := range fuzzySubsets {
		members := make(map[string]bool, len(subset))
		for _, g := range subset {
			members[g] = true
		}
		payload := c.serialize(func(group string) bool { return members[group] })
		if payload == "" {
			h.Fuzzy = append(h.Fuzzy, "")
			continue
		}
		h.Fuzzy = append(h.Fuzzy, digest("fuzzy:v1:"+string(rune('0'+i)), payload))
	}
	return h
}

// NonEmpty filters out placeholder entries, returning the fuzzy hashes usable
// for store lookup.
func (h Hashes) NonEmpty() []string {
	out := make([]string, 0, len(h.Fuzzy))
	for _, f := range h.Fuzzy {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func digest(domain, payload string) string {
	sum := sha256.New()
	sum.Write([]byte(domain))
	sum.Write([]byte{0})
	sum.Write([]byte(payload))
	return hex.EncodeToString(sum.Sum(nil))
}
