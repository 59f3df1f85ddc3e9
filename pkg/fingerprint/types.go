// Package fingerprint canonicalizes multi-signal browser fingerprints and
// derives the exact and fuzzy hashes used for visitor matching.
package fingerprint

// Signal group names accepted in a submission. Each group maps sub-feature
// name -> scalar/string value as produced by the in-browser collectors.
const (
	GroupCanvas     = "canvas"
	GroupWebGL      = "webgl"
	GroupAudio      = "audio"
	GroupFonts      = "fonts"
	GroupWebRTC     = "webrtc"
	GroupWASM       = "wasm"
	GroupSensors    = "sensors"
	GroupPlugins    = "plugins"
	GroupBehavioral = "behavioral"
)

// groupOrder fixes serialization order so canonical output is independent of
// map iteration and of the order groups arrived in.
var groupOrder = []string{
	GroupFonts,
	GroupWebGL,
	GroupWASM,
	GroupPlugins,
	GroupWebRTC,
	GroupSensors,
	GroupAudio,
	GroupCanvas,
}

// coreGroups are the groups at least one of which must be present for a
// submission to be identifiable at all.
var coreGroups = map[string]bool{
	GroupCanvas: true,
	GroupAudio:  true,
	GroupWebGL:  true,
	GroupFonts:  true,
}

// volatileFields lists per-group sub-features that are not reproducible across
// page loads (timings, randomized probe results, battery state). They are
// stripped before hashing so identical devices hash identically.
var volatileFields = map[string]map[string]bool{
	GroupCanvas: {
		"renderTimeMs": true,
		"probeNonce":   true,
	},
	GroupWebGL: {
		"drawTimeMs":      true,
		"contextAttempts": true,
	},
	GroupAudio: {
		"processingTimeMs": true,
		"sampleNoise":      true,
	},
	GroupWebRTC: {
		"candidateGatherMs": true,
		"localIP":           true,
		"sessionNonce":      true,
	},
	GroupSensors: {
		"batteryLevel":    true,
		"batteryCharging": true,
		"readingNoise":    true,
	},
	GroupWASM: {
		"compileTimeMs": true,
	},
	GroupPlugins: {},
	GroupFonts:   {},
}

// Enumerable groups hold delimited lists (font names, plugin names) and are
// compared with set overlap rather than field-by-field equality.
var enumerableGroups = map[string]bool{
	GroupFonts:   true,
	GroupPlugins: true,
}

// IsEnumerable reports whether a group's value is a delimited list compared by
// set overlap.
func IsEnumerable(group string) bool { return enumerableGroups[group] }
