package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSignals() map[string]map[string]any {
	return map[string]map[string]any{
		GroupCanvas: {
			"geometryHash": "a1b2c3",
			"textHash":     "d4e5f6",
			"winding":      true,
			"renderTimeMs": 12.7,
		},
		GroupWebGL: {
			"vendor":          "Google Inc. (NVIDIA)",
			"renderer":        "ANGLE (NVIDIA GeForce RTX 3060)",
			"maxTextureSize":  16384,
			"contextAttempts": 2,
		},
		GroupFonts: {
			"available": []string{"Arial", "Courier New", "Georgia", "Verdana"},
		},
		GroupAudio: {
			"oscillatorHash":   "0a1b2c",
			"processingTimeMs": 3.14,
		},
		GroupWASM: {
			"simd":    true,
			"threads": false,
		},
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	a, err := Canonicalize(sampleSignals())
	require.NoError(t, err)
	b, err := Canonicalize(sampleSignals())
	require.NoError(t, err)

	assert.Equal(t, a.serialize(nil), b.serialize(nil))
	assert.Equal(t, a.Groups(), b.Groups())
}

func TestCanonicalizeStripsVolatileFields(t *testing.T) {
	c, err := Canonicalize(sampleSignals())
	require.NoError(t, err)

	canvas := c.Fields(GroupCanvas)
	assert.NotContains(t, canvas, "renderTimeMs")
	assert.Contains(t, canvas, "geometryHash")

	webgl := c.Fields(GroupWebGL)
	assert.NotContains(t, webgl, "contextAttempts")
}

func TestCanonicalizeTimingChangeDoesNotAffectOutput(t *testing.T) {
	fast := sampleSignals()
	slow := sampleSignals()
	slow[GroupCanvas]["renderTimeMs"] = 312.9
	slow[GroupAudio]["processingTimeMs"] = 88.1

	a, err := Canonicalize(fast)
	require.NoError(t, err)
	b, err := Canonicalize(slow)
	require.NoError(t, err)
	assert.Equal(t, a.serialize(nil), b.serialize(nil))
}

func TestCanonicalizeGroupOrderFixed(t *testing.T) {
	c, err := Canonicalize(sampleSignals())
	require.NoError(t, err)
	assert.Equal(t, []string{GroupFonts, GroupWebGL, GroupWASM, GroupAudio, GroupCanvas}, c.Groups())
}

func TestCanonicalizeRejectsNoCoreGroups(t *testing.T) {
	_, err := Canonicalize(map[string]map[string]any{
		GroupWASM:    {"simd": true},
		GroupSensors: {"accelerometer": true},
	})
	assert.ErrorIs(t, err, ErrNoUsableSignals)

	_, err = Canonicalize(nil)
	assert.ErrorIs(t, err, ErrNoUsableSignals)
}

func TestCanonicalizeIgnoresUnknownGroups(t *testing.T) {
	signals := sampleSignals()
	signals["experimental"] = map[string]any{"x": 1}
	c, err := Canonicalize(signals)
	require.NoError(t, err)
	assert.False(t, c.Has("experimental"))
}

func TestScalarStringNumericCollapse(t *testing.T) {
	// A value that arrives as 1 or 1.0 is a JSON decode artifact, not a
	// different device.
	assert.Equal(t, scalarString(1), scalarString(float64(1)))
	assert.Equal(t, "1.5", scalarString(1.5))
	assert.Equal(t, "true", scalarString(true))
	assert.Equal(t, "", scalarString(nil))
}

func TestScalarStringListOrderInsensitive(t *testing.T) {
	a := scalarString([]string{"Verdana", "Arial"})
	b := scalarString([]any{"Arial", "Verdana"})
	assert.Equal(t, a, b)
}

func TestComponentsRoundTrip(t *testing.T) {
	c, err := Canonicalize(sampleSignals())
	require.NoError(t, err)
	components := c.Components()
	require.Contains(t, components, GroupWebGL)
	assert.Equal(t, "16384", components[GroupWebGL]["maxTextureSize"])
	assert.NotContains(t, components[GroupWebGL], "contextAttempts")
}
