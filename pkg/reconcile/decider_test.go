package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revisit/pkg/behavior"
	"revisit/pkg/fingerprint"
	"revisit/pkg/match"
	"revisit/pkg/store"
)

func laptopSignals() map[string]map[string]any {
	return map[string]map[string]any{
		fingerprint.GroupCanvas: {
			"geometryHash": "a1b2c3",
			"textHash":     "d4e5f6",
			"winding":      true,
		},
		fingerprint.GroupWebGL: {
			"vendor":   "Google Inc. (NVIDIA)",
			"renderer": "ANGLE (NVIDIA GeForce RTX 3060)",
		},
		fingerprint.GroupFonts: {
			"available": []string{"Arial", "Courier New", "Georgia", "Verdana"},
		},
		fingerprint.GroupAudio: {
			"oscillatorHash": "0a1b2c",
		},
		fingerprint.GroupWASM: {
			"simd":    true,
			"threads": false,
		},
	}
}

func phoneSignals() map[string]map[string]any {
	return map[string]map[string]any{
		fingerprint.GroupCanvas: {
			"geometryHash": "m0b1le",
			"textHash":     "t0uch",
			"winding":      false,
		},
		fingerprint.GroupWebGL: {
			"vendor":   "Apple Inc.",
			"renderer": "Apple A17 GPU",
		},
		fingerprint.GroupFonts: {
			"available": []string{"Helvetica Neue", "SF Pro"},
		},
		fingerprint.GroupAudio: {
			"oscillatorHash": "9f8e7d",
		},
	}
}

func newTestDecider() (*Decider, *store.Memory) {
	mem := store.NewMemory()
	return NewDecider(mem, nil, match.NewMatcher(nil), DefaultThreshold), mem
}

func TestIdentifyMintsNewVisitor(t *testing.T) {
	d, _ := newTestDecider()
	res, err := d.Identify(context.Background(), Submission{Signals: laptopSignals()})
	require.NoError(t, err)

	assert.True(t, res.IsNewVisitor)
	assert.NotEmpty(t, res.VisitorID)
	assert.NotEmpty(t, res.FingerprintID)
	assert.NotEmpty(t, res.SessionID, "session is minted when the client sends none")
	assert.Equal(t, 1.0, res.Confidence)
}

func TestIdentifyExactResubmissionIsIdempotent(t *testing.T) {
	d, _ := newTestDecider()
	ctx := context.Background()

	first, err := d.Identify(ctx, Submission{Signals: laptopSignals(), SessionID: "s-1"})
	require.NoError(t, err)

	second, err := d.Identify(ctx, Submission{Signals: laptopSignals(), SessionID: "s-2"})
	require.NoError(t, err)

	assert.Equal(t, first.VisitorID, second.VisitorID)
	assert.Equal(t, first.FingerprintID, second.FingerprintID)
	assert.False(t, second.IsNewVisitor)
	assert.Equal(t, 1.0, second.Confidence)
	assert.Equal(t, "s-2", second.SessionID)
}

func TestIdentifyRecognizesDriftedDevice(t *testing.T) {
	d, _ := newTestDecider()
	ctx := context.Background()

	first, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)

	drifted := laptopSignals()
	drifted[fingerprint.GroupCanvas]["geometryHash"] = "ff00ff"
	second, err := d.Identify(ctx, Submission{Signals: drifted})
	require.NoError(t, err)

	assert.Equal(t, first.VisitorID, second.VisitorID)
	assert.NotEqual(t, first.FingerprintID, second.FingerprintID, "drifted submission stores its own fingerprint")
	assert.False(t, second.IsNewVisitor)
	assert.GreaterOrEqual(t, second.Confidence, DefaultThreshold)
	assert.Less(t, second.Confidence, 1.0)
	assert.NotEmpty(t, second.MatchedSignals)
}

func TestIdentifyUnrelatedDeviceMintsSeparateVisitor(t *testing.T) {
	d, _ := newTestDecider()
	ctx := context.Background()

	laptop, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)
	phone, err := d.Identify(ctx, Submission{Signals: phoneSignals()})
	require.NoError(t, err)

	assert.NotEqual(t, laptop.VisitorID, phone.VisitorID)
	assert.True(t, phone.IsNewVisitor)
}

func TestIdentifyHighThresholdMintsOnDrift(t *testing.T) {
	mem := store.NewMemory()
	d := NewDecider(mem, nil, match.NewMatcher(nil), 0.99)
	ctx := context.Background()

	first, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)

	drifted := laptopSignals()
	drifted[fingerprint.GroupCanvas]["geometryHash"] = "ff00ff"
	second, err := d.Identify(ctx, Submission{Signals: drifted})
	require.NoError(t, err)

	assert.NotEqual(t, first.VisitorID, second.VisitorID)
	assert.True(t, second.IsNewVisitor)
}

func TestIdentifyRejectsUnusableSubmission(t *testing.T) {
	d, _ := newTestDecider()
	_, err := d.Identify(context.Background(), Submission{Signals: map[string]map[string]any{
		fingerprint.GroupWASM: {"simd": true},
	}})
	assert.ErrorIs(t, err, fingerprint.ErrNoUsableSignals)
}

func TestIdentifyRepairsFingerprintWithoutAssociation(t *testing.T) {
	d, mem := newTestDecider()
	ctx := context.Background()

	// Simulate a crash between the fingerprint write and the association
	// write of an earlier run.
	c, err := fingerprint.Canonicalize(laptopSignals())
	require.NoError(t, err)
	h := fingerprint.Synthesize(c)
	_, err = mem.UpsertFingerprint(ctx, store.FingerprintRecord{
		FingerprintID: "orphan-fp",
		ExactHash:     h.Exact,
		FuzzyHashes:   h.Fuzzy,
		Components:    c.Components(),
	}, true)
	require.NoError(t, err)

	res, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)
	assert.True(t, res.IsNewVisitor)
	assert.Equal(t, "orphan-fp", res.FingerprintID, "existing record keeps its identity")
	assert.NotEmpty(t, res.VisitorID)

	// The repair is durable: the next exact hit resolves normally.
	again, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)
	assert.Equal(t, res.VisitorID, again.VisitorID)
	assert.False(t, again.IsNewVisitor)
}

func TestIdentifyDriftedMatchSurvivesRestart(t *testing.T) {
	// The association written for a drifted fingerprint must let a later
	// exact resubmission of the drifted form resolve without matching.
	d, mem := newTestDecider()
	ctx := context.Background()

	_, err := d.Identify(ctx, Submission{Signals: laptopSignals()})
	require.NoError(t, err)

	drifted := laptopSignals()
	drifted[fingerprint.GroupCanvas]["geometryHash"] = "ff00ff"
	second, err := d.Identify(ctx, Submission{Signals: drifted})
	require.NoError(t, err)

	fresh := NewDecider(mem, nil, match.NewMatcher(nil), DefaultThreshold)
	third, err := fresh.Identify(ctx, Submission{Signals: drifted})
	require.NoError(t, err)

	assert.Equal(t, second.VisitorID, third.VisitorID)
	assert.Equal(t, second.FingerprintID, third.FingerprintID)
	assert.False(t, third.IsNewVisitor)
	assert.Equal(t, 1.0, third.Confidence, "exact hit on the drifted form")
}

func TestIdentifyCarriesBehavioralVerdict(t *testing.T) {
	d, _ := newTestDecider()

	var events []behavior.Event
	for i := 0; i < 30; i++ {
		events = append(events, behavior.Event{
			Type:      behavior.EventMouseMove,
			X:         float64(i * 5),
			Y:         float64(i * 5),
			Timestamp: int64(i * 10),
		})
	}
	res, err := d.Identify(context.Background(), Submission{Signals: laptopSignals(), Events: events})
	require.NoError(t, err)
	require.NotNil(t, res.Behavior)
	assert.True(t, res.Behavior.Flags.LinearMovement)

	plain, err := d.Identify(context.Background(), Submission{Signals: phoneSignals()})
	require.NoError(t, err)
	assert.Nil(t, plain.Behavior)
}

func TestIdentifySessionAccumulatesOnRecord(t *testing.T) {
	d, mem := newTestDecider()
	ctx := context.Background()

	first, err := d.Identify(ctx, Submission{Signals: laptopSignals(), SessionID: "s-1"})
	require.NoError(t, err)
	_, err = d.Identify(ctx, Submission{Signals: laptopSignals(), SessionID: "s-2"})
	require.NoError(t, err)

	c, err := fingerprint.Canonicalize(laptopSignals())
	require.NoError(t, err)
	rec, err := mem.GetByExactHash(ctx, fingerprint.Synthesize(c).Exact)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first.FingerprintID, rec.FingerprintID)
	assert.ElementsMatch(t, []string{"s-1", "s-2"}, rec.SessionIDs)
}
