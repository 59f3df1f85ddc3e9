package behavior

import (
	"math"
	"testing"
)

// scriptedMouse emits a perfectly straight path with a fixed inter-event
// interval, the signature of element.dispatchEvent in a loop.
func scriptedMouse(n int) []Event {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, Event{
			Type:      EventMouseMove,
			X:         float64(i * 5),
			Y:         float64(i * 5),
			Timestamp: int64(i * 10),
		})
	}
	return events
}

// jitteredMouse emits a curved path with irregular cadence, the texture of a
// real pointer.
func jitteredMouse(n int) []Event {
	events := make([]Event, 0, n)
	ts := int64(0)
	for i := 0; i < n; i++ {
		ts += int64(12 + (i*7)%23)
		events = append(events, Event{
			Type:      EventMouseMove,
			X:         float64(i)*4 + 15*math.Sin(float64(i)/3),
			Y:         float64(i)*3 + 12*math.Cos(float64(i)/2),
			Timestamp: ts,
		})
	}
	return events
}

// scriptedTyping emits keystrokes with zero dwell variance.
func scriptedTyping(n int) []Event {
	events := make([]Event, 0, 2*n)
	keys := "abcdefghijklmnopqrstuvwxyz"
	ts := int64(0)
	for i := 0; i < n; i++ {
		key := string(keys[i%len(keys)])
		events = append(events, Event{Type: EventKeyDown, Key: key, Timestamp: ts})
		events = append(events, Event{Type: EventKeyUp, Key: key, Timestamp: ts + 50})
		ts += 150
	}
	return events
}

func TestAnalyzeNeutralOnSparseInput(t *testing.T) {
	for _, events := range [][]Event{
		nil,
		{},
		{{Type: EventMouseMove, X: 1, Y: 1, Timestamp: 100}},
	} {
		v := Analyze(events, DefaultConfig())
		if !v.Neutral {
			t.Errorf("Analyze(%d events) not neutral", len(events))
		}
		if v.Recommendation != "challenge" {
			t.Errorf("neutral recommendation = %q, want challenge", v.Recommendation)
		}
		if v.BotProbability != 0 {
			t.Errorf("neutral bot probability = %v, want 0", v.BotProbability)
		}
	}
}

func TestAnalyzeFlagsScriptedSession(t *testing.T) {
	events := append(scriptedMouse(60), scriptedTyping(50)...)
	v := Analyze(events, DefaultConfig())

	if v.Neutral {
		t.Fatal("scripted session analyzed as neutral")
	}
	if !v.Flags.PerfectTiming {
		t.Error("zero-variance dwell did not raise PerfectTiming")
	}
	if !v.Flags.LinearMovement {
		t.Error("perfectly straight path did not raise LinearMovement")
	}
	if !v.Flags.NoTremor {
		t.Error("constant-velocity path did not raise NoTremor")
	}
	if v.BotProbability < 0.5 {
		t.Errorf("bot probability = %v, want >= 0.5", v.BotProbability)
	}
	if v.Recommendation != "block" {
		t.Errorf("recommendation = %q, want block", v.Recommendation)
	}
}

func TestAnalyzePassesHumanSession(t *testing.T) {
	events := jitteredMouse(80)
	v := Analyze(events, DefaultConfig())

	if v.Neutral {
		t.Fatal("human session analyzed as neutral")
	}
	if v.Flags.LinearMovement {
		t.Errorf("curved path raised LinearMovement (straightness=%v)", v.Movement.PathStraightness)
	}
	if v.Flags.NoTremor {
		t.Errorf("irregular velocity raised NoTremor (tremor=%v)", v.Movement.Tremor)
	}
	if v.Flags.PerfectTiming {
		t.Errorf("irregular cadence raised PerfectTiming (variance=%v)", v.Movement.TimingVariance)
	}
	if v.Recommendation != "allow" {
		t.Errorf("recommendation = %q (bot probability %v), want allow", v.Recommendation, v.BotProbability)
	}
	if v.OverallHumanness <= 0.5 {
		t.Errorf("overall humanness = %v, want > 0.5", v.OverallHumanness)
	}
}

func TestAnalyzeBotProbabilityCapped(t *testing.T) {
	// Straight path, no tremor, perfect timing, implausible speed and
	// implausible typing all at once must still cap at 1.0.
	var events []Event
	for i := 0; i < 30; i++ {
		events = append(events, Event{
			Type:      EventMouseMove,
			X:         float64(i * 500),
			Y:         0,
			Timestamp: int64(i * 10),
		})
	}
	keys := "abcdefghij"
	ts := int64(0)
	for i := 0; i < 40; i++ {
		key := string(keys[i%len(keys)])
		events = append(events, Event{Type: EventKeyDown, Key: key, Timestamp: ts})
		events = append(events, Event{Type: EventKeyUp, Key: key, Timestamp: ts + 5})
		ts += 20
	}
	v := Analyze(events, DefaultConfig())
	if v.BotProbability != 1.0 {
		t.Errorf("bot probability = %v, want capped at 1.0", v.BotProbability)
	}
	if v.Recommendation != "block" {
		t.Errorf("recommendation = %q, want block", v.Recommendation)
	}
}

func TestBlendHumannessNormalizesOverPresentModalities(t *testing.T) {
	cfg := DefaultConfig()
	v := HumanVerification{
		MouseHumanness: 0.9,
		Movement:       MouseMovementPattern{SampleCount: 20},
	}
	// Only the mouse modality has evidence, so its weight normalizes to 1.
	if got := blendHumanness(v, cfg); got != 0.9 {
		t.Errorf("blend with mouse only = %v, want 0.9", got)
	}

	none := HumanVerification{}
	if got := blendHumanness(none, cfg); got != 0.5 {
		t.Errorf("blend with no modalities = %v, want 0.5", got)
	}
}

func TestRecommendBands(t *testing.T) {
	cases := []struct {
		p    float64
		want string
	}{
		{0.0, "allow"},
		{0.29, "allow"},
		{0.3, "challenge"},
		{0.59, "challenge"},
		{0.6, "block"},
		{1.0, "block"},
	}
	for _, tc := range cases {
		if got := recommend(tc.p); got != tc.want {
			t.Errorf("recommend(%v) = %q, want %q", tc.p, got, tc.want)
		}
	}
}
