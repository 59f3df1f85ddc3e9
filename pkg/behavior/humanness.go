package behavior

import "math"

// Statistics is the cross-modality statistical layer computed over the
// clipped sample.
type Statistics struct {
	VelocityEntropy  float64 `json:"velocity_entropy"`
	TimingEntropy    float64 `json:"timing_entropy"`
	TimingVariance   float64 `json:"timing_variance"`
	TimingStdDev     float64 `json:"timing_std_dev"`
	MouseKeyboardCor float64 `json:"mouse_keyboard_correlation"`
	AnomalyScore     float64 `json:"anomaly_score"`
	ConsistencyScore float64 `json:"consistency_score"`
	UniquenessScore  float64 `json:"uniqueness_score"`
}

// AutomationFlags are the individual heuristics feeding BotProbability.
type AutomationFlags struct {
	PerfectTiming       bool `json:"perfect_timing"`
	ImplausibleVelocity bool `json:"implausible_velocity"`
	ImplausibleTyping   bool `json:"implausible_typing"`
	LinearMovement      bool `json:"linear_movement"`
	NoTremor            bool `json:"no_tremor"`
}

// HumanVerification is the engine's verdict for one sample window.
type HumanVerification struct {
	Movement MouseMovementPattern `json:"movement"`
	Typing   TypingPattern        `json:"typing"`
	Clicks   ClickPattern         `json:"clicks"`
	Scroll   ScrollPattern        `json:"scroll"`
	Touch    TouchPattern         `json:"touch"`
	Stats    Statistics           `json:"stats"`
	Flags    AutomationFlags      `json:"flags"`

	MouseHumanness    float64 `json:"mouse_humanness"`
	KeyboardHumanness float64 `json:"keyboard_humanness"`
	TouchHumanness    float64 `json:"touch_humanness"`
	OverallHumanness  float64 `json:"overall_humanness"`
	BotProbability    float64 `json:"bot_probability"`
	Recommendation    string  `json:"recommendation"` // allow / challenge / block
	EventCount        int     `json:"event_count"`
	Neutral           bool    `json:"neutral"` // true when the sample was too sparse to judge
}

// Heuristic thresholds. Velocity bounds follow observed human pointer limits;
// typing bounds follow keystroke-rate classes (sustained >12 chars/sec is
// beyond normal human typing, >200 chars/sec is synthetic insertion).
const (
	perfectTimingVarianceMs2 = 1.0
	implausibleAvgVelocity   = 8000.0  // px/s sustained
	implausibleMaxVelocity   = 30000.0 // px/s burst
	implausibleWPM           = 300.0
	linearStraightness       = 0.99
	linearMinSamples         = 5
	noTremorThreshold        = 0.5 // px/s stddev
	noTremorMinSamples       = 10
)

// Additive flag weights; the combined probability is capped at 1.0.
var flagWeights = struct {
	perfectTiming, implausibleVelocity, implausibleTyping, linearMovement, noTremor float64
}{0.30, 0.25, 0.25, 0.25, 0.20}

// Population-typical centers for the anomaly distance. Coarse deliberately:
// the anomaly score is a soft signal, not a classifier.
const (
	typicalAvgVelocity = 600.0 // px/s
	typicalDwellMs     = 85.0
	typicalWPM         = 45.0
)

// Analyze runs the full behavioral pipeline over a sample: clip to the
// configured bounds, derive per-modality patterns, the statistical layer, the
// automation heuristics and the blended humanness score. Sparse input
// (fewer than two events after clipping) returns the neutral verdict; this
// function never fails.
func Analyze(events []Event, cfg Config) HumanVerification {
	clipped := clip(events, cfg)
	v := HumanVerification{EventCount: len(clipped)}
	if len(clipped) < minSampleCount {
		v.Neutral = true
		v.Recommendation = "challenge"
		return v
	}

	v.Movement = AnalyzeMovement(clipped)
	v.Typing = AnalyzeTyping(clipped)
	v.Clicks = AnalyzeClicks(clipped)
	v.Scroll = AnalyzeScroll(clipped)
	v.Touch = AnalyzeTouch(clipped)
	v.Stats = computeStatistics(v.Movement, v.Typing)
	v.Flags = detectAutomation(v.Movement, v.Typing)
	v.BotProbability = combineFlags(v.Flags)

	v.MouseHumanness = mouseHumanness(v.Movement, v.Stats)
	v.KeyboardHumanness = keyboardHumanness(v.Typing)
	v.TouchHumanness = touchHumanness(v.Touch)
	v.OverallHumanness = blendHumanness(v, cfg)
	v.Recommendation = recommend(v.BotProbability)
	return v
}

func computeStatistics(m MouseMovementPattern, t TypingPattern) Statistics {
	s := Statistics{VelocityEntropy: m.VelocityEntropy}

	pooled := append([]float64{}, m.interEventIntervalsMs...)
	pooled = append(pooled, t.dwellsMs...)
	pooled = append(pooled, t.flightsMs...)
	s.TimingEntropy = shannonEntropy(pooled, velocityEntropyBins)
	s.TimingVariance = variance(pooled)
	s.TimingStdDev = stdDev(pooled)

	// Correlate mouse cadence against keyboard cadence over the overlapping
	// prefix; a strong positive correlation is a replay tell.
	n := len(m.interEventIntervalsMs)
	if len(t.flightsMs) < n {
		n = len(t.flightsMs)
	}
	if n >= 2 {
		s.MouseKeyboardCor = pearson(m.interEventIntervalsMs[:n], t.flightsMs[:n])
	}

	s.AnomalyScore = anomalyDistance(m, t)
	s.ConsistencyScore = clamp01((m.Smoothness + t.RhythmConsistency) / 2)
	// Entropy-weighted uniqueness: richer timing distributions are more
	// identifying. log2(bins) is the maximum achievable entropy.
	maxEntropy := math.Log2(float64(velocityEntropyBins))
	s.UniquenessScore = clamp01((s.VelocityEntropy + s.TimingEntropy) / (2 * maxEntropy))
	return s
}

// anomalyDistance is the normalized distance of observed metrics from
// population-typical centers, averaged over the modalities present.
func anomalyDistance(m MouseMovementPattern, t TypingPattern) float64 {
	var parts []float64
	if m.SampleCount >= minSampleCount {
		parts = append(parts, clamp01(math.Abs(m.AvgVelocity-typicalAvgVelocity)/typicalAvgVelocity/4))
	}
	if t.KeystrokeCount >= minSampleCount {
		if t.AvgDwellMs > 0 {
			parts = append(parts, clamp01(math.Abs(t.AvgDwellMs-typicalDwellMs)/typicalDwellMs/4))
		}
		if t.WordsPerMinute > 0 {
			parts = append(parts, clamp01(math.Abs(t.WordsPerMinute-typicalWPM)/typicalWPM/4))
		}
	}
	if len(parts) == 0 {
		return 0
	}
	return mean(parts)
}

func detectAutomation(m MouseMovementPattern, t TypingPattern) AutomationFlags {
	f := AutomationFlags{}

	// Near-zero timing variance across whichever modality has samples.
	if t.KeystrokeCount >= noTremorMinSamples && len(t.dwellsMs) >= minSampleCount && variance(t.dwellsMs) < perfectTimingVarianceMs2 {
		f.PerfectTiming = true
	}
	if m.SampleCount >= noTremorMinSamples && m.TimingVariance < perfectTimingVarianceMs2 {
		f.PerfectTiming = true
	}

	if m.SampleCount >= minSampleCount &&
		(m.AvgVelocity > implausibleAvgVelocity || m.MaxVelocity > implausibleMaxVelocity) {
		f.ImplausibleVelocity = true
	}
	if t.WordsPerMinute > implausibleWPM {
		f.ImplausibleTyping = true
	}
	if m.SampleCount >= linearMinSamples && m.PathStraightness > linearStraightness {
		f.LinearMovement = true
	}
	if m.SampleCount >= noTremorMinSamples && m.Tremor < noTremorThreshold {
		f.NoTremor = true
	}
	return f
}

func combineFlags(f AutomationFlags) float64 {
	p := 0.0
	if f.PerfectTiming {
		p += flagWeights.perfectTiming
	}
	if f.ImplausibleVelocity {
		p += flagWeights.implausibleVelocity
	}
	if f.ImplausibleTyping {
		p += flagWeights.implausibleTyping
	}
	if f.LinearMovement {
		p += flagWeights.linearMovement
	}
	if f.NoTremor {
		p += flagWeights.noTremor
	}
	return math.Min(p, 1.0)
}

// mouseHumanness rewards natural irregularity: tremor, curved paths, varied
// velocity. A sample with no pointer events scores a neutral 0.5.
func mouseHumanness(m MouseMovementPattern, s Statistics) float64 {
	if m.SampleCount < minSampleCount {
		return 0.5
	}
	score := 0.0
	if m.Tremor >= noTremorThreshold {
		score += 0.3
	}
	if m.PathStraightness < linearStraightness {
		score += 0.3
	}
	maxEntropy := math.Log2(float64(velocityEntropyBins))
	score += 0.4 * clamp01(s.VelocityEntropy/maxEntropy*2)
	return clamp01(score)
}

// keyboardHumanness rewards plausible speed with imperfect rhythm.
func keyboardHumanness(t TypingPattern) float64 {
	if t.KeystrokeCount < minSampleCount {
		return 0.5
	}
	score := 0.0
	if t.WordsPerMinute > 0 && t.WordsPerMinute <= implausibleWPM {
		score += 0.4
	}
	if t.DwellStdDev >= 1.0 {
		score += 0.3
	}
	if t.AvgFlightMs > 20 {
		score += 0.3
	}
	return clamp01(score)
}

func touchHumanness(t TouchPattern) float64 {
	if t.SampleCount < minSampleCount {
		return 0.5
	}
	if t.IntervalStdDev >= 1.0 {
		return 0.8
	}
	return 0.2
}

// blendHumanness mixes per-modality sub-scores with the configured weights,
// normalized over the modalities that produced evidence.
func blendHumanness(v HumanVerification, cfg Config) float64 {
	type part struct {
		score, weight float64
		present       bool
	}
	parts := []part{
		{v.MouseHumanness, cfg.MouseWeight, v.Movement.SampleCount >= minSampleCount},
		{v.KeyboardHumanness, cfg.KeyboardWeight, v.Typing.KeystrokeCount >= minSampleCount},
		{v.TouchHumanness, cfg.TouchWeight, v.Touch.SampleCount >= minSampleCount},
	}
	var sum, weight float64
	for _, p := range parts {
		if !p.present {
			continue
		}
		sum += p.score * p.weight
		weight += p.weight
	}
	if weight == 0 {
		return 0.5
	}
	return clamp01(sum / weight)
}

func recommend(botProbability float64) string {
	switch {
	case botProbability < 0.3:
		return "allow"
	case botProbability < 0.6:
		return "challenge"
	default:
		return "block"
	}
}
