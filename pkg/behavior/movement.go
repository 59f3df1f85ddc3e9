package behavior

import "math"

// MouseMovementPattern aggregates pointer kinematics over one sample window.
// All rates are per second in CSS pixels; angles feed directional consistency
// only and are not retained.
type MouseMovementPattern struct {
	SampleCount           int     `json:"sample_count"`
	AvgVelocity           float64 `json:"avg_velocity"`
	MaxVelocity           float64 `json:"max_velocity"`
	AvgAcceleration       float64 `json:"avg_acceleration"`
	AvgJerk               float64 `json:"avg_jerk"`
	PathStraightness      float64 `json:"path_straightness"`      // direct distance / path length
	DirectionConsistency  float64 `json:"direction_consistency"`  // 1 - circular variance
	Tremor                float64 `json:"tremor"`                 // stddev of velocity
	PauseRatio            float64 `json:"pause_ratio"`            // deltas below pause threshold
	Smoothness            float64 `json:"smoothness"`             // inverse acceleration variance
	VelocityEntropy       float64 `json:"velocity_entropy"`
	TimingVariance        float64 `json:"timing_variance"`
	velocities            []float64
	interEventIntervalsMs []float64
}

// pauseVelocityThreshold is the px/s rate below which a delta counts as a
// pause rather than motion.
const pauseVelocityThreshold = 5.0

// velocityEntropyBins controls the histogram used for movement entropy.
const velocityEntropyBins = 16

// AnalyzeMovement computes the movement pattern from pointer events in the
// clipped sample. Fewer than minSampleCount position events yield the zero
// pattern.
func AnalyzeMovement(events []Event) MouseMovementPattern {
	moves := filterTypes(events, EventMouseMove, EventTouchMove)
	p := MouseMovementPattern{SampleCount: len(moves)}
	if len(moves) < minSampleCount {
		return p
	}

	var (
		velocities    []float64
		accelerations []float64
		jerks         []float64
		angles        []float64
		intervals     []float64
		pathLength    float64
		pauses        int
	)

	prevV, prevA := math.NaN(), math.NaN()
	for i := 1; i < len(moves); i++ {
		dtMs := float64(moves[i].Timestamp - moves[i-1].Timestamp)
		if dtMs <= 0 {
			continue
		}
		dt := dtMs / 1000.0
		dx := moves[i].X - moves[i-1].X
		dy := moves[i].Y - moves[i-1].Y
		dist := math.Hypot(dx, dy)
		pathLength += dist

		v := dist / dt
		velocities = append(velocities, v)
		intervals = append(intervals, dtMs)
		if v < pauseVelocityThreshold {
			pauses++
		}
		if dist > 0 {
			angles = append(angles, math.Atan2(dy, dx))
		}
		if !math.IsNaN(prevV) {
			a := (v - prevV) / dt
			accelerations = append(accelerations, a)
			if !math.IsNaN(prevA) {
				jerks = append(jerks, (a-prevA)/dt)
			}
			prevA = a
		}
		prevV = v
	}

	if len(velocities) == 0 {
		return p
	}

	p.AvgVelocity = mean(velocities)
	for _, v := range velocities {
		if v > p.MaxVelocity {
			p.MaxVelocity = v
		}
	}
	p.AvgAcceleration = mean(absAll(accelerations))
	p.AvgJerk = mean(absAll(jerks))
	p.Tremor = stdDev(velocities)
	p.PauseRatio = float64(pauses) / float64(len(velocities))
	p.DirectionConsistency = 1 - circularVariance(angles)
	p.VelocityEntropy = shannonEntropy(velocities, velocityEntropyBins)
	p.TimingVariance = variance(intervals)

	direct := math.Hypot(moves[len(moves)-1].X-moves[0].X, moves[len(moves)-1].Y-moves[0].Y)
	if pathLength > 0 {
		p.PathStraightness = clamp01(direct / pathLength)
	}
	// Smoothness approaches 1 as acceleration variance approaches 0.
	p.Smoothness = 1.0 / (1.0 + variance(accelerations)/1e6)

	p.velocities = velocities
	p.interEventIntervalsMs = intervals
	return p
}

func absAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Abs(v)
	}
	return out
}

// ScrollPattern summarizes scroll cadence over the window.
type ScrollPattern struct {
	SampleCount     int     `json:"sample_count"`
	AvgIntervalMs   float64 `json:"avg_interval_ms"`
	IntervalStdDev  float64 `json:"interval_std_dev"`
	BurstRatio      float64 `json:"burst_ratio"` // intervals under 20ms
}

// AnalyzeScroll computes the scroll pattern; fewer than two scroll events
// yield the zero pattern.
func AnalyzeScroll(events []Event) ScrollPattern {
	scrolls := filterTypes(events, EventScroll)
	p := ScrollPattern{SampleCount: len(scrolls)}
	if len(scrolls) < minSampleCount {
		return p
	}
	var intervals []float64
	bursts := 0
	for i := 1; i < len(scrolls); i++ {
		dt := float64(scrolls[i].Timestamp - scrolls[i-1].Timestamp)
		if dt < 0 {
			continue
		}
		intervals = append(intervals, dt)
		if dt < 20 {
			bursts++
		}
	}
	if len(intervals) == 0 {
		return p
	}
	p.AvgIntervalMs = mean(intervals)
	p.IntervalStdDev = stdDev(intervals)
	p.BurstRatio = float64(bursts) / float64(len(intervals))
	return p
}

// ClickPattern summarizes press/release timing.
type ClickPattern struct {
	ClickCount       int     `json:"click_count"`
	AvgHoldMs        float64 `json:"avg_hold_ms"`
	HoldStdDev       float64 `json:"hold_std_dev"`
	AvgInterClickMs  float64 `json:"avg_inter_click_ms"`
	DoubleClickRatio float64 `json:"double_click_ratio"`
}

// AnalyzeClicks pairs mousedown/mouseup events in order. Unmatched events are
// ignored.
func AnalyzeClicks(events []Event) ClickPattern {
	p := ClickPattern{}
	var holds, gaps []float64
	var lastUp int64 = -1
	var pendingDown int64 = -1
	doubles := 0

	for _, ev := range events {
		switch ev.Type {
		case EventMouseDown:
			pendingDown = ev.Timestamp
		case EventMouseUp:
			if pendingDown >= 0 && ev.Timestamp >= pendingDown {
				holds = append(holds, float64(ev.Timestamp-pendingDown))
				if lastUp >= 0 {
					gap := float64(ev.Timestamp - lastUp)
					gaps = append(gaps, gap)
					if gap < 500 {
						doubles++
					}
				}
				lastUp = ev.Timestamp
				pendingDown = -1
			}
		}
	}
	p.ClickCount = len(holds)
	if p.ClickCount == 0 {
		return p
	}
	p.AvgHoldMs = mean(holds)
	p.HoldStdDev = stdDev(holds)
	p.AvgInterClickMs = mean(gaps)
	if len(gaps) > 0 {
		p.DoubleClickRatio = float64(doubles) / float64(len(gaps))
	}
	return p
}
