package behavior

import "unicode"

// TypingPattern aggregates keystroke dynamics over one sample window. Dwell
// is keydown to keyup for the same key; flight is keyup to the next keydown.
type TypingPattern struct {
	KeystrokeCount     int     `json:"keystroke_count"`
	CharsPerMinute     float64 `json:"chars_per_minute"`
	WordsPerMinute     float64 `json:"words_per_minute"`
	AvgDwellMs         float64 `json:"avg_dwell_ms"`
	DwellStdDev        float64 `json:"dwell_std_dev"`
	AvgFlightMs        float64 `json:"avg_flight_ms"`
	FlightStdDev       float64 `json:"flight_std_dev"`
	RhythmConsistency  float64 `json:"rhythm_consistency"` // inverse dwell variance
	BackspaceRatio     float64 `json:"backspace_ratio"`
	dwellsMs           []float64
	flightsMs          []float64
}

// charsPerWord is the conventional WPM divisor.
const charsPerWord = 5.0

// AnalyzeTyping computes keystroke dynamics from key events in the clipped
// sample. Fewer than minSampleCount keydown events yield the zero pattern.
func AnalyzeTyping(events []Event) TypingPattern {
	keys := filterTypes(events, EventKeyDown, EventKeyUp)
	p := TypingPattern{}

	// Pair dwell times per key, tolerate missing keyups.
	downAt := make(map[string]int64)
	var dwells, flights []float64
	var lastUp int64 = -1
	downs := 0
	letters := 0
	backspaces := 0
	var firstDown, lastDown int64 = -1, -1

	for _, ev := range keys {
		switch ev.Type {
		case EventKeyDown:
			downs++
			if firstDown < 0 {
				firstDown = ev.Timestamp
			}
			lastDown = ev.Timestamp
			downAt[ev.Key] = ev.Timestamp
			if lastUp >= 0 && ev.Timestamp >= lastUp {
				flights = append(flights, float64(ev.Timestamp-lastUp))
			}
			if isLetterClass(ev.Key) {
				letters++
			}
			if ev.Key == "Backspace" {
				backspaces++
			}
		case EventKeyUp:
			if t, ok := downAt[ev.Key]; ok && ev.Timestamp >= t {
				dwells = append(dwells, float64(ev.Timestamp-t))
				delete(downAt, ev.Key)
			}
			lastUp = ev.Timestamp
		}
	}

	p.KeystrokeCount = downs
	if downs < minSampleCount {
		return p
	}

	elapsedMin := float64(lastDown-firstDown) / 60000.0
	if elapsedMin > 0 {
		p.CharsPerMinute = float64(letters) / elapsedMin
		p.WordsPerMinute = p.CharsPerMinute / charsPerWord
	}
	p.AvgDwellMs = mean(dwells)
	p.DwellStdDev = stdDev(dwells)
	p.AvgFlightMs = mean(flights)
	p.FlightStdDev = stdDev(flights)
	p.BackspaceRatio = float64(backspaces) / float64(downs)
	// Consistency approaches 1 as dwell variance approaches 0; highly erratic
	// dwell decays it toward 0.
	p.RhythmConsistency = 1.0 / (1.0 + variance(dwells)/1000.0)

	p.dwellsMs = dwells
	p.flightsMs = flights
	return p
}

// isLetterClass reports whether a collector key label counts toward typing
// speed (letters, digits, space).
func isLetterClass(key string) bool {
	if key == " " || key == "Space" {
		return true
	}
	runes := []rune(key)
	if len(runes) != 1 {
		return false
	}
	return unicode.IsLetter(runes[0]) || unicode.IsDigit(runes[0])
}

// TouchPattern summarizes touch-move cadence; phones report far coarser event
// streams than mice so only interval features are kept.
type TouchPattern struct {
	SampleCount    int     `json:"sample_count"`
	AvgIntervalMs  float64 `json:"avg_interval_ms"`
	IntervalStdDev float64 `json:"interval_std_dev"`
}

// AnalyzeTouch computes the touch pattern; fewer than two touch events yield
// the zero pattern.
func AnalyzeTouch(events []Event) TouchPattern {
	touches := filterTypes(events, EventTouchMove)
	p := TouchPattern{SampleCount: len(touches)}
	if len(touches) < minSampleCount {
		return p
	}
	var intervals []float64
	for i := 1; i < len(touches); i++ {
		dt := float64(touches[i].Timestamp - touches[i-1].Timestamp)
		if dt >= 0 {
			intervals = append(intervals, dt)
		}
	}
	if len(intervals) == 0 {
		return p
	}
	p.AvgIntervalMs = mean(intervals)
	p.IntervalStdDev = stdDev(intervals)
	return p
}
