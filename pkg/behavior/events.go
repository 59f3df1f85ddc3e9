// Package behavior converts raw interaction telemetry into movement, typing
// and touch pattern metrics, distribution statistics, and a human-versus-
// automation verdict. It never fails on sparse input: below the minimum
// sample count it returns the defined neutral result.
package behavior

import (
	"sort"
	"time"
)

// Event types accepted in a behavioral sample.
const (
	EventMouseMove = "mousemove"
	EventMouseDown = "mousedown"
	EventMouseUp   = "mouseup"
	EventKeyDown   = "keydown"
	EventKeyUp     = "keyup"
	EventTouchMove = "touchmove"
	EventScroll    = "scroll"
)

// Event is one privacy-filtered interaction event. X/Y apply to pointer and
// touch events, Key to keyboard events. Timestamp is epoch milliseconds as
// reported by the collector.
type Event struct {
	Type      string   `json:"type"`
	X         float64  `json:"x,omitempty"`
	Y         float64  `json:"y,omitempty"`
	Key       string   `json:"key,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Config bounds the collection window and sets the humanness blend weights.
// Weights are policy, not hardcoded: callers override per deployment.
type Config struct {
	MaxEvents int           // events beyond this are dropped, not an error
	MaxWindow time.Duration // events past the window are dropped, not an error

	MouseWeight    float64
	KeyboardWeight float64
	TouchWeight    float64
}

// DefaultConfig mirrors the collector-side bounds.
func DefaultConfig() Config {
	return Config{
		MaxEvents:      2000,
		MaxWindow:      60 * time.Second,
		MouseWeight:    0.4,
		KeyboardWeight: 0.4,
		TouchWeight:    0.2,
	}
}

// minSampleCount is the fewest events that produce a non-neutral analysis.
const minSampleCount = 2

// clip sorts a sample by timestamp and enforces the count and wall-clock
// bounds. The input slice is never mutated.
func clip(events []Event, cfg Config) []Event {
	if len(events) == 0 {
		return nil
	}
	cp := make([]Event, len(events))
	copy(cp, events)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp })

	if cfg.MaxWindow > 0 {
		cutoff := cp[0].Timestamp + cfg.MaxWindow.Milliseconds()
		end := len(cp)
		for i, ev := range cp {
			if ev.Timestamp > cutoff {
				end = i
				break
			}
		}
		cp = cp[:end]
	}
	if cfg.MaxEvents > 0 && len(cp) > cfg.MaxEvents {
		cp = cp[:cfg.MaxEvents]
	}
	return cp
}

func filterTypes(events []Event, types ...string) []Event {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []Event
	for _, ev := range events {
		if want[ev.Type] {
			out = append(out, ev)
		}
	}
	return out
}
