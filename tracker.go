package main

import (
	"math"
	"time"
)

// ========================================
// Multi-Touch Tracker
// ========================================

// TouchPhase is the lifecycle phase of a touch sample.
type TouchPhase int

const (
	PhaseDown TouchPhase = iota
	PhaseMove
	PhaseUp
)

func (p TouchPhase) String() string {
	switch p {
	case PhaseDown:
		return "down"
	case PhaseMove:
		return "move"
	case PhaseUp:
		return "up"
	}
	return "unknown"
}

// TouchSample is one decoded per-finger event, already scaled to screen
// pixels. Slot identifies the finger.
type TouchSample struct {
	Slot      int
	X, Y      int
	Timestamp time.Duration
	Phase     TouchPhase
}

// TrackPoint is one position sample within a track.
type TrackPoint struct {
	X, Y      int
	Timestamp time.Duration
}

// TouchTrack is the full path of one finger from down to up. Points is never
// empty for a closed track; the first point is the touch-down position and
// the last the touch-up position. A track with no intermediate move samples
// is still valid and collapses to a tap candidate.
type TouchTrack struct {
	Slot   int
	Points []TrackPoint
}

// First returns the touch-down point.
func (t *TouchTrack) First() TrackPoint {
	return t.Points[0]
}

// Last returns the most recent point.
func (t *TouchTrack) Last() TrackPoint {
	return t.Points[len(t.Points)-1]
}

// Duration returns the elapsed time between first and last samples.
func (t *TouchTrack) Duration() time.Duration {
	return t.Last().Timestamp - t.First().Timestamp
}

// Displacement returns the straight-line distance in pixels between the
// first and last points.
func (t *TouchTrack) Displacement() float64 {
	a, b := t.First(), t.Last()
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Hypot(dx, dy)
}

// Overlaps reports whether the two tracks were active at the same time.
func (t *TouchTrack) Overlaps(other *TouchTrack) bool {
	return t.First().Timestamp <= other.Last().Timestamp &&
		other.First().Timestamp <= t.Last().Timestamp
}

// TouchTracker demultiplexes interleaved per-slot samples into complete
// tracks. Completed tracks are buffered until every slot is idle, so that
// the two fingers of a pinch are offered to the classifier together.
type TouchTracker struct {
	active  map[int]*TouchTrack
	pending []*TouchTrack
}

// NewTouchTracker returns a tracker with all slots idle.
func NewTouchTracker() *TouchTracker {
	return &TouchTracker{
		active: make(map[int]*TouchTrack),
	}
}

// ActiveCount returns the number of fingers currently down.
func (tt *TouchTracker) ActiveCount() int {
	return len(tt.active)
}

// Feed advances the per-slot state machine with one sample and returns any
// track groups completed by it. A group holds a single track, or exactly two
// time-overlapping tracks for pinch correlation.
func (tt *TouchTracker) Feed(s TouchSample) [][]*TouchTrack {
	switch s.Phase {
	case PhaseDown:
		if _, ok := tt.active[s.Slot]; ok {
			// A down on an already-active slot means we lost the up event.
			// Restart the track rather than corrupting it.
			LogWarn("tracker").Int("slot", s.Slot).Msg("Touch down on active slot, restarting track")
		}
		tt.active[s.Slot] = &TouchTrack{
			Slot:   s.Slot,
			Points: []TrackPoint{{X: s.X, Y: s.Y, Timestamp: s.Timestamp}},
		}

	case PhaseMove:
		track, ok := tt.active[s.Slot]
		if !ok {
			LogDebug("tracker").Int("slot", s.Slot).Msg("Move on idle slot, ignoring")
			return nil
		}
		track.Points = append(track.Points, TrackPoint{X: s.X, Y: s.Y, Timestamp: s.Timestamp})

	case PhaseUp:
		track, ok := tt.active[s.Slot]
		if !ok {
			LogDebug("tracker").Int("slot", s.Slot).Msg("Up on idle slot, ignoring")
			return nil
		}
		delete(tt.active, s.Slot)
		track.Points = append(track.Points, TrackPoint{X: s.X, Y: s.Y, Timestamp: s.Timestamp})
		tt.pending = append(tt.pending, track)

		if len(tt.active) == 0 {
			return tt.flush()
		}
	}
	return nil
}

// Close discards any still-active tracks and flushes the pending ones.
// Used at end of recording, when up events may never arrive.
func (tt *TouchTracker) Close() [][]*TouchTrack {
	for slot := range tt.active {
		LogWarn("tracker").Int("slot", slot).Msg("Discarding incomplete track at close")
		delete(tt.active, slot)
	}
	return tt.flush()
}

// flush groups the buffered tracks. Exactly two time-overlapping tracks are
// offered as a pair; anything else is offered one track at a time.
func (tt *TouchTracker) flush() [][]*TouchTrack {
	if len(tt.pending) == 0 {
		return nil
	}
	pending := tt.pending
	tt.pending = nil

	if len(pending) == 2 && pending[0].Overlaps(pending[1]) {
		return [][]*TouchTrack{{pending[0], pending[1]}}
	}

	groups := make([][]*TouchTrack, 0, len(pending))
	for _, track := range pending {
		groups = append(groups, []*TouchTrack{track})
	}
	return groups
}
