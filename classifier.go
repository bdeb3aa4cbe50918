package main

import (
	"math"
	"time"
)

// ========================================
// Gesture Classifier
// ========================================

// Classification thresholds.
const (
	// TapRadius is the maximum displacement in pixels for a touch to count
	// as stationary.
	TapRadius = 10.0

	// LongPressDuration separates taps from long presses.
	LongPressDuration = 500 * time.Millisecond

	// PinchSensitivity is the minimum |scale-1| for a two-finger group to
	// classify as a pinch.
	PinchSensitivity = 0.25

	// pinchEpsilon guards the scale division when the initial finger
	// distance is degenerate.
	pinchEpsilon = 1e-6
)

// ScrollablePredicate reports whether a screen point lies inside a
// scrollable container. The classifier itself never inspects UI state.
type ScrollablePredicate func(x, y int) bool

// GestureClassifier turns completed touch tracks into gestures. The
// scrollable predicate decides swipe vs scroll; a nil predicate means
// nothing is scrollable.
type GestureClassifier struct {
	scrollableAt ScrollablePredicate
}

// NewGestureClassifier returns a classifier using the given predicate.
func NewGestureClassifier(scrollableAt ScrollablePredicate) *GestureClassifier {
	return &GestureClassifier{scrollableAt: scrollableAt}
}

// Classify maps one track group to zero or more gestures. Single tracks
// yield at most one gesture; a two-track group yields a pinch, or falls
// back to classifying each track independently.
func (c *GestureClassifier) Classify(group []*TouchTrack) []Gesture {
	switch len(group) {
	case 0:
		return nil
	case 1:
		if g, ok := c.classifySingle(group[0]); ok {
			return []Gesture{g}
		}
		return nil
	case 2:
		return c.classifyPair(group[0], group[1])
	default:
		// Three or more fingers have no gesture vocabulary; classify each
		// track on its own rather than dropping the input.
		var out []Gesture
		for _, track := range group {
			if g, ok := c.classifySingle(track); ok {
				out = append(out, g)
			}
		}
		return out
	}
}

func (c *GestureClassifier) classifySingle(track *TouchTrack) (Gesture, bool) {
	if len(track.Points) == 0 {
		LogWarn("classifier").Int("slot", track.Slot).Msg("Dropping empty track")
		return Gesture{}, false
	}

	first := track.First()
	last := track.Last()
	displacement := track.Displacement()
	duration := track.Duration()

	if displacement < TapRadius {
		if duration >= LongPressDuration {
			return Gesture{
				Type:       GestureLongPress,
				Start:      Point{X: first.X, Y: first.Y},
				DurationMs: duration.Milliseconds(),
			}, true
		}
		return Gesture{
			Type:       GestureTap,
			Start:      Point{X: first.X, Y: first.Y},
			DurationMs: duration.Milliseconds(),
		}, true
	}

	gestureType := GestureSwipe
	if c.scrollableAt != nil && c.scrollableAt(first.X, first.Y) {
		gestureType = GestureScroll
	}

	end := Point{X: last.X, Y: last.Y}
	return Gesture{
		Type:       gestureType,
		Start:      Point{X: first.X, Y: first.Y},
		End:        &end,
		DurationMs: duration.Milliseconds(),
		Direction:  dominantDirection(first, last),
	}, true
}

// classifyPair checks the two-finger pinch rule. When the pair does not
// qualify, each track is classified on its own.
func (c *GestureClassifier) classifyPair(a, b *TouchTrack) []Gesture {
	if len(a.Points) == 0 || len(b.Points) == 0 {
		LogWarn("classifier").Msg("Dropping pair with empty track")
		return nil
	}

	startDist := pointDistance(a.First(), b.First())
	endDist := pointDistance(a.Last(), b.Last())

	if startDist > pinchEpsilon {
		scale := endDist / startDist
		if math.Abs(scale-1) > PinchSensitivity {
			start := time.Duration(min(int64(a.First().Timestamp), int64(b.First().Timestamp)))
			end := time.Duration(max(int64(a.Last().Timestamp), int64(b.Last().Timestamp)))
			return []Gesture{{
				Type: GesturePinch,
				Start: Point{
					X: (a.First().X + b.First().X) / 2,
					Y: (a.First().Y + b.First().Y) / 2,
				},
				DurationMs: (end - start).Milliseconds(),
				Scale:      scale,
			}}
		}
	}

	var out []Gesture
	for _, track := range []*TouchTrack{a, b} {
		if g, ok := c.classifySingle(track); ok {
			out = append(out, g)
		}
	}
	return out
}

// dominantDirection maps a displacement vector to its dominant axis
// direction. Ties go to the horizontal axis.
func dominantDirection(from, to TrackPoint) Direction {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			return DirectionRight
		}
		return DirectionLeft
	}
	if dy > 0 {
		return DirectionDown
	}
	return DirectionUp
}

func pointDistance(a, b TrackPoint) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
