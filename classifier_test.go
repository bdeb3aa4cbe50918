package main

import (
	"math"
	"testing"
	"time"
)

func makeTrack(slot int, points ...TrackPoint) *TouchTrack {
	return &TouchTrack{Slot: slot, Points: points}
}

func TestClassifyTap(t *testing.T) {
	c := NewGestureClassifier(nil)
	track := makeTrack(0,
		TrackPoint{X: 100, Y: 200, Timestamp: 0},
		TrackPoint{X: 103, Y: 202, Timestamp: 120 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{track})
	if len(gestures) != 1 {
		t.Fatalf("Expected 1 gesture, got %d", len(gestures))
	}
	g := gestures[0]
	if g.Type != GestureTap {
		t.Errorf("Expected tap, got %s", g.Type)
	}
	if g.Start.X != 100 || g.Start.Y != 200 {
		t.Errorf("Expected start (100, 200), got (%d, %d)", g.Start.X, g.Start.Y)
	}
	if g.End != nil {
		t.Error("Expected no end point for tap")
	}
	if g.DurationMs != 120 {
		t.Errorf("Expected duration 120ms, got %d", g.DurationMs)
	}
}

func TestClassifyLongPress(t *testing.T) {
	c := NewGestureClassifier(nil)
	track := makeTrack(0,
		TrackPoint{X: 50, Y: 50, Timestamp: 0},
		TrackPoint{X: 52, Y: 51, Timestamp: 700 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{track})
	if len(gestures) != 1 || gestures[0].Type != GestureLongPress {
		t.Fatalf("Expected long_press, got %v", gestures)
	}
	if gestures[0].DurationMs != 700 {
		t.Errorf("Expected duration 700ms, got %d", gestures[0].DurationMs)
	}
}

func TestClassifyLongPressBoundary(t *testing.T) {
	c := NewGestureClassifier(nil)

	// Exactly at the threshold counts as a long press.
	atThreshold := makeTrack(0,
		TrackPoint{X: 50, Y: 50, Timestamp: 0},
		TrackPoint{X: 50, Y: 50, Timestamp: LongPressDuration},
	)
	if g := c.Classify([]*TouchTrack{atThreshold}); g[0].Type != GestureLongPress {
		t.Errorf("Expected long_press at threshold, got %s", g[0].Type)
	}

	justUnder := makeTrack(0,
		TrackPoint{X: 50, Y: 50, Timestamp: 0},
		TrackPoint{X: 50, Y: 50, Timestamp: LongPressDuration - time.Millisecond},
	)
	if g := c.Classify([]*TouchTrack{justUnder}); g[0].Type != GestureTap {
		t.Errorf("Expected tap just under threshold, got %s", g[0].Type)
	}
}

func TestClassifySwipeDirections(t *testing.T) {
	c := NewGestureClassifier(nil)

	tests := []struct {
		name     string
		from, to TrackPoint
		want     Direction
	}{
		{"up", TrackPoint{X: 100, Y: 500}, TrackPoint{X: 100, Y: 100, Timestamp: 200 * time.Millisecond}, DirectionUp},
		{"down", TrackPoint{X: 100, Y: 100}, TrackPoint{X: 100, Y: 500, Timestamp: 200 * time.Millisecond}, DirectionDown},
		{"left", TrackPoint{X: 500, Y: 100}, TrackPoint{X: 100, Y: 100, Timestamp: 200 * time.Millisecond}, DirectionLeft},
		{"right", TrackPoint{X: 100, Y: 100}, TrackPoint{X: 500, Y: 100, Timestamp: 200 * time.Millisecond}, DirectionRight},
		// Ties go to the horizontal axis.
		{"diagonal tie", TrackPoint{X: 0, Y: 0}, TrackPoint{X: 300, Y: 300, Timestamp: 200 * time.Millisecond}, DirectionRight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gestures := c.Classify([]*TouchTrack{makeTrack(0, tt.from, tt.to)})
			if len(gestures) != 1 {
				t.Fatalf("Expected 1 gesture, got %d", len(gestures))
			}
			g := gestures[0]
			if g.Type != GestureSwipe {
				t.Errorf("Expected swipe, got %s", g.Type)
			}
			if g.Direction != tt.want {
				t.Errorf("Expected direction %s, got %s", tt.want, g.Direction)
			}
			if g.End == nil {
				t.Fatal("Expected swipe to carry an end point")
			}
			if g.End.X != tt.to.X || g.End.Y != tt.to.Y {
				t.Errorf("Expected end (%d, %d), got (%d, %d)", tt.to.X, tt.to.Y, g.End.X, g.End.Y)
			}
		})
	}
}

func TestClassifyScrollInScrollableContainer(t *testing.T) {
	inList := func(x, y int) bool { return y > 300 }
	c := NewGestureClassifier(inList)

	scroll := c.Classify([]*TouchTrack{makeTrack(0,
		TrackPoint{X: 100, Y: 500},
		TrackPoint{X: 100, Y: 350, Timestamp: 150 * time.Millisecond},
	)})
	if scroll[0].Type != GestureScroll {
		t.Errorf("Expected scroll inside scrollable region, got %s", scroll[0].Type)
	}

	swipe := c.Classify([]*TouchTrack{makeTrack(0,
		TrackPoint{X: 100, Y: 100},
		TrackPoint{X: 400, Y: 100, Timestamp: 150 * time.Millisecond},
	)})
	if swipe[0].Type != GestureSwipe {
		t.Errorf("Expected swipe outside scrollable region, got %s", swipe[0].Type)
	}
}

func TestClassifyPinchOut(t *testing.T) {
	c := NewGestureClassifier(nil)

	// Fingers move apart: 200px start distance, 400px end distance.
	a := makeTrack(0,
		TrackPoint{X: 400, Y: 500, Timestamp: 0},
		TrackPoint{X: 300, Y: 500, Timestamp: 300 * time.Millisecond},
	)
	b := makeTrack(1,
		TrackPoint{X: 600, Y: 500, Timestamp: 10 * time.Millisecond},
		TrackPoint{X: 700, Y: 500, Timestamp: 320 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{a, b})
	if len(gestures) != 1 {
		t.Fatalf("Expected 1 gesture, got %d", len(gestures))
	}
	g := gestures[0]
	if g.Type != GesturePinch {
		t.Fatalf("Expected pinch, got %s", g.Type)
	}
	if math.Abs(g.Scale-2.0) > 1e-9 {
		t.Errorf("Expected scale 2.0, got %f", g.Scale)
	}
	if g.Start.X != 500 || g.Start.Y != 500 {
		t.Errorf("Expected midpoint (500, 500), got (%d, %d)", g.Start.X, g.Start.Y)
	}
	// Union of both track time ranges.
	if g.DurationMs != 320 {
		t.Errorf("Expected duration 320ms, got %d", g.DurationMs)
	}
}

func TestClassifyPinchIn(t *testing.T) {
	c := NewGestureClassifier(nil)

	a := makeTrack(0,
		TrackPoint{X: 300, Y: 500, Timestamp: 0},
		TrackPoint{X: 450, Y: 500, Timestamp: 300 * time.Millisecond},
	)
	b := makeTrack(1,
		TrackPoint{X: 700, Y: 500, Timestamp: 0},
		TrackPoint{X: 550, Y: 500, Timestamp: 300 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{a, b})
	if len(gestures) != 1 || gestures[0].Type != GesturePinch {
		t.Fatalf("Expected pinch, got %v", gestures)
	}
	if gestures[0].Scale >= 1 {
		t.Errorf("Expected zoom-out scale < 1, got %f", gestures[0].Scale)
	}
}

func TestClassifyPairBelowSensitivityFallsBack(t *testing.T) {
	c := NewGestureClassifier(nil)

	// Distance barely changes: two independent taps, not a pinch.
	a := makeTrack(0,
		TrackPoint{X: 300, Y: 500, Timestamp: 0},
		TrackPoint{X: 302, Y: 500, Timestamp: 100 * time.Millisecond},
	)
	b := makeTrack(1,
		TrackPoint{X: 600, Y: 500, Timestamp: 0},
		TrackPoint{X: 601, Y: 500, Timestamp: 100 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{a, b})
	if len(gestures) != 2 {
		t.Fatalf("Expected 2 fallback gestures, got %d", len(gestures))
	}
	for _, g := range gestures {
		if g.Type != GestureTap {
			t.Errorf("Expected tap, got %s", g.Type)
		}
	}
}

func TestClassifyCoincidentStartsNeverPinch(t *testing.T) {
	c := NewGestureClassifier(nil)

	// Zero start distance would divide by zero; must fall back.
	a := makeTrack(0,
		TrackPoint{X: 500, Y: 500, Timestamp: 0},
		TrackPoint{X: 300, Y: 500, Timestamp: 200 * time.Millisecond},
	)
	b := makeTrack(1,
		TrackPoint{X: 500, Y: 500, Timestamp: 0},
		TrackPoint{X: 700, Y: 500, Timestamp: 200 * time.Millisecond},
	)

	gestures := c.Classify([]*TouchTrack{a, b})
	for _, g := range gestures {
		if g.Type == GesturePinch {
			t.Fatal("Expected no pinch for coincident start points")
		}
	}
	if len(gestures) != 2 {
		t.Errorf("Expected 2 fallback gestures, got %d", len(gestures))
	}
}

func TestClassifyEmptyAndDegenerateGroups(t *testing.T) {
	c := NewGestureClassifier(nil)

	if g := c.Classify(nil); g != nil {
		t.Errorf("Expected nil for empty group, got %v", g)
	}
	if g := c.Classify([]*TouchTrack{{Slot: 0}}); g != nil {
		t.Errorf("Expected nil for track without points, got %v", g)
	}
}

func TestClassifyThreeFingersIndependently(t *testing.T) {
	c := NewGestureClassifier(nil)

	group := []*TouchTrack{
		makeTrack(0, TrackPoint{X: 100, Y: 100}, TrackPoint{X: 100, Y: 100, Timestamp: 50 * time.Millisecond}),
		makeTrack(1, TrackPoint{X: 200, Y: 100}, TrackPoint{X: 200, Y: 100, Timestamp: 50 * time.Millisecond}),
		makeTrack(2, TrackPoint{X: 300, Y: 100}, TrackPoint{X: 300, Y: 600, Timestamp: 250 * time.Millisecond}),
	}

	gestures := c.Classify(group)
	if len(gestures) != 3 {
		t.Fatalf("Expected 3 gestures, got %d", len(gestures))
	}
	if gestures[0].Type != GestureTap || gestures[1].Type != GestureTap {
		t.Error("Expected first two tracks to classify as taps")
	}
	if gestures[2].Type != GestureSwipe {
		t.Errorf("Expected third track to classify as swipe, got %s", gestures[2].Type)
	}
}
