package types

// GestureType identifies a classified gesture.
type GestureType string

const (
	GestureTap       GestureType = "tap"
	GestureLongPress GestureType = "long_press"
	GestureSwipe     GestureType = "swipe"
	GestureScroll    GestureType = "scroll"
	GesturePinch     GestureType = "pinch"
)

// Direction is the dominant axis of a swipe or scroll.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Gesture is the classified, device-agnostic action derived from one or two
// touch tracks. End is present for swipe/scroll, Scale for pinch, Direction
// for swipe/scroll.
type Gesture struct {
	Type       GestureType `json:"type"`
	Start      Point       `json:"start"`
	End        *Point      `json:"end,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	Scale      float64     `json:"scale,omitempty"`
	Direction  Direction   `json:"direction,omitempty"`
}
