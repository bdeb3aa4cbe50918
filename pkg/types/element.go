package types

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is an element bounds rectangle, serialized as [x1, y1, x2, y2].
type Rect [4]int

// PointRect returns a zero-area rectangle at the given point.
func PointRect(x, y int) Rect {
	return Rect{x, y, x, y}
}

// Contains reports whether (x, y) lies within the rectangle, boundary inclusive.
func (r Rect) Contains(x, y int) bool {
	return x >= r[0] && x <= r[2] && y >= r[1] && y <= r[3]
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r[0] + (r[2]-r[0])/2, Y: r[1] + (r[3]-r[1])/2}
}

// Area returns the rectangle area in square pixels.
func (r Rect) Area() int {
	return (r[2] - r[0]) * (r[3] - r[1])
}

// Element is one node of a flattened UI snapshot. Elements are immutable per
// snapshot; equality is by full field tuple.
type Element struct {
	Class         string `json:"class"`
	ResourceID    string `json:"resource_id"`
	Text          string `json:"text"`
	ContentDesc   string `json:"content_desc"`
	Bounds        Rect   `json:"bounds"`
	Clickable     bool   `json:"clickable"`
	LongClickable bool   `json:"long_clickable"`
	Index         int    `json:"index"`
}

// ShortClass returns the class name without its package prefix.
func (e Element) ShortClass() string {
	for i := len(e.Class) - 1; i >= 0; i-- {
		if e.Class[i] == '.' {
			return e.Class[i+1:]
		}
	}
	return e.Class
}
