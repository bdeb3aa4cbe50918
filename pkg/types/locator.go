package types

// StrategyKind identifies one locator strategy.
type StrategyKind string

const (
	StrategyID          StrategyKind = "id"
	StrategyContentDesc StrategyKind = "content_desc"
	StrategyText        StrategyKind = "text"
	StrategyXPath       StrategyKind = "xpath"
	StrategyBounds      StrategyKind = "bounds"
)

// Strategy is a single way to re-find an element. Value is used by the
// id/content_desc/text/xpath kinds, Rect by the bounds kind.
type Strategy struct {
	Kind  StrategyKind `json:"strategy"`
	Value string       `json:"value,omitempty"`
	Rect  *Rect        `json:"rect,omitempty"`
}

// Locator is an ordered set of strategies for re-finding an element, most to
// least reliable. A bounds strategy is always present and last; Bounds records
// the element bounds at record time for degraded coordinate-only replay.
type Locator struct {
	Primary   Strategy   `json:"primary"`
	Fallbacks []Strategy `json:"fallbacks"`
	Bounds    Rect       `json:"bounds"`
}

// Strategies returns the primary strategy followed by the fallbacks, in the
// order they should be attempted.
func (l Locator) Strategies() []Strategy {
	out := make([]Strategy, 0, 1+len(l.Fallbacks))
	out = append(out, l.Primary)
	out = append(out, l.Fallbacks...)
	return out
}
