package main

import (
	"fmt"
	"sort"
	"strings"
)

// ========================================
// Element Matcher
// ========================================
// Binds a gesture's screen point to the UI element the user most likely
// touched, and builds a locator chain for re-finding it at replay time.

// FindElementsAt returns every element whose bounds contain the point.
// Bounds are inclusive on all edges.
func FindElementsAt(elements []Element, x, y int) []Element {
	var matching []Element
	for _, e := range elements {
		if e.Bounds.Contains(x, y) {
			matching = append(matching, e)
		}
	}
	return matching
}

// SelectBestMatch picks the element the user most likely intended:
// clickable or long-clickable candidates win over non-clickable ones, and
// within each class the smallest area wins. The sort is stable, so equal
// areas keep hierarchy order.
func SelectBestMatch(candidates []Element) *Element {
	if len(candidates) == 0 {
		return nil
	}

	var clickable, other []Element
	for _, e := range candidates {
		if e.Clickable || e.LongClickable {
			clickable = append(clickable, e)
		} else {
			other = append(other, e)
		}
	}

	byArea := func(list []Element) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Bounds.Area() < list[j].Bounds.Area()
		})
	}
	byArea(clickable)
	byArea(other)

	if len(clickable) > 0 {
		best := clickable[0]
		return &best
	}
	best := other[0]
	return &best
}

// BuildXPath builds an XPath selector from the element's class and whichever
// of resource-id, text, and content-desc are present. An element with none
// of those falls back to a positional class selector.
func BuildXPath(e Element) string {
	var conditions []string

	if e.ResourceID != "" {
		conditions = append(conditions, fmt.Sprintf("@resource-id='%s'", escapeXPathValue(e.ResourceID)))
	}
	if e.Text != "" {
		conditions = append(conditions, fmt.Sprintf("@text='%s'", escapeXPathValue(e.Text)))
	}
	if e.ContentDesc != "" {
		conditions = append(conditions, fmt.Sprintf("@content-desc='%s'", escapeXPathValue(e.ContentDesc)))
	}

	if len(conditions) > 0 {
		return fmt.Sprintf("//%s[%s]", e.Class, strings.Join(conditions, " and "))
	}
	return fmt.Sprintf("(//%s)[%d]", e.Class, e.Index+1)
}

func escapeXPathValue(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}

// BuildLocator generates the locator chain for an element, ordered most to
// least reliable: id, content_desc, text, xpath, bounds. The first available
// strategy becomes primary; a bounds strategy is always present and last.
func BuildLocator(e Element) Locator {
	var strategies []Strategy

	if e.ResourceID != "" {
		strategies = append(strategies, Strategy{Kind: StrategyID, Value: e.ResourceID})
	}
	if e.ContentDesc != "" {
		strategies = append(strategies, Strategy{Kind: StrategyContentDesc, Value: e.ContentDesc})
	}
	if e.Text != "" {
		strategies = append(strategies, Strategy{Kind: StrategyText, Value: e.Text})
	}

	strategies = append(strategies, Strategy{Kind: StrategyXPath, Value: BuildXPath(e)})

	bounds := e.Bounds
	strategies = append(strategies, Strategy{Kind: StrategyBounds, Rect: &bounds})

	return Locator{
		Primary:   strategies[0],
		Fallbacks: strategies[1:],
		Bounds:    e.Bounds,
	}
}

// MatchElementAtPoint finds and selects the element at the given point and
// builds its locator. When no element contains the point, the element is nil
// and the locator degrades to a point-sized bounds strategy so the step can
// still replay by raw coordinates.
func MatchElementAtPoint(elements []Element, x, y int) (*Element, Locator) {
	candidates := FindElementsAt(elements, x, y)
	element := SelectBestMatch(candidates)

	if element != nil {
		return element, BuildLocator(*element)
	}

	point := PointRect(x, y)
	return nil, Locator{
		Primary:   Strategy{Kind: StrategyBounds, Rect: &point},
		Fallbacks: []Strategy{},
		Bounds:    point,
	}
}

// DescribeMatch returns a one-line human-readable description of a match,
// used in recording output.
func DescribeMatch(element *Element, loc Locator) string {
	if element == nil {
		c := loc.Bounds.Center()
		return fmt.Sprintf("No element found at (%d, %d)", c.X, c.Y)
	}

	parts := []string{element.ShortClass()}

	switch loc.Primary.Kind {
	case StrategyID:
		idx := strings.LastIndex(loc.Primary.Value, "/")
		parts = append(parts, "#"+loc.Primary.Value[idx+1:])
	case StrategyText:
		parts = append(parts, fmt.Sprintf("%q", loc.Primary.Value))
	case StrategyContentDesc:
		parts = append(parts, fmt.Sprintf("[%s]", loc.Primary.Value))
	}

	c := element.Bounds.Center()
	parts = append(parts, fmt.Sprintf("@(%d, %d)", c.X, c.Y))
	return strings.Join(parts, " ")
}
