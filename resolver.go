package main

import (
	"fmt"
	"regexp"
	"strings"
)

// ========================================
// Locator Resolver
// ========================================
// Re-finds a recorded element in a fresh snapshot by walking the locator's
// strategy chain. A strategy only wins when it identifies exactly one
// element; ambiguous strategies fall through to the next one.

// LocatorResult is the outcome of resolving a locator. When every strategy
// fails, Found is false and Coordinates degrade to the center of the
// recorded bounds so the gesture can still be replayed blind.
type LocatorResult struct {
	Found         bool
	Element       *Element
	StrategyUsed  string
	Coordinates   Point
	FallbackLevel int
}

// LocatorResolver resolves locators against snapshot element lists.
type LocatorResolver struct{}

// NewLocatorResolver returns a resolver.
func NewLocatorResolver() *LocatorResolver {
	return &LocatorResolver{}
}

// Resolve walks the strategy chain in order and returns the first
// single-element match. FallbackLevel is 0 for the primary strategy, its
// position for a fallback, and the chain length for the degraded result.
func (r *LocatorResolver) Resolve(loc Locator, elements []Element) LocatorResult {
	strategies := loc.Strategies()

	for level, st := range strategies {
		element := r.applyStrategy(st, elements)
		if element == nil {
			LogDebug("resolver").
				Str("strategy", string(st.Kind)).
				Int("level", level).
				Msg("Strategy did not resolve")
			continue
		}

		return LocatorResult{
			Found:         true,
			Element:       element,
			StrategyUsed:  string(st.Kind),
			Coordinates:   element.Bounds.Center(),
			FallbackLevel: level,
		}
	}

	// Degraded: replay by recorded coordinates.
	LogWarn("resolver").
		Int("strategies", len(strategies)).
		Msg("All strategies failed, degrading to recorded coordinates")
	return LocatorResult{
		Found:         false,
		StrategyUsed:  "coordinates",
		Coordinates:   loc.Bounds.Center(),
		FallbackLevel: len(strategies),
	}
}

// applyStrategy returns the element a strategy resolves to, or nil when it
// matches zero or more than one element.
func (r *LocatorResolver) applyStrategy(st Strategy, elements []Element) *Element {
	switch st.Kind {
	case StrategyID:
		return exactlyOne(elements, func(e Element) bool {
			return e.ResourceID == st.Value
		})

	case StrategyContentDesc:
		return exactlyOne(elements, func(e Element) bool {
			return e.ContentDesc == st.Value
		})

	case StrategyText:
		// Exact text first; only when that finds nothing, retry
		// case-insensitively.
		if e := exactlyOne(elements, func(e Element) bool {
			return e.Text == st.Value
		}); e != nil {
			return e
		}
		if anyMatch(elements, func(e Element) bool { return e.Text == st.Value }) {
			return nil
		}
		return exactlyOne(elements, func(e Element) bool {
			return strings.EqualFold(e.Text, st.Value)
		})

	case StrategyXPath:
		pred, err := parseXPath(st.Value)
		if err != nil {
			LogDebug("resolver").Str("xpath", st.Value).Err(err).Msg("Unsupported xpath")
			return nil
		}
		return exactlyOne(elements, pred)

	case StrategyBounds:
		if st.Rect == nil {
			return nil
		}
		return exactlyOne(elements, func(e Element) bool {
			return e.Bounds == *st.Rect
		})
	}

	LogWarn("resolver").Str("strategy", string(st.Kind)).Msg("Unknown strategy kind")
	return nil
}

func exactlyOne(elements []Element, pred func(Element) bool) *Element {
	var found *Element
	for i := range elements {
		if pred(elements[i]) {
			if found != nil {
				return nil
			}
			found = &elements[i]
		}
	}
	return found
}

func anyMatch(elements []Element, pred func(Element) bool) bool {
	for i := range elements {
		if pred(elements[i]) {
			return true
		}
	}
	return false
}

// ========================================
// XPath subset
// ========================================
// The resolver understands the selectors the matcher emits:
// //Class[@attr='value' and ...]. No axes, wildcards, or nesting.

var (
	xpathPattern           = regexp.MustCompile(`^//([\w.$]+)(?:\[(.+)\])?$`)
	xpathCondPattern       = regexp.MustCompile(`^@([\w-]+)='(.*)'$`)
	xpathPositionalPattern = regexp.MustCompile(`^\(//([\w.$]+)\)\[(\d+)\]$`)
)

// parseXPath compiles a selector into an element predicate. Selectors
// outside the supported subset return an error, which the caller treats as
// a failed strategy.
func parseXPath(expr string) (func(Element) bool, error) {
	if m := xpathPositionalPattern.FindStringSubmatch(expr); m != nil {
		class := m[1]
		index := atoi(m[2]) - 1
		return func(e Element) bool {
			return e.Class == class && e.Index == index
		}, nil
	}

	m := xpathPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("unsupported xpath: %q", expr)
	}

	class := m[1]
	var conditions []func(Element) bool

	if m[2] != "" {
		for _, cond := range strings.Split(m[2], " and ") {
			cm := xpathCondPattern.FindStringSubmatch(strings.TrimSpace(cond))
			if cm == nil {
				return nil, fmt.Errorf("unsupported xpath condition: %q", cond)
			}
			attr := cm[1]
			value := strings.ReplaceAll(cm[2], "\\'", "'")

			switch attr {
			case "resource-id":
				conditions = append(conditions, func(e Element) bool { return e.ResourceID == value })
			case "text":
				conditions = append(conditions, func(e Element) bool { return e.Text == value })
			case "content-desc":
				conditions = append(conditions, func(e Element) bool { return e.ContentDesc == value })
			case "class":
				conditions = append(conditions, func(e Element) bool { return e.Class == value })
			default:
				return nil, fmt.Errorf("unsupported xpath attribute: %q", attr)
			}
		}
	}

	return func(e Element) bool {
		if e.Class != class {
			return false
		}
		for _, cond := range conditions {
			if !cond(e) {
				return false
			}
		}
		return true
	}, nil
}
