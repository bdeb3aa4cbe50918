package main

import (
	"sort"
	"strings"
)

// ========================================
// Confidence Scorer
// ========================================
// Pure fuzzy matching of search criteria against snapshot elements. The
// scorer performs no device I/O; callers supply the element list.

// MatchCriteria are the search fields for fuzzy element matching. Empty
// fields do not participate in scoring.
type MatchCriteria struct {
	Text  string
	ID    string
	Desc  string
	Class string
}

// Empty reports whether no criteria fields are set.
func (c MatchCriteria) Empty() bool {
	return c.Text == "" && c.ID == "" && c.Desc == "" && c.Class == ""
}

// CriteriaFromStep extracts the match criteria from a scripted step's
// selector fields.
func CriteriaFromStep(step Step) MatchCriteria {
	return MatchCriteria{
		Text: step.Text,
		ID:   step.ID,
		Desc: step.Desc,
	}
}

// MatchResult is one scored element. MatchDetails holds the per-field
// similarity for each criteria field that was scored.
type MatchResult struct {
	Element      Element
	Confidence   float64
	MatchDetails map[string]float64
}

// Per-field weights. Resource IDs are the most stable identifier, class
// names the least specific.
const (
	weightID    = 1.5
	weightDesc  = 1.2
	weightText  = 1.0
	weightClass = 0.5
)

// ScoreElements scores every element against the criteria and returns the
// results at or above minConfidence, best first. Ties break toward the
// smaller element, then toward snapshot order, so ranking is deterministic.
func ScoreElements(criteria MatchCriteria, elements []Element, minConfidence float64) []MatchResult {
	if criteria.Empty() {
		return nil
	}

	var results []MatchResult
	for _, e := range elements {
		confidence, details := scoreElement(criteria, e)
		if confidence >= minConfidence && confidence > 0 {
			results = append(results, MatchResult{
				Element:      e,
				Confidence:   confidence,
				MatchDetails: details,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Element.Bounds.Area() < results[j].Element.Bounds.Area()
	})
	return results
}

// BestMatch returns the highest-confidence element, or nil when nothing
// reaches minConfidence.
func BestMatch(criteria MatchCriteria, elements []Element, minConfidence float64) *MatchResult {
	results := ScoreElements(criteria, elements, minConfidence)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}

// scoreElement computes the weighted average similarity over the criteria
// fields that are present.
func scoreElement(criteria MatchCriteria, e Element) (float64, map[string]float64) {
	details := make(map[string]float64)
	var weightedSum, totalWeight float64

	score := func(name string, weight, sim float64) {
		details[name] = sim
		weightedSum += sim * weight
		totalWeight += weight
	}

	if criteria.ID != "" {
		score("id", weightID, idSimilarity(criteria.ID, e.ResourceID))
	}
	if criteria.Desc != "" {
		score("desc", weightDesc, stringSimilarity(criteria.Desc, e.ContentDesc))
	}
	if criteria.Text != "" {
		score("text", weightText, stringSimilarity(criteria.Text, e.Text))
	}
	if criteria.Class != "" {
		sim := stringSimilarity(criteria.Class, e.Class)
		if short := stringSimilarity(criteria.Class, e.ShortClass()); short > sim {
			sim = short
		}
		score("class", weightClass, sim)
	}

	if totalWeight == 0 {
		return 0, details
	}
	return weightedSum / totalWeight, details
}

// idSimilarity compares a query against a resource id in both its full
// ("com.app:id/login") and short ("login") forms, taking the better score.
func idSimilarity(query, resourceID string) float64 {
	sim := stringSimilarity(query, resourceID)
	if idx := strings.LastIndex(resourceID, "/"); idx >= 0 {
		if short := stringSimilarity(query, resourceID[idx+1:]); short > sim {
			sim = short
		}
	}
	return sim
}

// stringSimilarity scores how well a query matches a field value:
//
//	1.0        exact match (case-insensitive, whitespace-trimmed)
//	0.6..0.9   one string contains the other, scaled by length ratio
//	0..0.5     token overlap (Jaccard over alphanumeric tokens, halved)
//	0.0        no overlap, or empty field
func stringSimilarity(query, field string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	f := strings.ToLower(strings.TrimSpace(field))

	if q == "" || f == "" {
		return 0
	}
	if q == f {
		return 1.0
	}

	if strings.Contains(q, f) || strings.Contains(f, q) {
		shorter, longer := len(q), len(f)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.6 + 0.3*float64(shorter)/float64(longer)
	}

	return 0.5 * tokenJaccard(q, f)
}

// tokenJaccard computes Jaccard similarity over alphanumeric tokens.
func tokenJaccard(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for t := range tokensA {
		if tokensB[t] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
