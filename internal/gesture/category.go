package gesture

import (
	"slices"

	"github.com/ayusman/mudra/internal/detector"
)

// ClosedFist is the canonical name for the fist category.
const ClosedFist = "Closed_Fist"

// FistNames are the category names treated as a closed fist.
var FistNames = []string{ClosedFist, "Fist_Closed"}

// CategoryGate decides whether the strongest category in a result is one of
// the allowed names with a high enough score.
type CategoryGate struct {
	Allow    []string
	MinScore float64
}

// NewFistGate returns a gate passing closed fists scored at least minScore.
func NewFistGate(minScore float64) CategoryGate {
	return CategoryGate{Allow: FistNames, MinScore: minScore}
}

// Top returns the best first-ranked category across hands. ok is false when
// no hand has a category.
func Top(gestures [][]detector.Category) (top detector.Category, ok bool) {
	for _, cats := range gestures {
		if len(cats) == 0 {
			continue
		}
		if !ok || cats[0].Score > top.Score {
			top, ok = cats[0], true
		}
	}
	return top, ok
}

// Check returns the top category and whether it passes the gate.
func (g CategoryGate) Check(gestures [][]detector.Category) (detector.Category, bool) {
	top, ok := Top(gestures)
	if !ok {
		return detector.Category{}, false
	}
	return top, slices.Contains(g.Allow, top.Name) && top.Score >= g.MinScore
}
