package gesture

import (
	"math"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/detector"
)

// Template is a reference hand pose in wrist-normalized coordinates.
type Template struct {
	ID        string             // Unique identifier for the template
	Name      string             // Category name reported on a match
	Landmarks []detector.Point3D // Normalized landmarks
	Tolerance float64            // Maximum distance for a match
}

// Match represents a matching result between input and a template.
type Match struct {
	Template *Template // The matched template
	Score    float64   // Match score (0-1, higher is better)
	Distance float64   // Euclidean distance between input and template
}

// StaticMatcher matches hand poses against registered templates.
type StaticMatcher struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewStaticMatcher creates a new StaticMatcher instance.
func NewStaticMatcher() *StaticMatcher {
	return &StaticMatcher{
		templates: make([]*Template, 0),
	}
}

// AddTemplate adds a gesture template to the matcher.
func (m *StaticMatcher) AddTemplate(t *Template) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
}

// RemoveTemplate removes a template by its ID.
func (m *StaticMatcher) RemoveTemplate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered templates.
func (m *StaticMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Match finds matching templates for the given hand landmarks.
// Returns matches sorted by score in descending order (best matches first).
func (m *StaticMatcher) Match(hand *detector.HandLandmarks) []Match {
	if hand == nil || hand.Count < detector.NumLandmarks {
		return nil
	}

	normalized := hand.Normalize()
	if normalized == nil {
		return nil
	}
	input := normalized.Points[:]

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, template := range m.templates {
		distance := euclideanDistance(input, template.Landmarks)
		if distance > template.Tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: template,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Classifier labels hands from landmark templates. It stands in for a
// detector that reports landmarks without categories.
type Classifier struct {
	matcher *StaticMatcher
}

// NewClassifier returns a Classifier preloaded with a closed-fist template.
func NewClassifier() *Classifier {
	m := NewStaticMatcher()
	fist := detector.ClosedFistLandmarks()
	m.AddTemplate(&Template{
		ID:        "builtin-closed-fist",
		Name:      ClosedFist,
		Landmarks: fist.Normalize().Points[:],
		Tolerance: 1.5,
	})
	return &Classifier{matcher: m}
}

// Matcher exposes the template set.
func (c *Classifier) Matcher() *StaticMatcher { return c.matcher }

// Classify returns categories per hand, best first, in the shape a detector
// reports them.
func (c *Classifier) Classify(hands []detector.HandLandmarks) [][]detector.Category {
	if len(hands) == 0 {
		return nil
	}
	out := make([][]detector.Category, len(hands))
	for i := range hands {
		for _, m := range c.matcher.Match(&hands[i]) {
			out[i] = append(out[i], detector.Category{Name: m.Template.Name, Score: m.Score})
		}
	}
	return out
}

// euclideanDistance calculates the total Euclidean distance between two sets of 3D points.
// It sums the distances between corresponding points in the two slices. Sets
// that are empty or differ in length are infinitely far apart.
func euclideanDistance(a, b []detector.Point3D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}

	var total float64
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}
