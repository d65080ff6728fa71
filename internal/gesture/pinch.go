// Package gesture turns per-frame landmark results into stable signals: a
// hysteresis pinch detector, a category gate and a template classifier.
package gesture

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// ErrInvalidThresholds is returned when the pinch band is not ordered.
var ErrInvalidThresholds = errors.New("invalid pinch thresholds")

const minReference = 1e-6

// PinchConfig configures the pinch metric and its hysteresis band.
type PinchConfig struct {
	Enter float64 // becomes active below this
	Exit  float64 // becomes inactive above this
	Scale float64

	TipA, TipB int // fingertips whose distance is measured
	RefA, RefB int // joints next to TipA and TipB used to normalize
}

// DefaultPinchConfig measures thumb tip to index tip.
func DefaultPinchConfig() PinchConfig {
	return PinchConfig{
		Enter: 2.0,
		Exit:  3.0,
		Scale: 10.0,
		TipA:  detector.ThumbTip,
		TipB:  detector.IndexTip,
		RefA:  detector.ThumbIP,
		RefB:  detector.IndexDIP,
	}
}

// Validate rejects an empty hysteresis band, a non-positive scale and
// landmark indices outside the hand model.
func (c PinchConfig) Validate() error {
	if !(c.Enter < c.Exit) {
		return fmt.Errorf("%w: enter %.3f must be below exit %.3f", ErrInvalidThresholds, c.Enter, c.Exit)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale %.3f", ErrInvalidThresholds, c.Scale)
	}
	for _, i := range []int{c.TipA, c.TipB, c.RefA, c.RefB} {
		if i < 0 || i >= detector.NumLandmarks {
			return fmt.Errorf("%w: landmark %d", ErrInvalidThresholds, i)
		}
	}
	return nil
}

func (c PinchConfig) maxIndex() int {
	return max(c.TipA, c.TipB, c.RefA, c.RefB)
}

// PinchMetric returns the smallest pinch ratio over hands, measured in the
// pixel space of a width x height image. Hands missing a required landmark
// or with degenerate reference joints are skipped; ok is false when no hand
// qualifies.
func PinchMetric(hands []detector.HandLandmarks, width, height int, cfg PinchConfig) (metric float64, ok bool) {
	need := cfg.maxIndex()
	w, h := float64(width), float64(height)
	metric = math.Inf(1)

	for i := range hands {
		hand := &hands[i]
		if !hand.Has(need) {
			continue
		}
		dist := func(a, b int) float64 {
			pa, pb := hand.Points[a], hand.Points[b]
			return math.Hypot((pa.X-pb.X)*w, (pa.Y-pb.Y)*h)
		}
		ref := 0.5 * (dist(cfg.TipA, cfg.RefA) + dist(cfg.TipB, cfg.RefB))
		if ref <= minReference {
			continue
		}
		if r := dist(cfg.TipA, cfg.TipB) * cfg.Scale / ref; r < metric {
			metric, ok = r, true
		}
	}
	if !ok {
		return 0, false
	}
	return metric, true
}

// Stabilizer is a two-state hysteresis machine over the pinch metric.
// It is not safe for concurrent use.
type Stabilizer struct {
	enter, exit float64
	active      bool
}

// NewStabilizer returns an inactive Stabilizer for cfg's band.
func NewStabilizer(cfg PinchConfig) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stabilizer{enter: cfg.Enter, exit: cfg.Exit}, nil
}

// Update feeds one metric and returns the resulting state. A frame without
// a valid metric (ok false) leaves the state unchanged.
func (s *Stabilizer) Update(metric float64, ok bool) bool {
	if !ok {
		return s.active
	}
	switch {
	case !s.active && metric < s.enter:
		s.active = true
	case s.active && metric > s.exit:
		s.active = false
	}
	return s.active
}

// SetThresholds moves the band without changing the state.
func (s *Stabilizer) SetThresholds(cfg PinchConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.enter, s.exit = cfg.Enter, cfg.Exit
	return nil
}

// Active reports the current state.
func (s *Stabilizer) Active() bool { return s.active }

// Reset returns to the inactive state.
func (s *Stabilizer) Reset() { s.active = false }
