package config

import (
	"fmt"
	"math"
)

const epsilon = 1e-9

// Bounds is the closed range and step of a numeric knob.
type Bounds struct {
	Min, Max, Step float64
}

// Clamp limits v to the range and snaps it to the step grid.
func (b Bounds) Clamp(v float64) float64 {
	v = math.Max(b.Min, math.Min(b.Max, v))
	if b.Step > 0 {
		v = b.Min + math.Round((v-b.Min)/b.Step)*b.Step
		// Round off binary noise so persisted values stay short.
		v = math.Round(v*1e6) / 1e6
	}
	return math.Max(b.Min, math.Min(b.Max, v))
}

var (
	ConfidenceBounds = Bounds{Min: 0.1, Max: 0.9, Step: 0.1}
	MaxHandsBounds   = Bounds{Min: 1, Max: 2, Step: 1}
	GestureBounds    = Bounds{Min: 0, Max: 1, Step: 0.005}
	PinchBounds      = Bounds{Min: 0.5, Max: 10, Step: 0.05}
)

// Knob names an adjustable setting.
type Knob string

const (
	KnobDetection    Knob = KeyMinDetectionConf
	KnobTracking     Knob = KeyMinTrackingConf
	KnobPresence     Knob = KeyMinPresenceConf
	KnobMaxHands     Knob = KeyMaxHands
	KnobGesture      Knob = KeyGestureThreshold
	KnobPinch        Knob = KeyPinchThreshold
	KnobPinchRelease Knob = KeyPinchReleaseThreshold
)

// Knobs lists every adjustable knob.
var Knobs = []Knob{KnobDetection, KnobTracking, KnobPresence, KnobMaxHands, KnobGesture, KnobPinch, KnobPinchRelease}

// Bounds returns the range of k.
func (k Knob) Bounds() (Bounds, bool) {
	switch k {
	case KnobDetection, KnobTracking, KnobPresence:
		return ConfidenceBounds, true
	case KnobMaxHands:
		return MaxHandsBounds, true
	case KnobGesture:
		return GestureBounds, true
	case KnobPinch, KnobPinchRelease:
		return PinchBounds, true
	}
	return Bounds{}, false
}

func (s *Settings) field(k Knob) (get func() float64, set func(float64)) {
	switch k {
	case KnobDetection:
		return func() float64 { return s.MinDetectionConf }, func(v float64) { s.MinDetectionConf = v }
	case KnobTracking:
		return func() float64 { return s.MinTrackingConf }, func(v float64) { s.MinTrackingConf = v }
	case KnobPresence:
		return func() float64 { return s.MinPresenceConf }, func(v float64) { s.MinPresenceConf = v }
	case KnobMaxHands:
		return func() float64 { return float64(s.MaxHands) }, func(v float64) { s.MaxHands = int(v) }
	case KnobGesture:
		return func() float64 { return s.GestureThreshold }, func(v float64) { s.GestureThreshold = v }
	case KnobPinch:
		return func() float64 { return s.PinchThreshold }, func(v float64) { s.PinchThreshold = v }
	case KnobPinchRelease:
		return func() float64 { return s.PinchReleaseThreshold }, func(v float64) { s.PinchReleaseThreshold = v }
	}
	return nil, nil
}

// Get returns the current value of k.
func (s Settings) Get(k Knob) (float64, error) {
	get, _ := s.field(k)
	if get == nil {
		return 0, fmt.Errorf("%w: unknown knob %q", ErrInvalid, k)
	}
	return get(), nil
}

// Adjust moves k by steps increments, clamped to its bounds, and returns the
// new settings. s is unchanged. The result is not validated, so a pinch band
// may come out inverted; callers validate before applying.
func (s Settings) Adjust(k Knob, steps int) (Settings, error) {
	b, ok := k.Bounds()
	if !ok {
		return s, fmt.Errorf("%w: unknown knob %q", ErrInvalid, k)
	}
	get, set := s.field(k)
	set(b.Clamp(get() + float64(steps)*b.Step))
	return s, nil
}
