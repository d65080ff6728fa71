// Package config holds the user-tunable settings of the pipeline as an
// immutable value, with bounds, stepped adjustment and a flat key/value form
// for persistence.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/convert"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// ErrInvalid is returned for settings outside their bounds.
var ErrInvalid = errors.New("invalid settings")

// InputMode selects the frame source.
type InputMode string

const (
	// InputYUV reads planar YUV 4:2:0 frames from the camera.
	InputYUV InputMode = "yuv"
	// InputTexture has the session update an external texture in place.
	InputTexture InputMode = "texture"
)

// ParseInputMode parses "yuv" or "texture".
func ParseInputMode(s string) (InputMode, error) {
	switch m := InputMode(strings.ToLower(s)); m {
	case InputYUV, InputTexture:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown input mode %q", ErrInvalid, s)
	}
}

// Persistence keys.
const (
	KeyDelegate              = "delegate"
	KeyMinDetectionConf      = "min_hand_detection_conf"
	KeyMinTrackingConf       = "min_hand_tracking_conf"
	KeyMinPresenceConf       = "min_hand_presence_conf"
	KeyMaxHands              = "max_hands"
	KeyGestureThreshold      = "gesture_threshold"
	KeyPinchThreshold        = "pinch_threshold"
	KeyPinchReleaseThreshold = "pinch_release_threshold"
	KeyResWidth              = "res_width"
	KeyResHeight             = "res_height"
	KeyInputMode             = "input_mode"
	KeyColorRange            = "color_range"
)

// Settings is the full set of knobs. Treat it as a value: changes produce a
// new Settings that is validated and applied as a whole.
type Settings struct {
	Delegate         detector.Delegate `json:"delegate"`
	MinDetectionConf float64           `json:"min_hand_detection_conf"`
	MinTrackingConf  float64           `json:"min_hand_tracking_conf"`
	MinPresenceConf  float64           `json:"min_hand_presence_conf"`
	MaxHands         int               `json:"max_hands"`

	GestureThreshold      float64 `json:"gesture_threshold"`
	PinchThreshold        float64 `json:"pinch_threshold"`
	PinchReleaseThreshold float64 `json:"pinch_release_threshold"`

	// Resolution is the saved camera size; zero means choose automatically.
	Resolution capture.Size       `json:"resolution"`
	Input      InputMode          `json:"input_mode"`
	Target     capture.Size       `json:"target"`
	ColorRange convert.ColorRange `json:"color_range"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		Delegate:              detector.DelegateCPU,
		MinDetectionConf:      0.5,
		MinTrackingConf:       0.5,
		MinPresenceConf:       0.5,
		MaxHands:              2,
		GestureThreshold:      0.1,
		PinchThreshold:        2.0,
		PinchReleaseThreshold: 3.0,
		Input:                 InputYUV,
		Target:                capture.Size{Width: capture.DefaultWidth, Height: capture.DefaultHeight},
		ColorRange:            convert.RangeLimited,
	}
}

// Validate checks every knob against its bounds and the pinch band order.
func (s Settings) Validate() error {
	var errs []error
	check := func(key string, v float64, b Bounds) {
		if v < b.Min-epsilon || v > b.Max+epsilon {
			errs = append(errs, fmt.Errorf("%s %.3f outside [%g, %g]", key, v, b.Min, b.Max))
		}
	}

	if _, err := detector.ParseDelegate(string(s.Delegate)); err != nil {
		errs = append(errs, err)
	}
	check(KeyMinDetectionConf, s.MinDetectionConf, ConfidenceBounds)
	check(KeyMinTrackingConf, s.MinTrackingConf, ConfidenceBounds)
	check(KeyMinPresenceConf, s.MinPresenceConf, ConfidenceBounds)
	check(KeyMaxHands, float64(s.MaxHands), MaxHandsBounds)
	check(KeyGestureThreshold, s.GestureThreshold, GestureBounds)
	check(KeyPinchThreshold, s.PinchThreshold, PinchBounds)
	check(KeyPinchReleaseThreshold, s.PinchReleaseThreshold, PinchBounds)
	if err := s.Pinch().Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Resolution.Width < 0 || s.Resolution.Height < 0 {
		errs = append(errs, fmt.Errorf("resolution %s", s.Resolution))
	}
	if s.Target.Width < 2 || s.Target.Height < 2 {
		errs = append(errs, fmt.Errorf("target size %s", s.Target))
	}
	if _, err := ParseInputMode(string(s.Input)); err != nil {
		errs = append(errs, err)
	}
	if s.ColorRange != convert.RangeLimited && s.ColorRange != convert.RangeFull {
		errs = append(errs, fmt.Errorf("color range %s", s.ColorRange))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Detector returns the inference configuration.
func (s Settings) Detector() detector.Config {
	return detector.Config{
		MaxHands:        s.MaxHands,
		MinConfidence:   s.MinDetectionConf,
		MinTrackingConf: s.MinTrackingConf,
		MinPresenceConf: s.MinPresenceConf,
		Delegate:        s.Delegate,
	}
}

// Pinch returns the pinch metric configuration with the default landmarks.
func (s Settings) Pinch() gesture.PinchConfig {
	cfg := gesture.DefaultPinchConfig()
	cfg.Enter = s.PinchThreshold
	cfg.Exit = s.PinchReleaseThreshold
	return cfg
}

// NeedsRebuild reports whether moving from s to next requires tearing down
// the converter or the inference engine. Threshold-only changes do not.
func (s Settings) NeedsRebuild(next Settings) bool {
	return s.Delegate != next.Delegate ||
		s.MinDetectionConf != next.MinDetectionConf ||
		s.MinTrackingConf != next.MinTrackingConf ||
		s.MinPresenceConf != next.MinPresenceConf ||
		s.MaxHands != next.MaxHands ||
		s.Resolution != next.Resolution ||
		s.Input != next.Input ||
		s.Target != next.Target ||
		s.ColorRange != next.ColorRange
}

// Values returns the settings as persistence key/value pairs.
func (s Settings) Values() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		KeyDelegate:              string(s.Delegate),
		KeyMinDetectionConf:      f(s.MinDetectionConf),
		KeyMinTrackingConf:       f(s.MinTrackingConf),
		KeyMinPresenceConf:       f(s.MinPresenceConf),
		KeyMaxHands:              strconv.Itoa(s.MaxHands),
		KeyGestureThreshold:      f(s.GestureThreshold),
		KeyPinchThreshold:        f(s.PinchThreshold),
		KeyPinchReleaseThreshold: f(s.PinchReleaseThreshold),
		KeyResWidth:              strconv.Itoa(s.Resolution.Width),
		KeyResHeight:             strconv.Itoa(s.Resolution.Height),
		KeyInputMode:             string(s.Input),
		KeyColorRange:            s.ColorRange.String(),
	}
}

// FromValues overlays persisted values on the defaults. Unknown keys are
// ignored; a malformed value is an error. The result is validated.
func FromValues(values map[string]string) (Settings, error) {
	s := Default()
	var errs []error

	float := func(key string, dst *float64) {
		v, ok := values[key]
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	integer := func(key string, dst *int) {
		v, ok := values[key]
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	if v, ok := values[KeyDelegate]; ok {
		d, err := detector.ParseDelegate(v)
		if err != nil {
			errs = append(errs, err)
		}
		s.Delegate = d
	}
	float(KeyMinDetectionConf, &s.MinDetectionConf)
	float(KeyMinTrackingConf, &s.MinTrackingConf)
	float(KeyMinPresenceConf, &s.MinPresenceConf)
	integer(KeyMaxHands, &s.MaxHands)
	float(KeyGestureThreshold, &s.GestureThreshold)
	float(KeyPinchThreshold, &s.PinchThreshold)
	float(KeyPinchReleaseThreshold, &s.PinchReleaseThreshold)
	integer(KeyResWidth, &s.Resolution.Width)
	integer(KeyResHeight, &s.Resolution.Height)
	if v, ok := values[KeyInputMode]; ok {
		m, err := ParseInputMode(v)
		if err != nil {
			errs = append(errs, err)
		}
		s.Input = m
	}
	if v, ok := values[KeyColorRange]; ok {
		r, err := convert.ParseColorRange(v)
		if err != nil {
			errs = append(errs, err)
		}
		s.ColorRange = r
	}

	if len(errs) > 0 {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Equal reports whether two settings are the same within float rounding.
func (s Settings) Equal(o Settings) bool {
	eq := func(a, b float64) bool { return math.Abs(a-b) < epsilon }
	return s.Delegate == o.Delegate &&
		eq(s.MinDetectionConf, o.MinDetectionConf) &&
		eq(s.MinTrackingConf, o.MinTrackingConf) &&
		eq(s.MinPresenceConf, o.MinPresenceConf) &&
		s.MaxHands == o.MaxHands &&
		eq(s.GestureThreshold, o.GestureThreshold) &&
		eq(s.PinchThreshold, o.PinchThreshold) &&
		eq(s.PinchReleaseThreshold, o.PinchReleaseThreshold) &&
		s.Resolution == o.Resolution &&
		s.Input == o.Input &&
		s.Target == o.Target &&
		s.ColorRange == o.ColorRange
}
