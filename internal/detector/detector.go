package detector

import (
	"fmt"
	"strings"
	"time"
)

// Image is a packed RGBA image, 4 bytes per pixel, no row padding.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// Validate checks that Pix matches the declared size.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", img.Width, img.Height)
	}
	if len(img.Pix) != img.Width*img.Height*4 {
		return fmt.Errorf("image %dx%d has %d bytes, want %d", img.Width, img.Height, len(img.Pix), img.Width*img.Height*4)
	}
	return nil
}

// Category is a classifier label with its score.
type Category struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Detection is what a detector finds in one image. Gestures[i] holds the
// categories for Hands[i], best first; it may be shorter than Hands when the
// detector does not classify.
type Detection struct {
	Hands    []HandLandmarks `json:"hands"`
	Gestures [][]Category    `json:"gestures,omitempty"`
}

// Result is a detection tagged with the submitted frame's timestamp.
type Result struct {
	Detection
	Timestamp     int64 // milliseconds, as submitted
	Width         int
	Height        int
	InferenceTime time.Duration
	Err           error
}

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes an RGBA image. Returns an empty detection if no hands
	// are found.
	Detect(img Image) (Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Delegate selects where inference runs.
type Delegate string

const (
	DelegateCPU Delegate = "cpu"
	DelegateGPU Delegate = "gpu"
)

// ParseDelegate parses "cpu" or "gpu".
func ParseDelegate(s string) (Delegate, error) {
	switch d := Delegate(strings.ToLower(s)); d {
	case DelegateCPU, DelegateGPU:
		return d, nil
	default:
		return "", fmt.Errorf("unknown delegate %q", s)
	}
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// MinPresenceConf is the minimum hand presence confidence (0.0-1.0).
	MinPresenceConf float64

	// Delegate selects CPU or GPU inference.
	Delegate Delegate
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		MinPresenceConf: 0.5,
		Delegate:        DelegateCPU,
	}
}
