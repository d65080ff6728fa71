// Package convert turns camera frames into packed RGBA on the GPU.
//
// Converters are not safe for concurrent use. Every method must be called
// from the goroutine that owns the graphics context, locked to its OS
// thread.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidSize is returned for frames too small to subsample.
var ErrInvalidSize = errors.New("invalid frame size")

// ColorRange selects how 8-bit YUV samples map to [0, 1].
type ColorRange int

const (
	// RangeLimited expands studio swing (Y 16..235, C 16..240).
	RangeLimited ColorRange = iota
	// RangeFull uses samples as-is.
	RangeFull
)

func (r ColorRange) String() string {
	switch r {
	case RangeLimited:
		return "limited"
	case RangeFull:
		return "full"
	default:
		return fmt.Sprintf("ColorRange(%d)", int(r))
	}
}

// ParseColorRange parses "limited" or "full".
func ParseColorRange(s string) (ColorRange, error) {
	switch strings.ToLower(s) {
	case "limited", "":
		return RangeLimited, nil
	case "full":
		return RangeFull, nil
	default:
		return 0, fmt.Errorf("unknown color range %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r ColorRange) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ColorRange) UnmarshalText(b []byte) error {
	v, err := ParseColorRange(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// coefficients returns luma offset, luma scale and chroma scale.
func (r ColorRange) coefficients() (yOffset, yScale, cScale float32) {
	if r == RangeFull {
		return 0, 1, 1
	}
	return 16.0 / 255.0, 255.0 / 219.0, 255.0 / 224.0
}

// Options configures a YUVConverter.
type Options struct {
	ColorRange ColorRange
	// SwapChroma treats the frame's U plane as V and vice versa.
	SwapChroma bool
	Logger     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
