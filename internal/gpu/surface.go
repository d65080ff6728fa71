package gpu

import (
	"errors"
	"fmt"
)

// Surface owns a device whose offscreen surface is exactly Width x Height.
type Surface struct {
	dev    Device
	width  int
	height int
	valid  bool
}

// NewSurface opens a device with an 8-bit RGB configuration and makes it
// current on the calling thread.
func NewSurface(b Backend, width, height int) (*Surface, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: no backend", ErrContextInit)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid surface size %dx%d", ErrContextInit, width, height)
	}

	dev, err := b.Open(DefaultConfig(width, height))
	if err != nil {
		if errors.Is(err, ErrContextInit) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrContextInit, b.Name(), err)
	}
	if err := dev.MakeCurrent(); err != nil {
		_ = dev.Destroy()
		return nil, fmt.Errorf("%w: make current: %v", ErrContextInit, err)
	}

	return &Surface{dev: dev, width: width, height: height, valid: true}, nil
}

// Device returns the underlying device.
func (s *Surface) Device() Device {
	return s.dev
}

// Size returns the surface dimensions.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Valid reports whether the surface has not been destroyed.
func (s *Surface) Valid() bool {
	return s != nil && s.valid
}

// MakeCurrent binds the surface's context to the calling thread.
func (s *Surface) MakeCurrent() error {
	if !s.Valid() {
		return ErrReleased
	}
	return s.dev.MakeCurrent()
}

// Destroy releases the context and the surface. Safe to call more than once.
func (s *Surface) Destroy() error {
	if !s.Valid() {
		return nil
	}
	s.valid = false
	return errors.Join(s.dev.ReleaseCurrent(), s.dev.Destroy())
}
