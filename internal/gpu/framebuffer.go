package gpu

import (
	"errors"
	"fmt"
)

// Framebuffer is an offscreen RGBA render target.
type Framebuffer struct {
	dev    Device
	id     uint32
	color  *Texture
	width  int
	height int
	valid  bool
}

// NewFramebuffer creates a width x height RGBA target and verifies it is
// complete.
func NewFramebuffer(dev Device, width, height int) (*Framebuffer, error) {
	color, err := NewTexture(dev, Target2D, FormatRGBA, width, height)
	if err != nil {
		return nil, fmt.Errorf("framebuffer color: %w", err)
	}
	id, err := dev.GenFramebuffer()
	if err != nil {
		_ = color.Delete()
		return nil, fmt.Errorf("gen framebuffer: %w", err)
	}
	if err := dev.AttachColor(id, color.id); err != nil {
		dev.DeleteFramebuffer(id)
		_ = color.Delete()
		if !errors.Is(err, ErrFramebufferIncomplete) {
			err = fmt.Errorf("%w: %v", ErrFramebufferIncomplete, err)
		}
		return nil, err
	}
	return &Framebuffer{dev: dev, id: id, color: color, width: width, height: height, valid: true}, nil
}

// Valid reports whether the framebuffer has not been deleted.
func (f *Framebuffer) Valid() bool {
	return f != nil && f.valid
}

// Size returns the target dimensions.
func (f *Framebuffer) Size() (int, int) {
	return f.width, f.height
}

// Bind makes this framebuffer the render target and sets the viewport to
// cover it.
func (f *Framebuffer) Bind() error {
	if !f.Valid() {
		return ErrReleased
	}
	if err := f.dev.BindFramebuffer(f.id); err != nil {
		return err
	}
	f.dev.Viewport(0, 0, f.width, f.height)
	return nil
}

// ReadRGBA reads the whole target into dst, which must hold
// width*height*4 bytes. Rows are returned bottom row of the target first.
func (f *Framebuffer) ReadRGBA(dst []byte) error {
	if !f.Valid() {
		return ErrReleased
	}
	if need := f.width * f.height * 4; len(dst) < need {
		return fmt.Errorf("readback buffer %d bytes, want %d", len(dst), need)
	}
	return f.dev.ReadPixels(0, 0, f.width, f.height, dst)
}

// Delete frees the framebuffer and its color texture. Safe to call more than
// once.
func (f *Framebuffer) Delete() error {
	if !f.Valid() {
		return nil
	}
	f.valid = false
	f.dev.DeleteFramebuffer(f.id)
	return f.color.Delete()
}
