package gpu

import "fmt"

// Texture is a sampled texture or a render target's color storage.
type Texture struct {
	dev    Device
	id     uint32
	target Target
	format Format
	width  int
	height int
	valid  bool
}

// NewTexture creates a texture and allocates width x height storage.
func NewTexture(dev Device, target Target, format Format, width, height int) (*Texture, error) {
	id, err := dev.GenTexture(target)
	if err != nil {
		return nil, fmt.Errorf("gen texture: %w", err)
	}
	if err := dev.TexImage2D(target, id, format, width, height, nil); err != nil {
		dev.DeleteTexture(id)
		return nil, fmt.Errorf("allocate texture %dx%d: %w", width, height, err)
	}
	return &Texture{dev: dev, id: id, target: target, format: format, width: width, height: height, valid: true}, nil
}

// Handle returns the device id, for registering with external producers.
func (t *Texture) Handle() uint32 {
	if !t.Valid() {
		return 0
	}
	return t.id
}

// Target returns the binding target.
func (t *Texture) Target() Target {
	return t.target
}

// Format returns the pixel format.
func (t *Texture) Format() Format {
	return t.format
}

// Size returns the dimensions of the last upload.
func (t *Texture) Size() (int, int) {
	return t.width, t.height
}

// Valid reports whether the texture has not been deleted.
func (t *Texture) Valid() bool {
	return t != nil && t.valid
}

// Upload replaces the texture contents. pix must hold exactly
// width*height*channels bytes.
func (t *Texture) Upload(pix []byte, width, height int) error {
	if !t.Valid() {
		return ErrReleased
	}
	if need := width * height * t.format.Channels(); len(pix) != need {
		return fmt.Errorf("upload %dx%d: got %d bytes, want %d", width, height, len(pix), need)
	}
	if err := t.dev.TexImage2D(t.target, t.id, t.format, width, height, pix); err != nil {
		return err
	}
	t.width, t.height = width, height
	return nil
}

// Bind binds the texture to a texture unit.
func (t *Texture) Bind(unit int) error {
	if !t.Valid() {
		return ErrReleased
	}
	return t.dev.BindTexture(unit, t.target, t.id)
}

// Delete frees the texture. Safe to call more than once.
func (t *Texture) Delete() error {
	if !t.Valid() {
		return nil
	}
	t.valid = false
	t.dev.DeleteTexture(t.id)
	return nil
}
