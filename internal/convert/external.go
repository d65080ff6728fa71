package convert

import (
	"fmt"
	"log/slog"

	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/repack"
)

const unitCamera = 0

// ExternalConverter renders an externally updated texture into a fixed size
// RGBA target and reads it back.
type ExternalConverter struct {
	backend gpu.Backend
	log     *slog.Logger

	width       int
	height      int
	initialized bool

	surface *gpu.Surface
	program *gpu.Program
	camera  *gpu.Texture
	fb      *gpu.Framebuffer
	res     gpu.Stack

	out repack.Buffer
}

// NewExternalConverter builds a converter with output size width x height
// and creates its GPU state immediately, so the texture can be handed to a
// camera session right away.
func NewExternalConverter(b gpu.Backend, width, height int, logger *slog.Logger) (*ExternalConverter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &ExternalConverter{
		backend: b,
		log:     logger.With("component", "external-converter"),
		width:   width,
		height:  height,
	}
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	return c, nil
}

// Size returns the fixed output size.
func (c *ExternalConverter) Size() (int, int) {
	return c.width, c.height
}

// Initialized reports whether GPU state exists.
func (c *ExternalConverter) Initialized() bool {
	return c.initialized
}

// Texture returns the texture the camera session should write into. It is
// nil while released, and a new texture after each rebuild.
func (c *ExternalConverter) Texture() *gpu.Texture {
	return c.camera
}

// EnsureInitialized rebuilds GPU state after Release.
func (c *ExternalConverter) EnsureInitialized() error {
	if c.initialized {
		return nil
	}
	if err := c.setup(); err != nil {
		c.teardown()
		return err
	}
	c.initialized = true
	c.log.Debug("initialized", "width", c.width, "height", c.height, "backend", c.backend.Name())
	return nil
}

func (c *ExternalConverter) setup() error {
	surface, err := gpu.NewSurface(c.backend, c.width, c.height)
	if err != nil {
		return err
	}
	c.surface = surface
	c.res.Push(surface.Destroy)

	dev := surface.Device()
	program, err := gpu.CompileProgram(dev, externalProgram)
	if err != nil {
		return err
	}
	c.program = program
	c.res.Push(program.Delete)

	camera, err := gpu.NewTexture(dev, gpu.TargetExternal, gpu.FormatRGBA, c.width, c.height)
	if err != nil {
		return fmt.Errorf("camera texture: %w", err)
	}
	c.camera = camera
	c.res.Push(camera.Delete)

	fb, err := gpu.NewFramebuffer(dev, c.width, c.height)
	if err != nil {
		return err
	}
	c.fb = fb
	c.res.Push(fb.Delete)

	if err := program.Use(); err != nil {
		return err
	}
	program.SetInt(uniformCameraTexture, unitCamera)
	return nil
}

func (c *ExternalConverter) teardown() {
	if c.surface != nil {
		// Deletes go to whichever context is current on this thread.
		_ = c.surface.MakeCurrent()
	}
	if err := c.res.Release(); err != nil {
		c.log.Warn("teardown", "err", err)
	}
	c.surface, c.program, c.camera, c.fb = nil, nil, nil, nil
	c.initialized = false
}

// Convert draws the camera texture's current contents and returns them as
// packed RGBA at the fixed output size, top row first. The returned slice
// aliases an internal buffer and is valid until the next call.
func (c *ExternalConverter) Convert() ([]byte, error) {
	if err := c.EnsureInitialized(); err != nil {
		return nil, err
	}
	if err := c.surface.MakeCurrent(); err != nil {
		return nil, err
	}
	if err := c.camera.Bind(unitCamera); err != nil {
		return nil, err
	}
	if err := c.fb.Bind(); err != nil {
		return nil, err
	}
	if err := c.program.Use(); err != nil {
		return nil, err
	}
	if err := c.program.Draw(&gpu.FullScreenQuad); err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	out := c.out.Ensure(c.width * c.height * 4)
	if err := c.fb.ReadRGBA(out); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return out, nil
}

// Release frees all GPU state and the output buffer.
func (c *ExternalConverter) Release() {
	c.teardown()
	c.out.Reset()
}
