package convert

import (
	"fmt"
	"log/slog"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/repack"
)

// Texture units the YUV program samples from.
const (
	unitY  = 0
	unitUV = 1
)

// YUVConverter converts YUV 4:2:0 frames with arbitrary plane strides to
// packed RGBA of the same size.
type YUVConverter struct {
	backend gpu.Backend
	opts    Options
	log     *slog.Logger

	width       int
	height      int
	initialized bool

	surface *gpu.Surface
	program *gpu.Program
	yTex    *gpu.Texture
	uvTex   *gpu.Texture
	fb      *gpu.Framebuffer
	res     gpu.Stack

	yBuf  repack.Buffer
	uvBuf repack.Buffer
	out   repack.Buffer
}

// NewYUVConverter returns an uninitialized converter. GPU state is created
// by the first Convert or EnsureInitialized.
func NewYUVConverter(b gpu.Backend, opts Options) *YUVConverter {
	return &YUVConverter{
		backend: b,
		opts:    opts,
		log:     opts.logger().With("component", "yuv-converter"),
	}
}

// Initialized reports whether GPU state exists.
func (c *YUVConverter) Initialized() bool {
	return c.initialized
}

// Size returns the size GPU state was built for.
func (c *YUVConverter) Size() (int, int) {
	return c.width, c.height
}

// Allocations returns the total number of buffer allocations so far.
func (c *YUVConverter) Allocations() int {
	return c.yBuf.Allocations() + c.uvBuf.Allocations() + c.out.Allocations()
}

// EnsureInitialized builds GPU state for width x height. It does nothing
// when state for that size already exists and rebuilds everything when
// the size changed.
func (c *YUVConverter) EnsureInitialized(width, height int) error {
	if width < 2 || height < 2 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if c.initialized && c.width == width && c.height == height {
		return nil
	}
	if c.initialized {
		c.log.Info("frame size changed, rebuilding", "from_width", c.width, "from_height", c.height, "width", width, "height", height)
		c.teardown()
	}

	if err := c.setup(width, height); err != nil {
		c.teardown()
		return err
	}
	c.width, c.height = width, height
	c.initialized = true
	c.log.Debug("initialized", "width", width, "height", height, "backend", c.backend.Name())
	return nil
}

func (c *YUVConverter) setup(width, height int) error {
	surface, err := gpu.NewSurface(c.backend, width, height)
	if err != nil {
		return err
	}
	c.surface = surface
	c.res.Push(surface.Destroy)

	dev := surface.Device()
	program, err := gpu.CompileProgram(dev, yuvProgram)
	if err != nil {
		return err
	}
	c.program = program
	c.res.Push(program.Delete)

	yTex, err := gpu.NewTexture(dev, gpu.Target2D, gpu.FormatLuminance, width, height)
	if err != nil {
		return fmt.Errorf("y texture: %w", err)
	}
	c.yTex = yTex
	c.res.Push(yTex.Delete)

	uvTex, err := gpu.NewTexture(dev, gpu.Target2D, gpu.FormatLuminanceAlpha, width/2, height/2)
	if err != nil {
		return fmt.Errorf("uv texture: %w", err)
	}
	c.uvTex = uvTex
	c.res.Push(uvTex.Delete)

	fb, err := gpu.NewFramebuffer(dev, width, height)
	if err != nil {
		return err
	}
	c.fb = fb
	c.res.Push(fb.Delete)

	if err := program.Use(); err != nil {
		return err
	}
	yOffset, yScale, cScale := c.opts.ColorRange.coefficients()
	program.SetInt(uniformYTexture, unitY)
	program.SetInt(uniformUVTexture, unitUV)
	program.SetFloat(uniformYOffset, yOffset)
	program.SetFloat(uniformYScale, yScale)
	program.SetFloat(uniformCScale, cScale)
	return nil
}

// teardown releases GPU objects in reverse creation order. Failures are
// logged and otherwise ignored.
func (c *YUVConverter) teardown() {
	if c.surface != nil {
		// Deletes go to whichever context is current on this thread.
		_ = c.surface.MakeCurrent()
	}
	if err := c.res.Release(); err != nil {
		c.log.Warn("teardown", "err", err)
	}
	c.surface, c.program, c.yTex, c.uvTex, c.fb = nil, nil, nil, nil, nil
	c.width, c.height = 0, 0
	c.initialized = false
}

// Convert returns the frame as packed RGBA, top row first. The returned
// slice aliases an internal buffer and is valid until the next call.
func (c *YUVConverter) Convert(f *capture.YUVFrame) ([]byte, error) {
	w, h := f.Width, f.Height
	if w < 2 || h < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	cw, ch := w/2, h/2

	// Repack before touching the GPU so a malformed frame changes nothing.
	yPix := c.yBuf.Ensure(w * h)
	if err := repack.Luma(yPix, f.Y, w, h); err != nil {
		return nil, err
	}
	first, second := f.U, f.V
	if c.opts.SwapChroma {
		first, second = second, first
	}
	uvPix := c.uvBuf.Ensure(cw * ch * 2)
	if err := repack.Chroma(uvPix, first, second, cw, ch); err != nil {
		return nil, err
	}

	if err := c.EnsureInitialized(w, h); err != nil {
		return nil, err
	}
	if err := c.surface.MakeCurrent(); err != nil {
		return nil, err
	}

	if err := c.yTex.Upload(yPix, w, h); err != nil {
		return nil, fmt.Errorf("upload y: %w", err)
	}
	if err := c.uvTex.Upload(uvPix, cw, ch); err != nil {
		return nil, fmt.Errorf("upload uv: %w", err)
	}
	if err := c.yTex.Bind(unitY); err != nil {
		return nil, err
	}
	if err := c.uvTex.Bind(unitUV); err != nil {
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

	out := c.out.Ensure(w * h * 4)
	if err := c.fb.ReadRGBA(out); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return out, nil
}

// Release frees all GPU state and buffers. The converter can be used again
// afterwards; the next Convert rebuilds everything.
func (c *YUVConverter) Release() {
	c.teardown()
	c.yBuf.Reset()
	c.uvBuf.Reset()
	c.out.Reset()
}
