// Package soft implements gpu.Device in pure Go. It follows GLES2 sampling
// and rasterization rules closely enough that conversions produce the same
// pixels a GPU would, within rounding, and needs no display.
package soft

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ayusman/mudra/internal/gpu"
)

const maxUnits = 8

// Backend opens software devices.
type Backend struct{}

// Name implements gpu.Backend.
func (Backend) Name() string { return "soft" }

// Open implements gpu.Backend.
func (Backend) Open(cfg gpu.Config) (gpu.Device, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", gpu.ErrContextInit, cfg.Width, cfg.Height)
	}
	if cfg.RedBits > 8 || cfg.GreenBits > 8 || cfg.BlueBits > 8 {
		return nil, fmt.Errorf("%w: no config with %d/%d/%d bits", gpu.ErrContextInit, cfg.RedBits, cfg.GreenBits, cfg.BlueBits)
	}
	return NewDevice(cfg.Width, cfg.Height), nil
}

type shader struct {
	stage gpu.Stage
}

type program struct {
	kernel  gpu.Kernel
	names   []string
	ints    []int32
	floats  []float32
	attribs []string
	byName  map[string]int32
}

type texture struct {
	target gpu.Target
	format gpu.Format
	width  int
	height int
	pix    []byte
}

type framebuffer struct {
	color uint32
}

// Device is a software gpu.Device.
type Device struct {
	width     int
	height    int
	current   bool
	destroyed bool
	nextID    uint32

	shaders      map[uint32]*shader
	programs     map[uint32]*program
	textures     map[uint32]*texture
	framebuffers map[uint32]*framebuffer

	units    [maxUnits]uint32
	program  uint32
	fb       uint32
	viewport [4]int

	// default framebuffer, RGBA
	surface []byte
	env     env

	draws int
}

// NewDevice returns a device with a width x height default surface.
// It is not current until MakeCurrent is called.
func NewDevice(width, height int) *Device {
	d := &Device{
		width:        width,
		height:       height,
		shaders:      make(map[uint32]*shader),
		programs:     make(map[uint32]*program),
		textures:     make(map[uint32]*texture),
		framebuffers: make(map[uint32]*framebuffer),
		viewport:     [4]int{0, 0, width, height},
		surface:      make([]byte, width*height*4),
	}
	d.env.dev = d
	return d
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) check() error {
	if d.destroyed {
		return gpu.ErrReleased
	}
	if !d.current {
		return gpu.ErrNotCurrent
	}
	return nil
}

// Draws returns the number of completed draw calls.
func (d *Device) Draws() int {
	return d.draws
}

// Live returns counts of objects that have not been deleted.
func (d *Device) Live() (shaders, programs, textures, framebuffers int) {
	return len(d.shaders), len(d.programs), len(d.textures), len(d.framebuffers)
}

// MakeCurrent implements gpu.Device.
func (d *Device) MakeCurrent() error {
	if d.destroyed {
		return gpu.ErrReleased
	}
	d.current = true
	return nil
}

// ReleaseCurrent implements gpu.Device.
func (d *Device) ReleaseCurrent() error {
	d.current = false
	return nil
}

// Destroy implements gpu.Device.
func (d *Device) Destroy() error {
	if d.destroyed {
		return nil
	}
	d.destroyed = true
	d.current = false
	clear(d.shaders)
	clear(d.programs)
	clear(d.textures)
	clear(d.framebuffers)
	d.surface = nil
	return nil
}

// CompileShader implements gpu.Device. Sources are not parsed; a stage is
// rejected only when it is empty or has no main function.
func (d *Device) CompileShader(stage gpu.Stage, source string) (uint32, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	switch {
	case strings.TrimSpace(source) == "":
		return 0, &gpu.ShaderCompileError{Stage: stage, Log: "empty source"}
	case !strings.Contains(source, "main"):
		return 0, &gpu.ShaderCompileError{Stage: stage, Log: "missing main function"}
	}
	id := d.id()
	d.shaders[id] = &shader{stage: stage}
	return id, nil
}

// DeleteShader implements gpu.Device.
func (d *Device) DeleteShader(id uint32) {
	delete(d.shaders, id)
}

// LinkProgram implements gpu.Device.
func (d *Device) LinkProgram(vertex, fragment uint32, kernel gpu.Kernel) (uint32, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	vs, ok := d.shaders[vertex]
	if !ok || vs.stage != gpu.StageVertex {
		return 0, &gpu.ShaderLinkError{Log: "vertex shader missing"}
	}
	fs, ok := d.shaders[fragment]
	if !ok || fs.stage != gpu.StageFragment {
		return 0, &gpu.ShaderLinkError{Log: "fragment shader missing"}
	}
	if kernel == nil {
		return 0, &gpu.ShaderLinkError{Log: "fragment stage has no kernel"}
	}
	id := d.id()
	d.programs[id] = &program{kernel: kernel, byName: make(map[string]int32)}
	return id, nil
}

// DeleteProgram implements gpu.Device.
func (d *Device) DeleteProgram(id uint32) {
	delete(d.programs, id)
	if d.program == id {
		d.program = 0
	}
}

// UseProgram implements gpu.Device.
func (d *Device) UseProgram(id uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if _, ok := d.programs[id]; !ok && id != 0 {
		return fmt.Errorf("use program %d: %w", id, gpu.ErrUnknownObject)
	}
	d.program = id
	return nil
}

// AttribLocation implements gpu.Device.
func (d *Device) AttribLocation(prog uint32, name string) int32 {
	p, ok := d.programs[prog]
	if !ok {
		return -1
	}
	for i, a := range p.attribs {
		if a == name {
			return int32(i)
		}
	}
	p.attribs = append(p.attribs, name)
	return int32(len(p.attribs) - 1)
}

// UniformLocation implements gpu.Device.
func (d *Device) UniformLocation(prog uint32, name string) int32 {
	p, ok := d.programs[prog]
	if !ok {
		return -1
	}
	if loc, ok := p.byName[name]; ok {
		return loc
	}
	loc := int32(len(p.names))
	p.names = append(p.names, name)
	p.ints = append(p.ints, 0)
	p.floats = append(p.floats, 0)
	p.byName[name] = loc
	return loc
}

func (d *Device) active() *program {
	return d.programs[d.program]
}

// Uniform1i implements gpu.Device.
func (d *Device) Uniform1i(loc int32, v int32) {
	p := d.active()
	if p == nil || loc < 0 || int(loc) >= len(p.ints) {
		return
	}
	p.ints[loc] = v
	p.floats[loc] = float32(v)
}

// Uniform1f implements gpu.Device.
func (d *Device) Uniform1f(loc int32, v float32) {
	p := d.active()
	if p == nil || loc < 0 || int(loc) >= len(p.floats) {
		return
	}
	p.floats[loc] = v
	p.ints[loc] = int32(v)
}

// GenTexture implements gpu.Device.
func (d *Device) GenTexture(target gpu.Target) (uint32, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	id := d.id()
	d.textures[id] = &texture{target: target}
	return id, nil
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(id uint32) {
	delete(d.textures, id)
	for i := range d.units {
		if d.units[i] == id {
			d.units[i] = 0
		}
	}
}

// TexImage2D implements gpu.Device. A nil pix allocates zeroed storage.
// Storage is reused when the size and format do not change.
func (d *Device) TexImage2D(target gpu.Target, id uint32, format gpu.Format, width, height int, pix []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("texture %d: %w", id, gpu.ErrUnknownObject)
	}
	if t.target != target {
		return fmt.Errorf("texture %d bound to a different target", id)
	}
	if width <= 0 || height <= 0 || format.Channels() == 0 {
		return fmt.Errorf("invalid texture image %dx%d", width, height)
	}
	n := width * height * format.Channels()
	if pix != nil && len(pix) < n {
		return fmt.Errorf("texture data %d bytes, want %d", len(pix), n)
	}
	if cap(t.pix) < n {
		t.pix = make([]byte, n)
	}
	t.pix = t.pix[:n]
	t.format, t.width, t.height = format, width, height
	if pix == nil {
		clear(t.pix)
	} else {
		copy(t.pix, pix[:n])
	}
	return nil
}

// BindTexture implements gpu.Device.
func (d *Device) BindTexture(unit int, target gpu.Target, id uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if unit < 0 || unit >= maxUnits {
		return fmt.Errorf("texture unit %d out of range", unit)
	}
	if id != 0 {
		t, ok := d.textures[id]
		if !ok {
			return fmt.Errorf("texture %d: %w", id, gpu.ErrUnknownObject)
		}
		if t.target != target {
			return fmt.Errorf("texture %d bound to a different target", id)
		}
	}
	d.units[unit] = id
	return nil
}

// GenFramebuffer implements gpu.Device.
func (d *Device) GenFramebuffer() (uint32, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	id := d.id()
	d.framebuffers[id] = &framebuffer{}
	return id, nil
}

// DeleteFramebuffer implements gpu.Device.
func (d *Device) DeleteFramebuffer(id uint32) {
	delete(d.framebuffers, id)
	if d.fb == id {
		d.fb = 0
	}
}

// AttachColor implements gpu.Device.
func (d *Device) AttachColor(fb, tex uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	f, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("framebuffer %d: %w", fb, gpu.ErrUnknownObject)
	}
	t, ok := d.textures[tex]
	if !ok || t.format != gpu.FormatRGBA || t.target != gpu.Target2D || len(t.pix) == 0 {
		return gpu.ErrFramebufferIncomplete
	}
	f.color = tex
	return nil
}

// BindFramebuffer implements gpu.Device. Zero selects the default surface.
func (d *Device) BindFramebuffer(id uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	if id != 0 {
		if _, ok := d.framebuffers[id]; !ok {
			return fmt.Errorf("framebuffer %d: %w", id, gpu.ErrUnknownObject)
		}
	}
	d.fb = id
	return nil
}

// Viewport implements gpu.Device.
func (d *Device) Viewport(x, y, width, height int) {
	d.viewport = [4]int{x, y, width, height}
}

// target returns the pixels and size of the bound render target.
func (d *Device) target() ([]byte, int, int, error) {
	if d.fb == 0 {
		return d.surface, d.width, d.height, nil
	}
	f := d.framebuffers[d.fb]
	t, ok := d.textures[f.color]
	if !ok {
		return nil, 0, 0, gpu.ErrFramebufferIncomplete
	}
	return t.pix, t.width, t.height, nil
}

// DrawQuad implements gpu.Device. Only axis-aligned quads are supported,
// which covers every full-screen pass.
func (d *Device) DrawQuad(q *gpu.Quad, position, texCoord int32) error {
	if err := d.check(); err != nil {
		return err
	}
	p := d.active()
	if p == nil {
		return errors.New("draw: no program in use")
	}
	if position < 0 || texCoord < 0 {
		return errors.New("draw: missing vertex attributes")
	}
	pix, tw, th, err := d.target()
	if err != nil {
		return err
	}
	r, err := rectOf(q)
	if err != nil {
		return err
	}

	vx, vy, vw, vh := d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]
	d.env.prog = p
	for py := max(vy, 0); py < min(vy+vh, th); py++ {
		ny := 2*((float32(py-vy)+0.5)/float32(vh)) - 1
		if ny < r.y0 || ny > r.y1 {
			continue
		}
		fy := (ny - r.y0) / (r.y1 - r.y0)
		for px := max(vx, 0); px < min(vx+vw, tw); px++ {
			nx := 2*((float32(px-vx)+0.5)/float32(vw)) - 1
			if nx < r.x0 || nx > r.x1 {
				continue
			}
			fx := (nx - r.x0) / (r.x1 - r.x0)
			u, v := r.interp(fx, fy)
			c := p.kernel(&d.env, u, v)
			o := (py*tw + px) * 4
			pix[o] = quantize(c[0])
			pix[o+1] = quantize(c[1])
			pix[o+2] = quantize(c[2])
			pix[o+3] = quantize(c[3])
		}
	}
	d.draws++
	return nil
}

// ReadPixels implements gpu.Device. Row 0 of dst is row y of the target.
func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	pix, tw, th, err := d.target()
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || x+width > tw || y+height > th {
		return fmt.Errorf("read %dx%d at %d,%d outside %dx%d target", width, height, x, y, tw, th)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("read buffer %d bytes, want %d", len(dst), width*height*4)
	}
	for r := 0; r < height; r++ {
		src := pix[((y+r)*tw+x)*4 : ((y+r)*tw+x+width)*4]
		copy(dst[r*width*4:], src)
	}
	return nil
}

func quantize(c float32) byte {
	switch {
	case c <= 0 || c != c:
		return 0
	case c >= 1:
		return 255
	}
	return byte(math.Floor(float64(c)*255 + 0.5))
}
