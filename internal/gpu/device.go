// Package gpu provides offscreen rendering primitives for frame conversion:
// a surface owning a graphics context, compiled programs, textures and
// framebuffers. All of it runs on top of a Device supplied by a Backend.
//
// A Device and everything created from it belong to the thread that made it
// current. Callers are expected to confine every call to one goroutine
// locked to its OS thread.
package gpu

// Stage identifies a shader stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// Target is a texture binding target.
type Target int

const (
	// Target2D is an ordinary 2D texture the caller uploads to.
	Target2D Target = iota
	// TargetExternal is a texture whose contents are produced by another
	// component, such as a camera session.
	TargetExternal
)

// Format is a texture pixel format.
type Format int

const (
	FormatLuminance Format = iota
	FormatLuminanceAlpha
	FormatRGBA
)

// Channels returns bytes per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatLuminance:
		return 1
	case FormatLuminanceAlpha:
		return 2
	case FormatRGBA:
		return 4
	default:
		return 0
	}
}

// Config requests a context and offscreen surface.
type Config struct {
	Width     int
	Height    int
	RedBits   int
	GreenBits int
	BlueBits  int
}

// DefaultConfig returns an 8-bit RGB configuration of the given size.
func DefaultConfig(width, height int) Config {
	return Config{Width: width, Height: height, RedBits: 8, GreenBits: 8, BlueBits: 8}
}

// Backend opens devices.
type Backend interface {
	Name() string
	Open(cfg Config) (Device, error)
}

// Env is what a Kernel sees while shading one fragment.
type Env interface {
	// Texture samples the texture bound to the unit named by a sampler
	// uniform.
	Texture(sampler string, u, v float32) [4]float32
	// Float returns the value of a float uniform.
	Float(name string) float32
}

// Kernel is the CPU form of a fragment stage. It receives interpolated
// texture coordinates and returns RGBA in [0, 1].
type Kernel func(env Env, u, v float32) [4]float32

// Device is the subset of a GLES2-level graphics API used by this module.
// Object ids are never zero; zero means "none".
type Device interface {
	MakeCurrent() error
	ReleaseCurrent() error
	Destroy() error

	CompileShader(stage Stage, source string) (uint32, error)
	DeleteShader(id uint32)
	LinkProgram(vertex, fragment uint32, kernel Kernel) (uint32, error)
	DeleteProgram(id uint32)
	UseProgram(id uint32) error
	AttribLocation(program uint32, name string) int32
	UniformLocation(program uint32, name string) int32
	Uniform1i(location int32, v int32)
	Uniform1f(location int32, v float32)

	GenTexture(target Target) (uint32, error)
	DeleteTexture(id uint32)
	TexImage2D(target Target, id uint32, format Format, width, height int, pix []byte) error
	BindTexture(unit int, target Target, id uint32) error

	GenFramebuffer() (uint32, error)
	DeleteFramebuffer(id uint32)
	// AttachColor attaches an RGBA texture as the framebuffer's color
	// target and reports ErrFramebufferIncomplete if it cannot be rendered to.
	AttachColor(framebuffer, texture uint32) error
	BindFramebuffer(id uint32) error

	Viewport(x, y, width, height int)
	DrawQuad(q *Quad, position, texCoord int32) error
	ReadPixels(x, y, width, height int, dst []byte) error
}
