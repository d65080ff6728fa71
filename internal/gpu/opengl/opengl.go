// Package opengl implements gpu.Device with OpenGL 2.1 on a hidden glfw
// window. The window's default framebuffer is never shown; all rendering
// goes to framebuffer objects.
//
// glfw requires Init and window creation on the thread that owns the
// context. Open and every Device call must happen on one locked OS thread.
package opengl

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/ayusman/mudra/internal/gpu"
)

var (
	glfwMu   sync.Mutex
	glfwRefs int
)

func acquireGLFW() error {
	glfwMu.Lock()
	defer glfwMu.Unlock()
	if glfwRefs == 0 {
		if err := glfw.Init(); err != nil {
			return err
		}
	}
	glfwRefs++
	return nil
}

func releaseGLFW() {
	glfwMu.Lock()
	defer glfwMu.Unlock()
	glfwRefs--
	if glfwRefs == 0 {
		glfw.Terminate()
	}
}

// Backend opens OpenGL devices.
type Backend struct{}

// Name implements gpu.Backend.
func (Backend) Name() string { return "opengl" }

// Open implements gpu.Backend.
func (Backend) Open(cfg gpu.Config) (gpu.Device, error) {
	if err := acquireGLFW(); err != nil {
		return nil, fmt.Errorf("%w: glfw init: %v", gpu.ErrContextInit, err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.RedBits, cfg.RedBits)
	glfw.WindowHint(glfw.GreenBits, cfg.GreenBits)
	glfw.WindowHint(glfw.BlueBits, cfg.BlueBits)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, "mudra", nil, nil)
	if err != nil {
		releaseGLFW()
		return nil, fmt.Errorf("%w: create window: %v", gpu.ErrContextInit, err)
	}
	return &Device{win: win}, nil
}

// Device is an OpenGL gpu.Device.
type Device struct {
	win    *glfw.Window
	loaded bool
	vbo    uint32
	quad   gpu.Quad
}

// MakeCurrent implements gpu.Device. The first call loads GL entry points.
func (d *Device) MakeCurrent() error {
	if d.win == nil {
		return gpu.ErrReleased
	}
	d.win.MakeContextCurrent()
	if !d.loaded {
		if err := gl.Init(); err != nil {
			return fmt.Errorf("%w: gl init: %v", gpu.ErrContextInit, err)
		}
		gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
		gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
		d.loaded = true
	}
	return nil
}

// ReleaseCurrent implements gpu.Device.
func (d *Device) ReleaseCurrent() error {
	glfw.DetachCurrentContext()
	return nil
}

// Destroy implements gpu.Device.
func (d *Device) Destroy() error {
	if d.win == nil {
		return nil
	}
	if d.vbo != 0 {
		d.win.MakeContextCurrent()
		gl.DeleteBuffers(1, &d.vbo)
		d.vbo = 0
		glfw.DetachCurrentContext()
	}
	d.win.Destroy()
	d.win = nil
	releaseGLFW()
	return nil
}

func glStage(s gpu.Stage) uint32 {
	if s == gpu.StageVertex {
		return gl.VERTEX_SHADER
	}
	return gl.FRAGMENT_SHADER
}

// CompileShader implements gpu.Device.
func (d *Device) CompileShader(stage gpu.Stage, source string) (uint32, error) {
	shader := gl.CreateShader(glStage(stage))
	if shader == 0 {
		return 0, &gpu.ShaderCompileError{Stage: stage, Log: "glCreateShader returned 0"}
	}
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, &gpu.ShaderCompileError{Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return shader, nil
}

// DeleteShader implements gpu.Device.
func (d *Device) DeleteShader(id uint32) {
	if id != 0 {
		gl.DeleteShader(id)
	}
}

// LinkProgram implements gpu.Device. The kernel is ignored; the GPU runs the
// fragment source.
func (d *Device) LinkProgram(vertex, fragment uint32, _ gpu.Kernel) (uint32, error) {
	program := gl.CreateProgram()
	if program == 0 {
		return 0, &gpu.ShaderLinkError{Log: "glCreateProgram returned 0"}
	}
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, &gpu.ShaderLinkError{Log: strings.TrimRight(log, "\x00")}
	}
	gl.DetachShader(program, vertex)
	gl.DetachShader(program, fragment)
	return program, nil
}

// DeleteProgram implements gpu.Device.
func (d *Device) DeleteProgram(id uint32) {
	if id != 0 {
		gl.DeleteProgram(id)
	}
}

// UseProgram implements gpu.Device.
func (d *Device) UseProgram(id uint32) error {
	gl.UseProgram(id)
	return glError("use program")
}

// AttribLocation implements gpu.Device.
func (d *Device) AttribLocation(program uint32, name string) int32 {
	return gl.GetAttribLocation(program, gl.Str(name+"\x00"))
}

// UniformLocation implements gpu.Device.
func (d *Device) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

// Uniform1i implements gpu.Device.
func (d *Device) Uniform1i(location int32, v int32) {
	if location >= 0 {
		gl.Uniform1i(location, v)
	}
}

// Uniform1f implements gpu.Device.
func (d *Device) Uniform1f(location int32, v float32) {
	if location >= 0 {
		gl.Uniform1f(location, v)
	}
}

// glTarget maps texture targets. Desktop GL has no external target; camera
// producers write into an ordinary 2D texture.
func glTarget(gpu.Target) uint32 {
	return gl.TEXTURE_2D
}

func glFormat(f gpu.Format) uint32 {
	switch f {
	case gpu.FormatLuminance:
		return gl.LUMINANCE
	case gpu.FormatLuminanceAlpha:
		return gl.LUMINANCE_ALPHA
	default:
		return gl.RGBA
	}
}

// GenTexture implements gpu.Device. Textures sample linearly and clamp to
// edge.
func (d *Device) GenTexture(target gpu.Target) (uint32, error) {
	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenTextures: %w", glError("gen texture"))
	}
	t := glTarget(target)
	gl.BindTexture(t, id)
	gl.TexParameteri(t, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(t, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(t, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(t, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(t, 0)
	return id, nil
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(id uint32) {
	if id != 0 {
		gl.DeleteTextures(1, &id)
	}
}

// TexImage2D implements gpu.Device.
func (d *Device) TexImage2D(target gpu.Target, id uint32, format gpu.Format, width, height int, pix []byte) error {
	var ptr unsafe.Pointer
	if len(pix) > 0 {
		ptr = unsafe.Pointer(&pix[0])
	}
	t := glTarget(target)
	f := glFormat(format)
	gl.BindTexture(t, id)
	gl.TexImage2D(t, 0, int32(f), int32(width), int32(height), 0, f, gl.UNSIGNED_BYTE, ptr)
	return glError("tex image")
}

// BindTexture implements gpu.Device.
func (d *Device) BindTexture(unit int, target gpu.Target, id uint32) error {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(glTarget(target), id)
	return glError("bind texture")
}

// GenFramebuffer implements gpu.Device.
func (d *Device) GenFramebuffer() (uint32, error) {
	var id uint32
	gl.GenFramebuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenFramebuffers: %w", glError("gen framebuffer"))
	}
	return id, nil
}

// DeleteFramebuffer implements gpu.Device.
func (d *Device) DeleteFramebuffer(id uint32) {
	if id != 0 {
		gl.DeleteFramebuffers(1, &id)
	}
}

// AttachColor implements gpu.Device.
func (d *Device) AttachColor(framebuffer, texture uint32) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, framebuffer)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, texture, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("%w: status 0x%x", gpu.ErrFramebufferIncomplete, status)
	}
	return nil
}

// BindFramebuffer implements gpu.Device.
func (d *Device) BindFramebuffer(id uint32) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, id)
	return glError("bind framebuffer")
}

// Viewport implements gpu.Device.
func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

// DrawQuad implements gpu.Device. The quad lives in a vertex buffer that is
// re-uploaded only when the vertices change.
func (d *Device) DrawQuad(q *gpu.Quad, position, texCoord int32) error {
	if position < 0 || texCoord < 0 {
		return fmt.Errorf("draw: missing vertex attributes (%d, %d)", position, texCoord)
	}
	if d.vbo == 0 {
		gl.GenBuffers(1, &d.vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(q)*4, gl.Ptr(&q[0]), gl.STATIC_DRAW)
		d.quad = *q
	} else {
		gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
		if d.quad != *q {
			gl.BufferData(gl.ARRAY_BUFFER, len(q)*4, gl.Ptr(&q[0]), gl.STATIC_DRAW)
			d.quad = *q
		}
	}

	gl.EnableVertexAttribArray(uint32(position))
	gl.VertexAttribPointer(uint32(position), 2, gl.FLOAT, false, gpu.QuadStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(uint32(texCoord))
	gl.VertexAttribPointer(uint32(texCoord), 2, gl.FLOAT, false, gpu.QuadStride, gl.PtrOffset(2*4))

	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)

	gl.DisableVertexAttribArray(uint32(position))
	gl.DisableVertexAttribArray(uint32(texCoord))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return glError("draw")
}

// ReadPixels implements gpu.Device.
func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	if len(dst) < width*height*4 {
		return fmt.Errorf("read buffer %d bytes, want %d", len(dst), width*height*4)
	}
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&dst[0]))
	return glError("read pixels")
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: gl error 0x%x", op, code)
	}
	return nil
}
