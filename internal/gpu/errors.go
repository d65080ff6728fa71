package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrContextInit is returned when no display, configuration or context
	// meeting the requested attributes is available.
	ErrContextInit = errors.New("graphics context initialization failed")

	// ErrFramebufferIncomplete is returned when the offscreen target cannot
	// be rendered to.
	ErrFramebufferIncomplete = errors.New("framebuffer incomplete")

	// ErrNotCurrent is returned by devices that detect calls made while
	// their context is not current.
	ErrNotCurrent = errors.New("graphics context not current")

	// ErrReleased is returned when using an object after it was deleted.
	ErrReleased = errors.New("gpu object released")

	// ErrUnknownObject is returned for ids the device never issued.
	ErrUnknownObject = errors.New("unknown gpu object")
)

// ShaderCompileError carries the compiler log of a failed stage.
type ShaderCompileError struct {
	Program string
	Stage   Stage
	Log     string
}

func (e *ShaderCompileError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("compile %s %s shader: %s", e.Program, e.Stage, e.Log)
	}
	return fmt.Sprintf("compile %s shader: %s", e.Stage, e.Log)
}

// ShaderLinkError carries the linker log of a failed program.
type ShaderLinkError struct {
	Program string
	Log     string
}

func (e *ShaderLinkError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("link %s program: %s", e.Program, e.Log)
	}
	return "link program: " + e.Log
}
