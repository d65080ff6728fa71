package capture

import (
	"errors"

	"github.com/ayusman/mudra/internal/repack"
)

var (
	// ErrNoFrame is returned when a session has no frame available.
	ErrNoFrame = errors.New("no frame available")
	// ErrNoTexture is returned by Update before a texture was registered.
	ErrNoTexture = errors.New("no camera texture registered")
	// ErrSessionStopped is returned when reading from a stopped session.
	ErrSessionStopped = errors.New("session not running")
)

// YUVFrame is a 4:2:0 image as three planes. The planes may share a
// backing buffer and may be padded; chroma planes are Width/2 x Height/2.
type YUVFrame struct {
	Width     int
	Height    int
	Y         repack.Plane
	U         repack.Plane
	V         repack.Plane
	Timestamp int64 // nanoseconds, monotonic within a session
}

// YUVSession delivers YUV frames from a camera.
type YUVSession interface {
	Start() error
	Stop() error
	// NextFrame blocks until a frame is available. The frame is valid until
	// the next call.
	NextFrame() (*YUVFrame, error)
}

// ExternalTexture is a texture a session writes camera images into.
type ExternalTexture interface {
	Handle() uint32
	Upload(pix []byte, width, height int) error
}

// TextureSession renders camera images into a registered texture.
// Update must run on the thread that owns the texture's context.
type TextureSession interface {
	SetCameraTexture(tex ExternalTexture)
	Resume() error
	Pause() error
	// Update writes the newest camera image into the registered texture and
	// returns its timestamp in nanoseconds.
	Update() (int64, error)
}
