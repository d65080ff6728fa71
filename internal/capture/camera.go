// Package capture provides camera sessions on top of GoCV (OpenCV).
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera defines the interface for BGR camera sources.
type Camera interface {
	Open() error
	Close() error
	// Read decodes the next frame into dst, reusing its storage.
	Read(dst *gocv.Mat) error
	SetResolution(size Size)
	Resolution() Size
	// SupportedResolutions probes which of the candidate sizes the device
	// accepts. The camera must be open.
	SupportedResolutions(candidates []Size) []Size
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	size     Size
}

// NewCamera creates a new Camera with the given device ID at 640x480.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		size:     Size{Width: DefaultWidth, Height: DefaultHeight},
	}
}

// Open opens the camera and applies the configured resolution and rate.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.size.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.size.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Read reads a single frame from the camera into dst.
func (c *cameraImpl) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return ErrCameraNotOpen
	}

	if ok := c.capture.Read(dst); !ok {
		return errors.New("failed to read frame from camera")
	}

	if dst.Empty() {
		return errors.New("captured frame is empty")
	}

	return nil
}

// SetResolution sets the requested capture size. It applies immediately
// when the camera is open.
func (c *cameraImpl) SetResolution(size Size) {
	if size.Width <= 0 || size.Height <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.size = size
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFrameWidth, float64(size.Width))
		c.capture.Set(gocv.VideoCaptureFrameHeight, float64(size.Height))
	}
}

// Resolution returns the requested capture size.
func (c *cameraImpl) Resolution() Size {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// SupportedResolutions asks the driver for each candidate and keeps the
// sizes it reports back. The configured size is restored afterwards.
func (c *cameraImpl) SupportedResolutions(candidates []Size) []Size {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	seen := make(map[Size]bool)
	var out []Size
	for _, s := range candidates {
		c.capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
		c.capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
		got := Size{
			Width:  int(c.capture.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(c.capture.Get(gocv.VideoCaptureFrameHeight)),
		}
		if got.Width > 0 && got.Height > 0 && !seen[got] {
			seen[got] = true
			out = append(out, got)
		}
	}

	c.capture.Set(gocv.VideoCaptureFrameWidth, float64(c.size.Width))
	c.capture.Set(gocv.VideoCaptureFrameHeight, float64(c.size.Height))
	return out
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
