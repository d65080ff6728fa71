package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/repack"
)

// I420Planes returns plane layouts for a tightly packed I420 buffer of the
// given size: full resolution Y followed by U then V at half resolution.
func I420Planes(data []byte, width, height int) (y, u, v repack.Plane) {
	cw, ch := width/2, height/2
	y = repack.Plane{Data: data, Layout: repack.PlaneDescriptor{Offset: 0, RowStride: width, PixelStride: 1}}
	u = repack.Plane{Data: data, Layout: repack.PlaneDescriptor{Offset: width * height, RowStride: cw, PixelStride: 1}}
	v = repack.Plane{Data: data, Layout: repack.PlaneDescriptor{Offset: width*height + cw*ch, RowStride: cw, PixelStride: 1}}
	return y, u, v
}

// CameraYUVSession converts BGR camera frames to I420 and hands them out as
// YUV frames.
type CameraYUVSession struct {
	camera Camera
	mu     sync.Mutex
	bgr    gocv.Mat
	yuv    gocv.Mat
	frame  YUVFrame
	start  time.Time
	open   bool
}

// NewCameraYUVSession wraps a camera.
func NewCameraYUVSession(camera Camera) *CameraYUVSession {
	return &CameraYUVSession{camera: camera}
}

// Start opens the camera.
func (s *CameraYUVSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	s.bgr = gocv.NewMat()
	s.yuv = gocv.NewMat()
	s.start = time.Now()
	s.open = true
	return nil
}

// Stop closes the camera and frees the frame buffers.
func (s *CameraYUVSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	s.bgr.Close()
	s.yuv.Close()
	return s.camera.Close()
}

// NextFrame reads and converts one frame. Odd frame sizes are cropped to
// even before conversion.
func (s *CameraYUVSession) NextFrame() (*YUVFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrSessionStopped
	}
	if err := s.camera.Read(&s.bgr); err != nil {
		return nil, err
	}

	w, h := s.bgr.Cols()&^1, s.bgr.Rows()&^1
	src := s.bgr
	if w != s.bgr.Cols() || h != s.bgr.Rows() {
		src = s.bgr.Region(image.Rect(0, 0, w, h))
		defer src.Close()
	}
	gocv.CvtColor(src, &s.yuv, gocv.ColorBGRToYUVI420)

	data, err := s.yuv.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("i420 data: %w", err)
	}
	s.frame.Width, s.frame.Height = w, h
	s.frame.Y, s.frame.U, s.frame.V = I420Planes(data, w, h)
	s.frame.Timestamp = time.Since(s.start).Nanoseconds()
	return &s.frame, nil
}

// CameraTextureSession converts BGR camera frames to RGBA and writes them
// into the registered texture on Update.
type CameraTextureSession struct {
	camera  Camera
	mu      sync.Mutex
	texture ExternalTexture
	bgr     gocv.Mat
	rgba    gocv.Mat
	start   time.Time
	open    bool
}

// NewCameraTextureSession wraps a camera.
func NewCameraTextureSession(camera Camera) *CameraTextureSession {
	return &CameraTextureSession{camera: camera}
}

// SetCameraTexture registers the texture Update writes into.
func (s *CameraTextureSession) SetCameraTexture(tex ExternalTexture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texture = tex
}

// Resume opens the camera.
func (s *CameraTextureSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	s.bgr = gocv.NewMat()
	s.rgba = gocv.NewMat()
	s.start = time.Now()
	s.open = true
	return nil
}

// Pause closes the camera.
func (s *CameraTextureSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	s.bgr.Close()
	s.rgba.Close()
	return s.camera.Close()
}

// Update reads one frame and uploads it.
func (s *CameraTextureSession) Update() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return 0, ErrSessionStopped
	}
	if s.texture == nil {
		return 0, ErrNoTexture
	}
	if err := s.camera.Read(&s.bgr); err != nil {
		return 0, err
	}
	gocv.CvtColor(s.bgr, &s.rgba, gocv.ColorBGRToRGBA)

	data, err := s.rgba.DataPtrUint8()
	if err != nil {
		return 0, fmt.Errorf("rgba data: %w", err)
	}
	if err := s.texture.Upload(data, s.rgba.Cols(), s.rgba.Rows()); err != nil {
		return 0, fmt.Errorf("upload camera image: %w", err)
	}
	return time.Since(s.start).Nanoseconds(), nil
}
