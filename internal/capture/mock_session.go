package capture

import (
	"sync"
	"time"
)

// MockYUVSession plays back YUV frames for testing.
type MockYUVSession struct {
	mu      sync.Mutex
	frames  []*YUVFrame
	index   int
	loop    bool
	running bool
	starts  int
	stops   int
	delay   time.Duration
}

// NewMockYUVSession returns a session serving frames in order.
func NewMockYUVSession(frames []*YUVFrame, loop bool) *MockYUVSession {
	return &MockYUVSession{frames: frames, loop: loop}
}

// SetDelay makes NextFrame sleep before returning, like a camera pacing
// frames.
func (s *MockYUVSession) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *MockYUVSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.index = 0
	s.starts++
	return nil
}

func (s *MockYUVSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.stops++
	return nil
}

func (s *MockYUVSession) NextFrame() (*YUVFrame, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSessionStopped
	}
	if len(s.frames) == 0 {
		return nil, ErrNoFrame
	}
	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, ErrNoFrame
		}
		s.index = 0
	}
	f := s.frames[s.index]
	s.index++
	return f, nil
}

// Calls returns how often Start and Stop were called.
func (s *MockYUVSession) Calls() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

// MockTextureSession uploads fixed RGBA images into the registered texture.
type MockTextureSession struct {
	mu      sync.Mutex
	images  [][]byte
	size    Size
	index   int
	texture ExternalTexture
	running bool
	resumes int
	pauses  int
	ts      int64
}

// NewMockTextureSession returns a session cycling through RGBA images of
// the given size.
func NewMockTextureSession(images [][]byte, size Size) *MockTextureSession {
	return &MockTextureSession{images: images, size: size}
}

func (s *MockTextureSession) SetCameraTexture(tex ExternalTexture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texture = tex
}

// Texture returns the registered texture.
func (s *MockTextureSession) Texture() ExternalTexture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

func (s *MockTextureSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.resumes++
	return nil
}

func (s *MockTextureSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.pauses++
	return nil
}

func (s *MockTextureSession) Update() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0, ErrSessionStopped
	}
	if s.texture == nil {
		return 0, ErrNoTexture
	}
	if len(s.images) == 0 {
		return 0, ErrNoFrame
	}
	img := s.images[s.index%len(s.images)]
	s.index++
	if err := s.texture.Upload(img, s.size.Width, s.size.Height); err != nil {
		return 0, err
	}
	s.ts += int64(33 * time.Millisecond)
	return s.ts, nil
}

// Calls returns how often Resume and Pause were called.
func (s *MockTextureSession) Calls() (resumes, pauses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes, s.pauses
}
