package gpu_test

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/gpu/soft"
)

const vertexSrc = "attribute vec2 aPosition; void main() {}"
const fragmentSrc = "void main() {}"

func solid(c [4]float32) gpu.Kernel {
	return func(gpu.Env, float32, float32) [4]float32 { return c }
}

func newSurface(t *testing.T, w, h int) (*gpu.Surface, *soft.Device) {
	t.Helper()
	s, err := gpu.NewSurface(soft.Backend{}, w, h)
	if err != nil {
		t.Fatalf("NewSurface() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Destroy() })
	return s, s.Device().(*soft.Device)
}

func TestNewSurface(t *testing.T) {
	s, _ := newSurface(t, 4, 2)
	if w, h := s.Size(); w != 4 || h != 2 {
		t.Errorf("Size() = %dx%d, want 4x2", w, h)
	}
	if !s.Valid() {
		t.Error("Valid() = false after creation")
	}
	if err := s.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if s.Valid() {
		t.Error("Valid() = true after Destroy")
	}
	if err := s.Destroy(); err != nil {
		t.Errorf("second Destroy() error = %v", err)
	}
	if err := s.MakeCurrent(); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("MakeCurrent() after Destroy error = %v, want ErrReleased", err)
	}
}

func TestNewSurfaceErrors(t *testing.T) {
	tests := []struct {
		name string
		b    gpu.Backend
		w, h int
	}{
		{"nil backend", nil, 4, 4},
		{"zero width", soft.Backend{}, 0, 4},
		{"negative height", soft.Backend{}, 4, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gpu.NewSurface(tt.b, tt.w, tt.h)
			if !errors.Is(err, gpu.ErrContextInit) {
				t.Errorf("NewSurface() error = %v, want ErrContextInit", err)
			}
		})
	}
}

func TestCompileProgramFailuresLeaveNothing(t *testing.T) {
	s, dev := newSurface(t, 2, 2)

	tests := []struct {
		name    string
		src     gpu.ProgramSource
		compile bool
	}{
		{"empty vertex", gpu.ProgramSource{Name: "bad", Fragment: fragmentSrc, Kernel: solid([4]float32{})}, true},
		{"fragment without main", gpu.ProgramSource{Name: "bad", Vertex: vertexSrc, Fragment: "precision mediump float;", Kernel: solid([4]float32{})}, true},
		{"no kernel", gpu.ProgramSource{Name: "bad", Vertex: vertexSrc, Fragment: fragmentSrc}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gpu.CompileProgram(s.Device(), tt.src)
			if tt.compile {
				var ce *gpu.ShaderCompileError
				if !errors.As(err, &ce) {
					t.Fatalf("error = %v, want *ShaderCompileError", err)
				}
				if ce.Program != "bad" {
					t.Errorf("Program = %q, want bad", ce.Program)
				}
			} else {
				var le *gpu.ShaderLinkError
				if !errors.As(err, &le) {
					t.Fatalf("error = %v, want *ShaderLinkError", err)
				}
			}
			if sh, pr, _, _ := dev.Live(); sh != 0 || pr != 0 {
				t.Errorf("live shaders=%d programs=%d after failure, want 0", sh, pr)
			}
		})
	}
}

func TestDrawAndRead(t *testing.T) {
	s, dev := newSurface(t, 3, 2)
	d := s.Device()

	prog, err := gpu.CompileProgram(d, gpu.ProgramSource{
		Name:     "solid",
		Vertex:   vertexSrc,
		Fragment: fragmentSrc,
		Kernel:   solid([4]float32{1, 0.5, 0, 1}),
	})
	if err != nil {
		t.Fatalf("CompileProgram() error = %v", err)
	}
	fb, err := gpu.NewFramebuffer(d, 3, 2)
	if err != nil {
		t.Fatalf("NewFramebuffer() error = %v", err)
	}

	if err := fb.Bind(); err != nil {
		t.Fatal(err)
	}
	if err := prog.Use(); err != nil {
		t.Fatal(err)
	}
	if err := prog.Draw(&gpu.FullScreenQuad); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	out := make([]byte, 3*2*4)
	if err := fb.ReadRGBA(out); err != nil {
		t.Fatalf("ReadRGBA() error = %v", err)
	}
	for i := 0; i < len(out); i += 4 {
		if out[i] != 255 || out[i+1] != 128 || out[i+2] != 0 || out[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want [255 128 0 255]", i/4, out[i:i+4])
		}
	}
	if dev.Draws() != 1 {
		t.Errorf("Draws() = %d, want 1", dev.Draws())
	}

	_ = prog.Delete()
	_ = fb.Delete()
	if err := prog.Draw(&gpu.FullScreenQuad); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("Draw() after Delete error = %v, want ErrReleased", err)
	}
	if err := fb.ReadRGBA(out); !errors.Is(err, gpu.ErrReleased) {
		t.Errorf("ReadRGBA() after Delete error = %v, want ErrReleased", err)
	}
	if _, pr, tx, fbs := dev.Live(); pr != 0 || tx != 0 || fbs != 0 {
		t.Errorf("live programs=%d textures=%d framebuffers=%d, want 0", pr, tx, fbs)
	}
}

func TestTextureUploadSize(t *testing.T) {
	s, _ := newSurface(t, 2, 2)
	tex, err := gpu.NewTexture(s.Device(), gpu.Target2D, gpu.FormatLuminanceAlpha, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := tex.Upload(make([]byte, 7), 2, 2); err == nil {
		t.Error("Upload() with short data succeeded")
	}
	if err := tex.Upload(make([]byte, 8), 2, 2); err != nil {
		t.Errorf("Upload() error = %v", err)
	}
	if tex.Handle() == 0 {
		t.Error("Handle() = 0 for live texture")
	}
	_ = tex.Delete()
	if tex.Handle() != 0 {
		t.Error("Handle() != 0 after Delete")
	}
}

func TestNotCurrent(t *testing.T) {
	s, dev := newSurface(t, 2, 2)
	if err := dev.ReleaseCurrent(); err != nil {
		t.Fatal(err)
	}
	if _, err := gpu.NewTexture(s.Device(), gpu.Target2D, gpu.FormatRGBA, 2, 2); !errors.Is(err, gpu.ErrNotCurrent) {
		t.Errorf("NewTexture() while not current error = %v, want ErrNotCurrent", err)
	}
}

func TestStackReleasesInReverse(t *testing.T) {
	var order []int
	var st gpu.Stack
	boom := errors.New("boom")
	st.Push(func() error { order = append(order, 1); return nil })
	st.Push(func() error { order = append(order, 2); return boom })
	st.Push(func() error { order = append(order, 3); return nil })

	err := st.Release()
	if !errors.Is(err, boom) {
		t.Errorf("Release() error = %v, want boom", err)
	}
	want := []int{3, 2, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d after Release", st.Len())
	}
	if err := st.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
