package convert

import (
	"testing"

	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/gpu/soft"
)

// threadContexts models one thread with several GL contexts: only the last
// one made current receives calls. Deletes issued to any other device are
// counted as misdirected.
type threadContexts struct {
	current     *threadDevice
	misdirected int
}

type threadDevice struct {
	*soft.Device
	thread *threadContexts
}

func (d *threadDevice) MakeCurrent() error {
	if err := d.Device.MakeCurrent(); err != nil {
		return err
	}
	d.thread.current = d
	return nil
}

func (d *threadDevice) ReleaseCurrent() error {
	if d.thread.current == d {
		d.thread.current = nil
	}
	return d.Device.ReleaseCurrent()
}

func (d *threadDevice) deleting() {
	if d.thread.current != d {
		d.thread.misdirected++
	}
}

func (d *threadDevice) DeleteShader(id uint32)      { d.deleting(); d.Device.DeleteShader(id) }
func (d *threadDevice) DeleteProgram(id uint32)     { d.deleting(); d.Device.DeleteProgram(id) }
func (d *threadDevice) DeleteTexture(id uint32)     { d.deleting(); d.Device.DeleteTexture(id) }
func (d *threadDevice) DeleteFramebuffer(id uint32) { d.deleting(); d.Device.DeleteFramebuffer(id) }

type threadBackend struct {
	thread threadContexts
}

func (*threadBackend) Name() string { return "thread" }

func (b *threadBackend) Open(cfg gpu.Config) (gpu.Device, error) {
	dev, err := soft.Backend{}.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &threadDevice{Device: dev.(*soft.Device), thread: &b.thread}, nil
}

func TestTeardownTargetsOwnContext(t *testing.T) {
	t.Run("yuv", func(t *testing.T) {
		b := &threadBackend{}
		first := NewYUVConverter(b, Options{})
		second := NewYUVConverter(b, Options{})
		defer second.Release()

		if _, err := first.Convert(uniformFrame(4, 4, 128, 128, 128)); err != nil {
			t.Fatal(err)
		}
		// The second converter leaves its own context current
		if _, err := second.Convert(uniformFrame(4, 4, 128, 128, 128)); err != nil {
			t.Fatal(err)
		}

		first.Release()
		if b.thread.misdirected != 0 {
			t.Errorf("%d deletes went to another context", b.thread.misdirected)
		}
		if _, err := second.Convert(uniformFrame(4, 4, 128, 128, 128)); err != nil {
			t.Errorf("second converter broken by first Release: %v", err)
		}
	})

	t.Run("external", func(t *testing.T) {
		b := &threadBackend{}
		first, err := NewExternalConverter(b, 4, 4, nil)
		if err != nil {
			t.Fatal(err)
		}
		second, err := NewExternalConverter(b, 4, 4, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer second.Release()

		first.Release()
		if b.thread.misdirected != 0 {
			t.Errorf("%d deletes went to another context", b.thread.misdirected)
		}
	})
}
