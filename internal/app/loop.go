package app

import (
	"errors"
	"runtime/debug"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/repack"
)

// pollInterval is the pause after a read that produced no frame.
const pollInterval = 2 * time.Millisecond

// loop runs on the worker thread until the running flag is cleared. The flag
// is checked before each frame, so a frame already in progress completes.
func (a *App) loop(r *run) {
	defer close(r.loopDone)

	for a.running.Load() {
		a.step(r)
	}
}

// step processes one frame. A panic fails that frame and the loop goes on.
func (a *App) step(r *run) {
	defer func() {
		if p := recover(); p != nil {
			a.counters.failed.Add(1)
			a.log.Error("frame panic", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	if r.yuv != nil {
		a.stepYUV(r)
	} else {
		a.stepTexture(r)
	}
}

func (a *App) stepYUV(r *run) {
	f, err := r.yuv.NextFrame()
	if err != nil {
		a.readError(err)
		return
	}
	pix, err := a.yuvConv.Convert(f)
	if err != nil {
		a.frameError(err, f.Timestamp)
		return
	}
	a.submit(r, pix, f.Width, f.Height, f.Timestamp)
}

func (a *App) stepTexture(r *run) {
	ts, err := r.tex.Update()
	if err != nil {
		a.readError(err)
		return
	}
	pix, err := a.extConv.Convert()
	if err != nil {
		a.frameError(err, ts)
		return
	}
	w, h := a.extConv.Size()
	a.submit(r, pix, w, h, ts)
}

func (a *App) readError(err error) {
	if !errors.Is(err, capture.ErrNoFrame) {
		a.counters.failed.Add(1)
		a.log.Warn("read frame", "err", err)
	}
	time.Sleep(pollInterval)
}

func (a *App) frameError(err error, ts int64) {
	if errors.Is(err, repack.ErrMalformedPlaneLayout) {
		a.counters.skipped.Add(1)
		a.log.Warn("skipping malformed frame", "frame", ts, "err", err)
		return
	}
	a.counters.failed.Add(1)
	if fatalGPU(err) {
		a.fail(err)
		return
	}
	a.log.Error("convert frame", "frame", ts, "err", err)
}

// fatalGPU reports whether err leaves the converter unusable.
func fatalGPU(err error) bool {
	var compileErr *gpu.ShaderCompileError
	var linkErr *gpu.ShaderLinkError
	return errors.Is(err, gpu.ErrContextInit) ||
		errors.Is(err, gpu.ErrFramebufferIncomplete) ||
		errors.As(err, &compileErr) ||
		errors.As(err, &linkErr)
}

// fail halts the loop after an unrecoverable converter error. It runs on the
// worker thread. The error is kept until the next Start and returned by Stop.
func (a *App) fail(err error) {
	a.fault.Store(&err)
	a.running.Store(false)
	a.log.Error("converter failed, pipeline halted", "err", err)

	if a.yuvConv != nil {
		a.yuvConv.Release()
		a.yuvConv = nil
	}
	if a.extConv != nil {
		a.extConv.Release()
		a.extConv = nil
	}
	a.publish(State{Error: err.Error()})
}

// submit hands the converted frame to the engine. Session timestamps are in
// nanoseconds; the engine wants strictly increasing milliseconds.
func (a *App) submit(r *run, pix []byte, w, h int, tsNanos int64) {
	a.counters.converted.Add(1)

	ts := tsNanos / int64(time.Millisecond)
	if ts <= r.lastTS {
		ts = r.lastTS + 1
	}
	r.lastTS = ts

	if err := r.engine.Submit(detector.Image{Pix: pix, Width: w, Height: h}, ts); err != nil {
		a.counters.failed.Add(1)
		a.log.Warn("submit frame", "frame", ts, "err", err)
	}
}

// consume reads results in delivery order, updates the pinch stabilizer and
// publishes the resulting state.
func (a *App) consume(r *run) {
	defer close(r.consumed)

	for res := range r.engine.Results() {
		if res.Err != nil || a.fault.Load() != nil {
			continue
		}
		t := a.tuning.Load()
		if err := r.stab.SetThresholds(t.pinch); err != nil {
			a.log.Error("pinch thresholds", "err", err)
		}

		metric, ok := gesture.PinchMetric(res.Hands, res.Width, res.Height, t.pinch)
		was := r.stab.Active()
		pinching := r.stab.Update(metric, ok)
		if pinching && !was {
			a.counters.pinches.Add(1)
			a.log.Debug("pinch started", "metric", metric, "frame", res.Timestamp)
		}

		gestures := res.Gestures
		if len(gestures) == 0 && len(res.Hands) > 0 {
			gestures = a.classifier.Load().Classify(res.Hands)
		}
		top, fist := t.gate.Check(gestures)

		a.publish(State{
			Running:     true,
			Pinching:    pinching,
			Metric:      metric,
			HasMetric:   ok,
			Hands:       len(res.Hands),
			Gesture:     top.Name,
			Score:       top.Score,
			Fist:        fist,
			InferenceMs: float64(res.InferenceTime.Microseconds()) / 1000,
			Timestamp:   res.Timestamp,
		})
	}
}
