// Package app drives the pipeline: camera session, GPU conversion on a
// dedicated worker thread, asynchronous inference and the gesture state
// published to the UI.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/convert"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/gpu"
	"github.com/ayusman/mudra/internal/store"
)

// ErrNoSession is returned by Start when no session can be opened for the
// configured input mode.
var ErrNoSession = errors.New("no session for input mode")

// Config holds the collaborators of an App.
type Config struct {
	Backend  gpu.Backend
	Settings config.Settings
	Store    *store.Store // optional; persists settings, runs and templates

	// OpenYUV and OpenTexture create a session for a run. Only the one
	// matching Settings.Input is needed.
	OpenYUV     func(config.Settings) (capture.YUVSession, error)
	OpenTexture func(config.Settings) (capture.TextureSession, error)

	NewDetector func(detector.Config) (detector.Detector, error)

	// SwapChroma swaps the U and V planes for platforms that deliver them
	// in the other order.
	SwapChroma bool

	Logger *slog.Logger
}

type tuning struct {
	pinch gesture.PinchConfig
	gate  gesture.CategoryGate
}

func newTuning(s config.Settings) *tuning {
	return &tuning{pinch: s.Pinch(), gate: gesture.NewFistGate(s.GestureThreshold)}
}

// run is one Start..Stop cycle.
type run struct {
	id       string
	settings config.Settings
	yuv      capture.YUVSession
	tex      capture.TextureSession
	engine   *detector.AsyncEngine
	stab     *gesture.Stabilizer
	lastTS   int64 // worker only

	loopDone chan struct{}
	consumed chan struct{}
}

// App is the pipeline controller. Its methods are safe for concurrent use.
type App struct {
	cfg      Config
	log      *slog.Logger
	worker   *ThreadExecutor // every GPU call
	platform *ThreadExecutor // session lifecycle calls

	mu          sync.Mutex
	settings    config.Settings
	cur         *run
	engineStats detector.EngineStats
	lastRunID   string
	lastInput   config.InputMode

	running    atomic.Bool
	fault      atomic.Pointer[error] // fatal converter error of the current run
	tuning     atomic.Pointer[tuning]
	classifier atomic.Pointer[gesture.Classifier]
	counters   counters

	// Owned by the worker thread.
	yuvConv *convert.YUVConverter
	extConv *convert.ExternalConverter

	stateMu sync.Mutex
	state   State
	sinks   []StateSink
}

// New validates cfg and starts the worker and platform threads. The
// pipeline itself starts with Start.
func New(cfg Config) (*App, error) {
	if cfg.Backend == nil {
		return nil, errors.New("app: no gpu backend")
	}
	if cfg.NewDetector == nil {
		return nil, errors.New("app: no detector factory")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &App{
		cfg:      cfg,
		log:      logger.With("component", "app"),
		worker:   NewThreadExecutor("gpu"),
		platform: NewThreadExecutor("platform"),
		settings: cfg.Settings,
	}
	a.tuning.Store(newTuning(cfg.Settings))
	if err := a.LoadTemplates(); err != nil {
		a.worker.Close()
		a.platform.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return a, nil
}

// AddSink registers a receiver for published states.
func (a *App) AddSink(s StateSink) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.sinks = append(a.sinks, s)
}

// State returns the last published state.
func (a *App) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

func (a *App) publish(s State) {
	a.stateMu.Lock()
	a.state = s
	sinks := append([]StateSink(nil), a.sinks...)
	a.stateMu.Unlock()

	for _, sink := range sinks {
		sink.SetState(s)
	}
}

// Settings returns the current settings.
func (a *App) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Running reports whether the pipeline is started and has not halted on a
// converter error.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur != nil && a.fault.Load() == nil
}

// Err returns the error that halted the pipeline, if any. It is cleared by
// the next Start.
func (a *App) Err() error {
	if p := a.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Stats returns the counters of the current run, or of the last one when
// stopped.
func (a *App) Stats() Stats {
	a.mu.Lock()
	es, id, input := a.engineStats, a.lastRunID, a.lastInput
	running := a.cur != nil
	if running {
		es, id, input = a.cur.engine.Stats(), a.cur.id, a.cur.settings.Input
	}
	a.mu.Unlock()

	var msg string
	if err := a.Err(); err != nil {
		msg = err.Error()
		running = false
	}
	return Stats{
		RunID:     id,
		Input:     string(input),
		Running:   running,
		Error:     msg,
		Converted: a.counters.converted.Load(),
		Skipped:   a.counters.skipped.Load(),
		Failed:    a.counters.failed.Load(),
		Submitted: es.Submitted,
		Dropped:   es.Dropped,
		Detected:  es.Detected,
		Pinches:   a.counters.pinches.Load(),
	}
}

// LoadTemplates rebuilds the landmark classifier from the built-in fist
// template and the stored templates.
func (a *App) LoadTemplates() error {
	c := gesture.NewClassifier()
	if a.cfg.Store != nil {
		templates, err := a.cfg.Store.Templates().List()
		if err != nil {
			return err
		}
		for _, t := range templates {
			c.Matcher().AddTemplate(&gesture.Template{
				ID:        t.ID,
				Name:      t.Name,
				Landmarks: t.Landmarks,
				Tolerance: t.Tolerance,
			})
		}
	}
	a.classifier.Store(c)
	return nil
}

// Start opens a session, creates the inference engine and starts the frame
// loop on the worker thread. It does nothing when already started.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

func (a *App) startLocked() error {
	if a.cur != nil {
		if a.fault.Load() == nil {
			return nil
		}
		if err := a.stopLocked(true); err != nil {
			a.log.Info("cleared halted run", "err", err)
		}
	}
	a.fault.Store(nil)
	s := a.settings
	r := &run{
		settings: s,
		loopDone: make(chan struct{}),
		consumed: make(chan struct{}),
	}

	var err error
	switch s.Input {
	case config.InputYUV:
		if a.cfg.OpenYUV == nil {
			return fmt.Errorf("%w: %s", ErrNoSession, s.Input)
		}
		r.yuv, err = a.cfg.OpenYUV(s)
	case config.InputTexture:
		if a.cfg.OpenTexture == nil {
			return fmt.Errorf("%w: %s", ErrNoSession, s.Input)
		}
		r.tex, err = a.cfg.OpenTexture(s)
	}
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	if r.stab, err = gesture.NewStabilizer(s.Pinch()); err != nil {
		return err
	}
	det, used, err := a.newDetector(s)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	if used.Delegate != s.Delegate {
		r.settings, a.settings = used, used
		if a.cfg.Store != nil {
			if err := a.cfg.Store.Settings().Save(used); err != nil {
				a.log.Warn("save delegate fallback", "err", err)
			}
		}
	}
	r.engine = detector.NewAsyncEngine(det, a.log)

	if err := a.worker.Do(func() error { return a.prepare(r) }); err != nil {
		if cerr := r.engine.Close(); cerr != nil {
			a.log.Warn("close engine", "err", cerr)
		}
		return err
	}

	a.counters.reset()
	a.recordStart(r)
	go a.consume(r)

	a.running.Store(true)
	if err := a.worker.Go(func() { a.loop(r) }); err != nil {
		a.running.Store(false)
		close(r.loopDone)
		a.cur = r
		return errors.Join(err, a.stopLocked(true))
	}
	a.cur = r
	a.log.Info("pipeline started", "input", s.Input, "backend", a.cfg.Backend.Name(), "run_id", r.id)
	return nil
}

// newDetector creates the detector for s. When the GPU delegate cannot start
// it retries on the CPU and returns the settings actually used.
func (a *App) newDetector(s config.Settings) (detector.Detector, config.Settings, error) {
	det, err := a.cfg.NewDetector(s.Detector())
	if err == nil || s.Delegate != detector.DelegateGPU {
		return det, s, err
	}
	a.log.Warn("gpu delegate failed, falling back to cpu", "err", err)
	s.Delegate = detector.DelegateCPU
	det, cpuErr := a.cfg.NewDetector(s.Detector())
	if cpuErr != nil {
		return nil, s, errors.Join(err, cpuErr)
	}
	return det, s, nil
}

// prepare runs on the worker thread. For texture input it builds the
// converter, registers its texture with the session and then blocks until
// the platform thread has resumed the session, so the loop never samples an
// unregistered texture.
func (a *App) prepare(r *run) error {
	s := r.settings
	if r.yuv != nil {
		if a.yuvConv == nil {
			a.yuvConv = convert.NewYUVConverter(a.cfg.Backend, convert.Options{
				ColorRange: s.ColorRange,
				SwapChroma: a.cfg.SwapChroma,
				Logger:     a.log,
			})
		}
		if err := a.platform.Do(r.yuv.Start); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		return nil
	}

	if a.extConv == nil {
		c, err := convert.NewExternalConverter(a.cfg.Backend, s.Target.Width, s.Target.Height, a.log)
		if err != nil {
			return fmt.Errorf("external converter: %w", err)
		}
		a.extConv = c
	}
	r.tex.SetCameraTexture(a.extConv.Texture())
	if err := a.platform.Do(r.tex.Resume); err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	return nil
}

// Stop clears the running flag, waits for the in-flight frame, stops the
// session and the engine. Converters are kept for the next Start.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(false)
}

// Pause stops the pipeline and releases all GPU state.
func (a *App) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(true)
}

// Resume starts the pipeline again after Pause.
func (a *App) Resume() error {
	return a.Start()
}

func (a *App) stopLocked(release bool) error {
	r := a.cur
	if r == nil {
		if release {
			return a.releaseConverters()
		}
		return nil
	}

	a.running.Store(false)
	<-r.loopDone

	var errs []error
	if err := a.Err(); err != nil {
		errs = append(errs, err)
	}
	if r.yuv != nil {
		errs = append(errs, a.platform.Do(r.yuv.Stop))
	} else {
		errs = append(errs, a.platform.Do(r.tex.Pause))
	}
	errs = append(errs, r.engine.Close())
	<-r.consumed

	a.engineStats = r.engine.Stats()
	a.lastRunID, a.lastInput = r.id, r.settings.Input
	a.recordFinish(r)
	if release {
		errs = append(errs, a.releaseConverters())
	}
	a.cur = nil

	var final State
	if err := a.Err(); err != nil {
		final.Error = err.Error()
	}
	a.publish(final)
	a.log.Info("pipeline stopped", "run_id", r.id, "release", release)
	return errors.Join(errs...)
}

func (a *App) releaseConverters() error {
	return a.worker.Do(func() error {
		if a.yuvConv != nil {
			a.yuvConv.Release()
			a.yuvConv = nil
		}
		if a.extConv != nil {
			a.extConv.Release()
			a.extConv = nil
		}
		return nil
	})
}

// ApplySettings validates, persists and applies next. Threshold changes take
// effect on the next result; anything else tears the pipeline down and
// rebuilds it, restarting it if it was running.
func (a *App) ApplySettings(next config.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.Store != nil {
		if err := a.cfg.Store.Settings().Save(next); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	prev := a.settings
	a.settings = next
	a.tuning.Store(newTuning(next))
	if !prev.NeedsRebuild(next) {
		return nil
	}

	wasRunning := a.cur != nil && a.fault.Load() == nil
	a.log.Info("settings changed, rebuilding", "running", wasRunning)
	if err := a.stopLocked(true); err != nil {
		a.log.Warn("stop for rebuild", "err", err)
	}
	if wasRunning {
		return a.startLocked()
	}
	return nil
}

// Adjust steps one knob and applies the result.
func (a *App) Adjust(k config.Knob, steps int) (config.Settings, error) {
	next, err := a.Settings().Adjust(k, steps)
	if err != nil {
		return config.Settings{}, err
	}
	if err := a.ApplySettings(next); err != nil {
		return config.Settings{}, err
	}
	return next, nil
}

// Close stops the pipeline, frees GPU state and ends both threads.
func (a *App) Close() error {
	a.mu.Lock()
	err := a.stopLocked(true)
	a.mu.Unlock()

	a.worker.Close()
	a.platform.Close()
	return err
}

func (a *App) recordStart(r *run) {
	if a.cfg.Store == nil {
		return
	}
	size := r.settings.Resolution
	if r.tex != nil {
		size = r.settings.Target
	}
	rec, err := a.cfg.Store.Runs().Start(string(r.settings.Input), a.cfg.Backend.Name(), size.Width, size.Height)
	if err != nil {
		a.log.Warn("record run start", "err", err)
		return
	}
	r.id = rec.ID
}

func (a *App) recordFinish(r *run) {
	if a.cfg.Store == nil || r.id == "" {
		return
	}
	es := r.engine.Stats()
	counts := store.RunCounts{
		Converted: a.counters.converted.Load(),
		Skipped:   a.counters.skipped.Load(),
		Failed:    a.counters.failed.Load(),
		Detected:  es.Detected,
		Pinches:   a.counters.pinches.Load(),
	}
	if err := a.cfg.Store.Runs().Finish(r.id, counts); err != nil {
		a.log.Warn("record run finish", "run_id", r.id, "err", err)
	}
}
