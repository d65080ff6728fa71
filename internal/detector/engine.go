package detector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/repack"
)

var (
	// ErrEngineClosed is returned by Submit after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrTimestampOrder is returned when timestamps do not increase.
	ErrTimestampOrder = errors.New("timestamp not increasing")
)

// Engine runs detection asynchronously. Submit never blocks on inference;
// results arrive on Results in submission order.
type Engine interface {
	Submit(img Image, timestampMs int64) error
	Results() <-chan Result
	Close() error
}

// EngineStats counts what happened to submitted frames.
type EngineStats struct {
	Submitted uint64
	Dropped   uint64
	Detected  uint64
	Failed    uint64
}

// AsyncEngine feeds a Detector from a single-slot mailbox. A frame submitted
// while another is waiting replaces it; the replaced frame is dropped.
// Frame pixels are copied into one of two reused buffers, so the caller may
// reuse its image as soon as Submit returns.
type AsyncEngine struct {
	det Detector
	log *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
	closed  bool
	slot    repack.Buffer
	work    repack.Buffer
	pw, ph  int
	pts     int64
	lastTS  int64
	hasTS   bool
	stats   EngineStats

	results chan Result
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewAsyncEngine starts the worker goroutine. The engine owns det and
// closes it on Close.
func NewAsyncEngine(det Detector, logger *slog.Logger) *AsyncEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &AsyncEngine{
		det:     det,
		log:     logger.With("component", "engine"),
		results: make(chan Result, 4),
		done:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(1)
	go e.run()
	return e
}

// Submit queues img for detection.
func (e *AsyncEngine) Submit(img Image, timestampMs int64) error {
	if err := img.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.hasTS && timestampMs <= e.lastTS {
		return fmt.Errorf("%w: %d after %d", ErrTimestampOrder, timestampMs, e.lastTS)
	}
	e.lastTS, e.hasTS = timestampMs, true

	if e.pending {
		e.stats.Dropped++
	}
	copy(e.slot.Ensure(len(img.Pix)), img.Pix)
	e.pw, e.ph, e.pts = img.Width, img.Height, timestampMs
	e.pending = true
	e.stats.Submitted++
	e.cond.Signal()
	return nil
}

// Results returns the channel results are delivered on. It is closed after
// Close.
func (e *AsyncEngine) Results() <-chan Result {
	return e.results
}

// Stats returns a snapshot of the counters.
func (e *AsyncEngine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close stops the worker, waits for the in-flight detection and closes the
// detector.
func (e *AsyncEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
	close(e.results)
	return e.det.Close()
}

// next blocks until a frame is pending and swaps it into the work buffer.
func (e *AsyncEngine) next() (Image, int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for !e.pending && !e.closed {
		e.cond.Wait()
	}
	if e.closed {
		return Image{}, 0, false
	}
	e.slot, e.work = e.work, e.slot
	e.pending = false
	return Image{Pix: e.work.Bytes(), Width: e.pw, Height: e.ph}, e.pts, true
}

func (e *AsyncEngine) run() {
	defer e.wg.Done()

	for {
		img, ts, ok := e.next()
		if !ok {
			return
		}

		start := time.Now()
		det, err := e.det.Detect(img)
		res := Result{
			Detection:     det,
			Timestamp:     ts,
			Width:         img.Width,
			Height:        img.Height,
			InferenceTime: time.Since(start),
			Err:           err,
		}

		e.mu.Lock()
		if err != nil {
			e.stats.Failed++
		} else {
			e.stats.Detected++
		}
		e.mu.Unlock()
		if err != nil {
			e.log.Warn("detect failed", "timestamp", ts, "err", err)
		}

		select {
		case e.results <- res:
		case <-e.done:
			return
		}
	}
}
