package app

import "sync/atomic"

// State is what the UI shows for the latest inference result.
type State struct {
	Running     bool    `json:"running"`
	Pinching    bool    `json:"pinching"`
	Metric      float64 `json:"metric"`     // pinch ratio, 0 when no hand qualified
	HasMetric   bool    `json:"has_metric"` // whether Metric came from this result
	Hands       int     `json:"hands"`
	Gesture     string  `json:"gesture"` // top category across hands
	Score       float64 `json:"score"`
	Fist        bool    `json:"fist"` // top category is a closed fist above the threshold
	InferenceMs float64 `json:"inference_ms"`
	Timestamp   int64   `json:"timestamp"`       // milliseconds, as submitted
	Error       string  `json:"error,omitempty"` // set when a converter error halted the pipeline
}

// StateSink receives every published State. SetState must not block.
type StateSink interface {
	SetState(State)
}

// SinkFunc adapts a function to StateSink.
type SinkFunc func(State)

// SetState calls f.
func (f SinkFunc) SetState(s State) { f(s) }

// Stats counts frames through the current run.
type Stats struct {
	RunID     string `json:"run_id,omitempty"`
	Input     string `json:"input"`
	Running   bool   `json:"running"`
	Converted uint64 `json:"converted"`
	Skipped   uint64 `json:"skipped"` // malformed frames
	Failed    uint64 `json:"failed"`  // conversion or submit errors
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"` // replaced while inference was busy
	Detected  uint64 `json:"detected"`
	Pinches   uint64 `json:"pinches"` // inactive to active transitions
	Error     string `json:"error,omitempty"`
}

type counters struct {
	converted atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	pinches   atomic.Uint64
}

func (c *counters) reset() {
	c.converted.Store(0)
	c.skipped.Store(0)
	c.failed.Store(0)
	c.pinches.Store(0)
}
