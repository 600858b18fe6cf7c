package pipeline

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// GovernorConfig tunes the adaptive quality loop. Raise and lower bounds are
// deliberately far apart so the knob does not oscillate.
type GovernorConfig struct {
	// WindowSize is how many latency samples feed each decision.
	WindowSize int

	// UpperBound lowers quality when the window mean exceeds it.
	UpperBound time.Duration

	// LowerBound raises quality when the window mean falls below it.
	LowerBound time.Duration

	// Step is the quality change applied per adjustment.
	Step float64

	// MinQuality and MaxQuality clamp the knob.
	MinQuality float64
	MaxQuality float64
}

// DefaultGovernorConfig returns bounds tuned for an interactive frame rate.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		WindowSize: 8,
		UpperBound: 400 * time.Millisecond,
		LowerBound: 150 * time.Millisecond,
		Step:       0.15,
		MinQuality: 0.1,
		MaxQuality: 1.0,
	}
}

// Governor watches rolling per-frame latency and trades segmentation quality
// for speed under load. It never blocks the pipeline: Observe does a bounded
// amount of arithmetic and Quality is a single atomic load.
type Governor struct {
	cfg  GovernorConfig
	sink QualitySink // may be nil

	quality atomic.Uint64 // float64 bits

	mu     sync.Mutex
	window []float64 // seconds
}

// NewGovernor creates a governor starting at maximum quality. The sink, when
// present, is notified of every adjustment.
func NewGovernor(cfg GovernorConfig, sink QualitySink) *Governor {
	g := &Governor{
		cfg:    cfg,
		sink:   sink,
		window: make([]float64, 0, cfg.WindowSize),
	}
	g.quality.Store(math.Float64bits(cfg.MaxQuality))
	return g
}

// Quality returns the current knob value in [MinQuality, MaxQuality].
func (g *Governor) Quality() float64 {
	return math.Float64frombits(g.quality.Load())
}

// AverageLatency returns the mean of the current sample window.
func (g *Governor) AverageLatency() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.window) == 0 {
		return 0
	}
	return time.Duration(stat.Mean(g.window, nil) * float64(time.Second))
}

// Observe records one end-to-end frame latency and adjusts the knob when a
// full window agrees. The window restarts after every adjustment so the new
// setting gets a clean measurement.
func (g *Governor) Observe(d time.Duration) {
	g.mu.Lock()

	g.window = append(g.window, d.Seconds())
	if len(g.window) < g.cfg.WindowSize {
		g.mu.Unlock()
		return
	}

	mean := stat.Mean(g.window, nil)
	q := g.Quality()
	adjusted := false

	switch {
	case mean > g.cfg.UpperBound.Seconds() && q > g.cfg.MinQuality:
		q = math.Max(g.cfg.MinQuality, q-g.cfg.Step)
		adjusted = true
	case mean < g.cfg.LowerBound.Seconds() && q < g.cfg.MaxQuality:
		q = math.Min(g.cfg.MaxQuality, q+g.cfg.Step)
		adjusted = true
	}

	if adjusted {
		g.quality.Store(math.Float64bits(q))
		g.window = g.window[:0]
	} else {
		// Dead band: slide the window
		copy(g.window, g.window[1:])
		g.window = g.window[:len(g.window)-1]
	}
	g.mu.Unlock()

	if adjusted && g.sink != nil {
		g.sink.SetQuality(q)
	}
}
