package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wayfindr/go-wayfind/internal/log"
	"github.com/wayfindr/go-wayfind/pkg/grid"
	"github.com/wayfindr/go-wayfind/pkg/lanes"
	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/planner"
	"github.com/wayfindr/go-wayfind/pkg/steering"
)

// Config holds all scheduler tunables. Built once at startup from device
// probing and never mutated.
type Config struct {
	// TargetLabels are the object classes the user may navigate to.
	TargetLabels []string

	// MinInterval throttles admissions: frames arriving sooner than this
	// after the previous admission are dropped.
	MinInterval time.Duration

	// SegmentEvery is the segmentation skip threshold: with a cached mask,
	// segmentation runs only every N-th admitted frame.
	SegmentEvery int

	// Per-step timeouts. ColdStartGrace is added to the first call of each
	// inference step to absorb model warm-up.
	DetectTimeout  time.Duration
	SegmentTimeout time.Duration
	ColdStartGrace time.Duration

	// ErrorThreshold is how many consecutive failures force the stable
	// degraded command.
	ErrorThreshold int

	Grid     grid.Config
	Planner  planner.Config
	Steering steering.Config
	Governor GovernorConfig
}

// DefaultConfig returns scheduler settings for a capable device.
func DefaultConfig() Config {
	return Config{
		MinInterval:    100 * time.Millisecond,
		SegmentEvery:   5,
		DetectTimeout:  3 * time.Second,
		SegmentTimeout: 8 * time.Second,
		ColdStartGrace: 10 * time.Second,
		ErrorThreshold: 3,
		Grid:           grid.DefaultConfig(),
		Planner:        planner.DefaultConfig(),
		Steering:       steering.DefaultConfig(),
		Governor:       DefaultGovernorConfig(),
	}
}

// ConstrainedConfig returns settings for low-end or emulated devices:
// slower admission and more segmentation reuse.
func ConstrainedConfig() Config {
	cfg := DefaultConfig()
	cfg.MinInterval = 250 * time.Millisecond
	cfg.SegmentEvery = 8
	return cfg
}

// Deps are the collaborators injected into the scheduler. Detector,
// Segmenter, and Lanes are required; the rest are optional.
type Deps struct {
	Detector  Detector
	Segmenter Segmenter
	Lanes     *lanes.Lanes

	Directions DirectionProvider // off-screen guidance
	Bearings   BearingSource     // compass
	Sightings  SightingSink      // spatial memory updates
	Quality    QualitySink       // governor target, usually the segmenter

	Masks *mask.Pool // created when nil
}

// Health is the diagnostics snapshot exposed to the dashboard.
type Health struct {
	AverageLatency    time.Duration `json:"average_latency"`
	Quality           float64       `json:"quality"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	FramesProcessed   uint64        `json:"frames_processed"`
	FramesRejected    uint64        `json:"frames_rejected"`
	LastFrameID       string        `json:"last_frame_id"`
}

// Scheduler is the frame-admission and orchestration layer. One instance
// serves one camera stream; outputs are observed in admission order because
// only one frame is ever in flight.
type Scheduler struct {
	cfg   Config
	deps  Deps
	steer *steering.Controller
	plan  *planner.Planner
	gov   *Governor
	pool  *mask.Pool

	inFlight  atomic.Bool
	closed    atomic.Bool
	lastAdmit atomic.Int64 // unix nanos
	errCount  atomic.Int32
	labels    atomic.Value // []string

	processed atomic.Uint64
	rejected  atomic.Uint64
	lastFrame atomic.Value // string

	// Owned by the single in-flight frame; no locking needed.
	cachedMask   *mask.Mask
	segSkips     int
	firstDetect  bool
	firstSegment bool
}

// NewScheduler wires a scheduler from its collaborators.
func NewScheduler(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Detector == nil || deps.Segmenter == nil {
		return nil, errors.New("pipeline: detector and segmenter are required")
	}
	if deps.Lanes == nil {
		return nil, errors.New("pipeline: worker lanes are required")
	}
	if deps.Masks == nil {
		deps.Masks = mask.NewPool()
	}
	s := &Scheduler{
		cfg:          cfg,
		deps:         deps,
		steer:        steering.New(cfg.Steering),
		plan:         planner.New(cfg.Planner),
		gov:          NewGovernor(cfg.Governor, deps.Quality),
		pool:         deps.Masks,
		firstDetect:  true,
		firstSegment: true,
	}
	s.lastFrame.Store("")
	s.labels.Store(append([]string(nil), cfg.TargetLabels...))
	return s, nil
}

// TargetLabels returns the labels currently navigated to.
func (s *Scheduler) TargetLabels() []string {
	return s.labels.Load().([]string)
}

// SetTargetLabels switches the navigation target. Takes effect on the next
// admitted frame.
func (s *Scheduler) SetTargetLabels(labels []string) {
	s.labels.Store(append([]string(nil), labels...))
}

// Governor exposes the quality governor for diagnostics.
func (s *Scheduler) Governor() *Governor { return s.gov }

// Health returns the current diagnostics snapshot.
func (s *Scheduler) Health() Health {
	return Health{
		AverageLatency:    s.gov.AverageLatency(),
		Quality:           s.gov.Quality(),
		ConsecutiveErrors: int(s.errCount.Load()),
		FramesProcessed:   s.processed.Load(),
		FramesRejected:    s.rejected.Load(),
		LastFrameID:       s.lastFrame.Load().(string),
	}
}

// Close stops admitting frames and waits briefly for an in-flight frame to
// finish. The wait is bounded; an overrunning frame is abandoned.
func (s *Scheduler) Close() {
	s.closed.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for s.inFlight.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

// Submit runs one frame through the pipeline.
//
// Frames are rejected with ErrRejected when the throttle window has not
// elapsed or another frame is still processing; rejected frames should
// simply be dropped. Admitted frames always yield a NavigationOutput:
// failures inside the pipeline are converted to degraded commands, counted,
// and never escape as errors or panics.
func (s *Scheduler) Submit(ctx context.Context, frame Frame) (steering.Output, error) {
	if s.closed.Load() {
		return steering.Output{}, ErrShuttingDown
	}

	now := time.Now()
	if last := s.lastAdmit.Load(); last != 0 && now.Sub(time.Unix(0, last)) < s.cfg.MinInterval {
		s.rejected.Add(1)
		return steering.Output{}, ErrRejected
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.rejected.Add(1)
		return steering.Output{}, ErrRejected
	}
	// The admission slot is released on every exit path.
	defer s.inFlight.Store(false)

	s.lastAdmit.Store(now.UnixNano())
	s.lastFrame.Store(frame.ID)

	out := s.run(ctx, frame)
	s.processed.Add(1)
	return out, nil
}

// run executes the pipeline pass and folds every failure into a command.
func (s *Scheduler) run(ctx context.Context, frame Frame) steering.Output {
	start := time.Now()
	out, err := s.process(ctx, frame)
	s.gov.Observe(time.Since(start))

	if err == nil {
		s.errCount.Store(0)
		return out
	}

	n := int(s.errCount.Add(1))
	log.Warn("pipeline pass failed",
		"frame", frame.ID, "err", err, "consecutive", n)

	if n >= s.cfg.ErrorThreshold {
		// Sustained failure: one stable message, not a cascade.
		return steering.Output{Command: steering.CmdDegraded}
	}
	if errors.Is(err, ErrInferenceTimeout) {
		return steering.Output{Command: steering.CmdUnavailable}
	}
	return steering.Output{Command: steering.CmdProcessingError}
}

// process runs detection, segmentation, planning, and steering for one
// admitted frame. A panic anywhere inside is converted to an error.
func (s *Scheduler) process(ctx context.Context, frame Frame) (out steering.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: panic: %v", r)
		}
	}()

	labels := s.TargetLabels()

	best, err := s.detect(ctx, frame, labels)
	if err != nil {
		return steering.Output{}, err
	}

	m, err := s.segment(ctx, frame)
	if err != nil {
		return steering.Output{}, err
	}

	in := steering.Input{
		ImageWidth:  frame.Width,
		ImageHeight: frame.Height,
		Mask:        m,
	}

	heading, hasBearing := 0.0, false
	if s.deps.Bearings != nil {
		heading, hasBearing = s.deps.Bearings.CurrentAzimuth()
	}
	in.HasBearing = hasBearing

	if best == nil {
		if s.deps.Directions != nil {
			for _, label := range labels {
				if g, ok := s.deps.Directions.DirectionToObject(label); ok {
					in.Guidance = &g
					break
				}
			}
		}
		return s.steer.Decide(in), nil
	}

	tx, ty := best.Center()
	target := planner.Point{X: tx, Y: ty}
	in.Target = &target

	if hasBearing && s.deps.Sightings != nil {
		offset := (tx - float64(frame.Width)/2) / (float64(frame.Width) / 2) *
			s.cfg.Steering.HorizontalFOVDeg / 2
		s.deps.Sightings.Observe(best.Label, heading+offset)
	}

	if m != nil {
		path, planErr := s.planPath(m, frame, target)
		switch {
		case planErr == nil:
			in.GridPath = path
		case !hasBearing:
			// Pure-pursuit mode has nothing to steer by without a path.
			return steering.Output{Command: steering.CmdNoPath}, nil
		default:
			log.Debug("grid plan failed, steering on histogram",
				"frame", frame.ID, "err", planErr)
		}
	}

	return s.steer.Decide(in), nil
}

// planPath builds the occupancy grid and searches it. Grid and search
// failures surface as stable commands upstream, not errors.
func (s *Scheduler) planPath(m *mask.Mask, frame Frame, target planner.Point) (planner.Path, error) {
	g, err := grid.Build(m, frame.Width, frame.Height, s.cfg.Grid)
	if err != nil {
		return nil, err
	}
	user := s.steer.UserPoint(frame.Width, frame.Height)
	return s.plan.Plan(g, user, target)
}

// detect runs object detection on the ML lane under the step timeout and
// returns the best detection of a target label, or nil when none was seen.
func (s *Scheduler) detect(ctx context.Context, frame Frame, labels []string) (*Detection, error) {
	timeout := s.cfg.DetectTimeout
	if s.firstDetect {
		timeout += s.cfg.ColdStartGrace
		s.firstDetect = false
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dets []Detection
	err := s.deps.Lanes.RunML(dctx, func() error {
		var derr error
		dets, derr = s.deps.Detector.Detect(frame, labels)
		return derr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, stageErr("detect", ErrInferenceTimeout)
		}
		return nil, stageErr("detect", fmt.Errorf("%w: %v", ErrInferenceFailure, err))
	}
	return SelectBest(dets), nil
}

// segment returns the walkability mask for this frame. Segmentation is the
// most expensive step, so with a cached mask it runs only every N-th frame;
// on failure the cache papers over the gap when it can.
func (s *Scheduler) segment(ctx context.Context, frame Frame) (*mask.Mask, error) {
	if s.cachedMask != nil && s.segSkips < s.cfg.SegmentEvery {
		s.segSkips++
		return s.cachedMask, nil
	}

	timeout := s.cfg.SegmentTimeout
	if s.firstSegment {
		timeout += s.cfg.ColdStartGrace
		s.firstSegment = false
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var m *mask.Mask
	err := s.deps.Lanes.RunML(sctx, func() error {
		var serr error
		m, serr = s.deps.Segmenter.SegmentFloor(frame)
		return serr
	})
	if err != nil || m == nil {
		if s.cachedMask != nil {
			log.Warn("segmentation failed, reusing cached mask",
				"frame", frame.ID, "err", err)
			// Keep the counter saturated so the next admitted frame
			// retries instead of riding the stale mask for a full cycle.
			s.segSkips = s.cfg.SegmentEvery
			return s.cachedMask, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, stageErr("segment", ErrInferenceTimeout)
		}
		return nil, stageErr("segment", fmt.Errorf("%w: %v", ErrInferenceFailure, err))
	}

	// Replace, never mutate: the old mask goes back to the pool only after
	// nothing references it anymore.
	if s.cachedMask != nil {
		s.pool.Put(s.cachedMask)
	}
	s.cachedMask = m
	s.segSkips = 0
	return m, nil
}
