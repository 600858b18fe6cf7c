package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/wayfindr/go-wayfind/pkg/lanes"
	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/steering"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TargetLabels = []string{"chair"}
	cfg.MinInterval = 0
	cfg.ColdStartGrace = 0
	cfg.DetectTimeout = time.Second
	cfg.SegmentTimeout = time.Second
	return cfg
}

func openMask(w, h int) *mask.Mask {
	m := mask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetWalkable(x, y, true)
		}
	}
	return m
}

func newTestScheduler(t *testing.T, cfg Config, deps Deps) *Scheduler {
	t.Helper()
	if deps.Lanes == nil {
		l := lanes.New(lanes.Config{ImageWorkers: 2, IOWorkers: 1})
		t.Cleanup(func() { l.Shutdown(time.Second) })
		deps.Lanes = l
	}
	s, err := NewScheduler(cfg, deps)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func chairAt(cx, cy int) Detection {
	return Detection{
		Label:      "chair",
		Confidence: 0.9,
		Box:        image.Rect(cx-40, cy-40, cx+40, cy+40),
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	det := &MockDetector{Delay: 200 * time.Millisecond}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	const n = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrRejected):
				rejected++
			default:
				t.Errorf("Unexpected Submit error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if accepted != 1 {
		t.Errorf("Expected exactly 1 accepted frame, got %d", accepted)
	}
	if rejected != n-1 {
		t.Errorf("Expected %d rejected frames, got %d", n-1, rejected)
	}
}

func TestSubmitThrottles(t *testing.T) {
	cfg := testConfig()
	cfg.MinInterval = time.Hour
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, cfg, Deps{Detector: det, Segmenter: seg})

	if _, err := s.Submit(context.Background(), NewFrame(nil, 640, 480)); err != nil {
		t.Fatalf("First frame should be admitted: %v", err)
	}
	if _, err := s.Submit(context.Background(), NewFrame(nil, 640, 480)); !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected ErrRejected inside throttle window, got %v", err)
	}

	h := s.Health()
	if h.FramesProcessed != 1 || h.FramesRejected != 1 {
		t.Errorf("Health counters processed=%d rejected=%d, want 1/1",
			h.FramesProcessed, h.FramesRejected)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	s.Close()
	if _, err := s.Submit(context.Background(), NewFrame(nil, 640, 480)); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("Expected ErrShuttingDown after Close, got %v", err)
	}
}

func TestSearchingWhenNothingDetected(t *testing.T) {
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != steering.CmdSearching {
		t.Errorf("Expected searching command, got %q", out.Command)
	}
}

func TestGuidanceForRememberedTarget(t *testing.T) {
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	dirs := &MockDirections{Guidance: map[string]steering.Guidance{
		"chair": {TargetLabel: "chair", AzimuthDifference: 45},
	}}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg, Directions: dirs})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != "Turn right about 45 degrees" {
		t.Errorf("Expected memory-based turn command, got %q", out.Command)
	}
}

func TestDetectorFailureEscalatesToDegraded(t *testing.T) {
	det := &MockDetector{Err: errors.New("model exploded")}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		out, err := s.Submit(ctx, NewFrame(nil, 640, 480))
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if out.Command != steering.CmdProcessingError {
			t.Errorf("Submit %d: expected processing-error command, got %q", i, out.Command)
		}
	}

	out, err := s.Submit(ctx, NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit 3: %v", err)
	}
	if out.Command != steering.CmdDegraded {
		t.Errorf("Expected degraded command at the error threshold, got %q", out.Command)
	}
	if got := s.Health().ConsecutiveErrors; got != 3 {
		t.Errorf("Expected 3 consecutive errors, got %d", got)
	}

	// Recovery resets the counter.
	det.Err = nil
	out, err = s.Submit(ctx, NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit 4: %v", err)
	}
	if out.Command != steering.CmdSearching {
		t.Errorf("Expected recovery to searching, got %q", out.Command)
	}
	if got := s.Health().ConsecutiveErrors; got != 0 {
		t.Errorf("Expected error counter reset after success, got %d", got)
	}
}

func TestDetectorTimeoutCommand(t *testing.T) {
	cfg := testConfig()
	cfg.DetectTimeout = 20 * time.Millisecond
	det := &MockDetector{Delay: 300 * time.Millisecond}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, cfg, Deps{Detector: det, Segmenter: seg})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != steering.CmdUnavailable {
		t.Errorf("Expected unavailable command on inference timeout, got %q", out.Command)
	}
}

func TestSegmentationSkipReusesMask(t *testing.T) {
	cfg := testConfig()
	cfg.SegmentEvery = 3
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, cfg, Deps{Detector: det, Segmenter: seg})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Submit(ctx, NewFrame(nil, 640, 480)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	// Frame 1 segments, frames 2-4 reuse the cache, frame 5 segments again.
	if got := seg.Calls(); got != 2 {
		t.Errorf("Expected 2 segmentation passes over 5 frames, got %d", got)
	}
}

func TestSegmentationFailureFallsBackToCache(t *testing.T) {
	cfg := testConfig()
	cfg.SegmentEvery = 0 // segment every frame
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, cfg, Deps{Detector: det, Segmenter: seg})

	ctx := context.Background()
	if _, err := s.Submit(ctx, NewFrame(nil, 640, 480)); err != nil {
		t.Fatalf("Priming submit: %v", err)
	}

	seg.Err = errors.New("segmentation crashed")
	out, err := s.Submit(ctx, NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit with failing segmenter: %v", err)
	}
	if out.Command != steering.CmdSearching {
		t.Errorf("Expected cached mask to keep the pipeline alive, got %q", out.Command)
	}
	if got := s.Health().ConsecutiveErrors; got != 0 {
		t.Errorf("Cache fallback should not count as an error, got %d", got)
	}
}

func TestSightingObservedWithBearing(t *testing.T) {
	det := &MockDetector{Dets: []Detection{chairAt(480, 240)}}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	sightings := &MockSightings{}
	bearings := &MockBearings{Azimuth: 90, Available: true}
	s := newTestScheduler(t, testConfig(), Deps{
		Detector: det, Segmenter: seg,
		Bearings: bearings, Sightings: sightings,
	})

	if _, err := s.Submit(context.Background(), NewFrame(nil, 640, 480)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	labels, azimuths := sightings.Sightings()
	if len(labels) != 1 || labels[0] != "chair" {
		t.Fatalf("Expected one chair sighting, got %v", labels)
	}
	// Target center x=480 on a 640px frame with a 60° FOV: heading 90 + 15.
	if math.Abs(azimuths[0]-105) > 1e-9 {
		t.Errorf("Expected sighting azimuth 105, got %.3f", azimuths[0])
	}
}

func TestNoPathWithoutBearing(t *testing.T) {
	det := &MockDetector{Dets: []Detection{chairAt(480, 120)}}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return mask.New(640, 480) }}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != steering.CmdNoPath {
		t.Errorf("Expected no-path command on a fully blocked floor, got %q", out.Command)
	}
	if s.Health().ConsecutiveErrors != 0 {
		t.Error("A blocked floor is a navigation outcome, not a pipeline error")
	}
}

func TestPlanFailureKeepsServoWithBearing(t *testing.T) {
	det := &MockDetector{Dets: []Detection{chairAt(480, 120)}}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return mask.New(640, 480) }}
	bearings := &MockBearings{Azimuth: 0, Available: true}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg, Bearings: bearings})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command == steering.CmdNoPath {
		t.Error("With a bearing the histogram strategy should keep steering")
	}
	if out.DangerLevel != 2 {
		t.Errorf("Fully blocked mask should grade danger 2, got %d", out.DangerLevel)
	}
}

func TestNilMaskWithoutErrorIsFailure(t *testing.T) {
	det := &MockDetector{Dets: []Detection{chairAt(480, 120)}}
	// A nil MaskFn with no error yields a nil mask and no cache, which the
	// scheduler reports as an inference failure.
	seg := &MockSegmenter{}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != steering.CmdProcessingError {
		t.Errorf("Expected processing-error command, got %q", out.Command)
	}
}

func TestInferencePanicIsContained(t *testing.T) {
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask {
		panic("inference runtime blew up")
	}}
	s := newTestScheduler(t, testConfig(), Deps{Detector: det, Segmenter: seg})

	out, err := s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Command != steering.CmdProcessingError {
		t.Errorf("Expected a panicking segmenter to yield a processing-error command, got %q", out.Command)
	}
	if got := s.Health().ConsecutiveErrors; got != 1 {
		t.Errorf("Expected the panic counted as 1 error, got %d", got)
	}

	// The pipeline recovers once the collaborator behaves again.
	seg.MaskFn = func() *mask.Mask { return openMask(640, 480) }
	out, err = s.Submit(context.Background(), NewFrame(nil, 640, 480))
	if err != nil {
		t.Fatalf("Submit after recovery: %v", err)
	}
	if out.Command != steering.CmdSearching {
		t.Errorf("Expected recovery to searching, got %q", out.Command)
	}
	if got := s.Health().ConsecutiveErrors; got != 0 {
		t.Errorf("Expected error counter reset after recovery, got %d", got)
	}
}

func TestSegmentationFailureRetriesNextFrame(t *testing.T) {
	cfg := testConfig()
	cfg.SegmentEvery = 3
	det := &MockDetector{}
	seg := &MockSegmenter{MaskFn: func() *mask.Mask { return openMask(640, 480) }}
	s := newTestScheduler(t, cfg, Deps{Detector: det, Segmenter: seg})

	ctx := context.Background()
	// Frame 1 segments and caches; frames 2-4 ride the cache.
	for i := 0; i < 4; i++ {
		if _, err := s.Submit(ctx, NewFrame(nil, 640, 480)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	if got := seg.Calls(); got != 1 {
		t.Fatalf("Setup: expected 1 segmentation pass, got %d", got)
	}

	// Frame 5 attempts and fails, falling back to the cache.
	seg.Err = errors.New("segmentation crashed")
	if _, err := s.Submit(ctx, NewFrame(nil, 640, 480)); err != nil {
		t.Fatalf("Submit with failing segmenter: %v", err)
	}
	if got := seg.Calls(); got != 2 {
		t.Fatalf("Expected a segmentation attempt on frame 5, got %d calls", got)
	}

	// The very next frame retries; the stale mask does not persist for
	// another full skip cycle.
	seg.Err = nil
	if _, err := s.Submit(ctx, NewFrame(nil, 640, 480)); err != nil {
		t.Fatalf("Submit after failure: %v", err)
	}
	if got := seg.Calls(); got != 3 {
		t.Errorf("Expected a fresh attempt on the frame after a failure, got %d calls", got)
	}
}
