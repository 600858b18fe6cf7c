package pipeline

import (
	"sync"
	"time"

	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/steering"
)

// MockDetector is a scriptable Detector for tests.
type MockDetector struct {
	mu    sync.Mutex
	calls int

	Dets  []Detection
	Err   error
	Delay time.Duration
}

// Detect returns the scripted detections after the scripted delay.
func (m *MockDetector) Detect(_ Frame, _ []string) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Dets, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSegmenter is a scriptable Segmenter for tests. It also records quality
// updates so it can stand in as the governor's sink.
type MockSegmenter struct {
	mu      sync.Mutex
	calls   int
	quality []float64

	MaskFn func() *mask.Mask
	Err    error
	Delay  time.Duration
}

// SegmentFloor returns a fresh mask from MaskFn, or nil with Err.
func (m *MockSegmenter) SegmentFloor(_ Frame) (*mask.Mask, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.MaskFn == nil {
		return nil, nil
	}
	return m.MaskFn(), nil
}

// SetQuality records a governor quality update.
func (m *MockSegmenter) SetQuality(q float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality = append(m.quality, q)
}

// Calls returns how many times SegmentFloor ran.
func (m *MockSegmenter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// QualityUpdates returns the recorded governor updates.
func (m *MockSegmenter) QualityUpdates() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.quality))
	copy(out, m.quality)
	return out
}

// MockBearings is a fixed BearingSource.
type MockBearings struct {
	Azimuth   float64
	Available bool
}

// CurrentAzimuth returns the scripted heading.
func (m *MockBearings) CurrentAzimuth() (float64, bool) {
	return m.Azimuth, m.Available
}

// MockSightings records Observe calls.
type MockSightings struct {
	mu       sync.Mutex
	labels   []string
	azimuths []float64
}

// Observe records one sighting.
func (m *MockSightings) Observe(label string, azimuth float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = append(m.labels, label)
	m.azimuths = append(m.azimuths, azimuth)
}

// Sightings returns the recorded labels and azimuths.
func (m *MockSightings) Sightings() ([]string, []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.labels...), append([]float64(nil), m.azimuths...)
}

// MockDirections serves a fixed guidance per label.
type MockDirections struct {
	Guidance map[string]steering.Guidance
}

// DirectionToObject looks up the scripted guidance.
func (m *MockDirections) DirectionToObject(label string) (steering.Guidance, bool) {
	g, ok := m.Guidance[label]
	return g, ok
}
