// Package spatial remembers where labeled objects were last seen so the
// pipeline can steer the user back toward a target that has left the frame.
//
// Sightings are stored as absolute azimuths and fade over time; a sighting
// that has decayed below the forget threshold is treated as never seen.
package spatial

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/wayfindr/go-wayfind/pkg/steering"
)

// Compass supplies the user's current absolute heading in degrees.
// Implementations are external sensor-fusion collaborators.
type Compass interface {
	// CurrentAzimuth returns the heading in [0,360) and whether a reading
	// is available.
	CurrentAzimuth() (float64, bool)
}

// Config tunes sighting decay.
type Config struct {
	// ConfidenceDecay is the confidence lost per second since a sighting.
	ConfidenceDecay float64

	// ForgetThreshold drops sightings whose confidence decays below it.
	ForgetThreshold float64
}

// DefaultConfig returns decay rates matching a slow indoor walking pace.
func DefaultConfig() Config {
	return Config{
		ConfidenceDecay: 0.02,
		ForgetThreshold: 0.1,
	}
}

type sighting struct {
	azimuth  float64
	lastSeen time.Time
}

// Memory stores per-label sightings. Safe for concurrent use.
type Memory struct {
	cfg     Config
	compass Compass

	mu        sync.RWMutex
	sightings map[string]sighting

	now func() time.Time // swapped in tests
}

// New creates a spatial memory backed by the given compass. A nil compass is
// allowed; directions are then unavailable until one is attached.
func New(compass Compass, cfg Config) *Memory {
	return &Memory{
		cfg:       cfg,
		compass:   compass,
		sightings: make(map[string]sighting),
		now:       time.Now,
	}
}

// Observe records that a label was seen at the given absolute azimuth.
func (m *Memory) Observe(label string, azimuth float64) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return
	}

	m.mu.Lock()
	m.sightings[label] = sighting{azimuth: norm360(azimuth), lastSeen: m.now()}
	m.mu.Unlock()
}

// DirectionToObject returns guidance toward the remembered position of a
// label, relative to the current compass heading. The second return is false
// when there is no usable sighting or no compass reading.
func (m *Memory) DirectionToObject(label string) (steering.Guidance, bool) {
	label = strings.ToLower(strings.TrimSpace(label))

	m.mu.RLock()
	s, ok := m.sightings[label]
	m.mu.RUnlock()
	if !ok {
		return steering.Guidance{}, false
	}

	if m.confidence(s) < m.cfg.ForgetThreshold {
		m.mu.Lock()
		delete(m.sightings, label)
		m.mu.Unlock()
		return steering.Guidance{}, false
	}

	if m.compass == nil {
		return steering.Guidance{}, false
	}
	heading, ok := m.compass.CurrentAzimuth()
	if !ok {
		return steering.Guidance{}, false
	}

	diff := angleDiff(s.azimuth, heading)
	return steering.Guidance{
		TargetLabel:       label,
		AzimuthDifference: diff,
		IsVisible:         false,
		Direction:         directionWord(diff),
	}, true
}

// Confidence returns the decayed confidence for a label, zero when unknown.
func (m *Memory) Confidence(label string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sightings[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0
	}
	return m.confidence(s)
}

// Forget drops a label's sighting.
func (m *Memory) Forget(label string) {
	m.mu.Lock()
	delete(m.sightings, strings.ToLower(strings.TrimSpace(label)))
	m.mu.Unlock()
}

func (m *Memory) confidence(s sighting) float64 {
	elapsed := m.now().Sub(s.lastSeen).Seconds()
	c := 1.0 - m.cfg.ConfidenceDecay*elapsed
	if c < 0 {
		return 0
	}
	return c
}

func directionWord(diff float64) string {
	a := math.Abs(diff)
	switch {
	case a < 30:
		return "ahead"
	case a >= 135:
		return "behind"
	case diff < 0:
		return "left"
	default:
		return "right"
	}
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d > 180 {
		d -= 360
	}
	if d < -180 {
		d += 360
	}
	return d
}

func norm360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
