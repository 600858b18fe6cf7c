// Package pipeline runs the end-to-end navigation pass for each camera
// frame: admission control, inference orchestration, grid build, path
// planning, and steering.
//
// The scheduler is single-flight: at most one frame is processed at a time
// and late frames are dropped, never queued. All inference calls go through
// the serialized ML lane with per-step timeouts; the navigation math itself
// runs synchronously on the caller.
package pipeline

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/steering"
)

// Frame is one captured camera image queued for a pipeline pass.
type Frame struct {
	ID       string
	JPEG     []byte
	Width    int
	Height   int
	Captured time.Time
}

// NewFrame wraps encoded image bytes with an ID and capture timestamp.
func NewFrame(jpeg []byte, width, height int) Frame {
	return Frame{
		ID:       uuid.NewString(),
		JPEG:     jpeg,
		Width:    width,
		Height:   height,
		Captured: time.Now(),
	}
}

// Detection is one detected object in pixel coordinates.
type Detection struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Center returns the center of the detection box.
func (d Detection) Center() (x, y float64) {
	return float64(d.Box.Min.X+d.Box.Max.X) / 2, float64(d.Box.Min.Y+d.Box.Max.Y) / 2
}

// Area returns the box area in square pixels.
func (d Detection) Area() float64 {
	return float64(d.Box.Dx()) * float64(d.Box.Dy())
}

// SelectBest picks the most promising detection, weighing confidence over
// apparent size.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// Detector finds target objects in a frame. Implementations are external
// inference engines; calls are serialized by the scheduler and may be slow.
type Detector interface {
	Detect(frame Frame, labels []string) ([]Detection, error)
}

// Segmenter produces a walkability mask aligned to the frame. Implementations
// are external inference engines.
type Segmenter interface {
	SegmentFloor(frame Frame) (*mask.Mask, error)
}

// DirectionProvider answers where a label was last seen, for steering toward
// off-screen targets.
type DirectionProvider interface {
	DirectionToObject(label string) (steering.Guidance, bool)
}

// BearingSource supplies the user's current compass heading.
type BearingSource interface {
	CurrentAzimuth() (float64, bool)
}

// SightingSink receives absolute-azimuth sightings of the target so spatial
// memory stays current while the target is on screen.
type SightingSink interface {
	Observe(label string, azimuth float64)
}

// QualitySink receives quality-knob updates from the governor. Typically
// implemented by the segmenter.
type QualitySink interface {
	SetQuality(q float64)
}
