package steering

import (
	"math"

	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/planner"
)

// histogram is a polar obstacle map: obstacle density per angular sector
// around the user position, each in [0,1]. Rebuilt fresh every frame.
type histogram struct {
	density []float64
	samples []int
}

// buildHistogram scans the walkability raster radially around the user and
// accumulates obstacle hits per sector. Each sector is normalized by its own
// sample count; sectors that collected no samples read as clear.
//
// A nil raster produces an all-clear histogram.
func buildHistogram(m *mask.Mask, user planner.Point, imageWidth, imageHeight int, cfg Config) histogram {
	h := histogram{
		density: make([]float64, cfg.SectorCount),
		samples: make([]int, cfg.SectorCount),
	}
	if m == nil {
		return h
	}

	scanRadius := float64(min(imageWidth, imageHeight)) / 3
	sectorWidth := 360.0 / float64(cfg.SectorCount)

	hits := make([]int, cfg.SectorCount)
	for ang := 0.0; ang < 360.0; ang += cfg.AngularStepDeg {
		rad := ang * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		sector := int(ang/sectorWidth) % cfg.SectorCount

		for r := cfg.RadialStepPx; r <= scanRadius; r += cfg.RadialStepPx {
			x := int(user.X + sin*r)
			y := int(user.Y - cos*r)
			if !m.InBounds(x, y) {
				break
			}
			h.samples[sector]++
			if !m.Walkable(x, y) {
				hits[sector]++
			}
		}
	}

	for i := range h.density {
		if h.samples[i] > 0 {
			h.density[i] = float64(hits[i]) / float64(h.samples[i])
		}
	}
	return h
}

// sectorCenter returns the bearing of a sector's center in [0,360).
func (h histogram) sectorCenter(i int) float64 {
	w := 360.0 / float64(len(h.density))
	return float64(i)*w + w/2
}

// free reports whether the sector's density is below the obstacle threshold.
func (h histogram) free(i int, cfg Config) bool {
	return h.density[i] < cfg.ObstacleThreshold
}

// selectDirection picks the best travel bearing: among free sectors, the one
// minimizing weighted angular deviation from the target bearing plus its own
// density. If every sector is occupied it returns the least-occupied
// sector's bearing and reports blocked.
func selectDirection(h histogram, targetBearing float64, cfg Config) (bearingDeg float64, blocked bool) {
	bestIdx := -1
	bestCost := math.MaxFloat64
	for i := range h.density {
		if !h.free(i, cfg) {
			continue
		}
		dev := math.Abs(angleDiff(h.sectorCenter(i), targetBearing)) / 180
		cost := cfg.AngleWeight*dev + cfg.DensityWeight*h.density[i]
		if cost < bestCost {
			bestCost = cost
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		return h.sectorCenter(bestIdx), false
	}

	// Fully blocked: least-occupied sector wins.
	minIdx := 0
	for i := 1; i < len(h.density); i++ {
		if h.density[i] < h.density[minIdx] {
			minIdx = i
		}
	}
	return h.sectorCenter(minIdx), true
}

// dangerAround grades the mean density of the 3 sectors centered on the
// chosen bearing.
func dangerAround(h histogram, bearingDeg float64, cfg Config) int {
	w := 360.0 / float64(len(h.density))
	center := int(norm360(bearingDeg)/w) % len(h.density)
	n := len(h.density)

	sum := h.density[(center-1+n)%n] + h.density[center] + h.density[(center+1)%n]
	mean := sum / 3

	switch {
	case mean > 0.2:
		return 2
	case mean > 0.1:
		return 1
	default:
		return 0
	}
}

// angleDiff returns the signed difference a-b wrapped to [-180,180].
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

// norm360 wraps an angle to [0,360).
func norm360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
