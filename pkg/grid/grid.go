// Package grid builds the per-frame occupancy grid from a walkability mask.
//
// The grid is a downscaled boolean passability map with obstacles inflated
// outward to keep planned paths a safe margin away from walls and furniture.
// Grids live for a single frame: build, plan on it, drop it.
package grid

import "errors"

// ErrTooSmall is returned when the source raster is smaller than one grid
// cell in either dimension.
var ErrTooSmall = errors.New("grid: raster too small for grid scale")

// Raster is the walkability source the builder samples. Satisfied by
// *mask.Mask.
type Raster interface {
	Walkable(x, y int) bool
}

// Config holds the grid construction parameters. It is computed once at
// startup and treated as immutable.
type Config struct {
	// Scale is the downsample factor: one grid cell covers Scale×Scale
	// source pixels.
	Scale int

	// InflationRadius is the Chebyshev radius, in cells, by which every
	// obstacle is expanded. Zero disables inflation.
	InflationRadius int
}

// DefaultConfig returns grid parameters tuned for 640×480 camera frames.
func DefaultConfig() Config {
	return Config{
		Scale:           20,
		InflationRadius: 2,
	}
}

// Grid is a boolean passability map in cell coordinates.
type Grid struct {
	Width  int
	Height int
	Scale  int

	cells []bool // true = passable
}

// Passable reports whether the cell at (x, y) can be traversed.
// Out-of-bounds cells are not passable.
func (g *Grid) Passable(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return false
	}
	return g.cells[y*g.Width+x]
}

// CellCenter returns the pixel-space center of the cell at (x, y).
func (g *Grid) CellCenter(x, y int) (px, py float64) {
	return float64(x*g.Scale) + float64(g.Scale)/2,
		float64(y*g.Scale) + float64(g.Scale)/2
}

// CellAt maps a pixel-space point to its grid cell, clamped to bounds.
func (g *Grid) CellAt(px, py float64) (x, y int) {
	x = int(px) / g.Scale
	y = int(py) / g.Scale
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= g.Width {
		x = g.Width - 1
	}
	if y >= g.Height {
		y = g.Height - 1
	}
	return x, y
}

// Build derives an occupancy grid from a walkability raster. It is a pure
// function: the same raster and config always produce the same grid, and the
// raster is never written.
//
// Each cell is classified by sampling the raster at the cell center, then
// every obstacle is inflated by the configured Chebyshev radius. Inflation is
// monotonic: it only ever adds obstacles to the raw classification.
func Build(r Raster, imageWidth, imageHeight int, cfg Config) (*Grid, error) {
	w := imageWidth / cfg.Scale
	h := imageHeight / cfg.Scale
	if w == 0 || h == 0 {
		return nil, ErrTooSmall
	}

	raw := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := x*cfg.Scale + cfg.Scale/2
			sy := y*cfg.Scale + cfg.Scale/2
			raw[y*w+x] = r.Walkable(sx, sy)
		}
	}

	g := &Grid{Width: w, Height: h, Scale: cfg.Scale}
	if cfg.InflationRadius <= 0 {
		g.cells = raw
		return g, nil
	}

	// Inflate into a copy; raw stays read-only during this pass.
	cells := make([]bool, len(raw))
	copy(cells, raw)
	rad := cfg.InflationRadius
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if raw[y*w+x] {
				continue
			}
			for dy := -rad; dy <= rad; dy++ {
				for dx := -rad; dx <= rad; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < w && ny < h {
						cells[ny*w+nx] = false
					}
				}
			}
		}
	}
	g.cells = cells
	return g, nil
}
