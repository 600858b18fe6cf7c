// Package mask provides the per-frame walkability raster produced by the
// floor segmenter and consumed by the navigation pipeline.
package mask

// Channel thresholds for the walkability test. A pixel counts as walkable
// when both its alpha and its green channel clear roughly 50%.
const (
	alphaThreshold = 128
	colorThreshold = 128
)

// Mask is a per-pixel walkability raster aligned to a camera frame.
// Pixels are stored as RGBA, 4 bytes per pixel. A Mask is built once per
// segmentation pass and never mutated afterwards; replace, don't patch.
type Mask struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a mask with all pixels non-walkable.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// InBounds reports whether (x, y) lies inside the raster.
func (m *Mask) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Walkable reports whether the pixel at (x, y) passes the walkability test.
// Out-of-bounds coordinates are not walkable.
func (m *Mask) Walkable(x, y int) bool {
	if !m.InBounds(x, y) {
		return false
	}
	i := (y*m.Width + x) * 4
	return m.Pix[i+3] >= alphaThreshold && m.Pix[i+1] >= colorThreshold
}

// SetWalkable marks the pixel at (x, y) walkable or blocked.
func (m *Mask) SetWalkable(x, y int, walkable bool) {
	if !m.InBounds(x, y) {
		return
	}
	i := (y*m.Width + x) * 4
	if walkable {
		m.Pix[i+1] = 255
		m.Pix[i+3] = 255
	} else {
		m.Pix[i+1] = 0
		m.Pix[i+3] = 0
	}
}

// Reset marks every pixel non-walkable so a pooled mask can be rebuilt.
func (m *Mask) Reset() {
	for i := range m.Pix {
		m.Pix[i] = 0
	}
}
