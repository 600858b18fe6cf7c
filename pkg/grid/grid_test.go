package grid

import (
	"testing"

	"github.com/wayfindr/go-wayfind/pkg/mask"
)

// openMask builds a fully walkable raster with optional blocked pixel blocks.
func openMask(w, h int) *mask.Mask {
	m := mask.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetWalkable(x, y, true)
		}
	}
	return m
}

// blockCell blocks the source pixels backing grid cell (cx, cy).
func blockCell(m *mask.Mask, scale, cx, cy int) {
	for y := cy * scale; y < (cy+1)*scale; y++ {
		for x := cx * scale; x < (cx+1)*scale; x++ {
			m.SetWalkable(x, y, false)
		}
	}
}

func TestBuildTooSmall(t *testing.T) {
	m := openMask(10, 10)
	_, err := Build(m, 10, 10, Config{Scale: 20, InflationRadius: 1})
	if err != ErrTooSmall {
		t.Fatalf("Expected ErrTooSmall, got %v", err)
	}
}

func TestBuildOpenFloor(t *testing.T) {
	m := openMask(200, 100)
	g, err := Build(m, 200, 100, Config{Scale: 20, InflationRadius: 2})
	if err != nil {
		t.Fatal(err)
	}
	if g.Width != 10 || g.Height != 5 {
		t.Fatalf("Expected 10x5 grid, got %dx%d", g.Width, g.Height)
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !g.Passable(x, y) {
				t.Fatalf("Expected cell (%d,%d) passable on open floor", x, y)
			}
		}
	}
}

func TestInflationExpandsObstacle(t *testing.T) {
	scale := 10
	m := openMask(100, 100)
	blockCell(m, scale, 5, 5)

	g, err := Build(m, 100, 100, Config{Scale: scale, InflationRadius: 1})
	if err != nil {
		t.Fatal(err)
	}

	// Obstacle cell and its full Chebyshev ring are blocked
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if g.Passable(5+dx, 5+dy) {
				t.Errorf("Expected inflated cell (%d,%d) blocked", 5+dx, 5+dy)
			}
		}
	}

	// Outside the radius stays passable
	if !g.Passable(3, 5) || !g.Passable(5, 3) || !g.Passable(7, 7) {
		t.Error("Expected cells outside inflation radius to stay passable")
	}
}

func TestInflationZeroIsNoOp(t *testing.T) {
	scale := 10
	m := openMask(100, 100)
	blockCell(m, scale, 4, 4)

	g, err := Build(m, 100, 100, Config{Scale: scale, InflationRadius: 0})
	if err != nil {
		t.Fatal(err)
	}
	if g.Passable(4, 4) {
		t.Error("Expected raw obstacle cell blocked")
	}
	if !g.Passable(3, 4) || !g.Passable(5, 5) {
		t.Error("Expected neighbors passable with radius 0")
	}
}

func TestInflationMonotonic(t *testing.T) {
	scale := 10
	m := openMask(120, 120)
	blockCell(m, scale, 3, 3)
	blockCell(m, scale, 8, 8)

	for r1 := 0; r1 < 3; r1++ {
		g1, err := Build(m, 120, 120, Config{Scale: scale, InflationRadius: r1})
		if err != nil {
			t.Fatal(err)
		}
		g2, err := Build(m, 120, 120, Config{Scale: scale, InflationRadius: r1 + 1})
		if err != nil {
			t.Fatal(err)
		}
		for y := 0; y < g1.Height; y++ {
			for x := 0; x < g1.Width; x++ {
				if !g1.Passable(x, y) && g2.Passable(x, y) {
					t.Fatalf("Obstacle at (%d,%d) with radius %d disappeared at radius %d",
						x, y, r1, r1+1)
				}
			}
		}
	}
}

func TestBuildIdempotent(t *testing.T) {
	scale := 10
	m := openMask(100, 80)
	blockCell(m, scale, 2, 2)

	cfg := Config{Scale: scale, InflationRadius: 1}
	g1, err := Build(m, 100, 80, cfg)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := Build(m, 100, 80, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if g1.Width != g2.Width || g1.Height != g2.Height {
		t.Fatal("Expected identical dimensions")
	}
	for y := 0; y < g1.Height; y++ {
		for x := 0; x < g1.Width; x++ {
			if g1.Passable(x, y) != g2.Passable(x, y) {
				t.Fatalf("Grid build not deterministic at (%d,%d)", x, y)
			}
		}
	}
}

func TestCellAtClampsToBounds(t *testing.T) {
	m := openMask(100, 100)
	g, err := Build(m, 100, 100, Config{Scale: 10, InflationRadius: 0})
	if err != nil {
		t.Fatal(err)
	}

	x, y := g.CellAt(-50, -50)
	if x != 0 || y != 0 {
		t.Errorf("Expected clamp to (0,0), got (%d,%d)", x, y)
	}
	x, y = g.CellAt(1e6, 1e6)
	if x != g.Width-1 || y != g.Height-1 {
		t.Errorf("Expected clamp to (%d,%d), got (%d,%d)", g.Width-1, g.Height-1, x, y)
	}
}
