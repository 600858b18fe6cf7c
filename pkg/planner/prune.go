package planner

import "github.com/wayfindr/go-wayfind/pkg/grid"

// pruneLineOfSight collapses a grid path to its line-of-sight waypoints:
// from each kept point, jump to the farthest later point whose connecting
// segment crosses only passable cells. Removes the staircase artifacts of
// 8-connected search without re-running it.
func pruneLineOfSight(g *grid.Grid, cells []cell) []cell {
	if len(cells) <= 2 {
		return cells
	}

	out := []cell{cells[0]}
	i := 0
	for i < len(cells)-1 {
		j := len(cells) - 1
		for j > i+1 && !lineClear(g, cells[i], cells[j]) {
			j--
		}
		out = append(out, cells[j])
		i = j
	}
	return out
}

// lineClear rasterizes the segment between two cells with Bresenham's
// algorithm and reports whether every covered cell is passable.
func lineClear(g *grid.Grid, a, b cell) bool {
	x0, y0 := a.x, a.y
	x1, y1 := b.x, b.y

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		if !g.Passable(x0, y0) {
			return false
		}
		if x0 == x1 && y0 == y1 {
			return true
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
