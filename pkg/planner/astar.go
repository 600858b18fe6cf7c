package planner

import (
	"container/heap"

	"github.com/wayfindr/go-wayfind/pkg/grid"
)

// Movement costs in fixed-point tenths: 10 per straight step, 14 per
// diagonal step (≈ 10·√2). The heuristic is Manhattan distance × the
// straight cost. With diagonal moves allowed this slightly overestimates in
// some layouts, so the search is fast rather than provably optimal.
const (
	costStraight = 10
	costDiagonal = 14
)

type cell struct {
	x, y int
}

// node is an arena entry. Parents are arena indices, not pointers, so path
// reconstruction walks indices and the whole arena is dropped after the run.
type node struct {
	pos    cell
	g      int // cost from start
	h      int // heuristic to goal
	parent int // arena index, -1 for the root
	open   bool
}

func (n *node) f() int { return n.g + n.h }

// openHeap orders arena indices by f, tie-breaking on h so nodes nearer the
// goal pop first.
type openHeap struct {
	arena *[]node
	items []int
}

func (o *openHeap) Len() int { return len(o.items) }

func (o *openHeap) Less(i, j int) bool {
	a := &(*o.arena)[o.items[i]]
	b := &(*o.arena)[o.items[j]]
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	return a.h < b.h
}

func (o *openHeap) Swap(i, j int) { o.items[i], o.items[j] = o.items[j], o.items[i] }

func (o *openHeap) Push(x any) { o.items = append(o.items, x.(int)) }

func (o *openHeap) Pop() any {
	n := len(o.items)
	v := o.items[n-1]
	o.items = o.items[:n-1]
	return v
}

var neighborOffsets = [8]struct {
	dx, dy, cost int
}{
	{1, 0, costStraight}, {-1, 0, costStraight},
	{0, 1, costStraight}, {0, -1, costStraight},
	{1, 1, costDiagonal}, {1, -1, costDiagonal},
	{-1, 1, costDiagonal}, {-1, -1, costDiagonal},
}

func manhattan(a, b cell) int {
	dx := a.x - b.x
	if dx < 0 {
		dx = -dx
	}
	dy := a.y - b.y
	if dy < 0 {
		dy = -dy
	}
	return (dx + dy) * costStraight
}

// astar searches the grid from start to goal, expanding at most maxIter
// nodes. Both endpoints must be passable.
func astar(g *grid.Grid, start, goal cell, maxIter int) ([]cell, error) {
	arena := make([]node, 0, 256)
	arena = append(arena, node{
		pos:    start,
		h:      manhattan(start, goal),
		parent: -1,
		open:   true,
	})

	// best maps a packed cell key to its arena index for O(1) decrease-key.
	best := make(map[int]int, 256)
	best[packKey(g, start)] = 0

	closed := make([]bool, g.Width*g.Height)

	open := &openHeap{arena: &arena}
	heap.Init(open)
	heap.Push(open, 0)

	for iter := 0; open.Len() > 0; iter++ {
		if iter >= maxIter {
			return nil, ErrNoPath
		}

		idx := heap.Pop(open).(int)
		cur := &arena[idx]
		if !cur.open {
			continue // superseded entry
		}
		cur.open = false

		if cur.pos == goal {
			return reconstruct(arena, idx), nil
		}
		closed[cur.pos.y*g.Width+cur.pos.x] = true

		for _, off := range neighborOffsets {
			next := cell{cur.pos.x + off.dx, cur.pos.y + off.dy}
			if !g.Passable(next.x, next.y) {
				continue
			}
			if closed[next.y*g.Width+next.x] {
				continue
			}

			tentative := arena[idx].g + off.cost
			key := packKey(g, next)

			if known, ok := best[key]; ok {
				if tentative >= arena[known].g {
					continue
				}
				// Better route: retire the old entry and re-push.
				arena[known].open = false
			}

			arena = append(arena, node{
				pos:    next,
				g:      tentative,
				h:      manhattan(next, goal),
				parent: idx,
				open:   true,
			})
			ni := len(arena) - 1
			best[key] = ni
			heap.Push(open, ni)
		}
	}

	return nil, ErrNoPath
}

func packKey(g *grid.Grid, c cell) int {
	return c.y*g.Width + c.x
}

func reconstruct(arena []node, idx int) []cell {
	var rev []cell
	for i := idx; i >= 0; i = arena[i].parent {
		rev = append(rev, arena[i].pos)
	}
	out := make([]cell, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// nearestPassable returns the closest passable cell to (x, y) within the
// given Chebyshev radius, searching breadth-first so the nearest ring wins.
func nearestPassable(g *grid.Grid, x, y, radius int) (int, int, bool) {
	if g.Passable(x, y) {
		return x, y, true
	}

	type qc struct{ x, y, d int }
	seen := make(map[int]bool)
	queue := []qc{{x, y, 0}}
	seen[y*g.Width+x] = true

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c.d >= radius {
			continue
		}
		for _, off := range neighborOffsets {
			nx, ny := c.x+off.dx, c.y+off.dy
			if nx < 0 || ny < 0 || nx >= g.Width || ny >= g.Height {
				continue
			}
			key := ny*g.Width + nx
			if seen[key] {
				continue
			}
			seen[key] = true
			if g.Passable(nx, ny) {
				return nx, ny, true
			}
			queue = append(queue, qc{nx, ny, c.d + 1})
		}
	}
	return 0, 0, false
}
