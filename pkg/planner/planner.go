// Package planner computes walkable paths over the occupancy grid.
//
// The search is A* with 8-connected movement and a hard iteration cap, so a
// plan always returns within a bounded number of expansions. Grid paths come
// back staircase-shaped, so the planner finishes with a line-of-sight pruning
// pass that keeps only the waypoints needed to describe the route.
package planner

import (
	"errors"

	"github.com/wayfindr/go-wayfind/pkg/grid"
)

var (
	// ErrNoPath is returned when the search exhausts the open set or hits
	// the iteration cap without reaching the goal.
	ErrNoPath = errors.New("planner: no path found")

	// ErrUnreachable is returned when no passable cell exists near the
	// start or goal position.
	ErrUnreachable = errors.New("planner: endpoint unreachable")
)

// Point is a position in image-pixel space.
type Point struct {
	X float64
	Y float64
}

// Path is an ordered sequence of pixel-space waypoints from the user
// position toward the target. Empty means no path; a short path means
// arrival is near.
type Path []Point

// Config holds the search limits. Computed once at startup.
type Config struct {
	// MaxIterations caps A* node expansions per plan. Exceeding the cap is
	// reported as ErrNoPath, never as a hang.
	MaxIterations int

	// EndpointSearchRadius bounds, in cells, the breadth-first hunt for the
	// nearest passable cell when a requested endpoint is blocked.
	EndpointSearchRadius int
}

// DefaultConfig returns search limits sized for interactive use.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        10000,
		EndpointSearchRadius: 8,
	}
}

// Planner runs grid path searches. It keeps no per-frame state; a single
// Planner may be reused across frames but not across concurrent plans.
type Planner struct {
	cfg Config
}

// New creates a planner with the given limits.
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan searches for a path from start to goal, both in pixel space.
//
// Blocked endpoints are substituted with their nearest passable cell before
// searching; a start or goal with no passable cell in reach yields
// ErrUnreachable. The returned path is pruned to line-of-sight waypoints and
// expressed as pixel-space cell centers.
func (p *Planner) Plan(g *grid.Grid, start, goal Point) (Path, error) {
	sx, sy := g.CellAt(start.X, start.Y)
	gx, gy := g.CellAt(goal.X, goal.Y)

	var ok bool
	sx, sy, ok = nearestPassable(g, sx, sy, p.cfg.EndpointSearchRadius)
	if !ok {
		return nil, ErrUnreachable
	}
	gx, gy, ok = nearestPassable(g, gx, gy, p.cfg.EndpointSearchRadius)
	if !ok {
		return nil, ErrUnreachable
	}

	cells, err := astar(g, cell{sx, sy}, cell{gx, gy}, p.cfg.MaxIterations)
	if err != nil {
		return nil, err
	}

	cells = pruneLineOfSight(g, cells)

	path := make(Path, len(cells))
	for i, c := range cells {
		px, py := g.CellCenter(c.x, c.y)
		path[i] = Point{X: px, Y: py}
	}
	return path, nil
}
