package steering

import (
	"fmt"
	"math"

	"github.com/wayfindr/go-wayfind/pkg/planner"
)

// behindEpsilon is the forward distance, in pixels, below which a look-ahead
// point counts as behind the user.
const behindEpsilon = 1e-6

// purePursuit steers toward a look-ahead point on the planned path using
// signed path curvature. This is the deterministic fallback used when no
// compass bearing is available.
func (c *Controller) purePursuit(path planner.Path, user planner.Point) Output {
	look := lookAheadPoint(path, user, c.cfg.LookAheadPx)

	// Body frame: x right, y forward (up the image).
	xb := look.X - user.X
	yb := user.Y - look.Y

	if yb <= behindEpsilon {
		return Output{Command: CmdStopBehind, Path: path, DangerLevel: 2}
	}

	kappa := curvature(xb, yb)
	return Output{
		Command: curvatureCommand(kappa, c.cfg),
		Path:    path,
	}
}

// lookAheadPoint returns the first path point at or beyond the look-ahead
// distance from the user, or the last point when none qualifies.
func lookAheadPoint(path planner.Path, user planner.Point, lookAhead float64) planner.Point {
	for _, p := range path {
		if math.Hypot(p.X-user.X, p.Y-user.Y) >= lookAhead {
			return p
		}
	}
	return path[len(path)-1]
}

// curvature computes the pure-pursuit steering curvature κ = 2·x / (x²+y²)
// for a look-ahead point expressed in the body frame.
func curvature(xb, yb float64) float64 {
	return 2 * xb / (xb*xb + yb*yb)
}

// curvatureCommand buckets |κ| against the two fixed thresholds. Boundary
// values fall into the stronger bucket.
func curvatureCommand(kappa float64, cfg Config) string {
	a := math.Abs(kappa)
	side := sideOf(kappa)

	switch {
	case a >= cfg.SharpCurvature:
		return fmt.Sprintf("Turn sharply %s", side)
	case a >= cfg.SlightCurvature:
		return fmt.Sprintf("Turn slightly %s", side)
	default:
		return "Continue straight ahead"
	}
}
