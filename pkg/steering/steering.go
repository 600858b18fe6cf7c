// Package steering turns planning artifacts into a single spoken navigation
// command plus machine-usable metadata.
//
// Two cooperating strategies cover the possible inputs per frame. When a
// compass bearing is available the controller runs visual servoing against a
// polar obstacle histogram; without one it falls back to pure pursuit over
// the planned grid path. When the target is off-screen it steers from
// directional memory, and with nothing at all it reports that it is
// searching.
package steering

import (
	"math"

	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/planner"
)

// Guidance is the directional-memory hint supplied by the spatial memory
// collaborator when the target is not on screen. Consumed, never mutated.
type Guidance struct {
	TargetLabel string

	// AzimuthDifference is the signed horizontal angle to the remembered
	// target position in degrees; positive means the target is to the right.
	AzimuthDifference float64

	IsVisible bool
	Direction string
}

// Output is the per-frame navigation result. It is immutable once produced.
type Output struct {
	Command string

	// Path is a pixel-space route for overlay rendering; nil when no route
	// applies to the command.
	Path planner.Path

	// DangerLevel grades nearby obstacle density: 0 clear, 1 caution,
	// 2 blocked.
	DangerLevel int

	// TargetCentered reports whether the target sits within the horizontal
	// centering tolerance.
	TargetCentered bool
}

// Config holds every steering tunable. Computed once at startup from device
// probing; algorithmic code only ever reads it.
type Config struct {
	// Polar histogram
	SectorCount       int     // angular sectors over the full circle
	AngularStepDeg    float64 // sampling step in degrees
	RadialStepPx      float64 // sampling step in pixels
	ObstacleThreshold float64 // sectors below this density are free
	AngleWeight       float64 // cost weight for deviation from target bearing
	DensityWeight     float64 // cost weight for sector obstacle density

	// Visual servoing
	ArrivalThresholdPx float64 // distance at which the target counts as reached
	CenterTolerance    float64 // |centering error| below this is "centered"
	HorizontalFOVDeg   float64 // assumed camera field of view
	UserYFraction      float64 // user anchor as a fraction of image height

	// Pure pursuit
	LookAheadPx     float64 // distance to the look-ahead point on the path
	SlightCurvature float64 // |κ| at or above this is a slight turn
	SharpCurvature  float64 // |κ| at or above this is a sharp turn
}

// DefaultConfig returns steering parameters tuned for 640×480 frames.
func DefaultConfig() Config {
	return Config{
		SectorCount:       36,
		AngularStepDeg:    5,
		RadialStepPx:      6,
		ObstacleThreshold: 0.3,
		AngleWeight:       1.0,
		DensityWeight:     1.0,

		ArrivalThresholdPx: 60,
		CenterTolerance:    0.15,
		HorizontalFOVDeg:   60,
		UserYFraction:      0.85,

		LookAheadPx:     100,
		SlightCurvature: 0.002,
		SharpCurvature:  0.008,
	}
}

// Input bundles everything the controller may use for one frame's decision.
// Any of Target, Mask, GridPath, and Guidance may be absent.
type Input struct {
	ImageWidth  int
	ImageHeight int

	Target   *planner.Point // on-screen target position, nil if not visible
	Mask     *mask.Mask     // walkability raster, nil if segmentation failed
	GridPath planner.Path   // planned path for pure pursuit, may be empty
	Guidance *Guidance      // directional memory, nil if unavailable

	// HasBearing reports whether a compass bearing backs this frame, which
	// enables the polar-histogram strategy.
	HasBearing bool
}

// Controller computes navigation commands. Stateless across frames.
type Controller struct {
	cfg Config
}

// New creates a steering controller.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// UserPoint returns the assumed user anchor: bottom-center of the image.
func (c *Controller) UserPoint(imageWidth, imageHeight int) planner.Point {
	return planner.Point{
		X: float64(imageWidth) / 2,
		Y: float64(imageHeight) * c.cfg.UserYFraction,
	}
}

// Decide produces the navigation output for one frame.
func (c *Controller) Decide(in Input) Output {
	if in.Target == nil {
		if in.Guidance != nil {
			return Output{Command: bearingCommand(in.Guidance.AzimuthDifference)}
		}
		return Output{Command: CmdSearching}
	}

	user := c.UserPoint(in.ImageWidth, in.ImageHeight)
	target := *in.Target

	dist := math.Hypot(target.X-user.X, target.Y-user.Y)
	if dist < c.cfg.ArrivalThresholdPx {
		return Output{
			Command:        CmdArrived,
			Path:           planner.Path{user, target},
			TargetCentered: true,
		}
	}

	centerErr := (target.X - float64(in.ImageWidth)/2) / (float64(in.ImageWidth) / 2)
	centered := math.Abs(centerErr) < c.cfg.CenterTolerance
	angleOffset := centerErr * c.cfg.HorizontalFOVDeg / 2

	if in.HasBearing {
		return c.servo(in, user, target, dist, centered, angleOffset)
	}
	if len(in.GridPath) > 0 {
		out := c.purePursuit(in.GridPath, user)
		out.TargetCentered = centered
		return out
	}

	// Neither histogram nor path available: steer on centering alone.
	if !centered {
		return Output{Command: turnCommand(angleOffset, 0), TargetCentered: false}
	}
	return Output{
		Command:        forwardCommand(0, c.distanceBucket(dist, in.ImageHeight)),
		TargetCentered: true,
	}
}

// servo runs the polar-histogram visual-servoing strategy.
func (c *Controller) servo(in Input, user, target planner.Point, dist float64, centered bool, angleOffset float64) Output {
	hist := buildHistogram(in.Mask, user, in.ImageWidth, in.ImageHeight, c.cfg)
	bearing := bearingTo(user, target)

	chosen, blocked := selectDirection(hist, bearing, c.cfg)
	danger := 0
	if blocked {
		danger = 2
	} else {
		danger = dangerAround(hist, chosen, c.cfg)
	}

	out := Output{
		DangerLevel:    danger,
		TargetCentered: centered,
		Path:           c.displayPath(user, target, chosen, dist),
	}

	if !centered {
		out.Command = turnCommand(angleOffset, danger)
		return out
	}
	out.Command = forwardCommand(danger, c.distanceBucket(dist, in.ImageHeight))
	return out
}

// distanceBucket coarsely grades the pixel distance to the target against
// the frame height.
func (c *Controller) distanceBucket(dist float64, imageHeight int) int {
	h := float64(imageHeight)
	switch {
	case dist < h*0.25:
		return distClose
	case dist > h*0.6:
		return distFar
	default:
		return distAhead
	}
}

// displayPath synthesizes an overlay-only route: out along the chosen
// avoidance bearing for the first half, then straight to the target. Never
// used for re-planning.
func (c *Controller) displayPath(user, target planner.Point, bearingDeg, dist float64) planner.Path {
	rad := bearingDeg * math.Pi / 180
	mid := planner.Point{
		X: user.X + math.Sin(rad)*dist/2,
		Y: user.Y - math.Cos(rad)*dist/2,
	}
	return planner.Path{user, mid, target}
}

// bearingTo returns the bearing from a to b in degrees, where 0° points up
// the image (forward) and positive angles turn clockwise (right).
func bearingTo(a, b planner.Point) float64 {
	return math.Atan2(b.X-a.X, a.Y-b.Y) * 180 / math.Pi
}
