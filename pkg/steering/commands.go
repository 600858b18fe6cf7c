package steering

import (
	"fmt"
	"math"
)

// Stable user-facing command strings. The pipeline and its consumers match
// on these, so they must not drift between frames.
const (
	CmdSearching       = "Searching for target..."
	CmdArrived         = "You have arrived at your target"
	CmdNoPath          = "No clear path to the target"
	CmdUnavailable     = "Navigation temporarily unavailable"
	CmdDegraded        = "Navigation is experiencing issues, please wait"
	CmdProcessingError = "Processing error, trying again"
	CmdStopBehind      = "Stop, the path leads behind you"
)

// Distance buckets for forward-motion phrasing.
const (
	distClose = iota
	distAhead
	distFar
)

// sideOf returns the spoken side for a signed angle, positive meaning right.
func sideOf(angle float64) string {
	if angle < 0 {
		return "left"
	}
	return "right"
}

// bearingCommand buckets a remembered azimuth difference into a turn
// instruction for an off-screen target.
func bearingCommand(azimuthDiff float64) string {
	a := math.Abs(azimuthDiff)
	side := sideOf(azimuthDiff)

	switch {
	case a < 10:
		return "Target should be straight ahead"
	case a < 30:
		return fmt.Sprintf("Turn slightly %s", side)
	case a < 90:
		return fmt.Sprintf("Turn %s about %d degrees", side, int(math.Round(a)))
	case a < 135:
		return fmt.Sprintf("Turn sharply %s", side)
	default:
		return "Turn around, the target is behind you"
	}
}

// turnCommand phrases a turn-to-center instruction scaled by the angular
// offset of the target from image center. A caution prefix is added whenever
// obstacles grade above clear.
func turnCommand(angleOffset float64, danger int) string {
	a := math.Abs(angleOffset)
	side := sideOf(angleOffset)

	var cmd string
	switch {
	case a > 15:
		cmd = fmt.Sprintf("Turn %s to face the target", side)
	case a >= 5:
		cmd = fmt.Sprintf("Turn slightly %s", side)
	default:
		cmd = "Almost centered, adjust slightly " + side
	}

	if danger > 0 {
		return "Caution, obstacles nearby. " + cmd
	}
	return cmd
}

// forwardCommand phrases a forward-motion instruction from the danger level
// and the coarse distance bucket.
func forwardCommand(danger, bucket int) string {
	if danger == 2 {
		return "Stop, obstacles ahead"
	}

	var cmd string
	switch bucket {
	case distClose:
		cmd = "Go forward, the target is close"
	case distFar:
		cmd = "Go forward, the target is far ahead"
	default:
		cmd = "Go forward, the target is ahead"
	}

	if danger == 1 {
		return cmd + ", move carefully"
	}
	return cmd
}
