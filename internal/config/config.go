// Package config provides configuration helpers for go-wayfind commands.
package config

import (
	"os"
	"runtime"
)

// Defaults for the wayfind command.
const (
	DefaultBridgeURL     = "ws://127.0.0.1:8765/stream"
	DefaultDashboardPort = "8090"
	DefaultTargetLabel   = "chair"
)

// BridgeURL returns the device bridge websocket URL from BRIDGE_URL.
func BridgeURL() string {
	if url := os.Getenv("BRIDGE_URL"); url != "" {
		return url
	}
	return DefaultBridgeURL
}

// DashboardPort returns the dashboard port from DASHBOARD_PORT.
func DashboardPort() string {
	if port := os.Getenv("DASHBOARD_PORT"); port != "" {
		return port
	}
	return DefaultDashboardPort
}

// TargetLabel returns the initial navigation target from TARGET_LABEL.
func TargetLabel() string {
	if label := os.Getenv("TARGET_LABEL"); label != "" {
		return label
	}
	return DefaultTargetLabel
}

// LogLevel returns the log level from LOG_LEVEL, defaulting to info.
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// Tier grades the host device for pipeline tuning.
type Tier int

const (
	// TierConstrained is a low-core or emulated device: slower frame
	// admission and more segmentation reuse.
	TierConstrained Tier = iota
	// TierCapable is a device that can sustain the full pipeline rate.
	TierCapable
)

// String returns the tier name.
func (t Tier) String() string {
	if t == TierCapable {
		return "capable"
	}
	return "constrained"
}

// ProbeTier grades the device. DEVICE_TIER=constrained|capable overrides
// the CPU-count heuristic.
func ProbeTier() Tier {
	switch os.Getenv("DEVICE_TIER") {
	case "constrained":
		return TierConstrained
	case "capable":
		return TierCapable
	}
	if runtime.NumCPU() < 4 {
		return TierConstrained
	}
	return TierCapable
}
