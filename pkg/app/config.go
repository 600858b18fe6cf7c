// Package app wires the navigation pipeline, device bridge, announcer, and
// dashboard into one runnable application.
package app

import (
	"errors"
	"time"

	"github.com/wayfindr/go-wayfind/internal/config"
	"github.com/wayfindr/go-wayfind/pkg/detect"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
	"github.com/wayfindr/go-wayfind/pkg/segment"
)

// Config holds all configuration for the wayfind application.
// Flag parsing is done in cmd/wayfind/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// BridgeURL is the device bridge websocket endpoint.
	BridgeURL string

	// DashboardPort is the web dashboard listen port.
	DashboardPort string

	// TargetLabel is the initial navigation target.
	TargetLabel string

	// Model paths.
	DetectModel  string
	SegmentModel string

	// Tier selects the pipeline tuning profile.
	Tier config.Tier

	// AnnounceHoldOff suppresses repeats of the same spoken command.
	AnnounceHoldOff time.Duration
}

// DefaultConfig returns defaults with the device tier probed from the host.
func DefaultConfig() Config {
	return Config{
		BridgeURL:       config.DefaultBridgeURL,
		DashboardPort:   config.DefaultDashboardPort,
		TargetLabel:     config.DefaultTargetLabel,
		DetectModel:     detect.DefaultConfig().ModelPath,
		SegmentModel:    segment.DefaultConfig().ModelPath,
		Tier:            config.ProbeTier(),
		AnnounceHoldOff: 3 * time.Second,
	}
}

// LoadEnvConfig applies environment overrides. Call after flag parsing.
func (c *Config) LoadEnvConfig() {
	c.BridgeURL = envOr(c.BridgeURL, config.BridgeURL(), config.DefaultBridgeURL)
	c.DashboardPort = envOr(c.DashboardPort, config.DashboardPort(), config.DefaultDashboardPort)
	c.TargetLabel = envOr(c.TargetLabel, config.TargetLabel(), config.DefaultTargetLabel)
}

// envOr keeps a flag-set value, otherwise takes the env value.
func envOr(current, env, def string) string {
	if current != def && current != "" {
		return current
	}
	return env
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.TargetLabel == "" {
		return errors.New("app: target label is required")
	}
	if !detect.KnownLabel(c.TargetLabel) {
		return errors.New("app: target label is not detectable: " + c.TargetLabel)
	}
	return nil
}

// pipelineConfig builds the scheduler configuration for the device tier.
func (c *Config) pipelineConfig() pipeline.Config {
	var pc pipeline.Config
	if c.Tier == config.TierConstrained {
		pc = pipeline.ConstrainedConfig()
	} else {
		pc = pipeline.DefaultConfig()
	}
	pc.TargetLabels = []string{c.TargetLabel}
	return pc
}
