// Wayfind - real-time indoor navigation assistant.
// Guides a user toward a visual target using camera frames and an
// orientation sensor streamed from a device bridge.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/wayfindr/go-wayfind/pkg/app"
)

func main() {
	cfg := parseFlags()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := a.Init(); err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("Runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	bridge := flag.String("bridge", cfg.BridgeURL, "Device bridge websocket URL (overrides BRIDGE_URL)")
	port := flag.String("port", cfg.DashboardPort, "Dashboard listen port (overrides DASHBOARD_PORT)")
	target := flag.String("target", cfg.TargetLabel, "Initial navigation target label (overrides TARGET_LABEL)")
	detectModel := flag.String("detect-model", cfg.DetectModel, "Path to the detection ONNX model")
	segmentModel := flag.String("segment-model", cfg.SegmentModel, "Path to the floor segmentation ONNX model")
	flag.Parse()

	cfg.Debug = *debug
	cfg.BridgeURL = *bridge
	cfg.DashboardPort = *port
	cfg.TargetLabel = *target
	cfg.DetectModel = *detectModel
	cfg.SegmentModel = *segmentModel
	return cfg
}
