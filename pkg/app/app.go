package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wayfindr/go-wayfind/internal/log"
	"github.com/wayfindr/go-wayfind/pkg/announce"
	"github.com/wayfindr/go-wayfind/pkg/detect"
	"github.com/wayfindr/go-wayfind/pkg/frames"
	"github.com/wayfindr/go-wayfind/pkg/lanes"
	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
	"github.com/wayfindr/go-wayfind/pkg/segment"
	"github.com/wayfindr/go-wayfind/pkg/spatial"
	"github.com/wayfindr/go-wayfind/pkg/steering"
	"github.com/wayfindr/go-wayfind/pkg/web"
)

// App is the main application orchestrator. It owns every component and
// their lifecycle.
type App struct {
	config Config

	lanes *lanes.Lanes
	masks *mask.Pool

	detector  *detect.Detector
	segmenter *segment.Segmenter

	bridge  *frames.Client
	memory  *spatial.Memory
	sched   *pipeline.Scheduler
	speaker announce.Speaker
	server  *web.Server
}

// New creates the application from configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Debug {
		log.Init("debug")
	} else {
		log.Init("info")
	}
	return &App{config: cfg}, nil
}

// Init constructs and wires every component. Model loading happens here, so
// a missing model file fails fast rather than on the first frame.
func (a *App) Init() error {
	a.lanes = lanes.New(lanes.Config{})
	a.masks = mask.NewPool()

	// Model loading is slow on constrained devices; run it on the I/O lane
	// with a deadline so a wedged OpenCV build fails startup instead of
	// hanging it.
	loadCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err := a.lanes.RunIO(loadCtx, func() error {
		detCfg := detect.DefaultConfig()
		detCfg.ModelPath = a.config.DetectModel
		detector, derr := detect.New(detCfg)
		if derr != nil {
			return fmt.Errorf("init detector: %w", derr)
		}
		a.detector = detector

		segCfg := segment.DefaultConfig()
		segCfg.ModelPath = a.config.SegmentModel
		segmenter, serr := segment.New(segCfg, a.masks)
		if serr != nil {
			return fmt.Errorf("init segmenter: %w", serr)
		}
		a.segmenter = segmenter
		return nil
	})
	if err != nil {
		return err
	}

	bridgeCfg := frames.DefaultConfig()
	bridgeCfg.URL = a.config.BridgeURL
	a.bridge = frames.NewClient(bridgeCfg, a.onFrame)

	a.memory = spatial.New(a.bridge, spatial.DefaultConfig())

	sched, err := pipeline.NewScheduler(a.config.pipelineConfig(), pipeline.Deps{
		Detector:   a.detector,
		Segmenter:  a.segmenter,
		Lanes:      a.lanes,
		Directions: a.memory,
		Bearings:   a.bridge,
		Sightings:  a.memory,
		Quality:    a.segmenter,
		Masks:      a.masks,
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	a.sched = sched

	a.speaker = announce.NewThrottle(
		&announce.Console{W: os.Stdout}, a.config.AnnounceHoldOff)

	a.server = web.NewServer(a.config.DashboardPort)
	a.server.HealthFn = a.sched.Health
	a.server.OnSetTarget = a.setTarget
	a.server.SetTarget(a.config.TargetLabel)

	log.Info("wayfind initialized",
		"tier", a.config.Tier.String(),
		"target", a.config.TargetLabel,
		"bridge", a.config.BridgeURL,
		"dashboard_port", a.config.DashboardPort)
	return nil
}

// Run starts the dashboard and the bridge read loop and blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.server.StartAsync(ctx)

	err := a.bridge.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown stops the components in dependency order.
func (a *App) Shutdown() {
	if a.sched != nil {
		a.sched.Close()
	}
	if a.server != nil {
		a.server.Shutdown()
	}
	if a.lanes != nil {
		a.lanes.Shutdown(5 * time.Second)
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.segmenter != nil {
		a.segmenter.Close()
	}
	if a.speaker != nil {
		a.speaker.Close()
	}
	log.Info("wayfind stopped")
}

// onFrame runs on the bridge read goroutine for every received frame. The
// pipeline pass happens on its own goroutine so a slow pass never stalls the
// stream; the scheduler's admission control drops the excess.
func (a *App) onFrame(frame pipeline.Frame) {
	go func() {
		out, err := a.sched.Submit(context.Background(), frame)
		if err != nil {
			// Rejected or shutting down; the next frame will catch up.
			return
		}
		a.publish(frame, out)
	}()
}

// publish fans a navigation result out to the speaker and the dashboard.
func (a *App) publish(frame pipeline.Frame, out steering.Output) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.speaker.Speak(ctx, out.Command); err != nil {
		log.Warn("announcement failed", "err", err)
	}

	a.server.PublishOutput(out)
	a.server.PublishFrame(frame.JPEG)
}

// setTarget validates and applies a target change from the dashboard.
func (a *App) setTarget(label string) error {
	if !detect.KnownLabel(label) {
		return fmt.Errorf("not a detectable object: %s", label)
	}
	a.sched.SetTargetLabels([]string{label})
	log.Info("navigation target changed", "label", label)
	return nil
}
