// Package segment produces per-frame floor walkability masks with an ONNX
// semantic-segmentation model run through OpenCV's DNN module.
//
// The segmenter is the pipeline's quality sink: the governor's knob scales
// the model input resolution, trading mask fidelity for inference speed on
// constrained devices.
package segment

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/wayfindr/go-wayfind/internal/log"
	"github.com/wayfindr/go-wayfind/pkg/mask"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
)

// Config holds segmenter configuration
type Config struct {
	ModelPath string

	// BaseInputSize is the model input side length at quality 1.0. The
	// effective size scales with the quality knob, snapped to a multiple
	// of 32 and never below MinInputSize.
	BaseInputSize int
	MinInputSize  int

	// FloorThreshold is the per-pixel probability above which a pixel
	// counts as walkable floor.
	FloorThreshold float32
}

// DefaultConfig returns production defaults for the floor model.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "models/floorseg.onnx",
		BaseInputSize:  512,
		MinInputSize:   64,
		FloorThreshold: 0.5,
	}
}

// Segmenter runs floor segmentation. Calls are serialized internally; the
// DNN runtime does not support concurrent forward passes.
type Segmenter struct {
	net    gocv.Net
	config Config
	pool   *mask.Pool
	mu     sync.Mutex

	quality atomic.Uint64 // float64 bits
}

// New loads the ONNX model. Masks are allocated from the given pool.
func New(cfg Config, pool *mask.Pool) (*Segmenter, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load segmentation model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if pool == nil {
		pool = mask.NewPool()
	}
	s := &Segmenter{net: net, config: cfg, pool: pool}
	s.quality.Store(math.Float64bits(1.0))
	return s, nil
}

// SetQuality receives the governor's knob, clamped to (0, 1].
func (s *Segmenter) SetQuality(q float64) {
	if q <= 0 {
		q = 0.01
	} else if q > 1 {
		q = 1
	}
	s.quality.Store(math.Float64bits(q))
	log.Info("segmentation quality adjusted",
		"quality", q, "input_size", s.inputSize())
}

// inputSize returns the current model input side length.
func (s *Segmenter) inputSize() int {
	q := math.Float64frombits(s.quality.Load())
	return snapSize(int(float64(s.config.BaseInputSize)*q), s.config.MinInputSize)
}

// snapSize rounds a side length down to a multiple of 32 with a floor.
func snapSize(side, minSide int) int {
	side -= side % 32
	if side < minSide {
		return minSide
	}
	return side
}

// SegmentFloor runs the model on the frame and returns a frame-aligned
// walkability mask drawn from the pool.
func (s *Segmenter) SegmentFloor(frame pipeline.Frame) (*mask.Mask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	side := s.inputSize()
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(side, side),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	probs, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}
	// Output shape is [1, 1, side, side]: one floor probability per pixel.
	if len(probs) < side*side {
		return nil, fmt.Errorf("unexpected model output size %d for input %d", len(probs), side)
	}

	return s.rasterize(probs, side, frame.Width, frame.Height), nil
}

// rasterize upsamples the model's probability map to frame resolution with
// nearest-neighbor sampling and thresholds it into a walkability mask.
func (s *Segmenter) rasterize(probs []float32, side, width, height int) *mask.Mask {
	m := s.pool.Get(width, height)
	for y := 0; y < height; y++ {
		my := y * side / height
		for x := 0; x < width; x++ {
			mx := x * side / width
			if probs[my*side+mx] > s.config.FloorThreshold {
				m.SetWalkable(x, y, true)
			}
		}
	}
	return m
}

// Close releases the network.
func (s *Segmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.net.Close()
	return nil
}
