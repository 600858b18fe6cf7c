package frames

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
	"time"

	"github.com/wayfindr/go-wayfind/pkg/pipeline"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestHandleFrameDecodesDimensions(t *testing.T) {
	var got pipeline.Frame
	c := NewClient(DefaultConfig(), func(f pipeline.Frame) { got = f })

	c.handleFrame(encodeJPEG(t, 32, 24))

	latest, ok := c.LatestFrame()
	if !ok {
		t.Fatal("Expected a latest frame after delivery")
	}
	if latest.Width != 32 || latest.Height != 24 {
		t.Errorf("Expected 32x24 frame, got %dx%d", latest.Width, latest.Height)
	}
	if got.ID == "" || got.ID != latest.ID {
		t.Errorf("Callback frame should match the stored frame, got %q vs %q", got.ID, latest.ID)
	}
}

func TestHandleFrameRejectsGarbage(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)
	c.handleFrame([]byte("definitely not a jpeg"))
	if _, ok := c.LatestFrame(); ok {
		t.Error("Expected undecodable data to be discarded")
	}
}

func TestLatestFrameWins(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)
	c.handleFrame(encodeJPEG(t, 16, 16))
	c.handleFrame(encodeJPEG(t, 64, 48))

	latest, _ := c.LatestFrame()
	if latest.Width != 64 || latest.Height != 48 {
		t.Errorf("Expected the newer frame to replace the older, got %dx%d",
			latest.Width, latest.Height)
	}
}

func TestCurrentAzimuth(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)

	if _, ok := c.CurrentAzimuth(); ok {
		t.Fatal("Expected no bearing before any sensor packet")
	}

	c.handleSensor([]byte(`{"type":"orientation","azimuth":123.5}`))
	az, ok := c.CurrentAzimuth()
	if !ok || math.Abs(az-123.5) > 1e-9 {
		t.Fatalf("Expected azimuth 123.5, got %.3f (ok=%v)", az, ok)
	}

	// Stale readings are reported unavailable.
	c.azimuthAt.Store(time.Now().Add(-time.Minute).UnixNano())
	if _, ok := c.CurrentAzimuth(); ok {
		t.Error("Expected a stale bearing to be unavailable")
	}
}

func TestHandleSensorIgnoresOtherPackets(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)
	c.handleSensor([]byte(`{"type":"battery","level":80}`))
	c.handleSensor([]byte(`not json`))
	if _, ok := c.CurrentAzimuth(); ok {
		t.Error("Expected non-orientation packets to be ignored")
	}
}
