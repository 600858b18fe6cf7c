// Package frames receives camera frames and orientation updates from the
// device bridge over a websocket.
//
// The bridge sends binary messages carrying JPEG frames and text messages
// carrying JSON sensor packets. Frames are latest-wins: each one replaces
// the previous, and delivery to the pipeline never queues.
package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayfindr/go-wayfind/internal/log"
	"github.com/wayfindr/go-wayfind/pkg/pipeline"
)

// Config holds the bridge connection settings.
type Config struct {
	// URL is the bridge websocket endpoint, e.g. ws://127.0.0.1:8765/stream.
	URL string

	HandshakeTimeout time.Duration

	// ReconnectDelay is the initial backoff after a dropped connection; it
	// doubles up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// BearingMaxAge is how long an orientation reading stays usable.
	BearingMaxAge time.Duration
}

// DefaultConfig returns bridge settings for a local device.
func DefaultConfig() Config {
	return Config{
		URL:               "ws://127.0.0.1:8765/stream",
		HandshakeTimeout:  10 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		BearingMaxAge:     2 * time.Second,
	}
}

// orientationPacket is the JSON sensor message from the bridge.
type orientationPacket struct {
	Type    string  `json:"type"`
	Azimuth float64 `json:"azimuth"`
}

// Client is the bridge connection. It satisfies pipeline.BearingSource so
// the orientation stream can back the steering strategy directly.
type Client struct {
	cfg     Config
	onFrame func(pipeline.Frame)

	mu     sync.RWMutex
	latest pipeline.Frame
	has    bool

	azimuthBits atomic.Uint64
	azimuthAt   atomic.Int64 // unix nanos, 0 = never

	closed atomic.Bool
}

// NewClient creates a bridge client. onFrame is called on the read goroutine
// for every received frame and must not block; pass nil to only poll with
// LatestFrame.
func NewClient(cfg Config, onFrame func(pipeline.Frame)) *Client {
	return &Client{cfg: cfg, onFrame: onFrame}
}

// Run connects to the bridge and reads until ctx is cancelled, reconnecting
// with exponential backoff after drops.
func (c *Client) Run(ctx context.Context) error {
	delay := c.cfg.ReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn("bridge connect failed", "url", c.cfg.URL, "err", err, "retry_in", delay)
		} else {
			delay = c.cfg.ReconnectDelay
			err = c.readLoop(ctx, conn)
			conn.Close()
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Warn("bridge connection lost", "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handleFrame(data)
		case websocket.TextMessage:
			c.handleSensor(data)
		}
	}
}

func (c *Client) handleFrame(jpeg []byte) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(jpeg))
	if err != nil {
		log.Warn("discarding undecodable frame", "err", err, "bytes", len(jpeg))
		return
	}

	frame := pipeline.NewFrame(jpeg, cfg.Width, cfg.Height)

	c.mu.Lock()
	c.latest = frame
	c.has = true
	c.mu.Unlock()

	if c.onFrame != nil {
		c.onFrame(frame)
	}
}

func (c *Client) handleSensor(data []byte) {
	var pkt orientationPacket
	if err := json.Unmarshal(data, &pkt); err != nil || pkt.Type != "orientation" {
		return
	}
	c.azimuthBits.Store(math.Float64bits(pkt.Azimuth))
	c.azimuthAt.Store(time.Now().UnixNano())
}

// LatestFrame returns the most recent frame, if any has arrived.
func (c *Client) LatestFrame() (pipeline.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.has
}

// CurrentAzimuth returns the latest compass heading in degrees. Readings
// older than BearingMaxAge are reported unavailable so navigation degrades
// to path following instead of steering on a stale bearing.
func (c *Client) CurrentAzimuth() (float64, bool) {
	at := c.azimuthAt.Load()
	if at == 0 || time.Since(time.Unix(0, at)) > c.cfg.BearingMaxAge {
		return 0, false
	}
	return math.Float64frombits(c.azimuthBits.Load()), true
}
