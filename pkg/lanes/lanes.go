// Package lanes provides the fixed worker lanes the pipeline runs on: one
// serialized lane for ML inference, a CPU-sized lane for image work, and a
// small lane for I/O-bound setup.
//
// Lanes are constructed explicitly by the application and injected into the
// pipeline; there are no process-wide singletons. Shut down with Shutdown.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrShutdown is returned when work is submitted after Shutdown.
var ErrShutdown = errors.New("lanes: shut down")

// Config sizes the lanes. Zero values fall back to defaults.
type Config struct {
	// ImageWorkers bounds the image-processing lane. Defaults to the CPU
	// core count.
	ImageWorkers int

	// IOWorkers bounds the setup/model-loading lane. Defaults to 2.
	IOWorkers int
}

// Lanes owns the worker goroutines.
type Lanes struct {
	ml    chan task
	image chan task
	io    chan task

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

type task struct {
	fn   func() error
	done chan error
}

// New starts the worker lanes.
func New(cfg Config) *Lanes {
	if cfg.ImageWorkers <= 0 {
		cfg.ImageWorkers = runtime.NumCPU()
	}
	if cfg.IOWorkers <= 0 {
		cfg.IOWorkers = 2
	}

	l := &Lanes{
		ml:    make(chan task),
		image: make(chan task, cfg.ImageWorkers),
		io:    make(chan task, cfg.IOWorkers),
		quit:  make(chan struct{}),
	}

	// Exactly one ML worker: the inference runtimes do not support
	// concurrent calls, so this lane serializes them.
	l.wg.Add(1)
	go l.worker(l.ml)

	for i := 0; i < cfg.ImageWorkers; i++ {
		l.wg.Add(1)
		go l.worker(l.image)
	}
	for i := 0; i < cfg.IOWorkers; i++ {
		l.wg.Add(1)
		go l.worker(l.io)
	}
	return l
}

func (l *Lanes) worker(ch chan task) {
	defer l.wg.Done()
	for {
		select {
		case <-l.quit:
			return
		case t := <-ch:
			t.done <- runGuarded(t.fn)
		}
	}
}

// runGuarded converts a panic in the task into an error, so a crashing
// inference runtime fails the one call instead of killing the process.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lanes: task panicked: %v", r)
		}
	}()
	return fn()
}

// RunML executes fn on the serialized inference lane and waits for it to
// finish or for ctx to expire. On ctx expiry the wait is abandoned but fn
// still runs to completion on the lane; inference cannot be interrupted
// mid-call.
func (l *Lanes) RunML(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case <-l.quit:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	case l.ml <- t:
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunImage executes fn on the image lane, running it on the caller when the
// lane is saturated. Overflow degrades to caller-runs instead of queueing
// without bound.
func (l *Lanes) RunImage(fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case <-l.quit:
		return ErrShutdown
	case l.image <- t:
		return <-t.done
	default:
		return runGuarded(fn)
	}
}

// RunIO executes fn on the setup lane and waits, honoring ctx while waiting
// to submit.
func (l *Lanes) RunIO(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case <-l.quit:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	case l.io <- t:
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work and waits up to the given timeout for
// in-flight tasks to drain.
func (l *Lanes) Shutdown(timeout time.Duration) error {
	l.once.Do(func() { close(l.quit) })

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("lanes: shutdown timed out")
	}
}
