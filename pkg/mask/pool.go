package mask

import "sync"

// maxFreePerSize bounds how many spare masks are kept per dimension key.
const maxFreePerSize = 4

// Pool recycles mask buffers by (width, height). Masks churn once per
// segmentation pass, so ownership is explicit: Get hands out an owned
// buffer, Put returns it. Never Put a mask that is still referenced by an
// in-flight frame or dashboard broadcast.
type Pool struct {
	mu   sync.Mutex
	free map[[2]int][]*Mask
}

// NewPool creates an empty mask pool.
func NewPool() *Pool {
	return &Pool{free: make(map[[2]int][]*Mask)}
}

// Get returns a mask of the requested size, reusing a pooled buffer when one
// is available. Recycled masks come back fully reset.
func (p *Pool) Get(width, height int) *Mask {
	key := [2]int{width, height}

	p.mu.Lock()
	list := p.free[key]
	if n := len(list); n > 0 {
		m := list[n-1]
		p.free[key] = list[:n-1]
		p.mu.Unlock()
		m.Reset()
		return m
	}
	p.mu.Unlock()

	return New(width, height)
}

// Put returns a mask to the pool. Oversubscribed sizes are dropped and left
// to the garbage collector.
func (p *Pool) Put(m *Mask) {
	if m == nil {
		return
	}
	key := [2]int{m.Width, m.Height}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free[key]) >= maxFreePerSize {
		return
	}
	p.free[key] = append(p.free[key], m)
}
