package gate

import (
	"context"
	"sync"
)

// Gate holds back submissions until the user is logged in.
//
// A closed gate buffers submissions in arrival order, one per key. A submission whose key
// is already buffered replaces the buffered one in place. Opening the gate forwards the
// buffer in order, then forwards later submissions directly. Closing it again starts a new
// buffer.
type Gate[A any] struct {
	keyOf   func(A) string
	forward func(A)

	mu       sync.Mutex
	open     bool
	buffer   []A
	buffered map[string]int
	opened   chan struct{}
	flushMu  sync.Mutex
}

// New returns a closed gate that hands released submissions to forward.
// forward must not call back into the gate.
func New[A any](keyOf func(A) string, forward func(A)) *Gate[A] {
	return &Gate[A]{
		keyOf:    keyOf,
		forward:  forward,
		buffered: map[string]int{},
		opened:   make(chan struct{}),
	}
}

// Submit forwards the submission if the gate is open, and buffers it otherwise.
// A buffered submission with the same key is replaced.
// Reports whether the submission was forwarded immediately.
func (g *Gate[A]) Submit(submission A) bool {
	g.flushMu.Lock()
	defer g.flushMu.Unlock()

	g.mu.Lock()
	if !g.open {
		key := g.keyOf(submission)
		if i, ok := g.buffered[key]; ok {
			g.buffer[i] = submission
		} else {
			g.buffered[key] = len(g.buffer)
			g.buffer = append(g.buffer, submission)
		}
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	g.forward(submission)
	return true
}

// Open releases the buffered submissions in arrival order. Opening an open gate is a no-op.
func (g *Gate[A]) Open() {
	g.flushMu.Lock()
	defer g.flushMu.Unlock()

	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return
	}
	g.open = true
	buffered := g.buffer
	g.buffer = nil
	clear(g.buffered)
	close(g.opened)
	g.mu.Unlock()

	for _, submission := range buffered {
		g.forward(submission)
	}
}

// Close makes the gate buffer again. Closing a closed gate is a no-op.
func (g *Gate[A]) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return
	}
	g.open = false
	g.opened = make(chan struct{})
}

func (g *Gate[A]) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Buffered returns the number of submissions waiting for the gate to open
func (g *Gate[A]) Buffered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buffer)
}

// Wait blocks until the gate is open or ctx is done
func (g *Gate[A]) Wait(ctx context.Context) error {
	g.mu.Lock()
	opened := g.opened
	g.mu.Unlock()

	select {
	case <-opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
