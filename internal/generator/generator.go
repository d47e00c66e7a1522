// Package generator implements the in-process lazy message stream that
// feeds a single agent runtime call: a cooperative single-consumer,
// multi-producer queue the UI can keep pushing into after the runtime call
// has already started consuming it.
package generator

import (
	"context"
	"sync"

	"github.com/agentcore/turnengine/pkg/types"
)

// StreamMessage is one element of the generator's queue: a user turn ready
// to be adapted and handed to the runtime.
type StreamMessage struct {
	Type    string        `json:"type"`
	Message types.Message `json:"message"`
}

// Generator is the LiveMessageGenerator. The zero value is not usable; use
// New. It is safe for concurrent Push calls from many goroutines alongside
// a single goroutine driving Generate.
type Generator struct {
	mu      sync.Mutex
	queue   []StreamMessage
	stopped bool
	wake    chan struct{}
}

// New creates a ready-to-use Generator.
func New() *Generator {
	return &Generator{wake: make(chan struct{}, 1)}
}

// notify wakes a blocked consumer exactly once. Buffered by 1 so a push
// that arrives before the consumer starts waiting is not lost: the send
// here happens-before the consumer's select observes it, and the queue
// append above happens-before this call, so a waiter that wakes always
// sees the new head.
func (g *Generator) notify() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Push enqueues m. If the generator is stopped, m is dropped silently.
// Otherwise m lands in the queue and any blocked consumer is woken.
func (g *Generator) Push(m StreamMessage) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.queue = append(g.queue, m)
	g.mu.Unlock()
	g.notify()
}

// Stop marks the generator stopped and wakes any waiting consumer so its
// Generate loop exits. The queue itself is left untouched; use ClearQueue
// to discard pending messages.
func (g *Generator) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
	g.notify()
}

// Reset clears the stopped flag and any pending wake signal, but leaves
// the queue as-is: messages pushed while no consumer was attached remain
// for the next Generate call to pick up.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.stopped = false
	g.mu.Unlock()
	select {
	case <-g.wake:
	default:
	}
}

// ClearQueue drains the queue and returns the number of messages discarded.
func (g *Generator) ClearQueue() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.queue)
	g.queue = nil
	return n
}

// PendingCount returns the current queue length.
func (g *Generator) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Generate returns the next StreamMessage, blocking until one is available
// or the generator is stopped. The second return value is false exactly
// when the generator has stopped and the queue is empty, signaling the
// consumer loop to exit cleanly; Generate never returns an error.
func (g *Generator) Generate() (StreamMessage, bool) {
	for {
		g.mu.Lock()
		if len(g.queue) > 0 {
			m := g.queue[0]
			g.queue = g.queue[1:]
			g.mu.Unlock()
			return m, true
		}
		if g.stopped {
			g.mu.Unlock()
			return StreamMessage{}, false
		}
		g.mu.Unlock()

		<-g.wake

		// Re-check stop flag after waking: a push and a stop can race to
		// deliver the wake-up, so the queue and stopped flag are the
		// source of truth, not which one fired the channel send.
	}
}

// GenerateCtx is Generate, but also returns (zero, false) if ctx is
// cancelled while waiting for a push. Used by a runtime adapter that needs
// to unblock an in-flight call on interruption even when the generator
// itself hasn't been stopped or pushed to.
func (g *Generator) GenerateCtx(ctx context.Context) (StreamMessage, bool) {
	for {
		g.mu.Lock()
		if len(g.queue) > 0 {
			m := g.queue[0]
			g.queue = g.queue[1:]
			g.mu.Unlock()
			return m, true
		}
		if g.stopped {
			g.mu.Unlock()
			return StreamMessage{}, false
		}
		g.mu.Unlock()

		select {
		case <-g.wake:
		case <-ctx.Done():
			return StreamMessage{}, false
		}
	}
}
