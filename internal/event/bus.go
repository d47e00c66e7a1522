// Package event provides an in-process pub/sub bus for turn-engine
// lifecycle notifications (session, message, permission, checkpoint).
// Publish actually round-trips events through watermill's gochannel
// transport rather than holding it as inert plumbing: the turn engine
// never talks to gochannel directly, only to this package, so swapping
// in a distributed watermill backend later is a change local to this
// file.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies the kind of event published on the bus.
type Type string

const (
	SessionCreated     Type = "session.created"
	SessionUpdated     Type = "session.updated"
	SessionDeleted     Type = "session.deleted"
	SessionExpired     Type = "session.expired"
	MessageAppended    Type = "message.appended"
	TurnStarted        Type = "turn.started"
	TurnInterrupted    Type = "turn.interrupted"
	TurnEnded          Type = "turn.ended"
	AssistantTextDelta Type = "turn.assistant_text"
	ThinkingDelta      Type = "turn.thinking"
	ToolUseStarted     Type = "turn.tool_use"
	ToolResultReceived Type = "turn.tool_result"
	PermissionRequired Type = "permission.required"
	PermissionResolved Type = "permission.resolved"
	QuestionRequired   Type = "question.required"
	PermissionModeSet  Type = "permission.mode_set"
	CheckpointCaptured Type = "checkpoint.captured"
	CheckpointEvicted  Type = "checkpoint.evicted"
	CheckpointRestored Type = "checkpoint.restored"
)

// broadcastTopic is the watermill topic every event is additionally
// published to, so SubscribeAll needs only one watermill subscription
// instead of one per Type.
const broadcastTopic Type = "*"

// Event is a single notification carried on the bus.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Subscriber receives events it is subscribed to.
type Subscriber func(Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is the event bus. Publish JSON-encodes the event and hands it to
// watermill's gochannel on the event's own topic and on broadcastTopic;
// a consumer goroutine per topic, started lazily on first Subscribe,
// decodes incoming messages and fans them out to whichever Go
// subscribers are registered at delivery time. PublishSync bypasses the
// transport and calls subscribers directly in the publishing goroutine,
// giving synchronous, in-order delivery that an async pub/sub hop can't
// guarantee; the packages of this module all publish through Publish.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[Type][]subscriberEntry
	global      []subscriberEntry
	consuming   map[Type]bool

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

var globalBus = newBus()

func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100, Persistent: false},
			watermill.NopLogger{},
		),
		subscribers:  make(map[Type][]subscriberEntry),
		consuming:    make(map[Type]bool),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 { return atomic.AddUint64(&b.nextID, 1) }

// Subscribe registers fn for events of the given type, returning an
// unsubscribe function.
func Subscribe(t Type, fn Subscriber) func() { return globalBus.Subscribe(t, fn) }

func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.newID()
	b.subscribers[t] = append(b.subscribers[t], subscriberEntry{id: id, fn: fn})
	startConsumer := !b.consuming[t]
	if startConsumer {
		b.consuming[t] = true
	}
	b.mu.Unlock()

	if startConsumer {
		b.consume(t)
	}
	return func() { b.unsubscribe(t, id) }
}

// SubscribeAll registers fn for every event type.
func SubscribeAll(fn Subscriber) func() { return globalBus.SubscribeAll(fn) }

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	startConsumer := !b.consuming[broadcastTopic]
	if startConsumer {
		b.consuming[broadcastTopic] = true
	}
	b.mu.Unlock()

	if startConsumer {
		b.consume(broadcastTopic)
	}
	return func() { b.unsubscribeGlobal(id) }
}

// consume subscribes to topic on the watermill transport and, for as
// long as the bus lives, decodes each delivered message and dispatches
// it to whatever Go subscribers are registered for topic at the time.
func (b *Bus) consume(topic Type) {
	msgs, err := b.pubsub.Subscribe(b.closedCtx, string(topic))
	if err != nil {
		return
	}
	go func() {
		for msg := range msgs {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				msg.Ack()
				continue
			}
			for _, s := range b.recipientsFor(topic) {
				go s(e)
			}
			msg.Ack()
		}
	}()
}

func (b *Bus) recipientsFor(topic Type) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if topic == broadcastTopic {
		subs := make([]Subscriber, 0, len(b.global))
		for _, e := range b.global {
			subs = append(subs, e.fn)
		}
		return subs
	}
	subs := make([]Subscriber, 0, len(b.subscribers[topic]))
	for _, e := range b.subscribers[topic] {
		subs = append(subs, e.fn)
	}
	return subs
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[t]
	for i, e := range subs {
		if e.id == id {
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.global {
		if e.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish dispatches e to subscribers asynchronously via the watermill
// transport, one goroutine per subscriber, so a slow UI callback never
// blocks the turn engine.
func Publish(e Event) { globalBus.Publish(e) }

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	_ = b.pubsub.Publish(string(e.Type), msg)
	_ = b.pubsub.Publish(string(broadcastTopic), msg.Copy())
}

// PublishSync dispatches e to subscribers synchronously in the calling
// goroutine, preserving delivery order relative to the caller's next
// step and the exact Go type of e.Data (it skips the JSON round-trip
// Publish uses for its watermill hop).
func PublishSync(e Event) { globalBus.PublishSync(e) }

func (b *Bus) PublishSync(e Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[e.Type])+len(b.global))
	for _, entry := range b.subscribers[e.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s(e)
	}
}

// NewBus creates an independent bus instance, primarily for tests that
// don't want to share the process-global bus.
func NewBus() *Bus { return newBus() }

// Reset tears down and replaces the global bus. Test-only.
func Reset() {
	globalBus.mu.Lock()
	globalBus.closed = true
	globalBus.closedCancel()
	globalBus.mu.Unlock()
	_ = globalBus.pubsub.Close()
	time.Sleep(10 * time.Millisecond)
	globalBus = newBus()
}

// Close shuts the bus down; further Publish calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subscribers = make(map[Type][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}
