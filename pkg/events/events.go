// Package events is the pub/sub seam between the install/uninstall
// engines and any reporting surface. The core emits structured events
// and plain data; it never formats human-readable strings itself.
// Buses are injected, not global, so parallel runs and tests stay
// isolated.
package events

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"
)

// Type names one kind of lifecycle event.
type Type string

const (
	InstallStarted   Type = "install.started"
	InstallResolved  Type = "install.resolved"
	InstallConflict  Type = "install.conflict"
	InstallCompleted Type = "install.completed"

	UninstallStarted   Type = "uninstall.started"
	UninstallRemoved   Type = "uninstall.removed"
	UninstallCompleted Type = "uninstall.completed"
)

// topic is the single watermill topic every lifecycle event flows
// through; subscribers filter by type on receipt.
const topic = "lodge.lifecycle"

// Event is one emitted lifecycle event. RunID groups every event of a
// single install or uninstall invocation.
type Event struct {
	Type  Type   `json:"type"`
	RunID string `json:"runId"`
	Data  any    `json:"data"`
}

// Subscriber receives events.
type Subscriber func(event Event)

// NewRunID returns a sortable unique identifier for one invocation.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Bus carries events over watermill's gochannel transport. Publish
// blocks until every subscriber has acked its copy, so an engine's
// events arrive in emission order. The wire payload holds the
// serializable fields; the typed Data value rides alongside in
// process, keyed by message UUID, so subscribers keep type
// information.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel
	ctx    context.Context
	cancel context.CancelFunc

	inflight sync.Map

	closed bool
}

// NewBus returns a ready bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: true,
			},
			watermill.NopLogger{},
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers a subscriber for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(eventType Type, fn Subscriber) func() {
	return b.subscribe(func(event Event) {
		if event.Type == eventType {
			fn(event)
		}
	})
}

// SubscribeAll registers a subscriber for every event type and returns
// its unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.subscribe(fn)
}

func (b *Bus) subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	ctx, cancel := context.WithCancel(b.ctx)
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return func() {}
	}

	var stopped atomic.Bool
	go func() {
		for msg := range messages {
			if event, ok := b.inflight.Load(msg.UUID); ok && !stopped.Load() {
				fn(event.(Event))
			}
			msg.Ack()
		}
	}()

	return func() {
		stopped.Store(true)
		cancel()
	}
}

// Publish delivers an event through the transport and returns once
// every subscriber has handled it.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	payload, err := json.Marshal(struct {
		Type  Type   `json:"type"`
		RunID string `json:"runId"`
	}{Type: event.Type, RunID: event.RunID})
	if err != nil {
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	b.inflight.Store(msg.UUID, event)
	defer b.inflight.Delete(msg.UUID)

	_ = b.pubsub.Publish(topic, msg)
}

// Close drops all subscribers; publishing after Close is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	b.mu.Unlock()

	return b.pubsub.Close()
}
