package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultChannelBuffer = 256

// ChannelBus is the in-process event bus. Handlers run on a dispatcher
// goroutine per subscription; delivery is at-most-once and drops when a
// subscriber's buffer is full.
type ChannelBus struct {
	mu     sync.RWMutex
	subs   map[string][]*channelSub // keyed by tenant|topic
	buffer int
	closed bool
}

type channelSub struct {
	bus     *ChannelBus
	tenant  string
	topic   string
	ch      chan *domain.Message
	handler domain.MessageHandler
	done    chan struct{}
	once    sync.Once
}

// NewChannelBus creates an in-process bus.
func NewChannelBus(buffer int) *ChannelBus {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	return &ChannelBus{
		subs:   make(map[string][]*channelSub),
		buffer: buffer,
	}
}

func subKey(tenantID, topic string) string {
	return tenantID + "|" + topic
}

// Publish delivers the message to every subscriber of the tenant's topic.
func (b *ChannelBus) Publish(ctx context.Context, tenantID, topic string, payload []byte) error {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("bus closed")
	}

	for _, sub := range b.subs[subKey(tenantID, topic)] {
		select {
		case sub.ch <- msg:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

// Subscribe registers a handler. The handler runs on a dedicated goroutine
// until Unsubscribe or bus close.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("bus closed")
	}

	sub := &channelSub{
		bus:     b,
		tenant:  tenantID,
		topic:   topic,
		ch:      make(chan *domain.Message, b.buffer),
		handler: handler,
		done:    make(chan struct{}),
	}
	key := subKey(tenantID, topic)
	b.subs[key] = append(b.subs[key], sub)

	go sub.dispatch()
	return sub, nil
}

// Request is not supported in-process; the pipeline is called directly when
// everything runs in one binary.
func (b *ChannelBus) Request(ctx context.Context, tenantID, topic string, payload []byte) ([]byte, error) {
	return nil, fmt.Errorf("request/reply is not supported by the channel bus")
}

// Ping reports bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("bus closed")
	}
	return nil
}

// Close stops all subscriptions.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.stop()
		}
	}
	b.subs = make(map[string][]*channelSub)
	return nil
}

func (s *channelSub) dispatch() {
	for {
		select {
		case msg := <-s.ch:
			// Handler errors are the handler's concern; the bus keeps
			// delivering.
			_ = s.handler(context.Background(), msg)
		case <-s.done:
			return
		}
	}
}

func (s *channelSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe removes the subscription and stops its dispatcher.
func (s *channelSub) Unsubscribe() error {
	s.bus.mu.Lock()
	key := subKey(s.tenant, s.topic)
	subs := s.bus.subs[key]
	for i, candidate := range subs {
		if candidate == s {
			s.bus.subs[key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()

	s.stop()
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSub) Topic() string {
	return s.topic
}
