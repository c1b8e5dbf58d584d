package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// NATSBus bridges the event bus interface onto NATS. Tenant isolation is
// carried in the subject: kestrel.<tenant>.<topic>.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the configured NATS server.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("kestrel"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
	}
	if cfg.NATSReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(time.Duration(cfg.NATSReconnectWait)*time.Second))
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(cfg.NATSUrl, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSBus{conn: conn}, nil
}

// subject namespaces the topic under the tenant so one NATS cluster serves
// many tenants: kestrel.<tenant>.<topic without the product prefix>.
func subject(tenantID, topic string) string {
	return "kestrel." + tenantID + "." + strings.TrimPrefix(topic, "kestrel.")
}

// Publish sends a message to the tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID, topic string, payload []byte) error {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return b.conn.Publish(subject(tenantID, topic), data)
}

// Subscribe registers a handler for the tenant's subject.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	sub, err := b.conn.Subscribe(subject(tenantID, topic), func(natsMsg *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
			// Foreign publisher on our subject; skip.
			return
		}
		_ = handler(context.Background(), &msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &natsSub{sub: sub, topic: topic}, nil
}

// Request sends a message and waits for a reply within the context
// deadline.
func (b *NATSBus) Request(ctx context.Context, tenantID, topic string, payload []byte) ([]byte, error) {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	reply, err := b.conn.RequestWithContext(ctx, subject(tenantID, topic), data)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return reply.Data, nil
}

// Ping checks the connection.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats disconnected: %s", b.conn.Status())
	}
	return nil
}

// Close drains in-flight messages and disconnects.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

type natsSub struct {
	sub   *nats.Subscription
	topic string
}

func (s *natsSub) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func (s *natsSub) Topic() string {
	return s.topic
}
