package domain

import (
	"context"
)

// EventBus moves pipeline events between the API, the async worker and
// downstream consumers. Each message belongs to one tenant.
type EventBus interface {
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe delivers topic messages for tenantID to handler. Passing
	// AnyTenant receives the topic for all tenants.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request publishes payload and blocks until a reply arrives or ctx ends.
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler handles one delivered message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope carried on the bus.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is a live registration returned by Subscribe.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects the bus implementation.
type EventBusConfig struct {
	Type string // "channel" or "nats"

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// AnyTenant subscribes to a topic across all tenants.
const AnyTenant = "*"

// Pipeline topics.
const (
	TopicApplicationSubmitted = "truerev.application.submitted"
	TopicAssessmentCompleted  = "truerev.assessment.completed"
	TopicAssessmentReview     = "truerev.assessment.review"
)
