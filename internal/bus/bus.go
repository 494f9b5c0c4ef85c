// Package bus carries underwriting events between the API, the async
// worker and downstream consumers.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/truerev/internal/domain"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus is closed")

	// ErrTenantRequired is returned when a call carries no tenant.
	ErrTenantRequired = errors.New("tenantID is required")
)

// requestTimeout bounds Request when the context has no deadline.
const requestTimeout = 30 * time.Second

// New creates the event bus selected by cfg.Type: "channel" for the
// in-process bus, "nats" for a NATS connection.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}

// checkPublish validates the tenant of an outgoing message. Wildcards are
// only valid on subscriptions.
func checkPublish(tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if tenantID == domain.AnyTenant {
		return fmt.Errorf("cannot publish to wildcard tenant %q", tenantID)
	}
	return nil
}
