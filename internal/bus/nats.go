package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/truerev/internal/domain"
)

// subjectPrefix namespaces every subject this service publishes.
const subjectPrefix = "truerev"

// NATSBus is the pro tier event bus. Subjects are
// "truerev.<tenant>.<topic>" so a wildcard subscription maps onto the NATS
// single-token wildcard.
type NATSBus struct {
	mu   sync.Mutex
	conn *nats.Conn
	subs map[*nats.Subscription]struct{}
}

type natsSubscription struct {
	topic string
	sub   *nats.Subscription
	bus   *NATSBus
}

// NewNATSBus connects to cfg.NATSUrl, retrying the initial dial up to
// NATSMaxReconnects times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects <= 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait <= 0 {
		cfg.NATSReconnectWait = 5
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.Name("truerev"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS error", "subject", subject, "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var (
		conn *nats.Conn
		err  error
	)
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err = nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			break
		}
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		if attempt < cfg.NATSMaxReconnects {
			time.Sleep(wait)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, err)
	}

	slog.Info("NATS connected", "url", conn.ConnectedUrl(), "server_id", conn.ConnectedServerId())
	return &NATSBus{conn: conn, subs: make(map[*nats.Subscription]struct{})}, nil
}

// Publish sends the message envelope to the tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if err := checkPublish(tenantID); err != nil {
		return err
	}
	data, err := json.Marshal(newMessage(tenantID, topic, payload))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.conn.Publish(subject(tenantID, topic), data)
}

// Subscribe delivers the topic's envelopes to handler. Undecodable
// envelopes and handler errors are logged.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	ns, err := b.conn.Subscribe(subject(tenantID, topic), func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("failed to unmarshal NATS message", "subject", m.Subject, "error", err)
			return
		}
		if m.Reply != "" {
			msg.Metadata = withReply(msg.Metadata, m.Reply)
		}
		if err := handler(ctx, &msg); err != nil {
			slog.Error("handler error",
				"subject", m.Subject,
				"tenant_id", msg.TenantID,
				"message_id", msg.ID,
				"error", err,
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs[ns] = struct{}{}
	b.mu.Unlock()
	return &natsSubscription{topic: topic, sub: ns, bus: b}, nil
}

// Request uses NATS request-reply. The reply body is a message envelope.
func (b *NATSBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if err := checkPublish(tenantID); err != nil {
		return nil, err
	}
	data, err := json.Marshal(newMessage(tenantID, topic, payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}
	reply, err := b.conn.RequestWithContext(ctx, subject(tenantID, topic), data)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	var out domain.Message
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	return out.Payload, nil
}

// Ping flushes the connection to confirm the server is reachable.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected: %s", b.conn.Status())
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains open subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	for s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.subs = make(map[*nats.Subscription]struct{})
	b.mu.Unlock()

	b.conn.Close()
	return nil
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

func subject(tenantID, topic string) string {
	return subjectPrefix + "." + tenantID + "." + topic
}

func withReply(md map[string]string, reply string) map[string]string {
	if md == nil {
		md = make(map[string]string, 1)
	}
	md["reply_to"] = reply
	return md
}

func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.sub)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) Topic() string {
	return s.topic
}
