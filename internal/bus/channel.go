package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/truerev/internal/domain"
)

// ChannelBus is the in-process event bus of the community tier.
// Delivery is at-most-once: a subscriber whose buffer is full misses the
// message and the drop is counted.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[string]map[string]*channelSubscription // key -> id -> sub
	closed     bool

	dropped atomic.Int64
}

type channelSubscription struct {
	id      string
	key     string
	topic   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	bus     *ChannelBus
}

// NewChannelBus creates a channel bus whose subscribers buffer bufferSize
// messages each.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]*channelSubscription),
	}
}

// Publish fans a message out to the tenant's subscribers and to wildcard
// subscribers of the topic. It never blocks on a slow subscriber.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if err := checkPublish(tenantID); err != nil {
		return err
	}
	return b.deliver(newMessage(tenantID, topic, payload))
}

// Subscribe starts a goroutine delivering the topic's messages to handler
// until the subscription, ctx or the bus is closed.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		id:      uuid.New().String(),
		key:     channelKey(tenantID, topic),
		topic:   topic,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
		bus:     b,
	}
	if b.subs[sub.key] == nil {
		b.subs[sub.key] = make(map[string]*channelSubscription)
	}
	b.subs[sub.key][sub.id] = sub

	go sub.run()
	return sub, nil
}

func (s *channelSubscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.msgCh:
			if err := s.handler(s.ctx, msg); err != nil {
				slog.Error("handler error",
					"tenant_id", msg.TenantID,
					"topic", msg.Topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Request publishes payload and waits for the first message on the
// per-request reply topic "<topic>.reply.<id>". Responders read the reply
// topic from the "reply_to" metadata key.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if err := checkPublish(tenantID); err != nil {
		return nil, err
	}

	replyTopic := topic + ".reply." + uuid.New().String()
	replyCh := make(chan []byte, 1)
	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(_ context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	msg := newMessage(tenantID, topic, payload)
	msg.Metadata["reply_to"] = replyTopic
	if err := b.deliver(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, context.DeadlineExceeded
	}
}

// deliver hands a prepared message to the topic's subscribers.
func (b *ChannelBus) deliver(msg *domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, key := range []string{channelKey(msg.TenantID, msg.Topic), channelKey(domain.AnyTenant, msg.Topic)} {
		for _, sub := range b.subs[key] {
			select {
			case sub.msgCh <- msg:
			default:
				b.dropped.Add(1)
				slog.Warn("subscriber buffer full, message dropped",
					"tenant_id", msg.TenantID,
					"topic", msg.Topic,
					"message_id", msg.ID,
				)
			}
		}
	}
	return nil
}

// Ping reports whether the bus is still open.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every subscription. It is safe to call more than once.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.subs = make(map[string]map[string]*channelSubscription)
	return nil
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *ChannelBus) Dropped() int64 {
	return b.dropped.Load()
}

func channelKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Unsubscribe stops delivery and detaches the subscription from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.mu.Lock()
	if subs, ok := s.bus.subs[s.key]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.subs, s.key)
		}
	}
	s.bus.mu.Unlock()
	return nil
}

func (s *channelSubscription) Topic() string {
	return s.topic
}
