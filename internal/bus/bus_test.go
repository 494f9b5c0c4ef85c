package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		_, err := bus.Subscribe(ctx, tenantID, domain.TopicAssessmentCompleted, func(_ context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, []byte(`{"score":72}`)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case msg := <-got:
			if string(msg.Payload) != `{"score":72}` {
				t.Errorf("payload = %s", msg.Payload)
			}
			if msg.TenantID != tenantID || msg.Topic != domain.TopicAssessmentCompleted {
				t.Errorf("envelope = %+v", msg)
			}
			if msg.ID == "" || msg.Timestamp == 0 {
				t.Error("expected message ID and timestamp")
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var first, second atomic.Int32
		bus.Subscribe(ctx, "tenant-a", domain.TopicAssessmentReview, func(context.Context, *domain.Message) error {
			first.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "tenant-b", domain.TopicAssessmentReview, func(context.Context, *domain.Message) error {
			second.Add(1)
			return nil
		})

		bus.Publish(ctx, "tenant-a", domain.TopicAssessmentReview, []byte("{}"))
		waitFor(t, func() bool { return first.Load() == 1 })
		time.Sleep(20 * time.Millisecond)
		if second.Load() != 0 {
			t.Errorf("tenant-b received %d messages for tenant-a", second.Load())
		}
	})

	t.Run("WildcardTenant", func(t *testing.T) {
		var (
			mu      sync.Mutex
			tenants []string
		)
		sub, err := bus.Subscribe(ctx, domain.AnyTenant, domain.TopicApplicationSubmitted, func(_ context.Context, msg *domain.Message) error {
			mu.Lock()
			tenants = append(tenants, msg.TenantID)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		bus.Publish(ctx, "tenant-a", domain.TopicApplicationSubmitted, []byte("{}"))
		bus.Publish(ctx, "tenant-b", domain.TopicApplicationSubmitted, []byte("{}"))
		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(tenants) == 2
		})
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", nil); !errors.Is(err, ErrTenantRequired) {
			t.Errorf("Publish error = %v, want ErrTenantRequired", err)
		}
		_, err := bus.Subscribe(ctx, "", "topic", func(context.Context, *domain.Message) error { return nil })
		if !errors.Is(err, ErrTenantRequired) {
			t.Errorf("Subscribe error = %v, want ErrTenantRequired", err)
		}
		if err := bus.Publish(ctx, domain.AnyTenant, "topic", nil); err == nil {
			t.Error("expected error publishing to wildcard tenant")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32
		sub, _ := bus.Subscribe(ctx, tenantID, "unsub.topic", func(context.Context, *domain.Message) error {
			count.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("1"))
		waitFor(t, func() bool { return count.Load() == 1 })

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("Unsubscribe failed: %v", err)
		}
		bus.Publish(ctx, tenantID, "unsub.topic", []byte("2"))
		time.Sleep(20 * time.Millisecond)
		if count.Load() != 1 {
			t.Errorf("received %d messages, want 1 after unsubscribe", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var a, b atomic.Int32
		bus.Subscribe(ctx, tenantID, "multi.topic", func(context.Context, *domain.Message) error {
			a.Add(1)
			return nil
		})
		bus.Subscribe(ctx, tenantID, "multi.topic", func(context.Context, *domain.Message) error {
			b.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "multi.topic", []byte("broadcast"))
		waitFor(t, func() bool { return a.Load() == 1 && b.Load() == 1 })
	})

	t.Run("Request", func(t *testing.T) {
		bus.Subscribe(ctx, tenantID, "quote.topic", func(ctx context.Context, msg *domain.Message) error {
			return bus.Publish(ctx, msg.TenantID, msg.Metadata["reply_to"], []byte("pong:"+string(msg.Payload)))
		})

		rctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		reply, err := bus.Request(rctx, tenantID, "quote.topic", []byte("ping"))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if string(reply) != "pong:ping" {
			t.Errorf("reply = %q", reply)
		}
	})

	t.Run("RequestTimesOut", func(t *testing.T) {
		rctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := bus.Request(rctx, tenantID, "nobody.listens", nil); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Request error = %v, want deadline exceeded", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, tenantID, domain.TopicAssessmentReview, func(context.Context, *domain.Message) error { return nil })
		if sub.Topic() != domain.TopicAssessmentReview {
			t.Errorf("Topic = %q", sub.Topic())
		}
	})
}

func TestChannelBusDropsOnFullBuffer(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()
	ctx := context.Background()

	release := make(chan struct{})
	bus.Subscribe(ctx, "tenant-001", "slow.topic", func(context.Context, *domain.Message) error {
		<-release
		return nil
	})

	for range 5 {
		if err := bus.Publish(ctx, "tenant-001", "slow.topic", nil); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	close(release)

	// One message is in the handler, one is buffered.
	if bus.Dropped() < 3 {
		t.Errorf("Dropped = %d, want at least 3", bus.Dropped())
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)
	ctx := context.Background()

	bus.Subscribe(ctx, "tenant-001", "close.topic", func(context.Context, *domain.Message) error { return nil })

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if err := bus.Publish(ctx, "tenant-001", "close.topic", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after close = %v, want ErrClosed", err)
	}
	if err := bus.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping after close = %v, want ErrClosed", err)
	}
}

func TestNew(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()
		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("New returned %T, want *ChannelBus", b)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestSubject(t *testing.T) {
	if got := subject("tenant-001", domain.TopicAssessmentCompleted); got != "truerev.tenant-001.truerev.assessment.completed" {
		t.Errorf("subject = %q", got)
	}
	if got := subject(domain.AnyTenant, "x"); got != "truerev.*.x" {
		t.Errorf("wildcard subject = %q", got)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()
	ctx := context.Background()

	const n = 200
	var received atomic.Int32
	bus.Subscribe(ctx, "tenant-load", domain.TopicApplicationSubmitted, func(context.Context, *domain.Message) error {
		received.Add(1)
		return nil
	})

	for range n {
		bus.Publish(ctx, "tenant-load", domain.TopicApplicationSubmitted, []byte("{}"))
	}
	waitFor(t, func() bool { return received.Load() == n })
	if bus.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", bus.Dropped())
	}
}
