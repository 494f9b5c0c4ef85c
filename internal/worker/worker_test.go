package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/truerev/internal/bus"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/pipeline"
)

// fakeRunner records the applications it is asked to run.
type fakeRunner struct {
	mu      sync.Mutex
	tenants []string
	apps    []string
	err     error
	block   chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) Run(_ context.Context, tenantID string, req *pipeline.Request) (*pipeline.Report, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.tenants = append(f.tenants, tenantID)
	f.apps = append(f.apps, req.Application.ID)
	f.mu.Unlock()
	return nil, f.err
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.apps)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func submit(t *testing.T, b domain.EventBus, tenantID string, req pipeline.Request) {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := b.Publish(context.Background(), tenantID, domain.TopicApplicationSubmitted, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestWorker(t *testing.T) {
	t.Run("StartAndStop", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()
		w := NewWorker(eventBus, &fakeRunner{}, nil)

		if err := w.Start(Config{TenantIDs: []string{"tenant-001", "tenant-002"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("SubscriptionCount = %d, want 2", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicApplicationSubmitted {
			t.Errorf("topic = %q", stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		if w.GetStats().SubscriptionCount != 0 {
			t.Error("expected no subscriptions after stop")
		}
	})

	t.Run("ConsumesConfiguredTenantsOnly", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()
		runner := &fakeRunner{}
		w := NewWorker(eventBus, runner, nil)
		w.Start(Config{TenantIDs: []string{"tenant-001"}})
		defer w.Stop()

		submit(t, eventBus, "tenant-001", pipeline.Request{Application: domain.Application{ID: "app-1"}})
		submit(t, eventBus, "tenant-002", pipeline.Request{Application: domain.Application{ID: "app-2"}})
		waitFor(t, func() bool { return runner.calls() == 1 })
		time.Sleep(20 * time.Millisecond)

		runner.mu.Lock()
		defer runner.mu.Unlock()
		if len(runner.apps) != 1 || runner.apps[0] != "app-1" || runner.tenants[0] != "tenant-001" {
			t.Errorf("ran %v for %v, want only app-1 for tenant-001", runner.apps, runner.tenants)
		}
	})

	t.Run("WildcardConsumesEveryTenant", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()
		runner := &fakeRunner{}
		w := NewWorker(eventBus, runner, nil)
		w.Start(Config{})
		defer w.Stop()

		submit(t, eventBus, "tenant-001", pipeline.Request{})
		submit(t, eventBus, "tenant-002", pipeline.Request{})
		waitFor(t, func() bool { return runner.calls() == 2 })
	})

	t.Run("CountsFailures", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()
		runner := &fakeRunner{err: errors.New("storage down")}
		w := NewWorker(eventBus, runner, nil)
		w.Start(Config{})
		defer w.Stop()

		submit(t, eventBus, "tenant-001", pipeline.Request{})
		eventBus.Publish(context.Background(), "tenant-001", domain.TopicApplicationSubmitted, []byte("not json"))
		waitFor(t, func() bool { return w.GetStats().Failed == 2 })
		if w.GetStats().Processed != 0 {
			t.Errorf("Processed = %d, want 0", w.GetStats().Processed)
		}
	})

	t.Run("BoundsConcurrency", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()
		runner := &fakeRunner{block: make(chan struct{})}
		w := NewWorker(eventBus, runner, nil)
		w.Start(Config{WorkerCount: 2})

		for range 5 {
			submit(t, eventBus, "tenant-001", pipeline.Request{})
		}
		waitFor(t, func() bool { return runner.active.Load() == 2 })
		close(runner.block)
		waitFor(t, func() bool { return runner.calls() == 5 })
		w.Stop()

		if runner.peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", runner.peak.Load())
		}
	})
}

func TestWorkerRunsPipeline(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	p := pipeline.New(domain.DefaultUnderwritingConfig(), pipeline.Deps{Bus: eventBus})
	w := NewWorker(eventBus, p, nil)
	if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	events := make(chan pipeline.Event, 1)
	eventBus.Subscribe(context.Background(), "tenant-001", domain.TopicAssessmentCompleted, func(_ context.Context, msg *domain.Message) error {
		var ev pipeline.Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		events <- ev
		return nil
	})

	submit(t, eventBus, "tenant-001", pipeline.Request{
		Application: domain.Application{
			ID:                   "app-async",
			CreditScore:          740,
			StatedMonthlyRevenue: 60000,
			RequestedAmount:      30000,
			TermMonths:           6,
		},
		Signals: domain.Signals{
			Credit:   &domain.CreditSignal{CreditScore: 740},
			Stacking: &domain.StackingSignal{},
			Industry: "healthcare",
		},
	})

	select {
	case ev := <-events:
		if ev.ApplicationID != "app-async" {
			t.Errorf("ApplicationID = %q, want app-async", ev.ApplicationID)
		}
		if ev.AssessmentID == "" || ev.Action == "" {
			t.Errorf("incomplete event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event")
	}
	waitFor(t, func() bool { return w.GetStats().Processed == 1 })
}
