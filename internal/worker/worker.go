// Package worker runs submitted applications through the underwriting
// pipeline off the request path.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/metrics"
	"github.com/opensource-finance/truerev/internal/pipeline"
)

// Runner underwrites one request. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, tenantID string, req *pipeline.Request) (*pipeline.Report, error)
}

// Worker consumes TopicApplicationSubmitted and runs each application
// through the pipeline, which persists and announces the result.
type Worker struct {
	bus     domain.EventBus
	runner  Runner
	metrics *metrics.Metrics

	mu            sync.Mutex
	subscriptions []domain.Subscription
	sem           chan struct{}
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs limits consumption to these tenants. Empty consumes every
	// tenant through a wildcard subscription.
	TenantIDs []string `json:"tenantIds"`

	// WorkerCount bounds concurrent pipeline runs. Zero means one.
	WorkerCount int `json:"workerCount"`
}

// NewWorker creates an async worker. m may be nil.
func NewWorker(bus domain.EventBus, runner Runner, m *metrics.Metrics) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		runner:  runner,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes for the configured tenants. A tenant whose subscription
// fails is logged and skipped; Start fails only when nothing subscribed.
func (w *Worker) Start(cfg Config) error {
	n := max(cfg.WorkerCount, 1)
	w.mu.Lock()
	w.sem = make(chan struct{}, n)
	w.mu.Unlock()

	tenants := cfg.TenantIDs
	if len(tenants) == 0 {
		tenants = []string{domain.AnyTenant}
	}

	var (
		started int
		lastErr error
	)
	for _, tenantID := range tenants {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationSubmitted, w.handle)
		if err != nil {
			slog.Error("failed to start worker for tenant", "tenant_id", tenantID, "error", err)
			lastErr = err
			continue
		}
		w.mu.Lock()
		w.subscriptions = append(w.subscriptions, sub)
		w.mu.Unlock()
		started++
	}

	if started == 0 && lastErr != nil {
		return fmt.Errorf("no worker subscription started: %w", lastErr)
	}
	slog.Info("workers started",
		"tenants", tenants,
		"concurrency", n,
		"topic", domain.TopicApplicationSubmitted,
	)
	return nil
}

// handle hands the message to a pipeline slot, waiting while all slots
// are busy.
func (w *Worker) handle(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return fmt.Errorf("worker stopped, message %s not processed", msg.ID)
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		if err := w.process(w.ctx, msg); err != nil {
			w.failed.Add(1)
			w.metrics.BusMessage(msg.Topic, "error")
			slog.Error("application processing failed",
				"tenant_id", msg.TenantID,
				"message_id", msg.ID,
				"error", err,
			)
			return
		}
		w.processed.Add(1)
		w.metrics.BusMessage(msg.Topic, "ok")
	}()
	return nil
}

func (w *Worker) process(ctx context.Context, msg *domain.Message) error {
	var req pipeline.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("failed to decode application: %w", err)
	}
	slog.Debug("processing application",
		"tenant_id", msg.TenantID,
		"application_id", req.Application.ID,
		"message_id", msg.ID,
	)
	_, err := w.runner.Run(ctx, msg.TenantID, &req)
	return err
}

// Stop unsubscribes and waits for in-flight runs to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.wg.Wait()
	w.cancel()

	slog.Info("workers stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats reports worker activity.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
