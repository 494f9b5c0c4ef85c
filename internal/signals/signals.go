// Package signals collects external collaborator signals (credit, identity,
// stacking, UCC) for an application, cache-first.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

// ErrUnavailable is returned when a collaborator cannot produce a signal.
var ErrUnavailable = errors.New("signal unavailable")

// Kinds lists every collaborator signal kind in collection order.
var Kinds = []domain.SignalKind{
	domain.SignalCredit,
	domain.SignalIdentity,
	domain.SignalStacking,
	domain.SignalUCC,
}

// Provider fetches one kind of signal from a collaborator.
type Provider interface {
	Kind() domain.SignalKind
	Fetch(ctx context.Context, tenantID string, app *domain.Application) (json.RawMessage, error)
}

// Service gathers signals through its providers.
type Service struct {
	cfg       domain.SignalsConfig
	cache     domain.Cache
	providers map[domain.SignalKind]Provider
}

// NewService creates a signal service. cache may be nil.
func NewService(cfg domain.SignalsConfig, cache domain.Cache, providers ...Provider) *Service {
	s := &Service{
		cfg:       cfg,
		cache:     cache,
		providers: make(map[domain.SignalKind]Provider, len(providers)),
	}
	for _, p := range providers {
		s.providers[p.Kind()] = p
	}
	return s
}

// Providers returns the kinds the service can fetch.
func (s *Service) Providers() []domain.SignalKind {
	var kinds []domain.SignalKind
	for _, k := range Kinds {
		if _, ok := s.providers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Collect fills the signals the caller did not supply. It never fails: a
// signal that cannot be fetched is reported in missing and left nil.
func (s *Service) Collect(ctx context.Context, tenantID string, app *domain.Application, supplied domain.Signals) (domain.Signals, []domain.SignalKind) {
	out := supplied
	if out.Industry == "" {
		out.Industry = app.Industry
	}

	type fetched struct {
		kind    domain.SignalKind
		payload json.RawMessage
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []fetched
	)
	for _, kind := range Kinds {
		if Has(out, kind) {
			continue
		}
		if _, ok := s.providers[kind]; !ok {
			continue
		}
		wg.Add(1)
		go func(kind domain.SignalKind) {
			defer wg.Done()
			payload, err := s.Get(ctx, tenantID, kind, app)
			if err != nil {
				slog.Warn("signal fetch failed",
					"tenant_id", tenantID,
					"application_id", app.ID,
					"kind", kind,
					"error", err,
				)
				return
			}
			mu.Lock()
			results = append(results, fetched{kind: kind, payload: payload})
			mu.Unlock()
		}(kind)
	}
	wg.Wait()

	for _, r := range results {
		if err := Apply(&out, r.kind, r.payload); err != nil {
			slog.Warn("signal payload rejected",
				"tenant_id", tenantID,
				"application_id", app.ID,
				"kind", r.kind,
				"error", err,
			)
		}
	}

	return out, Missing(out)
}

// Missing lists the collaborator kinds absent from s.
func Missing(s domain.Signals) []domain.SignalKind {
	var missing []domain.SignalKind
	for _, kind := range Kinds {
		if !Has(s, kind) {
			missing = append(missing, kind)
		}
	}
	return missing
}

// Get returns one signal payload, from cache when fresh, else from the
// provider. Successful fetches are cached for CacheTTL.
func (s *Service) Get(ctx context.Context, tenantID string, kind domain.SignalKind, app *domain.Application) (json.RawMessage, error) {
	if tenantID == "" || app == nil || app.ID == "" {
		return nil, fmt.Errorf("tenantID and application ID are required")
	}
	p, ok := s.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for %s", ErrUnavailable, kind)
	}

	if s.cache != nil {
		env, err := s.cache.GetSignal(ctx, tenantID, kind, app.ID)
		if err != nil {
			slog.Debug("signal cache read failed", "tenant_id", tenantID, "kind", kind, "error", err)
		} else if env != nil {
			return env.Payload, nil
		}
	}

	fetchCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	payload, err := p.Fetch(fetchCtx, tenantID, app)
	if err != nil {
		s.recordFailure(ctx, tenantID, kind)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, kind, err)
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		env := &domain.SignalEnvelope{Kind: kind, Payload: payload, FetchedAt: time.Now().UTC()}
		if err := s.cache.SetSignal(ctx, tenantID, app.ID, env, s.cfg.CacheTTL); err != nil {
			slog.Debug("signal cache write failed", "tenant_id", tenantID, "kind", kind, "error", err)
		}
	}
	return payload, nil
}

// FailureKey is the counter key collaborator failures are counted under.
func FailureKey(kind domain.SignalKind) string {
	return "signal_failures:" + string(kind)
}

func (s *Service) recordFailure(ctx context.Context, tenantID string, kind domain.SignalKind) {
	if s.cache == nil || s.cfg.FailureWindow <= 0 {
		return
	}
	n, err := s.cache.IncrementCounter(ctx, tenantID, FailureKey(kind), s.cfg.FailureWindow)
	if err != nil {
		return
	}
	slog.Warn("collaborator failing", "tenant_id", tenantID, "kind", kind, "failures", n, "window", s.cfg.FailureWindow)
}

// Has reports whether a signal of the given kind is present.
func Has(s domain.Signals, kind domain.SignalKind) bool {
	switch kind {
	case domain.SignalCredit:
		return s.Credit != nil
	case domain.SignalIdentity:
		return s.Identity != nil
	case domain.SignalStacking:
		return s.Stacking != nil
	case domain.SignalUCC:
		return s.UCC != nil
	}
	return false
}

// Apply decodes a collaborator payload into the matching signal field.
func Apply(s *domain.Signals, kind domain.SignalKind, payload json.RawMessage) error {
	var err error
	switch kind {
	case domain.SignalCredit:
		var v domain.CreditSignal
		if err = json.Unmarshal(payload, &v); err == nil {
			s.Credit = &v
		}
	case domain.SignalIdentity:
		var v domain.IdentitySignal
		if err = json.Unmarshal(payload, &v); err == nil {
			s.Identity = &v
		}
	case domain.SignalStacking:
		var v domain.StackingSignal
		if err = json.Unmarshal(payload, &v); err == nil {
			s.Stacking = &v
		}
	case domain.SignalUCC:
		var v domain.UCCSignal
		if err = json.Unmarshal(payload, &v); err == nil {
			s.UCC = &v
		}
	default:
		return fmt.Errorf("unknown signal kind: %s", kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s signal: %w", kind, err)
	}
	return nil
}
