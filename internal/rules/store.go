package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

// Store keeps one engine per tenant, loaded lazily from the repository.
// A tenant with no stored rules is seeded with DefaultRules on first use.
type Store struct {
	repo domain.Repository

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewStore creates a tenant rule store backed by repo.
func NewStore(repo domain.Repository) *Store {
	return &Store{repo: repo, engines: make(map[string]*Engine)}
}

// Engine returns the tenant's engine, loading it on first use.
func (s *Store) Engine(ctx context.Context, tenantID string) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[tenantID]; ok {
		return e, nil
	}
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, tenantID, e); err != nil {
		return nil, err
	}
	s.engines[tenantID] = e
	return e, nil
}

// Reload recompiles the tenant's active rules from the repository.
// On failure the tenant keeps its previous rule set.
func (s *Store) Reload(ctx context.Context, tenantID string) (int, error) {
	e, err := s.Engine(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx, tenantID, e); err != nil {
		return e.RulesCount(), err
	}
	return e.RulesCount(), nil
}

func (s *Store) load(ctx context.Context, tenantID string, e *Engine) error {
	stored, err := s.repo.ListRiskRules(ctx, tenantID, false)
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	if len(stored) == 0 {
		stored, err = s.seed(ctx, tenantID)
		if err != nil {
			return err
		}
	}

	active := make([]domain.RiskRule, 0, len(stored))
	for _, r := range stored {
		if r.Active {
			active = append(active, *r)
		}
	}
	if err := e.ReloadRules(active); err != nil {
		slog.Error("tenant rules failed to compile", "tenant_id", tenantID, "error", err)
		return err
	}
	return nil
}

func (s *Store) seed(ctx context.Context, tenantID string) ([]*domain.RiskRule, error) {
	now := time.Now().UTC()
	defaults := DefaultRules()
	out := make([]*domain.RiskRule, 0, len(defaults))
	for i := range defaults {
		r := defaults[i]
		r.TenantID = tenantID
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := s.repo.SaveRiskRule(ctx, tenantID, &r); err != nil {
			return nil, fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	slog.Info("seeded default rules", "tenant_id", tenantID, "count", len(out))
	return out, nil
}
