package signals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/truerev/internal/cache"
	"github.com/opensource-finance/truerev/internal/domain"
)

type fakeProvider struct {
	kind    domain.SignalKind
	payload string
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (p *fakeProvider) Kind() domain.SignalKind { return p.kind }

func (p *fakeProvider) Fetch(ctx context.Context, tenantID string, app *domain.Application) (json.RawMessage, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return json.RawMessage(p.payload), nil
}

func testConfig() domain.SignalsConfig {
	return domain.SignalsConfig{
		Timeout:       200 * time.Millisecond,
		CacheTTL:      time.Minute,
		FailureWindow: time.Minute,
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"
	app := &domain.Application{ID: "app-001", Industry: "Restaurant"}

	t.Run("FetchesAndCaches", func(t *testing.T) {
		lru := cache.NewLRUCache(100)
		credit := &fakeProvider{kind: domain.SignalCredit, payload: `{"credit_score":705,"bankruptcies":0,"delinquencies":1}`}
		stacking := &fakeProvider{kind: domain.SignalStacking, payload: `{"active_mcas":2,"total_exposure":30000,"has_defaults":false}`}
		svc := NewService(testConfig(), lru, credit, stacking)

		got, missing := svc.Collect(ctx, tenantID, app, domain.Signals{})
		if got.Credit == nil || got.Credit.CreditScore != 705 {
			t.Fatalf("Credit = %+v, want score 705", got.Credit)
		}
		if got.Stacking == nil || got.Stacking.ActiveMCAs != 2 {
			t.Fatalf("Stacking = %+v, want 2 active", got.Stacking)
		}
		if got.Industry != "Restaurant" {
			t.Errorf("Industry = %q, want Restaurant", got.Industry)
		}
		want := []domain.SignalKind{domain.SignalIdentity, domain.SignalUCC}
		if len(missing) != len(want) || missing[0] != want[0] || missing[1] != want[1] {
			t.Errorf("missing = %v, want %v", missing, want)
		}

		// Second collection is served from cache.
		_, _ = svc.Collect(ctx, tenantID, app, domain.Signals{})
		if n := credit.calls.Load(); n != 1 {
			t.Errorf("credit provider called %d times, want 1", n)
		}
		env, _ := lru.GetSignal(ctx, tenantID, domain.SignalStacking, "app-001")
		if env == nil || env.Kind != domain.SignalStacking {
			t.Errorf("expected cached stacking envelope, got %+v", env)
		}
	})

	t.Run("SuppliedSignalsWin", func(t *testing.T) {
		credit := &fakeProvider{kind: domain.SignalCredit, payload: `{"credit_score":500}`}
		svc := NewService(testConfig(), nil, credit)

		got, _ := svc.Collect(ctx, tenantID, app, domain.Signals{
			Credit:   &domain.CreditSignal{CreditScore: 760},
			Industry: "Healthcare",
		})
		if got.Credit.CreditScore != 760 {
			t.Errorf("CreditScore = %d, want supplied 760", got.Credit.CreditScore)
		}
		if got.Industry != "Healthcare" {
			t.Errorf("Industry = %q, want supplied Healthcare", got.Industry)
		}
		if n := credit.calls.Load(); n != 0 {
			t.Errorf("provider called %d times, want 0", n)
		}
	})

	t.Run("FailureIsMissingAndCounted", func(t *testing.T) {
		lru := cache.NewLRUCache(100)
		stacking := &fakeProvider{kind: domain.SignalStacking, err: errors.New("registry down")}
		svc := NewService(testConfig(), lru, stacking)

		got, missing := svc.Collect(ctx, tenantID, app, domain.Signals{})
		if got.Stacking != nil {
			t.Errorf("Stacking = %+v, want nil", got.Stacking)
		}
		if len(missing) != 4 {
			t.Errorf("missing = %v, want all four kinds", missing)
		}

		n, _ := lru.IncrementCounter(ctx, tenantID, FailureKey(domain.SignalStacking), time.Minute)
		if n != 2 {
			t.Errorf("failure counter = %d, want 2 after one recorded failure", n)
		}
	})

	t.Run("TimeoutIsUnavailable", func(t *testing.T) {
		slow := &fakeProvider{kind: domain.SignalUCC, payload: `{}`, delay: time.Second}
		cfg := testConfig()
		cfg.Timeout = 20 * time.Millisecond
		svc := NewService(cfg, nil, slow)

		_, err := svc.Get(ctx, tenantID, domain.SignalUCC, app)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("BadPayloadIsMissing", func(t *testing.T) {
		bad := &fakeProvider{kind: domain.SignalIdentity, payload: `["not","an","object"]`}
		svc := NewService(testConfig(), nil, bad)

		got, missing := svc.Collect(ctx, tenantID, app, domain.Signals{})
		if got.Identity != nil {
			t.Errorf("Identity = %+v, want nil", got.Identity)
		}
		if len(missing) != 4 {
			t.Errorf("missing = %v, want 4", missing)
		}
	})
}

func TestGet(t *testing.T) {
	svc := NewService(testConfig(), nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "", domain.SignalCredit, &domain.Application{ID: "a"}); err == nil {
		t.Error("expected error for empty tenantID")
	}
	_, err := svc.Get(ctx, "tenant-001", domain.SignalCredit, &domain.Application{ID: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable without provider", err)
	}
}

func TestApply(t *testing.T) {
	var s domain.Signals
	if err := Apply(&s, domain.SignalUCC, json.RawMessage(`{"active_filings":3,"has_blanket_lien":true}`)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if s.UCC == nil || s.UCC.ActiveFilings != 3 || !s.UCC.HasBlanketLien {
		t.Errorf("UCC = %+v", s.UCC)
	}
	if err := Apply(&s, "bureau", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown kind")
	}
	if !Has(s, domain.SignalUCC) || Has(s, domain.SignalCredit) {
		t.Error("Has disagrees with applied signals")
	}
}

func TestHTTPProvider(t *testing.T) {
	var gotTenant atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant.Store(r.Header.Get("X-Tenant-ID"))
		var app domain.Application
		if err := json.NewDecoder(r.Body).Decode(&app); err != nil || app.ID != "app-001" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"credit_score":688}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	app := &domain.Application{ID: "app-001"}

	t.Run("Success", func(t *testing.T) {
		p := NewHTTPProvider(domain.SignalCredit, srv.URL, srv.Client())
		payload, err := p.Fetch(ctx, "tenant-001", app)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if string(payload) != `{"credit_score":688}` {
			t.Errorf("payload = %s", payload)
		}
		if v, _ := gotTenant.Load().(string); v != "tenant-001" {
			t.Errorf("X-Tenant-ID = %q, want tenant-001", v)
		}
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		p := NewHTTPProvider(domain.SignalCredit, srv.URL, srv.Client())
		if _, err := p.Fetch(ctx, "tenant-001", &domain.Application{ID: "other"}); err == nil {
			t.Error("expected error for 400 response")
		}
	})

	t.Run("FromConfig", func(t *testing.T) {
		cfg := domain.SignalsConfig{Endpoints: map[domain.SignalKind]string{
			domain.SignalUCC:    srv.URL + "/ucc",
			domain.SignalCredit: srv.URL + "/credit",
		}}
		ps := HTTPProviders(cfg, nil)
		if len(ps) != 2 || ps[0].Kind() != domain.SignalCredit || ps[1].Kind() != domain.SignalUCC {
			t.Errorf("providers = %v", ps)
		}
	})
}
