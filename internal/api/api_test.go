package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/truerev/internal/bus"
	"github.com/opensource-finance/truerev/internal/cache"
	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/fraud"
	"github.com/opensource-finance/truerev/internal/metrics"
	"github.com/opensource-finance/truerev/internal/offer"
	"github.com/opensource-finance/truerev/internal/pipeline"
	"github.com/opensource-finance/truerev/internal/repository"
	"github.com/opensource-finance/truerev/internal/rules"
	"github.com/opensource-finance/truerev/internal/scoring"
)

const testTenant = "tenant-001"

type testEnv struct {
	server *Server
	bus    *bus.ChannelBus
}

// newTestEnv wires a server over a temporary SQLite database and an
// in-process bus.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	b := bus.NewChannelBus(16)
	t.Cleanup(func() {
		b.Close()
		repo.Close()
	})

	m := metrics.New("truerev_test")
	store := rules.NewStore(repo)
	p := pipeline.New(domain.DefaultUnderwritingConfig(), pipeline.Deps{
		Repo:    repo,
		Bus:     b,
		Rules:   store,
		Metrics: m,
	})
	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	s := NewServer(cfg, Deps{
		Pipeline: p,
		Repo:     repo,
		Cache:    cache.NewLRUCache(100),
		Bus:      b,
		Rules:    store,
		Metrics:  m,
		Version:  "test-v1",
	})
	return &testEnv{server: s, bus: b}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, e.server, method, path, body, testTenant)
}

func serve(t *testing.T, s *Server, method, path string, body any, tenant string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(TenantIDHeader, tenant)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func floatPtr(v float64) *float64 { return &v }

func statements() []domain.Transaction {
	tx := func(date, desc string, amount float64, typ domain.TransactionType, balance float64) domain.Transaction {
		return domain.Transaction{Date: date, Description: desc, Amount: amount, Type: typ, EndingBalance: floatPtr(balance)}
	}
	return []domain.Transaction{
		tx("2024-01-10", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-01-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
		tx("2024-02-12", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-02-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
		tx("2024-03-11", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-03-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
	}
}

func application() pipeline.Request {
	return pipeline.Request{
		Application: domain.Application{
			ID:                   "app-001",
			CreditScore:          760,
			StatedMonthlyRevenue: 100000,
			RequestedAmount:      40000,
			TermMonths:           6,
		},
		Signals: domain.Signals{
			Credit: &domain.CreditSignal{CreditScore: 760},
			BankAnalysis: &domain.BankAnalysisSignal{
				Score:               80,
				RevenueConsistency:  floatPtr(0.9),
				AverageDailyBalance: floatPtr(20000),
				MonthlyTrueRevenue:  100000,
			},
			Stacking: &domain.StackingSignal{},
			Industry: "Healthcare",
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Health", func(t *testing.T) {
		rr := serve(t, env.server, http.MethodGet, "/health", nil, "")
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Status  string            `json:"status"`
			Version string            `json:"version"`
			Checks  map[string]string `json:"checks"`
			Cache   *cache.Stats      `json:"cache"`
		}
		decode(t, rr, &resp)
		if resp.Status != "healthy" || resp.Version != "test-v1" {
			t.Errorf("got status %q version %q", resp.Status, resp.Version)
		}
		if resp.Checks["repository"] != "ok" || resp.Checks["bus"] != "ok" || resp.Checks["cache"] != "ok" {
			t.Errorf("checks = %v", resp.Checks)
		}
		if resp.Cache == nil || resp.Cache.Capacity != 100 {
			t.Errorf("cache stats = %+v, want capacity 100", resp.Cache)
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := serve(t, env.server, http.MethodGet, "/ready", nil, "")
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("NotReadyAfterBusClosed", func(t *testing.T) {
		env := newTestEnv(t)
		env.bus.Close()
		rr := serve(t, env.server, http.MethodGet, "/ready", nil, "")
		expectStatus(t, rr, http.StatusServiceUnavailable)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/assessments", nil)
		req.Header.Set("Origin", "https://underwriting.example.com")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://underwriting.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("RequestIDEchoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want req-123", got)
		}
	})
}

func TestAssessmentEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("MissingTenantID", func(t *testing.T) {
		rr := serve(t, env.server, http.MethodPost, "/assessments", application(), "")
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/assessments", "not-json")
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("NegativePosition", func(t *testing.T) {
		req := application()
		req.Application.ExistingPositions = []domain.ExistingPosition{{Funder: "A", DailyPayment: -2000}}
		for _, path := range []string{"/assessments", "/assessments?async=true"} {
			rr := env.do(t, http.MethodPost, path, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rr.Code)
			}
		}
	})

	var assessmentID string
	t.Run("CreateSync", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/assessments", application())
		expectStatus(t, rr, http.StatusCreated)

		var report pipeline.Report
		decode(t, rr, &report)
		if report.Assessment == nil || report.ID == "" {
			t.Fatal("expected assessment ID in response")
		}
		if report.ApplicationID != "app-001" || report.TenantID != testTenant {
			t.Errorf("got application %q tenant %q", report.ApplicationID, report.TenantID)
		}
		if report.Decision.Action != domain.ActionApprove {
			t.Errorf("Action = %s, want APPROVE", report.Decision.Action)
		}
		assessmentID = report.ID
	})

	t.Run("Get", func(t *testing.T) {
		if assessmentID == "" {
			t.Skip("no assessment created")
		}
		rr := env.do(t, http.MethodGet, "/assessments/"+assessmentID, nil)
		expectStatus(t, rr, http.StatusOK)

		var a domain.Assessment
		decode(t, rr, &a)
		if a.ID != assessmentID || a.Action != domain.ActionApprove {
			t.Errorf("stored = %+v", a)
		}
		if len(a.Result) == 0 {
			t.Error("expected stored report")
		}
	})

	t.Run("GetOtherTenant", func(t *testing.T) {
		rr := serve(t, env.server, http.MethodGet, "/assessments/"+assessmentID, nil, "tenant-002")
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("GetMissing", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/assessments/does-not-exist", nil)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("List", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/assessments?application_id=app-001", nil)
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Assessments []domain.Assessment `json:"assessments"`
			Count       int                 `json:"count"`
		}
		decode(t, rr, &resp)
		if resp.Count != 1 || len(resp.Assessments) != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})

	t.Run("CreateAsync", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		sub, err := env.bus.Subscribe(context.Background(), testTenant, domain.TopicApplicationSubmitted,
			func(_ context.Context, msg *domain.Message) error {
				got <- msg
				return nil
			})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		req := application()
		req.Application.ID = ""
		rr := env.do(t, http.MethodPost, "/assessments?async=true", req)
		expectStatus(t, rr, http.StatusAccepted)

		var resp QueuedResponse
		decode(t, rr, &resp)
		if resp.ApplicationID == "" || resp.Status != "queued" {
			t.Errorf("resp = %+v", resp)
		}

		select {
		case msg := <-got:
			var queued pipeline.Request
			if err := json.Unmarshal(msg.Payload, &queued); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if queued.Application.ID != resp.ApplicationID {
				t.Errorf("queued application %q, want %q", queued.Application.ID, resp.ApplicationID)
			}
		case <-time.After(time.Second):
			t.Fatal("application was not published")
		}
	})
}

func TestAssessmentsWithoutRepository(t *testing.T) {
	p := pipeline.New(domain.DefaultUnderwritingConfig(), pipeline.Deps{})
	s := NewServer(domain.ServerConfig{}, Deps{Pipeline: p})

	rr := serve(t, s, http.MethodGet, "/assessments/any", nil, testTenant)
	expectStatus(t, rr, http.StatusServiceUnavailable)

	rr = serve(t, s, http.MethodPost, "/assessments?async=true", application(), testTenant)
	expectStatus(t, rr, http.StatusServiceUnavailable)

	rr = serve(t, s, http.MethodGet, "/rules", nil, testTenant)
	expectStatus(t, rr, http.StatusServiceUnavailable)

	rr = serve(t, s, http.MethodPost, "/assessments", application(), testTenant)
	expectStatus(t, rr, http.StatusCreated)
}

func TestAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Classify", func(t *testing.T) {
		txs := []domain.Transaction{
			{Date: "2024-01-10", Description: "STRIPE PAYOUT", Amount: 1000, Type: domain.TxCredit},
			{Date: "not-a-date", Description: "STRIPE PAYOUT", Amount: 1000, Type: domain.TxCredit},
		}
		rr := env.do(t, http.MethodPost, "/revenue/classify", StatementRequest{Transactions: txs})
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Classifications []ClassifiedTransaction `json:"classifications"`
			Count           int                     `json:"count"`
		}
		decode(t, rr, &resp)
		if resp.Count != 2 {
			t.Fatalf("count = %d, want 2", resp.Count)
		}
		if resp.Classifications[0].Classification.Classification != domain.ClassRevenue {
			t.Errorf("first = %+v, want revenue", resp.Classifications[0].Classification)
		}
		if resp.Classifications[1].Classification.Classification != domain.ClassNone {
			t.Errorf("malformed transaction was classified: %+v", resp.Classifications[1].Classification)
		}
	})

	t.Run("TransactionsRequired", func(t *testing.T) {
		for _, path := range []string{"/revenue/classify", "/revenue/monthly", "/nsf", "/fraud"} {
			rr := env.do(t, http.MethodPost, path, map[string]any{})
			if rr.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rr.Code)
			}
		}
	})

	t.Run("Monthly", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/revenue/monthly", StatementRequest{Transactions: statements()})
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			MonthlyBreakdown []domain.MonthlyAggregate `json:"monthly_breakdown"`
		}
		decode(t, rr, &resp)
		if len(resp.MonthlyBreakdown) != 3 {
			t.Errorf("months = %d, want 3", len(resp.MonthlyBreakdown))
		}
	})

	t.Run("NSF", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/nsf", StatementRequest{Transactions: statements()})
		expectStatus(t, rr, http.StatusOK)
		if !strings.Contains(rr.Body.String(), `"negative_days"`) {
			t.Errorf("body = %s", rr.Body.String())
		}
	})

	t.Run("Fraud", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/fraud", StatementRequest{Transactions: statements()})
		expectStatus(t, rr, http.StatusOK)

		var a fraud.Analysis
		decode(t, rr, &a)
		if a.RiskLevel == "" {
			t.Error("expected risk level")
		}
		if a.CrossReference != nil {
			t.Error("cross reference needs application data")
		}
	})
}

func TestOfferEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Capacity", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/capacity", CapacityRequest{MonthlyTrueRevenue: 21670})
		expectStatus(t, rr, http.StatusOK)

		var s domain.CapacitySnapshot
		decode(t, rr, &s)
		if s.DailyTrueRevenue != 1000 || s.MaxDailyPayment != 200 || s.MaxWithholdPercent != 20 {
			t.Errorf("snapshot = %+v", s)
		}
	})

	t.Run("CapacityOverrideOnlyLowers", func(t *testing.T) {
		for _, tt := range []struct {
			override float64
			want     float64
		}{
			{0.10, 100},
			{0.50, 200},
		} {
			rr := env.do(t, http.MethodPost, "/capacity", CapacityRequest{
				MonthlyTrueRevenue: 21670,
				MaxWithholdPercent: floatPtr(tt.override),
			})
			expectStatus(t, rr, http.StatusOK)
			var s domain.CapacitySnapshot
			decode(t, rr, &s)
			if s.MaxDailyPayment != tt.want {
				t.Errorf("override %v: MaxDailyPayment = %v, want %v", tt.override, s.MaxDailyPayment, tt.want)
			}
		}
	})

	t.Run("NegativeAmounts", func(t *testing.T) {
		for path, body := range map[string]any{
			"/capacity": CapacityRequest{MonthlyTrueRevenue: -1},
			"/offers":   offer.Input{MonthlyTrueRevenue: 50000, RequestedAmount: -5},
			"/stacking": map[string]any{"monthly_revenue": -100},
			"/offers/scenarios": offer.Input{
				MonthlyTrueRevenue:   100000,
				ExistingDailyPayment: -2000,
				RequestedAmount:      200000,
				TermMonths:           6,
			},
			"/stacking/buyout": BuyoutRequest{
				Positions:  []domain.ExistingPosition{{Funder: "A", DailyPayment: -500, RemainingBalance: 1000}},
				NewFunding: 10000,
			},
		} {
			rr := env.do(t, http.MethodPost, path, body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, rr.Code)
			}
		}
	})

	t.Run("Offer", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers", offer.Input{
			MonthlyTrueRevenue: 100000,
			RequestedAmount:    40000,
			TermMonths:         6,
			CreditScore:        720,
		})
		expectStatus(t, rr, http.StatusOK)

		var res offer.Result
		decode(t, rr, &res)
		if res.Capacity.MaxWithholdPercent != 20 {
			t.Errorf("MaxWithholdPercent = %v, want 20", res.Capacity.MaxWithholdPercent)
		}
		if res.CanFund && res.Offer == nil {
			t.Error("fundable result without an offer")
		}
	})

	t.Run("Scenarios", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/scenarios", offer.Input{MonthlyTrueRevenue: 100000, RequestedAmount: 40000})
		expectStatus(t, rr, http.StatusOK)
		if !strings.Contains(rr.Body.String(), `"scenarios"`) {
			t.Errorf("body = %s", rr.Body.String())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/validate", domain.Offer{})
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("Stacking", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/stacking", map[string]any{
			"monthly_revenue":  50000,
			"requested_amount": 20000,
		})
		expectStatus(t, rr, http.StatusOK)

		rr = env.do(t, http.MethodPost, "/stacking", map[string]any{
			"monthly_revenue":    50000,
			"requested_amount":   20000,
			"existing_positions": []domain.ExistingPosition{{Funder: "A", DailyPayment: -2000}},
		})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("Buyout", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/stacking/buyout", BuyoutRequest{NewFunding: 10000})
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("QuickCheck", func(t *testing.T) {
		credit, mcas, tib := 720, 1, 24
		rr := env.do(t, http.MethodPost, "/quick-check", scoring.QuickInput{
			CreditScore:          &credit,
			ActiveMCAs:           &mcas,
			MonthlyRevenue:       floatPtr(50000),
			TimeInBusinessMonths: &tib,
		})
		expectStatus(t, rr, http.StatusOK)

		var res scoring.QuickResult
		decode(t, rr, &res)
		if res.Score != 55 || res.Decision != scoring.QuickContinue {
			t.Errorf("got score %d decision %s, want 55 CONTINUE", res.Score, res.Decision)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	defaults := len(rules.DefaultRules())

	t.Run("ListSeedsDefaults", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules", nil)
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Rules []domain.RiskRule `json:"rules"`
			Count int               `json:"count"`
		}
		decode(t, rr, &resp)
		if resp.Count != defaults {
			t.Errorf("count = %d, want %d", resp.Count, defaults)
		}
	})

	thinFile := map[string]any{
		"name": "Thin file",
		"conditions": []map[string]any{
			{"field": "credit.credit_score", "operator": "lt", "value": 600},
		},
		"action":       "adjust_score",
		"action_value": -10,
		"priority":     5,
	}

	var ruleID string
	t.Run("Create", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", thinFile)
		expectStatus(t, rr, http.StatusCreated)

		var r domain.RiskRule
		decode(t, rr, &r)
		if r.ID == "" || !r.Active || r.TenantID != testTenant {
			t.Errorf("created = %+v", r)
		}
		if r.Logic != domain.LogicAnd {
			t.Errorf("Logic = %q, want AND", r.Logic)
		}
		ruleID = r.ID
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", map[string]any{"action": "explode"})
		expectStatus(t, rr, http.StatusBadRequest)

		var resp struct {
			Errors []string `json:"errors"`
		}
		decode(t, rr, &resp)
		if len(resp.Errors) == 0 {
			t.Error("expected validation errors")
		}
	})

	t.Run("Get", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules/"+ruleID, nil)
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("UpdateKeepsActiveState", func(t *testing.T) {
		body := map[string]any{}
		for k, v := range thinFile {
			body[k] = v
		}
		body["name"] = "Thin credit file"
		rr := env.do(t, http.MethodPut, "/rules/"+ruleID, body)
		expectStatus(t, rr, http.StatusOK)

		var r domain.RiskRule
		decode(t, rr, &r)
		if r.Name != "Thin credit file" || !r.Active {
			t.Errorf("updated = %+v", r)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/rules/nope", thinFile)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("Toggle", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/"+ruleID+"/toggle", nil)
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Active bool `json:"is_active"`
		}
		decode(t, rr, &resp)
		if resp.Active {
			t.Error("expected rule to be deactivated")
		}

		rr = env.do(t, http.MethodGet, "/rules?active=true", nil)
		expectStatus(t, rr, http.StatusOK)
		var list struct {
			Count int `json:"count"`
		}
		decode(t, rr, &list)
		if list.Count != defaults {
			t.Errorf("active count = %d, want %d", list.Count, defaults)
		}

		rr = env.do(t, http.MethodPost, "/rules/"+ruleID+"/toggle", ToggleRequest{Active: new(bool)})
		expectStatus(t, rr, http.StatusOK)
		decode(t, rr, &resp)
		if resp.Active {
			t.Error("explicit false should keep the rule inactive")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/validate", thinFile)
		expectStatus(t, rr, http.StatusOK)

		var v rules.Validation
		decode(t, rr, &v)
		if !v.Valid {
			t.Errorf("errors = %v", v.Errors)
		}

		rr = env.do(t, http.MethodPost, "/rules/validate", map[string]any{"name": "empty"})
		expectStatus(t, rr, http.StatusOK)
		decode(t, rr, &v)
		if v.Valid {
			t.Error("rule without conditions or action should be invalid")
		}
	})

	t.Run("DryRun", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/test", map[string]any{
			"rule": thinFile,
			"data": map[string]any{"credit": map[string]any{"credit_score": 550}},
		})
		expectStatus(t, rr, http.StatusOK)

		var res rules.TestResult
		decode(t, rr, &res)
		if !res.Matched || res.Results.TotalScoreAdjustment != -10 {
			t.Errorf("result = %+v", res)
		}

		rr = env.do(t, http.MethodPost, "/rules/test", map[string]any{"rule": thinFile, "data": []int{1}})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("Reload", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/reload", nil)
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Loaded int `json:"loaded"`
		}
		decode(t, rr, &resp)
		if resp.Loaded != defaults {
			t.Errorf("loaded = %d, want %d", resp.Loaded, defaults)
		}
	})

	t.Run("Fields", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules/fields", nil)
		expectStatus(t, rr, http.StatusOK)

		var resp struct {
			Fields    []rules.FieldGroup    `json:"fields"`
			Operators []domain.RuleOperator `json:"operators"`
		}
		decode(t, rr, &resp)
		if len(resp.Fields) == 0 || len(resp.Operators) != len(domain.Operators) {
			t.Errorf("fields = %d operators = %d", len(resp.Fields), len(resp.Operators))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/rules/"+ruleID, nil)
		expectStatus(t, rr, http.StatusOK)

		rr = env.do(t, http.MethodGet, "/rules/"+ruleID, nil)
		expectStatus(t, rr, http.StatusNotFound)

		rr = env.do(t, http.MethodDelete, "/rules/"+ruleID, nil)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		rr := serve(t, env.server, http.MethodGet, "/rules/default_1", nil, "tenant-002")
		expectStatus(t, rr, http.StatusOK)

		rr = env.do(t, http.MethodPost, "/rules", thinFile)
		expectStatus(t, rr, http.StatusCreated)

		rr = serve(t, env.server, http.MethodGet, "/rules", nil, "tenant-002")
		var list struct {
			Count int `json:"count"`
		}
		decode(t, rr, &list)
		if list.Count != defaults {
			t.Errorf("tenant-002 sees %d rules, want %d", list.Count, defaults)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	serve(t, env.server, http.MethodGet, "/health", nil, "")
	rr := env.do(t, http.MethodPost, "/assessments", application())
	expectStatus(t, rr, http.StatusCreated)

	rr = serve(t, env.server, http.MethodGet, "/metrics", nil, "")
	expectStatus(t, rr, http.StatusOK)

	body := rr.Body.String()
	for _, want := range []string{
		"truerev_test_http_requests_total",
		`route="/health"`,
		`route="/assessments"`,
		"truerev_test_assessments_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
