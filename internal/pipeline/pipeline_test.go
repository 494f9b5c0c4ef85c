package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/rules"
	"github.com/opensource-finance/truerev/internal/stats"
)

type memRepo struct {
	mu          sync.Mutex
	assessments map[string]*domain.Assessment
	rules       map[string]*domain.RiskRule
}

func newMemRepo() *memRepo {
	return &memRepo{
		assessments: make(map[string]*domain.Assessment),
		rules:       make(map[string]*domain.RiskRule),
	}
}

func (m *memRepo) SaveAssessment(_ context.Context, tenantID string, a *domain.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[tenantID+"/"+a.ID] = a
	return nil
}

func (m *memRepo) GetAssessment(_ context.Context, tenantID, id string) (*domain.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[tenantID+"/"+id]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}

func (m *memRepo) ListAssessments(context.Context, string, string) ([]*domain.Assessment, error) {
	return nil, nil
}

func (m *memRepo) SaveRiskRule(_ context.Context, tenantID string, r *domain.RiskRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[tenantID+"/"+r.ID] = r
	return nil
}

func (m *memRepo) GetRiskRule(context.Context, string, string) (*domain.RiskRule, error) {
	return nil, errors.New("not found")
}

func (m *memRepo) ListRiskRules(context.Context, string, bool) ([]*domain.RiskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.RiskRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) SetRiskRuleActive(context.Context, string, string, bool) error { return nil }
func (m *memRepo) DeleteRiskRule(context.Context, string, string) error          { return nil }
func (m *memRepo) Ping(context.Context) error                                    { return nil }
func (m *memRepo) Close() error                                                  { return nil }

type published struct {
	tenantID string
	topic    string
	payload  []byte
}

// recordingBus captures published messages.
type recordingBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *recordingBus) Publish(_ context.Context, tenantID, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{tenantID, topic, payload})
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, string, domain.MessageHandler) (domain.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) Request(context.Context, string, string, []byte) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) Ping(context.Context) error { return nil }
func (b *recordingBus) Close() error                { return nil }

func floatPtr(v float64) *float64 { return &v }

func tx(date, desc string, amount float64, typ domain.TransactionType, balance float64) domain.Transaction {
	return domain.Transaction{Date: date, Description: desc, Amount: amount, Type: typ, EndingBalance: floatPtr(balance)}
}

// steadyStatements is three months of identical revenue and rent.
func steadyStatements() []domain.Transaction {
	return []domain.Transaction{
		tx("2024-01-10", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-01-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
		tx("2024-02-12", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-02-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
		tx("2024-03-11", "STRIPE PAYOUT", 30123.45, domain.TxCredit, 40000),
		tx("2024-03-15", "RENT PAYMENT", 5000, domain.TxDebit, 35000),
	}
}

// strongRequest carries signals that score 94 without statements.
func strongRequest() *Request {
	return &Request{
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

func TestAnalyzeStatements(t *testing.T) {
	p := New(domain.DefaultUnderwritingConfig(), Deps{})

	t.Run("SteadyMerchant", func(t *testing.T) {
		b := p.AnalyzeStatements(domain.Application{}, steadyStatements())
		if b == nil {
			t.Fatal("expected bank analysis")
		}
		s := b.Signal
		// 50 + consistency 20 + cash flow 15 + balance 10
		if s.Score != 95 {
			t.Errorf("Score = %d, want 95", s.Score)
		}
		if s.MonthsAnalyzed != 3 || s.MonthlyTrueRevenue != 30123.45 {
			t.Errorf("months = %d revenue = %v", s.MonthsAnalyzed, s.MonthlyTrueRevenue)
		}
		if s.RevenueConsistency == nil || *s.RevenueConsistency != 1 {
			t.Errorf("RevenueConsistency = %v, want 1", s.RevenueConsistency)
		}
		if s.AverageDailyBalance == nil || *s.AverageDailyBalance != 37500 {
			t.Errorf("AverageDailyBalance = %v, want 37500", s.AverageDailyBalance)
		}
		if s.NSFCount != 0 || s.NSFRisk != stats.LevelLow || s.NegativeDays != 0 {
			t.Errorf("nsf = %d/%s/%d", s.NSFCount, s.NSFRisk, s.NegativeDays)
		}
		if b.Trend == nil || b.Trend.Direction != stats.DirectionStable {
			t.Errorf("Trend = %+v, want stable", b.Trend)
		}
		if b.CashFlow.Months != 3 || b.CashFlow.PositiveMonths != 3 || b.CashFlow.PositiveRatio != 1 {
			t.Errorf("CashFlow = %+v", b.CashFlow)
		}
		if len(s.Flags) != 0 {
			t.Errorf("Flags = %v, want none", s.Flags)
		}
	})

	t.Run("NoValidTransactions", func(t *testing.T) {
		b := p.AnalyzeStatements(domain.Application{}, []domain.Transaction{
			{Date: "not-a-date", Description: "STRIPE PAYOUT", Amount: 100, Type: domain.TxCredit},
		})
		if b != nil {
			t.Errorf("expected nil analysis, got %+v", b)
		}
	})
}

func TestCashFlow(t *testing.T) {
	cf := cashFlow([]domain.Transaction{
		{Date: "2024-01-05", Amount: 1000, Type: domain.TxCredit},
		{Date: "2024-01-20", Amount: 400, Type: domain.TxDebit},
		{Date: "2024-02-05", Amount: 300, Type: domain.TxCredit},
		{Date: "2024-02-20", Amount: 900, Type: domain.TxDebit},
	})
	if cf.Months != 2 || cf.PositiveMonths != 1 || cf.PositiveRatio != 0.5 {
		t.Errorf("CashFlow = %+v", cf)
	}
	if cf.NetByMonth["2024-01"] != 600 || cf.NetByMonth["2024-02"] != -600 {
		t.Errorf("NetByMonth = %v", cf.NetByMonth)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("PersistsAndPublishes", func(t *testing.T) {
		repo := newMemRepo()
		bus := &recordingBus{}
		p := New(domain.DefaultUnderwritingConfig(), Deps{Repo: repo, Bus: bus})

		r, err := p.Run(ctx, "tenant-001", strongRequest())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if r.OverallScore != 94 || r.Decision.Action != domain.ActionApprove {
			t.Fatalf("got %d %s, want 94 APPROVE", r.OverallScore, r.Decision.Action)
		}
		if r.BankAnalysis != nil {
			t.Error("expected no bank analysis without statements")
		}
		if len(r.MissingSignals) != 2 {
			t.Errorf("MissingSignals = %v, want identity and ucc", r.MissingSignals)
		}

		stored, err := repo.GetAssessment(ctx, "tenant-001", r.ID)
		if err != nil {
			t.Fatalf("assessment not persisted: %v", err)
		}
		if stored.Action != domain.ActionApprove || stored.Score != 94 || stored.ApplicationID != "app-001" {
			t.Errorf("stored = %+v", stored)
		}
		var decoded Report
		if err := json.Unmarshal(stored.Result, &decoded); err != nil {
			t.Fatalf("stored result is not a report: %v", err)
		}
		if decoded.Assessment == nil || decoded.ID != r.ID {
			t.Errorf("decoded report ID mismatch")
		}

		if len(bus.msgs) != 1 || bus.msgs[0].topic != domain.TopicAssessmentCompleted {
			t.Fatalf("published = %+v, want one completed event", bus.msgs)
		}
		var ev Event
		if err := json.Unmarshal(bus.msgs[0].payload, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		if ev.AssessmentID != r.ID || ev.Action != domain.ActionApprove {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("ReviewPublishesTwice", func(t *testing.T) {
		bus := &recordingBus{}
		p := New(domain.DefaultUnderwritingConfig(), Deps{Bus: bus})

		req := strongRequest()
		req.Signals.Stacking = nil
		r, err := p.Run(ctx, "tenant-001", req)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if r.Decision.Action != domain.ActionReview || r.Decision.ReasonCode != domain.ReasonSignalMissing {
			t.Fatalf("decision = %+v, want REVIEW for missing stacking", r.Decision)
		}
		if len(bus.msgs) != 2 || bus.msgs[1].topic != domain.TopicAssessmentReview {
			t.Errorf("published = %+v, want completed and review", bus.msgs)
		}
	})

	t.Run("StatementsFeedTheAssessment", func(t *testing.T) {
		p := New(domain.DefaultUnderwritingConfig(), Deps{})
		req := strongRequest()
		req.Signals.BankAnalysis = nil
		req.Transactions = steadyStatements()

		r, err := p.Run(ctx, "tenant-001", req)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if r.BankAnalysis == nil {
			t.Fatal("expected bank analysis")
		}
		if r.FraudAnalysis == nil {
			t.Error("expected fraud analysis on the assessment")
		}
		if r.ComponentScores[domain.ComponentBank] == 0 {
			t.Error("expected bank analysis component score")
		}
		if r.Metadata.RevenueSource != "true_revenue" {
			t.Errorf("RevenueSource = %q, want true_revenue", r.Metadata.RevenueSource)
		}
	})

	t.Run("TenantRulesApply", func(t *testing.T) {
		repo := newMemRepo()
		p := New(domain.DefaultUnderwritingConfig(), Deps{Repo: repo, Rules: rules.NewStore(repo)})

		r, err := p.Run(ctx, "tenant-001", strongRequest())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		// Excellent credit adds 15 on top of 94.
		if r.OverallScore != 100 {
			t.Errorf("OverallScore = %d, want 100", r.OverallScore)
		}
		if r.Metadata.RulesEvaluated != len(rules.DefaultRules()) {
			t.Errorf("RulesEvaluated = %d, want %d", r.Metadata.RulesEvaluated, len(rules.DefaultRules()))
		}
	})

	t.Run("AssignsApplicationID", func(t *testing.T) {
		p := New(domain.DefaultUnderwritingConfig(), Deps{})
		req := strongRequest()
		req.Application.ID = ""
		r, err := p.Run(ctx, "tenant-001", req)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if r.ApplicationID == "" {
			t.Error("expected generated application ID")
		}
	})

	t.Run("RequiresTenant", func(t *testing.T) {
		p := New(domain.DefaultUnderwritingConfig(), Deps{})
		if _, err := p.Run(ctx, "", strongRequest()); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("err = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("RejectsNegativeAmounts", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Request)
		}{
			{"daily payment", func(r *Request) {
				r.Application.ExistingPositions = []domain.ExistingPosition{{Funder: "A", DailyPayment: -2000}}
			}},
			{"remaining balance", func(r *Request) {
				r.Application.ExistingPositions = []domain.ExistingPosition{{Funder: "A", DailyPayment: 100, RemainingBalance: -1}}
			}},
			{"requested amount", func(r *Request) { r.Application.RequestedAmount = -40000 }},
			{"stated revenue", func(r *Request) { r.Application.StatedMonthlyRevenue = -1 }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bus := &recordingBus{}
				p := New(domain.DefaultUnderwritingConfig(), Deps{Bus: bus})
				req := strongRequest()
				tt.mutate(req)
				if _, err := p.Run(ctx, "tenant-001", req); !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("err = %v, want ErrInvalidRequest", err)
				}
				if len(bus.msgs) != 0 {
					t.Errorf("published %d events for a rejected request", len(bus.msgs))
				}
			})
		}
	})
}
