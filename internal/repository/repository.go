// Package repository persists assessments and tenant risk rules.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository implements domain.Repository over database/sql for both
// SQLite and PostgreSQL.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New opens the configured database and applies the schema.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 && cfg.SQLitePath != sqliteMemory {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores an assessment. Assessments are immutable; saving an
// existing ID is an error.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}
	if len(a.Result) == 0 {
		return fmt.Errorf("%w: assessment result is required", ErrInvalidInput)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assessments (id, tenant_id, application_id, action, score, created_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.ApplicationID, string(a.Action), a.Score,
		a.CreatedAt.UTC(), string(a.Result),
	)
	return err
}

// GetAssessment retrieves an assessment with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, action, score, created_at, result
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`
	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssessments returns the tenant's assessments newest first, limited to
// one application when applicationID is set.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, applicationID string) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, action, score, created_at, result
		FROM assessments
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if applicationID != "" {
		query += ` AND application_id = ?`
		args = append(args, applicationID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var (
		a      domain.Assessment
		action string
		result string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.ApplicationID, &action, &a.Score, &a.CreatedAt, &result); err != nil {
		return nil, err
	}
	a.Action = domain.DecisionAction(action)
	a.Result = json.RawMessage(result)
	return &a, nil
}

// SaveRiskRule creates or replaces a tenant rule. CreatedAt survives
// updates; UpdatedAt is set to now.
func (r *SQLRepository) SaveRiskRule(ctx context.Context, tenantID string, rule *domain.RiskRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("%w: conditions: %v", ErrInvalidInput, err)
	}
	if rule.Conditions == nil {
		conditions = []byte("[]")
	}
	logic := rule.Logic
	if logic == "" {
		logic = domain.LogicAnd
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	rule.TenantID = tenantID

	query := `
		INSERT INTO risk_rules (
			id, tenant_id, name, description, conditions, logic, expression,
			action, action_value, priority, severity, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			conditions = excluded.conditions,
			logic = excluded.logic,
			expression = excluded.expression,
			action = excluded.action,
			action_value = excluded.action_value,
			priority = excluded.priority,
			severity = excluded.severity,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		string(conditions), string(logic), rule.Expression,
		string(rule.Action), nullableJSON(rule.ActionValue),
		rule.Priority, rule.Severity, boolInt(rule.Active),
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRiskRule retrieves a rule with tenant isolation.
func (r *SQLRepository) GetRiskRule(ctx context.Context, tenantID string, ruleID string) (*domain.RiskRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, conditions, logic, expression,
			   action, action_value, priority, severity, is_active, created_at, updated_at
		FROM risk_rules
		WHERE tenant_id = ? AND id = ?
	`
	rule, err := scanRiskRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListRiskRules returns the tenant's rules by descending priority.
func (r *SQLRepository) ListRiskRules(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.RiskRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, conditions, logic, expression,
			   action, action_value, priority, severity, is_active, created_at, updated_at
		FROM risk_rules
		WHERE tenant_id = ?
	`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY priority DESC, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RiskRule
	for rows.Next() {
		rule, err := scanRiskRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRiskRule(row rowScanner) (*domain.RiskRule, error) {
	var (
		rule        domain.RiskRule
		description sql.NullString
		conditions  string
		logic       string
		expression  sql.NullString
		action      string
		actionValue sql.NullString
		severity    sql.NullString
		active      int
	)
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&conditions, &logic, &expression,
		&action, &actionValue, &rule.Priority, &severity, &active,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s: corrupt conditions: %w", rule.ID, err)
	}
	rule.Description = description.String
	rule.Logic = domain.RuleLogic(logic)
	rule.Expression = expression.String
	rule.Action = domain.RuleAction(action)
	if actionValue.Valid && actionValue.String != "" {
		rule.ActionValue = json.RawMessage(actionValue.String)
	}
	rule.Severity = severity.String
	rule.Active = active != 0
	return &rule, nil
}

// SetRiskRuleActive toggles a rule without touching its definition.
func (r *SQLRepository) SetRiskRuleActive(ctx context.Context, tenantID string, ruleID string, active bool) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE risk_rules
		SET is_active = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`
	result, err := r.db.ExecContext(ctx, r.rebind(query), boolInt(active), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteRiskRule removes a rule permanently.
func (r *SQLRepository) DeleteRiskRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM risk_rules WHERE tenant_id = ? AND id = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, ruleID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableJSON(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
