// Package domain defines the underwriting types and the interfaces the
// pipeline depends on.
package domain

import (
	"context"
	"time"
)

// Repository persists assessments and tenant risk rules. Every call is
// scoped to one tenant; rows of other tenants are never visible.
type Repository interface {
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	// ListAssessments returns the tenant's assessments, newest first,
	// optionally narrowed to one application.
	ListAssessments(ctx context.Context, tenantID string, applicationID string) ([]*Assessment, error)

	SaveRiskRule(ctx context.Context, tenantID string, rule *RiskRule) error
	GetRiskRule(ctx context.Context, tenantID string, ruleID string) (*RiskRule, error)
	ListRiskRules(ctx context.Context, tenantID string, activeOnly bool) ([]*RiskRule, error)
	SetRiskRuleActive(ctx context.Context, tenantID string, ruleID string, active bool) error
	DeleteRiskRule(ctx context.Context, tenantID string, ruleID string) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryConfig selects the database and its pool limits.
type RepositoryConfig struct {
	Driver string // "sqlite" or "postgres"

	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
