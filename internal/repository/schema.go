package repository

// Table definitions shared by SQLite and PostgreSQL. JSON documents are
// stored as TEXT and booleans as INTEGER so one statement set serves both.

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT NOT NULL,
    action TEXT NOT NULL,
    score INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    result TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_assessments_application ON assessments(tenant_id, application_id);
CREATE INDEX IF NOT EXISTS idx_assessments_action ON assessments(tenant_id, action);
`

const schemaRiskRules = `
CREATE TABLE IF NOT EXISTS risk_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    conditions TEXT NOT NULL,
    logic TEXT NOT NULL DEFAULT 'AND',
    expression TEXT,
    action TEXT NOT NULL,
    action_value TEXT,
    priority INTEGER NOT NULL DEFAULT 0,
    severity TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_risk_rules_active ON risk_rules(tenant_id, is_active);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaRiskRules,
	}
}
