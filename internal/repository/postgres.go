package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/opensource-finance/truerev/internal/domain"
)

// openPostgres connects through a lib/pq connector built from cfg.
func openPostgres(cfg domain.RepositoryConfig) (*sql.DB, error) {
	connector, err := pq.NewConnector(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres configuration: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return db, nil
}

// postgresDSN renders cfg as a key/value connection string, applying
// defaults for host, port, database and sslmode.
func postgresDSN(cfg domain.RepositoryConfig) string {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "truerev"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + quoteDSN(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quoteDSN(dbname),
		"sslmode=" + quoteDSN(sslmode),
	}
	if cfg.PostgresUser != "" {
		parts = append(parts, "user="+quoteDSN(cfg.PostgresUser))
	}
	if cfg.PostgresPassword != "" {
		parts = append(parts, "password="+quoteDSN(cfg.PostgresPassword))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a value when it is empty or holds spaces or quotes.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
