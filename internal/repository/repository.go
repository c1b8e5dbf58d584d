// Package repository implements the rule store on SQLite or PostgreSQL
// behind one query surface.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrRuleNotFound is returned when a rule does not exist for the tenant.
var ErrRuleNotFound = errors.New("rule not found")

// SQLStore is the SQL-backed rule store. Queries are written with ?
// placeholders and rebound for postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// New opens the configured database, applies the schema, and returns the
// store.
func New(cfg domain.StoreConfig, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db     *sql.DB
		schema string
		err    error
	)
	switch cfg.Driver {
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "./kestrel.db"
		}
		db, err = sql.Open("sqlite", path)
		schema = sqliteSchema
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
			cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode)
		db, err = sql.Open("postgres", dsn)
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("rule store ready", "driver", cfg.Driver)
	return &SQLStore{db: db, driver: cfg.Driver, logger: logger}, nil
}

// rebind converts ? placeholders to $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRule inserts or updates a rule. Updates keep the original insertion
// sequence so evaluation order stays stable.
func (s *SQLStore) SaveRule(ctx context.Context, tenantID string, rule *domain.Rule) error {
	if rule.ID == "" || rule.Name == "" || rule.Condition == "" {
		return errors.New("rule requires id, name, and condition")
	}
	if !rule.Action.Valid() {
		return fmt.Errorf("invalid rule action %q", rule.Action)
	}

	query := s.rebind(`
		INSERT INTO rules (tenant_id, id, name, description, condition, action, priority, enabled, severity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			condition = excluded.condition,
			action = excluded.action,
			priority = excluded.priority,
			enabled = excluded.enabled,
			severity = excluded.severity,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		tenantID, rule.ID, rule.Name, rule.Description, rule.Condition,
		string(rule.Action), rule.Priority, rule.Enabled, rule.Severity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

// GetRule fetches one rule for the tenant.
func (s *SQLStore) GetRule(ctx context.Context, tenantID, ruleID string) (*domain.Rule, error) {
	query := s.rebind(`
		SELECT id, name, description, condition, action, priority, enabled, severity
		FROM rules WHERE tenant_id = ? AND id = ?`)

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	rule.TenantID = tenantID
	return rule, nil
}

// ListEnabledRules returns the tenant's enabled rules in insertion order.
func (s *SQLStore) ListEnabledRules(ctx context.Context, tenantID string) ([]*domain.Rule, error) {
	query := s.rebind(`
		SELECT id, name, description, condition, action, priority, enabled, severity
		FROM rules WHERE tenant_id = ? AND enabled = ?
		ORDER BY seq`)

	rows, err := s.db.QueryContext(ctx, query, tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.TenantID = tenantID
		out = append(out, rule)
	}
	return out, rows.Err()
}

// DeleteRule removes a rule for the tenant.
func (s *SQLStore) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	query := s.rebind(`DELETE FROM rules WHERE tenant_id = ? AND id = ?`)

	res, err := s.db.ExecContext(ctx, query, tenantID, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Ping checks database health.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var (
		rule   domain.Rule
		action string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.Condition,
		&action, &rule.Priority, &rule.Enabled, &rule.Severity)
	if err != nil {
		return nil, err
	}
	rule.Action = domain.RuleAction(action)
	return &rule, nil
}
