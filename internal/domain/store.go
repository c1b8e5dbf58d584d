package domain

import (
	"context"
	"time"
)

// RuleStore persists tenant-defined rules. Built-in rules are a static list
// merged ahead of stored rules by the loader; the store never sees them.
// All methods require tenantID for strict multi-tenancy isolation.
type RuleStore interface {
	SaveRule(ctx context.Context, tenantID string, rule *Rule) error
	GetRule(ctx context.Context, tenantID string, ruleID string) (*Rule, error)

	// ListEnabledRules returns enabled rules for a tenant in insertion order.
	ListEnabledRules(ctx context.Context, tenantID string) ([]*Rule, error)

	DeleteRule(ctx context.Context, tenantID string, ruleID string) error

	Ping(ctx context.Context) error
	Close() error
}

// StoreConfig holds configuration for rule store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// SQLite specific.
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific.
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDB"`
	PostgresSSLMode  string `yaml:"postgresSSLMode"`

	// Connection pool settings.
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
