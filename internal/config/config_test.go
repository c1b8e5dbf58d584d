package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %s", cfg.Store.Driver)
	}
	if cfg.Rules.EvalTimeout != 50*time.Millisecond {
		t.Errorf("eval timeout = %s", cfg.Rules.EvalTimeout)
	}
	if !cfg.Scoring.IsHeuristicProvider("heuristic") {
		t.Error("default heuristic providers missing")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	data := []byte(`
server:
  port: 9090
  rateLimitPerMinute: 120
store:
  driver: postgres
  postgresHost: db.internal
rules:
  evalTimeout: 25ms
worker:
  tenants: [tenant-a, tenant-b]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("rate limit = %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.PostgresHost != "db.internal" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Rules.EvalTimeout != 25*time.Millisecond {
		t.Errorf("eval timeout = %s", cfg.Rules.EvalTimeout)
	}
	if len(cfg.Worker.Tenants) != 2 {
		t.Errorf("worker tenants = %v", cfg.Worker.Tenants)
	}
	// Untouched keys keep their defaults.
	if cfg.Cache.Type != "memory" {
		t.Errorf("cache type = %s", cfg.Cache.Type)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KESTREL_SERVER_PORT", "7070")
	t.Setenv("KESTREL_RULE_EVAL_TIMEOUT", "10ms")
	t.Setenv("KESTREL_WORKER_TENANTS", "tenant-a, tenant-b,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, env must win", cfg.Server.Port)
	}
	if cfg.Rules.EvalTimeout != 10*time.Millisecond {
		t.Errorf("eval timeout = %s", cfg.Rules.EvalTimeout)
	}
	if len(cfg.Worker.Tenants) != 2 || cfg.Worker.Tenants[1] != "tenant-b" {
		t.Errorf("worker tenants = %v", cfg.Worker.Tenants)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad driver", "store:\n  driver: oracle\n"},
		{"bad cache", "cache:\n  type: memcached\n"},
		{"bad bus", "eventBus:\n  type: kafka\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kestrel.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/kestrel.yaml"); err == nil {
		t.Error("missing file should error")
	}
}
