package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Driver != StoreDriverMemory {
		t.Errorf("Expected memory driver, got %q", cfg.Store.Driver)
	}
	if cfg.RateLimit.Requests != 10 {
		t.Errorf("Expected 10 requests per window, got %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window != 5*time.Minute {
		t.Errorf("Expected 5m window, got %v", cfg.RateLimit.Window)
	}
	if cfg.Server.APIKey != "" {
		t.Errorf("Expected API key check disabled by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/c.db")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "1s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Driver != StoreDriverSQLite {
		t.Errorf("Expected sqlite driver, got %q", cfg.Store.Driver)
	}
	if cfg.RateLimit.Requests != 3 || cfg.RateLimit.Window != time.Second {
		t.Errorf("Unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "10.0.0.2" {
		t.Errorf("Unexpected trusted proxies: %v", cfg.Server.TrustedProxies)
	}
	if !strings.HasPrefix(cfg.SQLite.GetDSN(), "/tmp/c.db?_pragma=journal_mode(WAL)") {
		t.Errorf("Unexpected sqlite DSN: %s", cfg.SQLite.GetDSN())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:     StoreConfig{Driver: StoreDriverMemory, OperationTimeout: time.Second, RecentMax: 100},
			RateLimit: RateLimitConfig{Backend: RateLimitBackendMemory, Requests: 10, Window: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "dynamo" }, wantErr: "STORE_DRIVER"},
		{name: "postgres without host", mutate: func(c *Config) { c.Store.Driver = StoreDriverPostgres; c.Database.Name = "x" }, wantErr: "DB_HOST"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Driver = StoreDriverSQLite }, wantErr: "SQLITE_PATH"},
		{name: "unknown backend", mutate: func(c *Config) { c.RateLimit.Backend = "waf" }, wantErr: "RATE_LIMIT_BACKEND"},
		{name: "redis without addr", mutate: func(c *Config) { c.RateLimit.Backend = RateLimitBackendRedis }, wantErr: "REDIS_ADDR"},
		{name: "zero ceiling", mutate: func(c *Config) { c.RateLimit.Requests = 0 }, wantErr: "RATE_LIMIT_REQUESTS"},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "RATE_LIMIT_WINDOW"},
		{name: "zero store timeout", mutate: func(c *Config) { c.Store.OperationTimeout = 0 }, wantErr: "STORE_OPERATION_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
