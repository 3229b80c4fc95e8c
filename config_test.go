package main

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envOf(map[string]string{
		"BACKEND_URL":    "http://localhost:8080/",
		"SESSION_SECRET": testSecret,
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := config{
		BackendURL:      "http://localhost:8080",
		BackendTimeout:  15 * time.Second,
		ListenAddr:      ":8080",
		SessionSecret:   testSecret,
		SessionStore:    storeMemory,
		SessionTTL:      24 * time.Hour,
		TokenInspection: true,
		RoleWait:        2 * time.Second,
		ResolveWorkers:  4,
		ResolveBuffer:   64,
		ResolveHandoff:  15 * time.Millisecond,
		ResolveTimeout:  10 * time.Second,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(envOf(map[string]string{
		"BACKEND_URL":             "https://api.example.com",
		"SESSION_SECRET":          testSecret,
		"LISTEN_PORT":             "9000",
		"DEBUG":                   "true",
		"SESSION_STORE":           "Redis",
		"REDIS_CONNECTION_STRING": "cache:6380,password=pw,ssl=true",
		"ALLOWED_ORIGINS":         "https://a.example.com, https://b.example.com,",
		"ROLE_WAIT_TIMEOUT":       "0s",
		"ROLE_REVALIDATE_AFTER":   "5m",
		"RESOLVE_WORKERS":         "2",
		"TOKEN_INSPECTION":        "false",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9000" || !cfg.Debug || cfg.SessionStore != storeRedis {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.RoleWait != 0 || cfg.RevalidateAfter != 5*time.Minute || cfg.ResolveWorkers != 2 || cfg.TokenInspection {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	base := func(extra map[string]string) map[string]string {
		vars := map[string]string{"BACKEND_URL": "http://b", "SESSION_SECRET": testSecret}
		for k, v := range extra {
			vars[k] = v
		}
		return vars
	}
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{name: "missing backend", vars: map[string]string{"SESSION_SECRET": testSecret}, want: "BACKEND_URL"},
		{name: "short secret", vars: map[string]string{"BACKEND_URL": "http://b", "SESSION_SECRET": "short"}, want: "SESSION_SECRET"},
		{name: "bad store", vars: base(map[string]string{"SESSION_STORE": "sqlite"}), want: "SESSION_STORE"},
		{name: "redis without conn", vars: base(map[string]string{"SESSION_STORE": "redis"}), want: "REDIS_CONNECTION_STRING"},
		{name: "table without conn", vars: base(map[string]string{"SESSION_STORE": "table"}), want: "table storage"},
		{name: "queue without conn", vars: base(map[string]string{"ACTIVITY_QUEUE": "activity"}), want: "ACTIVITY_QUEUE"},
		{name: "bad duration", vars: base(map[string]string{"SESSION_TTL": "soon"}), want: "SESSION_TTL"},
		{name: "zero ttl", vars: base(map[string]string{"SESSION_TTL": "0s"}), want: "SESSION_TTL"},
		{name: "bad bool", vars: base(map[string]string{"COOKIE_SECURE": "maybe"}), want: "COOKIE_SECURE"},
		{name: "no workers", vars: base(map[string]string{"RESOLVE_WORKERS": "0"}), want: "RESOLVE_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(envOf(tt.vars))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions("redis://:pw@localhost:6379/2")
	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected url options: %+v", opts)
	}

	opts = redisOptions("example.redis.cache.windows.net:6380,password=secret=,ssl=True,abortConnect=False")
	if opts.Addr != "example.redis.cache.windows.net:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.Password != "secret=" {
		t.Fatalf("unexpected password %q", opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Fatalf("expected TLS for ssl=true")
	}
}
