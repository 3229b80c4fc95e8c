package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeTable  = "table"
)

type config struct {
	BackendURL     string
	BackendTimeout time.Duration
	ListenAddr     string
	Debug          bool

	SessionSecret   string
	SessionStore    string
	SessionTTL      time.Duration
	RedisConn       string
	StorageConn     string
	SessionsTable   string
	ActivityQueue   string
	CookieSecure    bool
	AllowedOrigins  []string
	JWKSURL         string
	TokenInspection bool

	RoleWait        time.Duration
	RevalidateAfter time.Duration
	ResolveWorkers  int
	ResolveBuffer   int
	ResolveHandoff  time.Duration
	ResolveTimeout  time.Duration
}

// loadConfig reads the configuration from getenv, usually os.Getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		BackendURL:     strings.TrimRight(getenv("BACKEND_URL"), "/"),
		SessionSecret:  getenv("SESSION_SECRET"),
		SessionStore:   strings.ToLower(getenv("SESSION_STORE")),
		RedisConn:      getenv("REDIS_CONNECTION_STRING"),
		StorageConn:    getenv("STORAGE_CONNECTION_STRING"),
		SessionsTable:  getenv("SESSIONS_TABLE"),
		ActivityQueue:  getenv("ACTIVITY_QUEUE"),
		JWKSURL:        getenv("JWKS_URL"),
		ListenAddr:     ":8080",
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS")),
	}
	if cfg.BackendURL == "" {
		return cfg, errors.New("missing BACKEND_URL")
	}
	if len(cfg.SessionSecret) < 32 {
		return cfg, errors.New("SESSION_SECRET must be at least 32 bytes")
	}
	if v := getenv("LISTEN_PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}

	var err error
	if cfg.Debug, err = boolEnv(getenv, "DEBUG", false); err != nil {
		return cfg, err
	}
	if cfg.CookieSecure, err = boolEnv(getenv, "COOKIE_SECURE", false); err != nil {
		return cfg, err
	}
	if cfg.TokenInspection, err = boolEnv(getenv, "TOKEN_INSPECTION", true); err != nil {
		return cfg, err
	}

	durations := []struct {
		name   string
		def    time.Duration
		dst    *time.Duration
		allow0 bool
	}{
		{"BACKEND_TIMEOUT", 15 * time.Second, &cfg.BackendTimeout, false},
		{"SESSION_TTL", 24 * time.Hour, &cfg.SessionTTL, false},
		{"ROLE_WAIT_TIMEOUT", 2 * time.Second, &cfg.RoleWait, true},
		{"ROLE_REVALIDATE_AFTER", 0, &cfg.RevalidateAfter, true},
		{"RESOLVE_HANDOFF_TIMEOUT", 15 * time.Millisecond, &cfg.ResolveHandoff, true},
		{"RESOLVE_TIMEOUT", 10 * time.Second, &cfg.ResolveTimeout, false},
	}
	for _, d := range durations {
		if *d.dst, err = durationEnv(getenv, d.name, d.def, d.allow0); err != nil {
			return cfg, err
		}
	}
	if cfg.ResolveWorkers, err = intEnv(getenv, "RESOLVE_WORKERS", 4, 1); err != nil {
		return cfg, err
	}
	if cfg.ResolveBuffer, err = intEnv(getenv, "RESOLVE_BUFFER", 64, 0); err != nil {
		return cfg, err
	}

	switch cfg.SessionStore {
	case "":
		cfg.SessionStore = storeMemory
	case storeMemory:
	case storeRedis:
		if cfg.RedisConn == "" {
			return cfg, errors.New("missing REDIS_CONNECTION_STRING for redis session store")
		}
	case storeTable:
		if cfg.StorageConn == "" || cfg.SessionsTable == "" {
			return cfg, errors.New("missing table storage config")
		}
	default:
		return cfg, fmt.Errorf("invalid SESSION_STORE %q", cfg.SessionStore)
	}
	if cfg.ActivityQueue != "" && cfg.StorageConn == "" {
		return cfg, errors.New("ACTIVITY_QUEUE requires STORAGE_CONNECTION_STRING")
	}
	return cfg, nil
}

func boolEnv(getenv func(string) string, name string, def bool) (bool, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func durationEnv(getenv func(string) string, name string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return def, fmt.Errorf("invalid %s: must be greater than zero", name)
	}
	return d, nil
}

func intEnv(getenv func(string) string, name string, def, lowest int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < lowest {
		return def, fmt.Errorf("invalid %s: must be at least %d", name, lowest)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// redisOptions accepts a redis:// URL or the "host:port,password=...,ssl=true"
// form used by Azure Cache for Redis.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
