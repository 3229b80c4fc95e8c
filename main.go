package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/faustyna77/INF-frontend-next/activity"
	"github.com/faustyna77/INF-frontend-next/api"
	"github.com/faustyna77/INF-frontend-next/backend"
	"github.com/faustyna77/INF-frontend-next/session"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}

	var sink activity.Sink = activity.LogSink{Log: logger}
	if cfg.ActivityQueue != "" {
		qs, err := activity.NewQueueSink(cfg.StorageConn, cfg.ActivityQueue)
		if err != nil {
			log.Fatalf("activity queue: %v", err)
		}
		sink = qs
	}

	var inspector *session.TokenInspector
	if cfg.TokenInspection {
		var jwks *keyfunc.JWKS
		if cfg.JWKSURL != "" {
			jwks, err = keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
				RefreshInterval:   time.Hour,
				RefreshUnknownKID: true,
				RefreshErrorHandler: func(err error) {
					logger.WithError(err).Warn("jwks refresh failed")
				},
			})
			if err != nil {
				log.Fatalf("jwks: %v", err)
			}
			defer jwks.EndBackground()
		}
		inspector = session.NewTokenInspector(jwks)
	}

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout)
	manager := session.NewManager(store, client, sink, inspector, logger, session.Config{
		Workers:         cfg.ResolveWorkers,
		Buffer:          cfg.ResolveBuffer,
		HandoffTimeout:  cfg.ResolveHandoff,
		ResolveTimeout:  cfg.ResolveTimeout,
		RevalidateAfter: cfg.RevalidateAfter,
	})
	defer manager.Close()

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	api.Register(e, client, manager, logger, api.Options{
		Cookies:      sessions.NewCookieStore([]byte(cfg.SessionSecret)),
		RoleWait:     cfg.RoleWait,
		SecureCookie: cfg.CookieSecure,
	})

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}

func newStore(cfg config) (session.Store, error) {
	switch cfg.SessionStore {
	case storeRedis:
		return session.NewRedisStore(redis.NewClient(redisOptions(cfg.RedisConn)), cfg.SessionTTL), nil
	case storeTable:
		return session.NewTableStore(cfg.StorageConn, cfg.SessionsTable, cfg.SessionTTL)
	}
	return session.NewMemoryStore(cfg.SessionTTL), nil
}
