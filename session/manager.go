package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/faustyna77/INF-frontend-next/activity"
	"github.com/faustyna77/INF-frontend-next/domain"
)

// ErrInvalidCredentials is returned by Login for any failed sign-in.
var ErrInvalidCredentials = errors.New("invalid login or password")

// Identity is the backend surface the manager needs.
type Identity interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, token string) (domain.User, error)
}

// Config tunes the manager. Zero values fall back to defaults.
type Config struct {
	Workers         int
	Buffer          int
	HandoffTimeout  time.Duration
	ResolveTimeout  time.Duration
	RevalidateAfter time.Duration
	PollInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	} else if c.Buffer == 0 {
		c.Buffer = 256
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

// Manager is the only writer of sessions. Every change of token, role or
// state goes through it.
type Manager struct {
	store     Store
	identity  Identity
	sink      activity.Sink
	inspector *TokenInspector
	log       *log.Logger
	cfg       Config

	pool   *workerPool
	broker *resolveBroker
	now    func() time.Time
	newID  func() string
}

// NewManager starts the worker pool. inspector may be nil.
func NewManager(store Store, identity Identity, sink activity.Sink, inspector *TokenInspector, logger *log.Logger, cfg Config) *Manager {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if sink == nil {
		sink = activity.LogSink{Log: logger}
	}
	cfg = cfg.withDefaults()
	return &Manager{
		store:     store,
		identity:  identity,
		sink:      sink,
		inspector: inspector,
		log:       logger,
		cfg:       cfg,
		pool:      newWorkerPool(cfg.Workers, cfg.Buffer, cfg.ResolveTimeout, cfg.HandoffTimeout, logger),
		broker:    newResolveBroker(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Close waits for queued lookups and events.
func (m *Manager) Close() {
	m.pool.close()
}

// Load returns the session for id. An authenticated session older than
// RevalidateAfter is moved back to resolving and a lookup is scheduled.
func (m *Manager) Load(ctx context.Context, id string) (Session, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return Anonymous(id), err
	}
	if !m.stale(s) {
		return s, nil
	}
	next := s
	next.State = StateResolving
	next.Role = domain.RoleNone
	next.RoleHint = s.Role
	ok, err := m.store.CompareAndSwap(ctx, s.Token, next)
	if err != nil {
		return s, err
	}
	if !ok {
		return m.store.Load(ctx, id)
	}
	m.log.WithField("session", id).Debug("revalidating role")
	m.schedule(id, s.Token)
	return next, nil
}

func (m *Manager) stale(s Session) bool {
	if m.cfg.RevalidateAfter <= 0 || s.State != StateAuthenticated || s.ResolvedAt.IsZero() {
		return false
	}
	return m.now().Sub(s.ResolvedAt) > m.cfg.RevalidateAfter
}

// Login signs in with the backend and stores the token under a fresh
// session id. The record for previous is dropped. The role is looked up
// in the background; the returned session is resolving.
func (m *Manager) Login(ctx context.Context, previous, email, password string) (Session, error) {
	token, err := m.identity.Login(ctx, email, password)
	if err != nil {
		m.log.WithError(err).WithField("session", previous).Info("login rejected by backend")
		return Anonymous(previous), ErrInvalidCredentials
	}
	if m.inspector != nil {
		if err := m.inspector.Check(token); err != nil {
			m.log.WithError(err).WithField("session", previous).Warn("backend issued unusable token")
			return Anonymous(previous), ErrInvalidCredentials
		}
	}

	s := Session{ID: m.newID(), Token: token, State: StateResolving}
	if err := m.store.Save(ctx, s); err != nil {
		return Anonymous(previous), fmt.Errorf("save session: %w", err)
	}
	if previous != "" && previous != s.ID {
		if err := m.store.Delete(ctx, previous); err != nil {
			m.log.WithError(err).WithField("session", previous).Warn("drop previous session failed")
		}
		m.broker.notify(previous)
	}
	m.publish(activity.New(activity.UserLoggedIn, s.ID, map[string]any{"email": email}))
	m.schedule(s.ID, token)
	return s, nil
}

// Resolve looks up the role for token and records it, unless the session
// has moved on to another token meanwhile. A failed lookup signs the
// session out. It is not retried.
func (m *Manager) Resolve(ctx context.Context, id, token string) (Session, error) {
	defer m.broker.notify(id)

	user, err := m.identity.Me(ctx, token)
	if err != nil {
		m.log.WithError(err).WithField("session", id).Warn("role lookup failed")
		return m.reject(ctx, id, token, "role lookup failed")
	}

	next := Session{
		ID:         id,
		Token:      token,
		Role:       user.Role,
		State:      StateAuthenticated,
		ResolvedAt: m.now(),
	}
	if user.Role == domain.RoleNone {
		m.log.WithField("session", id).Warn("backend returned unknown role")
	}
	ok, err := m.store.CompareAndSwap(ctx, token, next)
	if err != nil {
		return Anonymous(id), err
	}
	if !ok {
		m.log.WithField("session", id).Debug("discarding role for replaced token")
		return m.store.Load(ctx, id)
	}
	return normalize(next), nil
}

// Await blocks until the session leaves the resolving state, ctx is done
// or timeout passes, and returns the latest session.
func (m *Manager) Await(ctx context.Context, id string, timeout time.Duration) (Session, error) {
	ch := m.broker.subscribe(id)
	defer m.broker.unsubscribe(id, ch)

	s, err := m.store.Load(ctx, id)
	if err != nil || !s.Resolving() || timeout <= 0 {
		return s, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return s, nil
		case <-deadline.C:
			return s, nil
		case <-ch:
		case <-poll.C:
		}
		s, err = m.store.Load(ctx, id)
		if err != nil || !s.Resolving() {
			return s, err
		}
	}
}

// Logout signs the session out.
func (m *Manager) Logout(ctx context.Context, id string) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.broker.notify(id)
	if s.HasToken() {
		m.publish(activity.New(activity.UserLoggedOut, id, nil))
	}
	return nil
}

// Invalidate signs the session out because the backend rejected its
// token.
func (m *Manager) Invalidate(ctx context.Context, id, reason string) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if !s.HasToken() {
		return nil
	}
	_, err = m.reject(ctx, id, s.Token, reason)
	m.broker.notify(id)
	return err
}

// reject clears the session if it still holds token.
func (m *Manager) reject(ctx context.Context, id, token, reason string) (Session, error) {
	ok, err := m.store.CompareAndSwap(ctx, token, Anonymous(id))
	if err != nil {
		return Anonymous(id), err
	}
	if !ok {
		return m.store.Load(ctx, id)
	}
	m.publish(activity.New(activity.SessionRejected, id, map[string]any{"reason": reason}))
	return Anonymous(id), nil
}

// schedule runs a lookup on the pool, or inline when the pool is
// saturated.
func (m *Manager) schedule(id, token string) {
	m.dispatch(poolJob{name: "resolve", run: func(ctx context.Context) {
		if _, err := m.Resolve(ctx, id, token); err != nil {
			m.log.WithError(err).WithField("session", id).Error("role resolve failed")
		}
	}})
}

func (m *Manager) publish(ev activity.Event) {
	m.dispatch(poolJob{name: ev.Type, run: func(ctx context.Context) {
		if err := m.sink.Publish(ctx, ev); err != nil {
			m.log.WithError(err).WithFields(log.Fields{"event": ev.Type, "session": ev.EntityID}).Error("publish activity failed")
		}
	}})
}

func (m *Manager) dispatch(j poolJob) {
	if m.pool.submit(j) {
		return
	}
	m.log.Warnf("session worker pool saturated, running %s inline", j.name)
	m.pool.execute(-1, j)
}
