package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions. A session that was never saved, was deleted or
// expired loads as anonymous without error.
type Store interface {
	Load(ctx context.Context, id string) (Session, error)
	// Save writes s. Saving an anonymous session removes it.
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	// CompareAndSwap writes s only if the stored token still equals
	// expectedToken, and reports whether it did.
	CompareAndSwap(ctx context.Context, expectedToken string, s Session) (bool, error)
}

// MemoryStore keeps sessions in process memory. It suits a single
// instance; sessions are lost on restart.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// NewMemoryStore creates a store whose entries live for ttl after their
// last write. A ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id), nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, expectedToken string, s Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadLocked(s.ID).Token != expectedToken {
		return false, nil
	}
	m.saveLocked(s)
	return true, nil
}

func (m *MemoryStore) loadLocked(id string) Session {
	entry, ok := m.sessions[id]
	if !ok {
		return Anonymous(id)
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.sessions, id)
		return Anonymous(id)
	}
	return entry.session
}

func (m *MemoryStore) saveLocked(s Session) {
	s = normalize(s)
	if s.State == StateAnonymous {
		delete(m.sessions, s.ID)
		return
	}
	entry := memoryEntry{session: s}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.sessions[s.ID] = entry
}
