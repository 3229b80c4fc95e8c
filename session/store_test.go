package session

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/faustyna77/INF-frontend-next/domain"
)

func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing loads anonymous", func(t *testing.T) {
		st := newStore(t)
		s, err := st.Load(ctx, "nope")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.State != StateAnonymous || s.ID != "nope" || s.HasToken() {
			t.Fatalf("unexpected session %+v", s)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		st := newStore(t)
		resolvedAt := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
		in := Session{ID: "a", Token: "tok", Role: domain.RoleAdmin, State: StateAuthenticated, ResolvedAt: resolvedAt}
		if err := st.Save(ctx, in); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := st.Load(ctx, "a")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Token != "tok" || got.Role != domain.RoleAdmin || got.RoleHint != domain.RoleAdmin || got.State != StateAuthenticated {
			t.Fatalf("unexpected session %+v", got)
		}
		if !got.ResolvedAt.Equal(resolvedAt) {
			t.Fatalf("resolvedAt = %v, want %v", got.ResolvedAt, resolvedAt)
		}
	})

	t.Run("resolving keeps hint but no role", func(t *testing.T) {
		st := newStore(t)
		if err := st.Save(ctx, Session{ID: "r", Token: "tok", RoleHint: domain.RoleUser, State: StateResolving}); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, _ := st.Load(ctx, "r")
		if got.State != StateResolving || got.Role != domain.RoleNone || got.RoleHint != domain.RoleUser {
			t.Fatalf("unexpected session %+v", got)
		}
	})

	t.Run("saving anonymous deletes", func(t *testing.T) {
		st := newStore(t)
		_ = st.Save(ctx, Session{ID: "d", Token: "tok", State: StateResolving})
		if err := st.Save(ctx, Anonymous("d")); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, _ := st.Load(ctx, "d")
		if got.HasToken() {
			t.Fatalf("expected anonymous, got %+v", got)
		}
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		st := newStore(t)
		if err := st.Delete(ctx, "ghost"); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		st := newStore(t)
		_ = st.Save(ctx, Session{ID: "c", Token: "new", State: StateResolving})

		ok, err := st.CompareAndSwap(ctx, "old", Session{ID: "c", Token: "old", Role: domain.RoleAdmin, State: StateAuthenticated})
		if err != nil {
			t.Fatalf("cas: %v", err)
		}
		if ok {
			t.Fatal("swap with stale token must fail")
		}
		got, _ := st.Load(ctx, "c")
		if got.Token != "new" || got.State != StateResolving {
			t.Fatalf("stale swap changed session: %+v", got)
		}

		ok, err = st.CompareAndSwap(ctx, "new", Session{ID: "c", Token: "new", Role: domain.RoleUser, State: StateAuthenticated})
		if err != nil || !ok {
			t.Fatalf("cas with current token: ok=%v err=%v", ok, err)
		}
		got, _ = st.Load(ctx, "c")
		if got.Role != domain.RoleUser || got.State != StateAuthenticated {
			t.Fatalf("unexpected session %+v", got)
		}

		ok, err = st.CompareAndSwap(ctx, "new", Anonymous("c"))
		if err != nil || !ok {
			t.Fatalf("cas to anonymous: ok=%v err=%v", ok, err)
		}
		got, _ = st.Load(ctx, "c")
		if got.HasToken() {
			t.Fatalf("expected anonymous, got %+v", got)
		}
	})

	t.Run("compare and swap on empty", func(t *testing.T) {
		st := newStore(t)
		ok, err := st.CompareAndSwap(ctx, "", Session{ID: "e", Token: "tok", State: StateResolving})
		if err != nil || !ok {
			t.Fatalf("cas on empty: ok=%v err=%v", ok, err)
		}
		ok, _ = st.CompareAndSwap(ctx, "", Session{ID: "e", Token: "other", State: StateResolving})
		if ok {
			t.Fatal("second swap expecting empty must fail")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore(time.Hour) })
}

func TestMemoryStoreExpires(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }
	_ = st.Save(context.Background(), Session{ID: "x", Token: "tok", State: StateResolving})

	now = now.Add(59 * time.Second)
	if s, _ := st.Load(context.Background(), "x"); !s.HasToken() {
		t.Fatal("session expired too early")
	}
	now = now.Add(2 * time.Second)
	if s, _ := st.Load(context.Background(), "x"); s.HasToken() {
		t.Fatal("session should have expired")
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, 30*time.Minute), mr
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		st, _ := newRedisStore(t)
		return st
	})
}

func TestRedisStoreLayout(t *testing.T) {
	st, mr := newRedisStore(t)
	err := st.Save(context.Background(), Session{ID: "abc", Token: "tok", Role: domain.RoleUser, State: StateAuthenticated})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := mr.HGet("session:abc", "token"); got != "tok" {
		t.Fatalf("token field = %q", got)
	}
	if got := mr.HGet("session:abc", "userRole"); got != "USER" {
		t.Fatalf("userRole field = %q", got)
	}
	if ttl := mr.TTL("session:abc"); ttl != 30*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	s, err := st.Load(context.Background(), "abc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.HasToken() {
		t.Fatalf("expected expiry, got %+v", s)
	}
}

func TestNewRedisStoreNilClientPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewRedisStore(nil, time.Minute)
}

type fakeRow struct {
	payload []byte
	etag    int
}

// fakeTable mimics table storage ETag semantics in memory.
type fakeTable struct {
	mu   sync.Mutex
	rows map[string]fakeRow
	seq  int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: make(map[string]fakeRow)}
}

func statusErr(code int) error {
	return &azcore.ResponseError{StatusCode: code}
}

func rowKeyOf(payload []byte) string {
	var m map[string]any
	_ = sonic.Unmarshal(payload, &m)
	key, _ := m["RowKey"].(string)
	return key
}

func (f *fakeTable) put(key string, payload []byte) {
	f.seq++
	f.rows[key] = fakeRow{payload: payload, etag: f.seq}
}

func (f *fakeTable) matches(row fakeRow, etag *azcore.ETag) bool {
	return etag == nil || *etag == azcore.ETagAny || string(*etag) == strconv.Itoa(row.etag)
}

func (f *fakeTable) GetEntity(ctx context.Context, pk, rk string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rk]
	if !ok {
		return aztables.GetEntityResponse{}, statusErr(http.StatusNotFound)
	}
	return aztables.GetEntityResponse{ETag: azcore.ETag(strconv.Itoa(row.etag)), Value: row.payload}, nil
}

func (f *fakeTable) AddEntity(ctx context.Context, entity []byte, o *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKeyOf(entity)
	if _, ok := f.rows[key]; ok {
		return aztables.AddEntityResponse{}, statusErr(http.StatusConflict)
	}
	f.put(key, entity)
	return aztables.AddEntityResponse{}, nil
}

func (f *fakeTable) UpsertEntity(ctx context.Context, entity []byte, o *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(rowKeyOf(entity), entity)
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeTable) UpdateEntity(ctx context.Context, entity []byte, o *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rowKeyOf(entity)
	row, ok := f.rows[key]
	if !ok {
		return aztables.UpdateEntityResponse{}, statusErr(http.StatusNotFound)
	}
	if o != nil && !f.matches(row, o.IfMatch) {
		return aztables.UpdateEntityResponse{}, statusErr(http.StatusPreconditionFailed)
	}
	f.put(key, entity)
	return aztables.UpdateEntityResponse{}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, pk, rk string, o *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rk]
	if !ok {
		return aztables.DeleteEntityResponse{}, statusErr(http.StatusNotFound)
	}
	if o != nil && !f.matches(row, o.IfMatch) {
		return aztables.DeleteEntityResponse{}, statusErr(http.StatusPreconditionFailed)
	}
	delete(f.rows, rk)
	return aztables.DeleteEntityResponse{}, nil
}

func TestTableStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return newTableStore(newFakeTable(), time.Hour) })
}

func TestTableStoreExpiresOnLoad(t *testing.T) {
	st := newTableStore(newFakeTable(), time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }
	_ = st.Save(context.Background(), Session{ID: "x", Token: "tok", State: StateResolving})

	now = now.Add(2 * time.Minute)
	s, err := st.Load(context.Background(), "x")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.HasToken() {
		t.Fatalf("expected expiry, got %+v", s)
	}
}

func TestTableStoreLosesRaceOnETag(t *testing.T) {
	table := newFakeTable()
	st := newTableStore(table, 0)
	ctx := context.Background()
	_ = st.Save(ctx, Session{ID: "x", Token: "tok", State: StateResolving})

	// A concurrent writer bumps the etag between our read and write.
	_, etag, err := st.get(ctx, "x")
	if err != nil || etag == nil {
		t.Fatalf("get: %v", err)
	}
	_ = st.Save(ctx, Session{ID: "x", Token: "tok", State: StateResolving})
	payload, _ := st.encode(Session{ID: "x", Token: "tok", Role: domain.RoleAdmin, State: StateAuthenticated})
	_, err = table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: etag})
	if !hasStatus(err, http.StatusPreconditionFailed) {
		t.Fatal("expected precondition failure")
	}
}
