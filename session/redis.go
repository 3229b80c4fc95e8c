package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/faustyna77/INF-frontend-next/domain"
)

// Hash fields of a stored session. token and userRole mirror what the
// browser used to keep in local storage.
const (
	fieldToken      = "token"
	fieldUserRole   = "userRole"
	fieldState      = "state"
	fieldResolvedAt = "resolvedAt"
)

// RedisStore keeps sessions in Redis hashes so every instance sees the
// same token/role pair.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store using client. Each write refreshes the key
// TTL; a ttl of zero keeps keys until deleted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session.NewRedisStore: redis client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	return r.load(ctx, r.client, id)
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.write(ctx, pipe, s)
		return nil
	})
	return err
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, expectedToken string, s Session) (bool, error) {
	key := sessionKey(s.ID)
	swapped := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldToken).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expectedToken {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, s)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return swapped, err
}

func (r *RedisStore) load(ctx context.Context, c redis.Cmdable, id string) (Session, error) {
	fields, err := c.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return Anonymous(id), err
	}
	if len(fields) == 0 {
		return Anonymous(id), nil
	}
	s := Session{
		ID:       id,
		Token:    fields[fieldToken],
		RoleHint: domain.ParseRole(fields[fieldUserRole]),
		State:    State(fields[fieldState]),
	}
	if raw := fields[fieldResolvedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			s.ResolvedAt = t
		}
	}
	if s.State == StateAuthenticated {
		s.Role = s.RoleHint
	}
	return normalize(s), nil
}

func (r *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, s Session) {
	s = normalize(s)
	key := sessionKey(s.ID)
	pipe.Del(ctx, key)
	if s.State == StateAnonymous {
		return
	}
	values := map[string]any{
		fieldToken:    s.Token,
		fieldUserRole: string(s.RoleHint),
		fieldState:    string(s.State),
	}
	if !s.ResolvedAt.IsZero() {
		values[fieldResolvedAt] = s.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	pipe.HSet(ctx, key, values)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
}

func sessionKey(id string) string {
	return "session:" + id
}
