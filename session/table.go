package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/faustyna77/INF-frontend-next/domain"
)

const sessionPartition = "session"

// tableClient is the subset of *aztables.Client used by TableStore.
type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

// TableStore keeps sessions in an Azure Storage table. Table storage has
// no TTL, so the expiry is stored with the entity and checked on load.
type TableStore struct {
	table tableClient
	ttl   time.Duration
	now   func() time.Time
}

type sessionEntity struct {
	aztables.Entity
	Token      string `json:"Token"`
	UserRole   string `json:"UserRole"`
	State      string `json:"State"`
	ResolvedAt string `json:"ResolvedAt,omitempty"`
	ExpiresAt  string `json:"ExpiresAt,omitempty"`
}

// NewTableStore connects to tableName using the storage connection string.
func NewTableStore(connStr, tableName string, ttl time.Duration) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// Session reads sit on the request path; fail fast.
			Retry: policy.RetryOptions{MaxRetries: -1, TryTimeout: 10 * time.Second},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return newTableStore(svc.NewClient(tableName), ttl), nil
}

func newTableStore(table tableClient, ttl time.Duration) *TableStore {
	return &TableStore{table: table, ttl: ttl, now: time.Now}
}

func (t *TableStore) Load(ctx context.Context, id string) (Session, error) {
	s, _, err := t.get(ctx, id)
	return s, err
}

func (t *TableStore) Save(ctx context.Context, s Session) error {
	s = normalize(s)
	if s.State == StateAnonymous {
		return t.Delete(ctx, s.ID)
	}
	payload, err := t.encode(s)
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (t *TableStore) Delete(ctx context.Context, id string) error {
	_, err := t.table.DeleteEntity(ctx, sessionPartition, id, nil)
	if hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (t *TableStore) CompareAndSwap(ctx context.Context, expectedToken string, s Session) (bool, error) {
	current, etag, err := t.get(ctx, s.ID)
	if err != nil {
		return false, err
	}
	if current.Token != expectedToken {
		return false, nil
	}

	s = normalize(s)
	if etag == nil {
		// Nothing stored (or expired): the expected token was empty.
		if s.State == StateAnonymous {
			return true, nil
		}
		payload, err := t.encode(s)
		if err != nil {
			return false, err
		}
		_, err = t.table.AddEntity(ctx, payload, nil)
		if hasStatus(err, http.StatusConflict) {
			return false, nil
		}
		return err == nil, err
	}

	if s.State == StateAnonymous {
		_, err = t.table.DeleteEntity(ctx, sessionPartition, s.ID, &aztables.DeleteEntityOptions{IfMatch: etag})
	} else {
		var payload []byte
		if payload, err = t.encode(s); err != nil {
			return false, err
		}
		_, err = t.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: etag, UpdateMode: aztables.UpdateModeReplace})
	}
	if hasStatus(err, http.StatusPreconditionFailed) || hasStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *TableStore) get(ctx context.Context, id string) (Session, *azcore.ETag, error) {
	resp, err := t.table.GetEntity(ctx, sessionPartition, id, nil)
	if hasStatus(err, http.StatusNotFound) {
		return Anonymous(id), nil, nil
	}
	if err != nil {
		return Anonymous(id), nil, err
	}
	s, expiresAt, err := decodeSessionEntity(resp.Value)
	if err != nil {
		return Anonymous(id), nil, err
	}
	if !expiresAt.IsZero() && t.now().After(expiresAt) {
		return Anonymous(id), nil, nil
	}
	etag := resp.ETag
	return s, &etag, nil
}

func (t *TableStore) encode(s Session) ([]byte, error) {
	var expiresAt time.Time
	if t.ttl > 0 {
		expiresAt = t.now().Add(t.ttl)
	}
	return encodeSessionEntity(s, expiresAt)
}

func encodeSessionEntity(s Session, expiresAt time.Time) ([]byte, error) {
	ent := map[string]any{
		"PartitionKey": sessionPartition,
		"RowKey":       s.ID,
		"Token":        s.Token,
		"UserRole":     string(s.RoleHint),
		"State":        string(s.State),
	}
	if !s.ResolvedAt.IsZero() {
		ent["ResolvedAt"] = s.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	if !expiresAt.IsZero() {
		ent["ExpiresAt"] = expiresAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(ent)
}

func decodeSessionEntity(data []byte) (Session, time.Time, error) {
	var ent sessionEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return Session{}, time.Time{}, err
	}
	s := Session{
		ID:       ent.RowKey,
		Token:    ent.Token,
		RoleHint: domain.ParseRole(ent.UserRole),
		State:    State(ent.State),
	}
	if ent.ResolvedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, ent.ResolvedAt); err == nil {
			s.ResolvedAt = ts
		}
	}
	if s.State == StateAuthenticated {
		s.Role = s.RoleHint
	}
	var expiresAt time.Time
	if ent.ExpiresAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, ent.ExpiresAt); err == nil {
			expiresAt = ts
		}
	}
	return normalize(s), expiresAt, nil
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}
