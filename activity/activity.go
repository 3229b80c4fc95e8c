// Package activity records session lifecycle events.
package activity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Event types.
const (
	UserLoggedIn    = "user-logged-in"
	UserLoggedOut   = "user-logged-out"
	SessionRejected = "session-rejected"
)

const entitySession = "session"

// Event is one lifecycle change of a browser session. Time is in unix
// nanoseconds and strictly increases within the process.
type Event struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entityId"`
	EntityType string         `json:"entityType"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	Time       int64          `json:"time"`
}

// New creates an event of eventType for the session sessionID.
func New(eventType, sessionID string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		EntityID:   sessionID,
		EntityType: entitySession,
		Type:       eventType,
		Data:       data,
		Time:       nextTimestamp(),
	}
}

// Sink delivers events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// LogSink writes events to the log.
type LogSink struct {
	Log *log.Logger
}

func (s LogSink) Publish(_ context.Context, ev Event) error {
	fields := log.Fields{
		"event.id":    ev.ID,
		"event.type":  ev.Type,
		"entity.id":   ev.EntityID,
		"entity.type": ev.EntityType,
	}
	for k, v := range ev.Data {
		fields["data."+k] = v
	}
	s.Log.WithFields(fields).Info("session activity")
	return nil
}

func encode(ev Event) (string, error) {
	return sonic.ConfigStd.MarshalToString(ev)
}

var lastTimestamp int64

func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
