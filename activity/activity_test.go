package activity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return azqueue.EnqueueMessagesResponse{}, f.err
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func TestNewEventTimesIncrease(t *testing.T) {
	prev := New(UserLoggedIn, "s1", nil)
	for i := 0; i < 1000; i++ {
		ev := New(UserLoggedOut, "s1", nil)
		if ev.Time <= prev.Time {
			t.Fatalf("time did not increase: %d then %d", prev.Time, ev.Time)
		}
		if ev.ID == prev.ID {
			t.Fatalf("duplicate event id %s", ev.ID)
		}
		prev = ev
	}
}

func TestNewEventTimesUniqueAcrossGoroutines(t *testing.T) {
	const n = 8
	const per = 200
	var wg sync.WaitGroup
	times := make(chan int64, n*per)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				times <- New(SessionRejected, "s", nil).Time
			}
		}()
	}
	wg.Wait()
	close(times)
	seen := make(map[int64]struct{}, n*per)
	for ts := range times {
		if _, ok := seen[ts]; ok {
			t.Fatalf("duplicate timestamp %d", ts)
		}
		seen[ts] = struct{}{}
	}
}

func TestQueueSinkPublishesJSON(t *testing.T) {
	q := &fakeQueue{}
	sink := &QueueSink{queue: q}
	ev := New(UserLoggedIn, "sess-1", map[string]any{"email": "anna@example.com"})

	if err := sink.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(q.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(q.messages))
	}
	var got Event
	if err := sonic.UnmarshalString(q.messages[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != ev.ID || got.Type != UserLoggedIn || got.EntityID != "sess-1" || got.EntityType != "session" {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Data["email"] != "anna@example.com" {
		t.Fatalf("unexpected data %+v", got.Data)
	}
}

func TestQueueSinkReturnsEnqueueError(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue down")}
	sink := &QueueSink{queue: q}
	if err := sink.Publish(context.Background(), New(UserLoggedOut, "s", nil)); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogSinkWritesFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := LogSink{Log: logger}
	ev := New(SessionRejected, "sess-2", map[string]any{"reason": "unauthorized"})

	if err := sink.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected log entry")
	}
	if entry.Message != "session activity" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if entry.Data["event.type"] != SessionRejected || entry.Data["entity.id"] != "sess-2" {
		t.Fatalf("unexpected fields %+v", entry.Data)
	}
	if entry.Data["data.reason"] != "unauthorized" {
		t.Fatalf("missing data field: %+v", entry.Data)
	}
}
