package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/faustyna77/INF-frontend-next/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestLoginSendsPasswordHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not send a bearer token")
		}
		var body map[string]string
		data, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(data, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["email"] != "anna@example.com" || body["passwordHash"] != "secret" {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t-1"}`))
	})

	token, err := c.Login(context.Background(), "anna@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "t-1" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestLoginRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})
	_, err := c.Login(context.Background(), "a", "b")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if se.Body != "bad credentials" {
		t.Fatalf("unexpected body %q", se.Body)
	}
}

func TestMeUsesBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		_, _ = w.Write([]byte(`{"id":7,"firstName":"Anna","lastName":"Nowak","email":"anna@example.com","role":"ADMIN"}`))
	})

	u, err := c.Me(context.Background(), "tok")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if u.ID != 7 || u.Role != domain.RoleAdmin || u.FullName() != "Anna Nowak" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestIsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.ListTasks(context.Background(), "expired")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if IsUnauthorized(&StatusError{Op: "x", Status: http.StatusForbidden}) {
		t.Fatal("403 is not unauthorized")
	}
	if IsUnauthorized(errors.New("network")) {
		t.Fatal("plain error is not unauthorized")
	}
}

func TestUpdateTaskStatusSendsOnlyStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tasks/12" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != `{"status":"completed"}` {
			t.Errorf("unexpected body %s", data)
		}
		_, _ = w.Write([]byte(`{"id":12,"taskName":"Flowers","status":"completed","priority":"low","dueDate":null,"order":null,"assignedUser":null}`))
	})

	task, err := c.UpdateTaskStatus(context.Background(), "tok", 12, domain.StatusCompleted)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Status != domain.StatusCompleted || task.ID != 12 {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestDeleteAcceptsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/orders/3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteOrder(context.Background(), "tok", 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestCreateUserOmitsEmptyPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(data, &body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := body["passwordHash"]; ok {
			t.Errorf("password sent although empty: %s", data)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"email":"b@example.com","role":"USER"}`))
	})
	u, err := c.UpdateUser(context.Background(), "tok", 1, domain.UserInput{Email: "b@example.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestReportStreamsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/orders/9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	rep, err := c.Report(context.Background(), "tok", OrderReport(9), nil)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	defer rep.Body.Close()
	data, _ := io.ReadAll(rep.Body)
	if rep.ContentType != "application/pdf" || string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected report %q %q", rep.ContentType, data)
	}
}

func TestReportBodyOutlivesClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-"))
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("1.4"))
	}))
	defer srv.Close()
	c := New(srv.URL, 50*time.Millisecond)

	rep, err := c.Report(context.Background(), "tok", TasksReport, nil)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	defer rep.Body.Close()
	data, err := io.ReadAll(rep.Body)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("report cut short: %q", data)
	}
}

func TestReportHeadersStillTimeOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	c := New(srv.URL, 50*time.Millisecond)

	if _, err := c.Report(context.Background(), "tok", UsersReport, nil); err == nil {
		t.Fatal("expected a timeout waiting for report headers")
	}
}

func TestReportRejectsForeignPath(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	if _, err := c.Report(context.Background(), "tok", "/users", nil); err == nil {
		t.Fatal("expected error for non-report path")
	}
}

func TestNetworkErrorIsNotStatusError(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Me(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatalf("network error reported as status error: %v", err)
	}
}
