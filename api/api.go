// Package api serves the funeral-home views. Every route is declared once
// in the route table together with the access it requires; a single gate
// enforces it.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	cookie "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/faustyna77/INF-frontend-next/backend"
	"github.com/faustyna77/INF-frontend-next/domain"
	"github.com/faustyna77/INF-frontend-next/session"
)

// Backend is the part of the REST backend the views use.
type Backend interface {
	Me(ctx context.Context, token string) (domain.User, error)

	ListUsers(ctx context.Context, token string) ([]domain.User, error)
	CreateUser(ctx context.Context, token string, in domain.UserInput) (domain.User, error)
	UpdateUser(ctx context.Context, token string, id int64, in domain.UserInput) (domain.User, error)
	DeleteUser(ctx context.Context, token string, id int64) error

	ListOrders(ctx context.Context, token string) ([]domain.Order, error)
	GetOrder(ctx context.Context, token string, id int64) (domain.Order, error)
	CreateOrder(ctx context.Context, token string, in domain.OrderInput) (domain.Order, error)
	UpdateOrder(ctx context.Context, token string, id int64, in domain.OrderInput) (domain.Order, error)
	DeleteOrder(ctx context.Context, token string, id int64) error
	CreateClient(ctx context.Context, token string, in domain.Client) (domain.Client, error)

	ListTasks(ctx context.Context, token string) ([]domain.Task, error)
	ListAssignedTasks(ctx context.Context, token string) ([]domain.Task, error)
	CreateTask(ctx context.Context, token string, in domain.TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, token string, id int64, in domain.TaskInput) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, token string, id int64, status domain.TaskStatus) (domain.Task, error)
	DeleteTask(ctx context.Context, token string, id int64) error

	Report(ctx context.Context, token, path string, body any) (*backend.Report, error)
}

// Sessions is the session manager as seen by the views.
type Sessions interface {
	Load(ctx context.Context, id string) (session.Session, error)
	// Login returns the signed-in session under a new id.
	Login(ctx context.Context, previous, email, password string) (session.Session, error)
	Await(ctx context.Context, id string, timeout time.Duration) (session.Session, error)
	Logout(ctx context.Context, id string) error
	Invalidate(ctx context.Context, id, reason string) error
}

// Options configures Register.
type Options struct {
	// Cookies signs the cookie that carries the session id.
	Cookies sessions.Store
	// RoleWait bounds how long a role-restricted view waits for a pending
	// role lookup before showing the resolving page.
	RoleWait time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

type handlers struct {
	backend  Backend
	sessions Sessions
	log      *log.Logger
	renderer *Renderer
	roleWait time.Duration
	secure   bool
	now      func() time.Time
}

type route struct {
	method string
	path   string
	access session.Access
	handle echo.HandlerFunc
}

func (h *handlers) routes() []route {
	admin := session.RequireRole(domain.RoleAdmin)
	user := session.RequireRole(domain.RoleUser)
	return []route{
		{http.MethodGet, "/", session.Public(), h.home},
		{http.MethodGet, "/log", session.Public(), h.loginForm},
		{http.MethodPost, "/log", session.Public(), h.login},
		{http.MethodPost, "/logout", session.Public(), h.logout},
		{http.MethodGet, "/healthz", session.Public(), healthz},

		{http.MethodGet, "/profile", session.Authenticated(), h.profile},
		{http.MethodGet, "/recepcionist", session.Authenticated(), h.receptionForm},
		{http.MethodPost, "/recepcionist", session.Authenticated(), h.createOrder},

		{http.MethodGet, "/tasks", session.RoleDispatch(domain.RoleAdmin, domain.RoleUser), h.tasks},
		{http.MethodPost, "/tasks", admin, h.createTask},
		{http.MethodPost, "/tasks/report", admin, h.taskReport},
		{http.MethodPut, "/tasks/:id", admin, h.updateTask},
		{http.MethodDelete, "/tasks/:id", admin, h.deleteTask},
		{http.MethodPut, "/tasks/:id/status", user, h.updateTaskStatus},

		{http.MethodGet, "/admin", admin, h.admin},
		{http.MethodPost, "/admin/users", admin, h.createUser},
		{http.MethodPut, "/admin/users/:id", admin, h.updateUser},
		{http.MethodDelete, "/admin/users/:id", admin, h.deleteUser},
		{http.MethodPut, "/admin/orders/:id", admin, h.updateOrder},
		{http.MethodDelete, "/admin/orders/:id", admin, h.deleteOrder},
		{http.MethodPost, "/admin/reports/users", admin, h.userReport},

		{http.MethodGet, "/raports", admin, h.raports},
		{http.MethodPost, "/raports/orders/:id", admin, h.orderReport},
	}
}

// Register wires up all views on the provided Echo instance.
func Register(e *echo.Echo, b Backend, s Sessions, logger *log.Logger, opts Options) {
	if logger == nil {
		panic("Logger is not initialized")
	}
	h := &handlers{
		backend:  b,
		sessions: s,
		log:      logger,
		renderer: NewRenderer(),
		roleWait: opts.RoleWait,
		secure:   opts.SecureCookie,
		now:      time.Now,
	}
	h.register(e, opts.Cookies)
}

func (h *handlers) register(e *echo.Echo, cookies sessions.Store) {
	e.Renderer = h.renderer
	e.HTTPErrorHandler = h.errorHandler
	e.Use(cookie.Middleware(cookies))
	e.Use(h.attachSession)

	for _, r := range h.routes() {
		e.Add(r.method, r.path, h.gate(r.access, r.handle), h.observe(r.path))
	}
}

func healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
