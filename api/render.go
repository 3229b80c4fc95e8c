package api

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/faustyna77/INF-frontend-next/domain"
	"github.com/faustyna77/INF-frontend-next/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = []string{
	"home", "login", "profile", "reception", "resolving",
	"task_plans", "task_work", "admin", "raports", "notfound", "error",
}

// Renderer executes one template set per page, each sharing the layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates. It panics on a broken
// template.
func NewRenderer() *Renderer {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		r.pages[name] = template.Must(template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.tmpl", "templates/"+name+".tmpl"))
	}
	return r
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

type navItem struct {
	Label    string
	Href     string
	Disabled bool
}

// page is the data every template receives.
type page struct {
	Title     string
	Nav       []navItem
	LoggedIn  bool
	Resolving bool
	Role      domain.Role
	CSRF      string
	Notices   []string
	Errors    []string
	Data      any
}

// navigation lists the menu for s. Admin entries follow the displayed role,
// which may be a hint while the role is being looked up.
func navigation(s session.Session) []navItem {
	items := []navItem{{Label: "Strona główna", Href: "/"}}
	if !s.HasToken() {
		return append(items, navItem{Label: "Zaloguj", Href: "/log"})
	}
	items = append(items,
		navItem{Label: "Profil", Href: "/profile"},
		navItem{Label: "Zadania", Href: "/tasks"},
		navItem{Label: "Recepcja", Href: "/recepcionist"},
	)
	switch s.DisplayRole() {
	case domain.RoleAdmin:
		items = append(items,
			navItem{Label: "Panel administratora", Href: "/admin"},
			navItem{Label: "Raporty", Href: "/raports"},
		)
	case domain.RoleUser:
		items = append(items,
			navItem{Label: "Panel administratora", Href: "/admin", Disabled: true},
			navItem{Label: "Raporty", Href: "/raports", Disabled: true},
		)
	}
	return items
}

func (h *handlers) newPage(c echo.Context, title string, data any) page {
	s := currentSession(c)
	csrf, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return page{
		Title:     title,
		Nav:       navigation(s),
		LoggedIn:  s.HasToken(),
		Resolving: s.Resolving(),
		Role:      s.DisplayRole(),
		CSRF:      csrf,
		Notices:   h.takeFlashes(c, flashNotice),
		Errors:    h.takeFlashes(c, flashError),
		Data:      data,
	}
}

func (h *handlers) render(c echo.Context, status int, name, title string, data any) error {
	p := h.newPage(c, title, data)
	start := time.Now()
	err := c.Render(status, name, p)
	metricsFrom(c).ObserveRender(time.Since(start))
	if err != nil {
		metricsFrom(c).SetErrorStage("render")
	}
	return err
}

// errorHandler renders errors as pages, including the 404 for unknown
// paths.
func (h *handlers) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
	}

	var rerr error
	switch {
	case c.Request().Method == http.MethodHead:
		rerr = c.NoContent(code)
	case code == http.StatusNotFound:
		rerr = h.render(c, code, "notfound", "Nie znaleziono strony", nil)
	default:
		rerr = h.render(c, code, "error", "Błąd", map[string]any{"Code": code, "Message": msg})
	}
	if rerr != nil {
		h.log.WithError(rerr).Error("render error page failed")
	}
}

var templateFuncs = template.FuncMap{
	"date":             formatDate,
	"datetime":         formatDateTime,
	"dateInput":        dateInput,
	"datetimeInput":    datetimeInput,
	"statusLabel":      statusLabel,
	"orderStatusLabel": orderStatusLabel,
	"priorityLabel":    priorityLabel,
	"refID":            refID,
	"link":             link,
	"statuses":         func() []domain.TaskStatus { return domain.TaskStatuses },
	"priorities":       func() []domain.Priority { return domain.Priorities },
	"roles":            func() []domain.Role { return domain.Roles },
}

// link adds key=val to the encoded query and returns the path with it.
func link(path, query, key string, val any) string {
	v, err := url.ParseQuery(query)
	if err != nil {
		v = url.Values{}
	}
	v.Set(key, fmt.Sprint(val))
	return path + "?" + v.Encode()
}

func refID(r *domain.Ref) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}

func orderStatusLabel(s string) string {
	if s == string(domain.StatusPending) {
		return "W oczekiwaniu"
	}
	return statusLabel(domain.TaskStatus(s))
}

func formatDate(ts *domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Time.Format("2006-01-02")
}

func formatDateTime(ts *domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Time.Format("2006-01-02 15:04")
}

func dateInput(ts *domain.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Time.Format("2006-01-02")
}

func datetimeInput(ts *domain.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Time.Format("2006-01-02T15:04")
}

func statusLabel(s domain.TaskStatus) string {
	switch s {
	case domain.StatusPending:
		return "Oczekujące"
	case domain.StatusInProgress:
		return "W trakcie"
	case domain.StatusCompleted:
		return "Zakończone"
	case domain.StatusCanceled:
		return "Anulowane"
	}
	return string(s)
}

func priorityLabel(p domain.Priority) string {
	switch p {
	case domain.PriorityLow:
		return "Niski"
	case domain.PriorityMedium:
		return "Średni"
	case domain.PriorityHigh:
		return "Wysoki"
	}
	return string(p)
}
