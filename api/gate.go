package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	cookie "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/faustyna77/INF-frontend-next/backend"
	"github.com/faustyna77/INF-frontend-next/session"
)

const (
	cookieName   = "fh_session"
	cookieIDKey  = "sid"
	ctxSession   = "fh.session"
	ctxCookie    = "fh.cookie"
	resolvingFor = "2"
)

// attachSession makes sure the browser carries a session id and loads the
// session it points at.
func (h *handlers) attachSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		jar, err := cookie.Get(cookieName, c)
		if jar == nil {
			return err
		}
		if err != nil {
			// Tampered or rotated-key cookies are replaced.
			h.log.WithError(err).Debug("discarding unreadable session cookie")
		}
		id, _ := jar.Values[cookieIDKey].(string)
		if id == "" {
			id = uuid.NewString()
			jar.Values[cookieIDKey] = id
			jar.Options = &sessions.Options{
				Path:     "/",
				HttpOnly: true,
				Secure:   h.secure,
				SameSite: http.SameSiteLaxMode,
			}
			if err := jar.Save(c.Request(), c.Response()); err != nil {
				return err
			}
		}
		c.Set(ctxCookie, jar)

		s, err := h.sessions.Load(c.Request().Context(), id)
		if err != nil {
			h.log.WithError(err).WithField("session", id).Error("load session failed")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
		}
		c.Set(ctxSession, s)
		return next(c)
	}
}

// gate applies the routing decision for access before next runs.
func (h *handlers) gate(access session.Access, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := currentSession(c)
		verdict := session.Decide(s, access)
		if verdict == session.Pending && h.roleWait > 0 {
			latest, err := h.sessions.Await(c.Request().Context(), s.ID, h.roleWait)
			if err != nil {
				h.log.WithError(err).WithField("session", s.ID).Warn("await role failed")
			} else {
				s = latest
				c.Set(ctxSession, s)
				verdict = session.Decide(s, access)
			}
		}
		metricsFrom(c).SetVerdict(verdict.String())

		switch verdict {
		case session.Allow:
			return next(c)
		case session.Pending:
			c.Response().Header().Set("Refresh", resolvingFor)
			return h.render(c, http.StatusOK, "resolving", "Sprawdzanie uprawnień", nil)
		case session.RedirectLogin:
			return c.Redirect(http.StatusSeeOther, "/log")
		default:
			return c.Redirect(http.StatusSeeOther, "/")
		}
	}
}

// adoptSession points the browser at s and queues notice. Login hands out
// a new id; the id known before sign-in never carries a token.
func (h *handlers) adoptSession(c echo.Context, s session.Session, notice string) {
	c.Set(ctxSession, s)
	jar := currentCookie(c)
	if jar == nil {
		return
	}
	jar.Values[cookieIDKey] = s.ID
	jar.AddFlash(notice, flashNotice)
	if err := jar.Save(c.Request(), c.Response()); err != nil {
		h.log.WithError(err).WithField("session", s.ID).Warn("save session cookie failed")
	}
}

func currentSession(c echo.Context) session.Session {
	if s, ok := c.Get(ctxSession).(session.Session); ok {
		return s
	}
	return session.Anonymous("")
}

func currentCookie(c echo.Context) *sessions.Session {
	jar, _ := c.Get(ctxCookie).(*sessions.Session)
	return jar
}

// flash stores a message shown once on the next rendered view.
func (h *handlers) flash(c echo.Context, kind, msg string) {
	jar := currentCookie(c)
	if jar == nil {
		return
	}
	jar.AddFlash(msg, kind)
	if err := jar.Save(c.Request(), c.Response()); err != nil {
		h.log.WithError(err).Warn("save flash failed")
	}
}

func (h *handlers) takeFlashes(c echo.Context, kind string) []string {
	jar := currentCookie(c)
	if jar == nil {
		return nil
	}
	raw := jar.Flashes(kind)
	if len(raw) == 0 {
		return nil
	}
	if err := jar.Save(c.Request(), c.Response()); err != nil {
		h.log.WithError(err).Warn("clear flashes failed")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// rejected signs the session out when the backend refused its token and
// reports whether it did. Callers then send the browser to the login view.
func (h *handlers) rejected(c echo.Context, err error) bool {
	if !backend.IsUnauthorized(err) {
		return false
	}
	s := currentSession(c)
	if ierr := h.sessions.Invalidate(c.Request().Context(), s.ID, "unauthorized"); ierr != nil {
		h.log.WithError(ierr).WithField("session", s.ID).Error("invalidate session failed")
	}
	c.Set(ctxSession, session.Anonymous(s.ID))
	metricsFrom(c).SetErrorStage("unauthorized")
	return true
}

func toLogin(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/log")
}
