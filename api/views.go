package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/faustyna77/INF-frontend-next/domain"
	"github.com/faustyna77/INF-frontend-next/session"
)

func (h *handlers) home(c echo.Context) error {
	return h.render(c, http.StatusOK, "home", "Zakład pogrzebowy", nil)
}

type loginView struct {
	Email string
	Error string
}

func (h *handlers) loginForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", "Logowanie", loginView{})
}

func (h *handlers) login(c echo.Context) error {
	email := formValue(c, "email")
	password := c.FormValue("password")
	if email == "" || password == "" {
		metricsFrom(c).SetErrorStage("validation")
		return h.render(c, http.StatusBadRequest, "login", "Logowanie", loginView{Email: email, Error: "Podaj email i hasło."})
	}

	s, err := h.sessions.Login(c.Request().Context(), currentSession(c).ID, email, password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			metricsFrom(c).SetErrorStage("credentials")
			return h.render(c, http.StatusUnauthorized, "login", "Logowanie", loginView{Email: email, Error: "Nieprawidłowy login lub hasło!"})
		}
		metricsFrom(c).SetErrorStage("login")
		return err
	}
	h.adoptSession(c, s, "Zalogowano pomyślnie!")
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) logout(c echo.Context) error {
	s := currentSession(c)
	if err := h.sessions.Logout(c.Request().Context(), s.ID); err != nil {
		metricsFrom(c).SetErrorStage("logout")
		return err
	}
	c.Set(ctxSession, session.Anonymous(s.ID))
	h.flash(c, flashNotice, "Wylogowano.")
	return toLogin(c)
}

type profileView struct {
	User  *domain.User
	Error string
}

func (h *handlers) profile(c echo.Context) error {
	user, err := fetch(c, h.backend.Me)
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "backend", err)
		return h.render(c, http.StatusOK, "profile", "Profil użytkownika", profileView{Error: userMessage(err)})
	}
	metricsFrom(c).SetRecords(1)
	return h.render(c, http.StatusOK, "profile", "Profil użytkownika", profileView{User: &user})
}

func (h *handlers) receptionForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "reception", "Recepcja", nil)
}

// createOrder registers the client, then an order for the deceased owned
// by the signed-in employee.
func (h *handlers) createOrder(c echo.Context) error {
	const back = "/recepcionist"
	f, err := readReceptionForm(c)
	if err != nil {
		return h.rejectForm(c, back, err)
	}
	birth, err := noonUTC(c, "birthDate")
	if err != nil {
		return h.rejectForm(c, back, err)
	}
	death, err := noonUTC(c, "deathDate")
	if err != nil {
		return h.rejectForm(c, back, err)
	}

	now := h.now().UTC()
	return h.mutate(c, back, "Zlecenie zostało pomyślnie utworzone!", func(ctx context.Context, token string) error {
		me, err := h.backend.Me(ctx, token)
		if err != nil {
			return step("Błąd podczas pobierania danych użytkownika", err)
		}
		client, err := h.backend.CreateClient(ctx, token, f.Client)
		if err != nil {
			return step("Błąd podczas tworzenia klienta", err)
		}
		_, err = h.backend.CreateOrder(ctx, token, domain.OrderInput{
			Status:                 string(domain.StatusPending),
			CadaverFirstName:       f.CadaverFirstName,
			CadaverLastName:        f.CadaverLastName,
			DeathCertificateNumber: f.DeathCertificateNumber,
			BirthDate:              birth,
			DeathDate:              death,
			OrderDate:              domain.NewTimestamp(now.Truncate(time.Millisecond)),
			Client:                 &domain.Ref{ID: client.ID},
			User:                   &domain.Ref{ID: me.ID},
		})
		return step("Błąd podczas tworzenia zlecenia", err)
	})
}
