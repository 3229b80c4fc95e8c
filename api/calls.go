package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/faustyna77/INF-frontend-next/backend"
)

// fetch calls the backend with the session token and records its
// duration.
func fetch[T any](c echo.Context, fn func(ctx context.Context, token string) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(c.Request().Context(), currentSession(c).Token)
	metricsFrom(c).ObserveBackend(time.Since(start))
	return v, err
}

func call(c echo.Context, fn func(ctx context.Context, token string) error) error {
	_, err := fetch(c, func(ctx context.Context, token string) (struct{}, error) {
		return struct{}{}, fn(ctx, token)
	})
	return err
}

// stepError names the step of a multi-call mutation that failed.
type stepError struct {
	msg string
	err error
}

func (e *stepError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func step(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &stepError{msg: msg, err: err}
}

// mutate runs a change against the backend and redirects to back. Failures
// leave the list as it was and surface as a flash message on back; a
// rejected token signs the session out instead.
func (h *handlers) mutate(c echo.Context, back, success string, fn func(ctx context.Context, token string) error) error {
	err := call(c, fn)
	switch {
	case err == nil:
		h.flash(c, flashNotice, success)
	case h.rejected(c, err):
		return toLogin(c)
	default:
		h.logBackendError(c, "mutation", err)
		h.flash(c, flashError, userMessage(err))
	}
	return c.Redirect(http.StatusSeeOther, back)
}

// rejectForm reports a validation failure the same way as a failed
// mutation.
func (h *handlers) rejectForm(c echo.Context, back string, err error) error {
	metricsFrom(c).SetErrorStage("validation")
	h.flash(c, flashError, userMessage(err))
	return c.Redirect(http.StatusSeeOther, back)
}

func (h *handlers) logBackendError(c echo.Context, stage string, err error) {
	metricsFrom(c).SetErrorStage(stage)
	entry := h.log.WithError(err).WithFields(log.Fields{
		"path":    c.Path(),
		"session": currentSession(c).ID,
	})
	var se *backend.StatusError
	if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
		entry.Warn("backend refused request")
		return
	}
	entry.Error("backend request failed")
}

// userMessage is the text shown for err.
func userMessage(err error) string {
	var fe formError
	if errors.As(err, &fe) {
		return string(fe)
	}
	prefix := ""
	var st *stepError
	if errors.As(err, &st) {
		prefix = st.msg + ". "
	}
	var se *backend.StatusError
	switch {
	case errors.As(err, &se) && se.Status == http.StatusForbidden:
		return prefix + "Brak uprawnień do wykonania operacji."
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		return prefix + "Nie znaleziono rekordu."
	case errors.As(err, &se):
		return fmt.Sprintf("%sSerwer odrzucił żądanie (status %d).", prefix, se.Status)
	}
	return prefix + "Nie udało się połączyć z serwerem."
}
