package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// streamReport fetches a generated document and passes it through to the
// browser inline. When the backend refuses, the browser goes back with a
// flash error.
func (h *handlers) streamReport(c echo.Context, back, path, filename string, body any) error {
	report, err := fetch(c, func(ctx context.Context, token string) (reportStream, error) {
		r, err := h.backend.Report(ctx, token, path, body)
		if err != nil {
			return reportStream{}, err
		}
		return reportStream{contentType: r.ContentType, length: r.ContentLength, body: r.Body}, nil
	})
	if err != nil {
		if h.rejected(c, err) {
			return toLogin(c)
		}
		h.logBackendError(c, "report", err)
		h.flash(c, flashError, "Wystąpił błąd podczas generowania raportu. "+userMessage(err))
		return c.Redirect(http.StatusSeeOther, back)
	}
	defer report.body.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", filename))
	if report.length > 0 {
		res.Header().Set(echo.HeaderContentLength, fmt.Sprint(report.length))
	}
	res.Header().Set(echo.HeaderContentType, report.contentType)
	res.WriteHeader(http.StatusOK)
	if _, err := io.Copy(res, report.body); err != nil {
		metricsFrom(c).SetErrorStage("report_stream")
		h.log.WithError(err).WithField("report", path).Warn("report stream interrupted")
	}
	return nil
}

type reportStream struct {
	contentType string
	length      int64
	body        io.ReadCloser
}
