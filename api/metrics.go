package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	viewEventName   = "view.request"
	viewEventDomain = "funeral.frontend"
	viewSpanName    = "view.request"
	tracerName      = "github.com/faustyna77/INF-frontend-next/api"
	ctxMetrics      = "fh.metrics"
)

// viewMetrics collects what happened while serving one view and reports
// it once as a log record and a span.
type viewMetrics struct {
	logger *log.Logger
	span   trace.Span

	route           string
	start           time.Time
	backendDuration time.Duration
	renderDuration  time.Duration
	backendCalls    int
	records         int
	activeFilters   int
	verdict         string
	errorStage      string
}

func newViewMetrics(ctx context.Context, logger *log.Logger, route string) (*viewMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, viewSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &viewMetrics{
		logger: logger,
		span:   span,
		route:  route,
		start:  time.Now(),
	}, spanCtx
}

// metricsFrom returns the request's metrics. A nil result is safe to use.
func metricsFrom(c echo.Context) *viewMetrics {
	m, _ := c.Get(ctxMetrics).(*viewMetrics)
	return m
}

// observe records view metrics around the route's handler.
func (h *handlers) observe(route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			m, ctx := newViewMetrics(c.Request().Context(), h.log, route)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(ctxMetrics, m)
			defer func() {
				m.Log(responseStatus(c, err), err)
			}()
			return next(c)
		}
	}
}

func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed {
		return c.Response().Status
	}
	if err == nil {
		return http.StatusOK
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func (m *viewMetrics) ObserveBackend(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.backendCalls++
	m.backendDuration += d
}

func (m *viewMetrics) ObserveRender(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.renderDuration = d
}

func (m *viewMetrics) SetRecords(n int) {
	if m == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	m.records = n
}

func (m *viewMetrics) SetActiveFilters(n int) {
	if m == nil {
		return
	}
	m.activeFilters = n
}

func (m *viewMetrics) SetVerdict(v string) {
	if m == nil {
		return
	}
	m.verdict = v
}

func (m *viewMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and writes the observability event.
func (m *viewMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("frontend.view.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("frontend.view.backend_calls", m.backendCalls),
		attribute.Int("frontend.view.records", m.records),
		attribute.Int("frontend.view.active_filters", m.activeFilters),
	}
	if m.verdict != "" {
		attrs = append(attrs, attribute.String("frontend.view.verdict", m.verdict))
	}
	if m.backendDuration > 0 {
		attrs = append(attrs, attribute.Float64("frontend.view.backend_ms", durationToMillis(m.backendDuration)))
	}
	if m.renderDuration > 0 {
		attrs = append(attrs, attribute.Float64("frontend.view.render_ms", durationToMillis(m.renderDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("frontend.view.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", viewEventName),
		attribute.String("event.domain", viewEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if severityNumber >= severityError {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      viewEventName,
		"event.domain":    viewEventDomain,
		"attributes":      attributeMap(attrs),
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	switch {
	case severityNumber >= severityError:
		entry.Error("observability.event")
	case severityNumber >= severityWarn:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

const (
	severityInfo  = 9
	severityWarn  = 13
	severityError = 17
)

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", severityError
	case err != nil && status < http.StatusBadRequest:
		return "ERROR", severityError
	case status >= http.StatusBadRequest:
		return "WARN", severityWarn
	}
	return "INFO", severityInfo
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
