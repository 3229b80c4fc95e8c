package backend

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Report is a generated document. The caller must close Body.
type Report struct {
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// Report paths.
const (
	UsersReport = "/reports/users"
	TasksReport = "/reports/tasks"
)

// OrderReport is the report path for a single order.
func OrderReport(id int64) string {
	return idPath("/reports/orders", id)
}

// Report posts body to a report endpoint and returns the document
// unparsed. Reading Body is bounded by ctx, not by the client timeout.
func (c *Client) Report(ctx context.Context, token, path string, body any) (*Report, error) {
	if !strings.HasPrefix(path, "/reports/") {
		return nil, &StatusError{Op: "report", Status: http.StatusNotFound, Body: "unknown report " + path}
	}
	if body == nil {
		body = map[string]any{}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, token, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus("report", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Report{ContentType: ct, ContentLength: resp.ContentLength, Body: resp.Body}, nil
}
