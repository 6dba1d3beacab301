package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorExcerpt bounds how much of an upstream error body is kept.
const maxErrorExcerpt = 2048

// UpstreamError describes a non-2xx answer from an upstream HTTP API.
type UpstreamError struct {
	Service    string
	StatusCode int
	// Message is the upstream's own error message when the body had one.
	Message string
	// Body is at most maxErrorExcerpt bytes of the raw response body.
	Body string
}

func (e *UpstreamError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, detail)
}

// Temporary reports whether retrying later may succeed.
func (e *UpstreamError) Temporary() bool {
	return isRetryableStatus(e.StatusCode)
}

// upstreamErrorBody covers the error shapes the service talks to:
// {"error":{"message":"..."}} and {"error":"..."}.
type upstreamErrorBody struct {
	Error json.RawMessage `json:"error"`
}

// ParseResponseError consumes and closes resp.Body and returns an
// *UpstreamError for it. Call it only for non-2xx responses.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &UpstreamError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    upstreamMessage(raw),
		Body:       strings.TrimSpace(string(raw)),
	}
}

func upstreamMessage(raw []byte) string {
	var body upstreamErrorBody
	if json.Unmarshal(raw, &body) != nil || len(body.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if json.Unmarshal(body.Error, &flat) == nil {
		return flat
	}
	return ""
}
