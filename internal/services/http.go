package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// StatusError classifies a non-2xx HTTP response. Auth failures are fatal,
// throttling and server errors are transient, and a missing resource is
// reported as ErrNotFound. Any other client error is fatal because repeating
// the same request cannot succeed.
func StatusError(stage, operation string, resp *http.Response) error {
	body := readSnippet(resp.Body)
	msg := fmt.Sprintf("http %d", resp.StatusCode)
	if body != "" {
		msg += ": " + body
	}
	return Wrap(statusMarker(resp.StatusCode), stage, operation, msg, nil)
}

func statusMarker(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrFatal
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return ErrTransient
	default:
		return ErrFatal
	}
}

// TransportError marks a failed round trip as transient.
func TransportError(stage, operation string, err error) error {
	return Wrap(ErrTransient, stage, operation, "request failed", err)
}

func readSnippet(r io.Reader) string {
	if r == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
