package services_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mediawatch/internal/services"
)

func TestStatusErrorMarkers(t *testing.T) {
	tests := []struct {
		code   int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrFatal},
		{http.StatusForbidden, services.ErrFatal},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusBadGateway, services.ErrTransient},
		{http.StatusBadRequest, services.ErrFatal},
	}
	for _, tc := range tests {
		resp := &http.Response{StatusCode: tc.code, Body: io.NopCloser(strings.NewReader(`{"status_message":"nope"}`))}
		err := services.StatusError("fetch_library", "jellyfin", resp)
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.code, tc.marker, err)
		}
		if !strings.Contains(err.Error(), "nope") {
			t.Fatalf("status %d: expected body snippet in %q", tc.code, err.Error())
		}
	}
}

func TestTransportErrorIsRetryable(t *testing.T) {
	err := services.TransportError("fetch_candidates", "tmdb", errors.New("connection reset"))
	if !services.IsRetryable(err) {
		t.Fatalf("expected transport error to be retryable: %v", err)
	}
}
