package advisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/windward/autoflight/internal/apperr"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestQueryReturnsContentOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"TUNING_JSON: {\"vrSpeed\": 58}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "gpt", ModeHosted, testLogger())
	text, err := c.Query(context.Background(), "tune the rotation speed")
	if err != nil {
		t.Fatal(err)
	}
	if text != `TUNING_JSON: {"vrSpeed": 58}` {
		t.Fatalf("unexpected response text: %q", text)
	}
}

func TestQueryMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", "gpt", ModeHosted, testLogger())
	_, err := c.Query(context.Background(), "hello")
	if !apperr.Is(err, apperr.KindAdvisorFailure) {
		t.Fatalf("expected AdvisorFailure, got %v", err)
	}
	if err.Error() != "AdvisorFailure: Invalid API key" {
		t.Fatalf("expected mapped message, got %q", err.Error())
	}
}

func TestQueryMapsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "gpt", ModeHosted, testLogger())
	_, err := c.Query(context.Background(), "hello")
	if err.Error() != "AdvisorFailure: Rate limited" {
		t.Fatalf("expected Rate limited message, got %q", err)
	}
}

func TestQueryMapsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "gpt", ModeHosted, testLogger())
	_, err := c.Query(context.Background(), "hello")
	if err.Error() != "AdvisorFailure: Upstream unavailable" {
		t.Fatalf("expected Upstream unavailable message, got %q", err)
	}
}
