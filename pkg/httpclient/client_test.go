package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		status int
		want   Strategy
	}{
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusServiceUnavailable, RateLimited},
		{http.StatusInternalServerError, Backoff},
		{http.StatusBadGateway, Backoff},
		{http.StatusGatewayTimeout, Backoff},
		{http.StatusRequestTimeout, Backoff},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusNotFound, NoRetry},
	}
	for _, tt := range tests {
		if got := StrategyFor(tt.status); got != tt.want {
			t.Errorf("StrategyFor(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
}

func TestDoRetriesTransientServerError(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(4), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if hits != 3 {
		t.Errorf("expected 3 requests, got %d", hits)
	}
}

func TestDoDoesNotRetryClientError(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(4), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if resp != nil {
		resp.Body.Close()
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", statusErr.StatusCode)
	}
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if resp != nil {
		resp.Body.Close()
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if statusErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", statusErr.Attempts)
	}
	if hits != 3 {
		t.Errorf("expected 3 requests, got %d", hits)
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	var hits int
	start := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(1))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected at least 1s delay, waited %v", elapsed)
	}
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"k":"v"}`))
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}
	for i, body := range bodies {
		if body != `{"k":"v"}` {
			t.Errorf("attempt %d body = %q", i+1, body)
		}
	}
}

func TestDoCancellationDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(WithMaxRetries(3))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestCustomHeaderParser(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Header().Set("x-reset-ms", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	parser := func(h http.Header) RateLimit {
		var info RateLimit
		if v := h.Get("x-reset-ms"); v != "" {
			info.RetryAfter = 10 * time.Millisecond
		}
		return info
	}

	c := New(WithMaxRetries(1), WithHeaderParser(parser))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if hits != 2 {
		t.Errorf("expected 2 requests, got %d", hits)
	}
}
