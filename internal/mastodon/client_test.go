package mastodon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/archive-evacuator/internal/config"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	client := NewClient(&config.MastodonConfig{
		Domain:           url,
		AccessToken:      "token",
		RatelimitRetries: 3,
		MediaPollRetries: 3,
	}, zerolog.Nop())

	var slept []time.Duration
	client.sleep = func(d time.Duration) { slept = append(slept, d) }
	return client, &slept
}

func TestCreateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Unexpected authorization header %q", got)
		}
		fmt.Fprint(w, `{"id": "42"}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	id, err := client.CreateStatus(context.Background(), StatusParams{Status: "hello"})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}
	if id != "42" {
		t.Errorf("Expected id '42', got %q", id)
	}
}

func TestCreateStatus_RetriesAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("x-ratelimit-reset", time.Now().Add(2*time.Second).Format(time.RFC3339Nano))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": "42"}`)
	}))
	defer srv.Close()

	client, slept := newTestClient(t, srv.URL)
	id, err := client.CreateStatus(context.Background(), StatusParams{Status: "hello"})
	if err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}
	if id != "42" {
		t.Errorf("Expected id '42' after retry, got %q", id)
	}
	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
	if len(*slept) != 1 || (*slept)[0] < resetSafetyMargin {
		t.Errorf("Expected one padded sleep of at least %v, got %v", resetSafetyMargin, *slept)
	}
}

func TestCreateStatus_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, slept := newTestClient(t, srv.URL)
	_, err := client.CreateStatus(context.Background(), StatusParams{Status: "hello"})
	if err == nil {
		t.Fatal("Expected an error once retries run out")
	}
	if len(*slept) != 3 {
		t.Errorf("Expected 3 sleeps, got %d", len(*slept))
	}
}

func TestCreateStatus_UnprocessableDegradesToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error": "Validation failed"}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	id, err := client.CreateStatus(context.Background(), StatusParams{Status: "hello"})
	if err != nil {
		t.Fatalf("An unprocessable status must not abort the batch: %v", err)
	}
	if id != NoRemoteID {
		t.Errorf("Expected the sentinel, got %q", id)
	}
}

func TestCreateStatus_ServerErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	if _, err := client.CreateStatus(context.Background(), StatusParams{Status: "hello"}); err == nil {
		t.Fatal("Expected a server error to propagate")
	}
}

func TestUploadMedia_PollsWhileProcessing(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/media":
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("Expected a multipart upload, got %q", r.Header.Get("Content-Type"))
			}
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{"id": "7"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/media/7":
			if atomic.AddInt32(&polls, 1) == 1 {
				w.WriteHeader(http.StatusPartialContent)
				return
			}
			fmt.Fprint(w, `{"id": "7", "url": "https://files/7.jpg"}`)
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client, slept := newTestClient(t, srv.URL)
	id, err := client.UploadMedia(context.Background(), strings.NewReader("bytes"), "pic.jpg")
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if id != "7" {
		t.Errorf("Expected id '7', got %q", id)
	}
	if polls != 2 {
		t.Errorf("Expected 2 polls, got %d", polls)
	}
	if len(*slept) != 2 {
		t.Errorf("Expected a sleep before each poll, got %d", len(*slept))
	}
}

func TestDryRun_NeverTouchesTheNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Dry run reached the network: %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	client := NewClient(&config.MastodonConfig{Domain: srv.URL, DryRun: true, RatelimitRetries: 3}, zerolog.Nop())
	ctx := context.Background()

	if id, err := client.CreateStatus(ctx, StatusParams{Status: "hello"}); err != nil || id != NoRemoteID {
		t.Errorf("CreateStatus = %q, %v", id, err)
	}
	if id, err := client.UploadMedia(ctx, strings.NewReader("bytes"), "pic.jpg"); err != nil || id != NoRemoteID {
		t.Errorf("UploadMedia = %q, %v", id, err)
	}
	if id, err := client.DeleteStatus(ctx, "42"); err != nil || id != NoRemoteID {
		t.Errorf("DeleteStatus = %q, %v", id, err)
	}
	if _, err := client.VerifyCredentials(ctx); err != nil {
		t.Errorf("VerifyCredentials failed: %v", err)
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	client := NewClient(&config.MastodonConfig{Domain: "home.social"}, zerolog.Nop())
	if client.endpoint != "https://home.social" {
		t.Errorf("Expected https scheme added, got %q", client.endpoint)
	}

	client = NewClient(&config.MastodonConfig{Domain: "http://localhost:3000"}, zerolog.Nop())
	if client.endpoint != "http://localhost:3000" {
		t.Errorf("Expected explicit scheme kept, got %q", client.endpoint)
	}
}

func TestRemoteID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "string id", body: `{"id": "12345"}`, want: "12345"},
		{name: "numeric id", body: `{"id": 12345}`, want: "12345"},
		{name: "missing id", body: `{}`, want: NoRemoteID},
		{name: "empty id", body: `{"id": ""}`, want: NoRemoteID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := remoteID([]byte(tt.body))
			if err != nil {
				t.Fatalf("remoteID failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("remoteID(%s) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestRateLimitFromHeaders(t *testing.T) {
	now := time.Now()
	h := http.Header{}
	h.Set("x-ratelimit-limit", "300")
	h.Set("x-ratelimit-remaining", "299")
	h.Set("x-ratelimit-reset", now.Add(10*time.Second).Format(time.RFC3339Nano))

	rl := RateLimit{}.fromHeaders(h, now)
	if rl.Limit != 300 || rl.Remaining != 299 {
		t.Errorf("Unexpected budget: %+v", rl)
	}
	if rl.Reset != 10*time.Second+resetSafetyMargin {
		t.Errorf("Expected padded reset of 13s, got %v", rl.Reset)
	}
}

func TestRateLimitFromHeaders_PastResetClamps(t *testing.T) {
	now := time.Now()
	h := http.Header{}
	h.Set("x-ratelimit-reset", now.Add(-time.Minute).Format(time.RFC3339Nano))

	rl := RateLimit{}.fromHeaders(h, now)
	if rl.Reset != resetSafetyMargin {
		t.Errorf("Expected the bare safety margin, got %v", rl.Reset)
	}
}

func TestRateLimitFromHeaders_MissingHeadersKeepOldValues(t *testing.T) {
	rl := RateLimit{Limit: 300, Remaining: 12, Reset: 5 * time.Second}.fromHeaders(http.Header{}, time.Now())
	if rl.Limit != 300 || rl.Remaining != 12 || rl.Reset != 5*time.Second {
		t.Errorf("Expected unchanged budget, got %+v", rl)
	}
}
