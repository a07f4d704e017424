package httpgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agbru/lookforge/internal/provider"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		Endpoint:     url + "/jobs",
		APIKey:       "secret",
		Model:        "vid-1",
		Options:      map[string]string{"fps": "24"},
		PollInterval: time.Millisecond,
		MaxPoll:      5 * time.Millisecond,
		MaxWait:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestExecuteSubmitAndPoll(t *testing.T) {
	t.Parallel()
	var polls atomic.Int32
	var got submitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(jobResponse{ID: "j1", Status: StatusQueued})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/j1":
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(jobResponse{ID: "j1", Status: StatusRunning})
				return
			}
			_ = json.NewEncoder(w).Encode(jobResponse{ID: "j1", Status: StatusSucceeded,
				Assets: []jobAsset{{URL: "https://cdn/clip.mp4"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).Execute(context.Background(), provider.Request{
		Kind:            provider.KindVideo,
		Prompt:          "slow turn",
		SourceImageURL:  "https://img/look.png",
		DurationSeconds: 5,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Assets) != 1 || res.Assets[0].URL != "https://cdn/clip.mp4" || res.Assets[0].MIMEType != "video/mp4" {
		t.Errorf("Assets = %+v", res.Assets)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
	if got.Model != "vid-1" || got.Kind != provider.KindVideo || got.Options["fps"] != "24" {
		t.Errorf("submitted body = %+v", got)
	}
	if len(got.ImageURLs) != 1 || got.ImageURLs[0] != "https://img/look.png" {
		t.Errorf("ImageURLs = %v", got.ImageURLs)
	}
}

func TestExecuteImmediateResultAndStatusURL(t *testing.T) {
	t.Parallel()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs":
			if r.URL.Query().Get("sync") == "1" {
				_ = json.NewEncoder(w).Encode(jobResponse{ID: "now", Status: StatusSucceeded,
					Assets: []jobAsset{{URL: "https://cdn/a.png", MIMEType: "image/webp"}}})
				return
			}
			_ = json.NewEncoder(w).Encode(jobResponse{ID: "x", Status: StatusQueued, StatusURL: srv.URL + "/status/x"})
		case "/status/x":
			_ = json.NewEncoder(w).Encode(jobResponse{ID: "x", Status: StatusSucceeded,
				Assets: []jobAsset{{URL: "https://cdn/b.png"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL + "/jobs?sync=1"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Execute(context.Background(), provider.Request{Kind: provider.KindImage, Prompt: "p"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Assets[0].MIMEType != "image/webp" {
		t.Errorf("MIMEType = %q", res.Assets[0].MIMEType)
	}

	res, err = newTestClient(t, srv.URL).Execute(context.Background(), provider.Request{Kind: provider.KindImage, Prompt: "p"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Assets[0].URL != "https://cdn/b.png" || res.Assets[0].MIMEType != "image/png" {
		t.Errorf("Assets = %+v", res.Assets)
	}
}

func TestExecuteFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "submit rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "quota exhausted", http.StatusTooManyRequests)
			},
			want: "unexpected status 429: quota exhausted",
		},
		{
			name: "job failed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(jobResponse{ID: "j", Status: StatusFailed, Error: "nsfw filter"})
			},
			want: "nsfw filter",
		},
		{
			name: "succeeded without assets",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(jobResponse{ID: "j", Status: StatusSucceeded})
			},
			want: "without assets",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			want: "decode response",
		},
		{
			name: "no way to poll",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(jobResponse{Status: StatusQueued})
			},
			want: "neither status url nor job id",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := newTestClient(t, srv.URL).Execute(context.Background(), provider.Request{Kind: provider.KindImage})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Execute() error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jobResponse{ID: "slow", Status: StatusRunning})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c, err := New(Config{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond, MaxWait: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Execute(ctx, provider.Request{Kind: provider.KindVideo})
	if err == nil {
		t.Fatal("expected error after context deadline")
	}
}

func TestExecuteGivesUpAfterMaxWait(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jobResponse{ID: "stuck", Status: StatusRunning})
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, PollInterval: time.Millisecond, MaxPoll: 2 * time.Millisecond, MaxWait: 30 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Execute(context.Background(), provider.Request{Kind: provider.KindVideo})
	if err == nil || !strings.Contains(err.Error(), "did not finish") {
		t.Errorf("Execute() error = %v, want timeout", err)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Error("New() without endpoint should fail")
	}
}
