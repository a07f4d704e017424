package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/provider"
)

// renderServer answers submit/poll generation requests with one asset, or
// with a failure when fail is set.
func renderServer(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Kind provider.Kind `json:"kind"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-1",
			"status": "succeeded",
			"assets": []map[string]string{{"url": "https://cdn.example/" + string(body.Kind) + ".bin"}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// chatServer answers every request with an OpenAI chat completion.
func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"slim model"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCatalog(t *testing.T, chatURL, renderURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	body := fmt.Sprintf(`providers:
  - id: vision
    type: openai-vision
    kinds: [analysis]
    endpoint: %s
  - id: painter
    type: http
    kinds: [image, video]
    credential_env: PAINTER_KEY
    endpoint: %s
`, chatURL, renderURL)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func newTestApp(t *testing.T, catalog string, extra ...string) *Application {
	t.Helper()
	args := append([]string{"lookforge", "--catalog", catalog, "--no-color",
		"--character", "https://img.example/c.png", "--product", "https://img.example/p.png"}, extra...)
	a, err := New(args, io.Discard, WithGetenv(env(map[string]string{"PAINTER_KEY": "k"})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_ParsesArguments(t *testing.T) {
	a, err := New([]string{"lookforge", "--serve", "--addr", ":9999"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.Config.Serve || a.Config.Addr != ":9999" || a.Getenv == nil {
		t.Errorf("unexpected application %+v", a)
	}
}

func TestNew_HelpAndErrors(t *testing.T) {
	_, err := New([]string{"lookforge", "--help"}, io.Discard)
	if !IsHelpError(err) {
		t.Errorf("expected help error, got %v", err)
	}
	_, err = New([]string{"lookforge"}, io.Discard)
	if err == nil || IsHelpError(err) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if code := ExitCodeForStartup(err); code != apperrors.ExitErrorConfig {
		t.Errorf("ExitCodeForStartup = %d", code)
	}
}

func TestRun_GenerateQuiet(t *testing.T) {
	catalog := writeCatalog(t, chatServer(t).URL, renderServer(t, false).URL)
	a := newTestApp(t, catalog, "--quiet")

	var out bytes.Buffer
	if code := a.Run(context.Background(), &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	if got := strings.TrimSpace(out.String()); got != "https://cdn.example/image.bin" {
		t.Errorf("quiet output = %q", got)
	}
}

func TestRun_GenerateVideoReport(t *testing.T) {
	catalog := writeCatalog(t, chatServer(t).URL, renderServer(t, false).URL)
	report := filepath.Join(t.TempDir(), "report.json")
	a := newTestApp(t, catalog, "--output", "video", "-o", report)

	var out bytes.Buffer
	if code := a.Run(context.Background(), &out); code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	for _, want := range []string{"Execution Configuration", "painter", "Generation Complete", "video.bin"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if _, err := os.Stat(report); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestRun_GenerateFailures(t *testing.T) {
	t.Run("providers down", func(t *testing.T) {
		catalog := writeCatalog(t, chatServer(t).URL, renderServer(t, true).URL)
		a := newTestApp(t, catalog)
		var out bytes.Buffer
		if code := a.Run(context.Background(), &out); code != apperrors.ExitErrorProvidersDown {
			t.Errorf("exit code = %d, output:\n%s", code, out.String())
		}
	})
	t.Run("missing credential", func(t *testing.T) {
		catalog := writeCatalog(t, chatServer(t).URL, renderServer(t, false).URL)
		a := newTestApp(t, catalog)
		a.Getenv = env(nil)
		var out bytes.Buffer
		if code := a.Run(context.Background(), &out); code != apperrors.ExitErrorNoProvider {
			t.Errorf("exit code = %d, output:\n%s", code, out.String())
		}
	})
	t.Run("missing catalog", func(t *testing.T) {
		a := newTestApp(t, filepath.Join(t.TempDir(), "absent.yaml"))
		if code := a.Run(context.Background(), io.Discard); code != apperrors.ExitErrorConfig {
			t.Errorf("exit code = %d", code)
		}
	})
}

func TestBuildServices_InMemoryDefaults(t *testing.T) {
	catalog := writeCatalog(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	a := newTestApp(t, catalog)
	svc, err := buildServices(context.Background(), a.Config, a.servicesOptions(nil))
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	defer svc.Close(context.Background())

	if svc.Registry.Len() != 2 {
		t.Errorf("registry has %d providers", svc.Registry.Len())
	}
	if svc.CrossNode || svc.Events != svc.Bus {
		t.Error("expected in-process events without redis")
	}
	if len(svc.Health) != 0 {
		t.Errorf("unexpected health checks %v", svc.Health)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRunServe_ShutsDownOnCancel(t *testing.T) {
	catalog := writeCatalog(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	a, err := New([]string{"lookforge", "--serve", "--addr", "127.0.0.1:0", "--catalog", catalog,
		"--shutdown-timeout", "1s"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	done := make(chan int, 1)
	go func() { done <- a.Run(ctx, io.Discard) }()
	select {
	case code := <-done:
		if code != apperrors.ExitSuccess {
			t.Errorf("exit code = %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerConfig(t *testing.T) {
	a := &Application{}
	a.Config.AllowedOrigins = []string{"https://studio.example"}
	a.Config.Timeout = time.Minute
	cfg := a.serverConfig()
	if len(cfg.Security.AllowedOrigins) != 1 || cfg.Security.AllowedOrigins[0] != "https://studio.example" {
		t.Errorf("origins = %v", cfg.Security.AllowedOrigins)
	}
	if cfg.JobTimeout != time.Minute {
		t.Errorf("JobTimeout = %s", cfg.JobTimeout)
	}
}

func TestVersion(t *testing.T) {
	if !HasVersionFlag([]string{"--quiet", "--version"}) || HasVersionFlag([]string{"--serve"}) {
		t.Error("HasVersionFlag mismatch")
	}
	var buf bytes.Buffer
	PrintVersion(&buf)
	if !strings.HasPrefix(buf.String(), "lookforge "+Version) {
		t.Errorf("PrintVersion = %q", buf.String())
	}
}
