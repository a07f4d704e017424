package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCatalog = `
providers:
  - id: openai-vision
    name: OpenAI Vision
    type: openai-vision
    kinds: [analysis]
    priority: 1
    credential_env: OPENAI_API_KEY
    model: gpt-4o
  - id: anthropic-vision
    type: anthropic-vision
    kinds: [analysis]
    priority: 2
    credential_env: ANTHROPIC_API_KEY
    requests_per_minute: 30
  - id: fal-video
    type: http
    kinds: [video]
    priority: 1
    credential_env: FAL_KEY
    endpoint: https://video.example.com
    enabled: false
    styles: [editorial]
    options:
      submit_path: /v1/jobs
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	c, err := LoadCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(c.Providers))
	}
	video := c.Providers[2]
	if video.IsEnabled() {
		t.Error("fal-video should be disabled")
	}
	if video.Options["submit_path"] != "/v1/jobs" {
		t.Errorf("options not decoded: %v", video.Options)
	}
	if c.Providers[1].RequestsPerMinute != 30 {
		t.Errorf("requests_per_minute = %d, want 30", c.Providers[1].RequestsPerMinute)
	}
	if !c.Providers[0].IsEnabled() {
		t.Error("entries should default to enabled")
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "providers:\n  - id: a\n    colour: red\n", "decode provider catalog"},
		{"missing id", "providers:\n  - type: http\n    kinds: [image]\n", "missing id"},
		{"duplicate", "providers:\n  - {id: a, type: http, kinds: [image]}\n  - {id: a, type: http, kinds: [image]}\n", "duplicate id"},
		{"missing type", "providers:\n  - {id: a, kinds: [image]}\n", "missing type"},
		{"missing kinds", "providers:\n  - {id: a, type: http}\n", "missing kinds"},
		{"bad kind", "providers:\n  - {id: a, type: http, kinds: [audio]}\n", "unknown kind"},
		{"negative rate", "providers:\n  - {id: a, type: http, kinds: [image], requests_per_minute: -1}\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadCatalog(strings.NewReader(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadCatalogEmpty(t *testing.T) {
	t.Parallel()
	c, err := LoadCatalog(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty catalog should load, got %v", err)
	}
	if len(c.Providers) != 0 {
		t.Errorf("expected no providers, got %d", len(c.Providers))
	}
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalogFile(path); err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()
	c, err := LoadCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	five := 5
	enabled := true
	disabled := false
	out := ApplyOverrides(c.Providers, []Override{
		{ProviderID: "openai-vision", Priority: &five, Enabled: &disabled},
		{ProviderID: "fal-video", Enabled: &enabled},
		{ProviderID: "unknown", Priority: &five},
	})

	if out[0].Priority != 5 || out[0].IsEnabled() {
		t.Errorf("openai-vision override not applied: %+v", out[0])
	}
	if !out[2].IsEnabled() {
		t.Error("fal-video should be re-enabled")
	}
	if out[1].Priority != 2 {
		t.Error("entries without override must keep catalog priority")
	}
	if c.Providers[0].Priority != 1 || !c.Providers[0].IsEnabled() {
		t.Error("ApplyOverrides must not mutate its input")
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	c, err := LoadCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"OPENAI_API_KEY": "sk-1"}
	getenv := func(k string) string { return env[k] }

	var credentials []string
	factory := func(e Entry, credential string) (Executor, error) {
		credentials = append(credentials, e.ID+"="+credential)
		return okExecutor(e.ID), nil
	}
	descs, err := Build(c.Providers, map[string]Factory{
		"openai-vision":    factory,
		"anthropic-vision": factory,
		"http":             factory,
	}, getenv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(descs) != 2 {
		t.Fatalf("disabled entries must be skipped, got %d descriptors", len(descs))
	}
	if descs[1].Name != "anthropic-vision" {
		t.Errorf("missing name should default to id, got %q", descs[1].Name)
	}
	if !descs[0].IsAvailable() || descs[1].IsAvailable() {
		t.Error("availability should follow credential presence")
	}
	env["ANTHROPIC_API_KEY"] = "key"
	if !descs[1].IsAvailable() {
		t.Error("availability should be re-evaluated on each call")
	}
	if credentials[0] != "openai-vision=sk-1" || credentials[1] != "anthropic-vision=" {
		t.Errorf("unexpected credentials passed to factories: %v", credentials)
	}
	if _, ok := descs[1].Executor.(*rateLimited); !ok {
		t.Error("entry with requests_per_minute should be rate limited")
	}
	res, err := descs[0].Executor.Execute(context.Background(), Request{Kind: KindAnalysis})
	if err != nil || res.ProviderID != "openai-vision" {
		t.Errorf("unexpected execution result %+v, %v", res, err)
	}
}

func TestBuildStyleFilter(t *testing.T) {
	t.Parallel()
	entries := []Entry{{ID: "v", Type: "http", Kinds: []Kind{KindVideo}, Styles: []string{"editorial"}}}
	descs, err := Build(entries, map[string]Factory{
		"http": func(e Entry, _ string) (Executor, error) { return okExecutor(e.ID), nil },
	}, func(string) string { return "" })
	if err != nil {
		t.Fatal(err)
	}
	d := descs[0]
	if !d.CanServe(Request{Kind: KindVideo, Style: "editorial"}) {
		t.Error("listed style should be served")
	}
	if d.CanServe(Request{Kind: KindVideo, Style: "streetwear"}) {
		t.Error("unlisted style should be rejected")
	}
	if !d.CanServe(Request{Kind: KindVideo}) {
		t.Error("requests without a style should be served")
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()
	entries := []Entry{{ID: "x", Type: "mystery", Kinds: []Kind{KindImage}}}
	if _, err := Build(entries, nil, nil); err == nil || !strings.Contains(err.Error(), "no factory") {
		t.Fatalf("expected missing factory error, got %v", err)
	}

	boom := errors.New("bad endpoint")
	_, err := Build(entries, map[string]Factory{
		"mystery": func(Entry, string) (Executor, error) { return nil, boom },
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error to be wrapped, got %v", err)
	}
}
