// Package httpgen drives image and video services that expose a
// submit-then-poll JSON API: a POST creates a job, a status URL is polled
// until the job succeeds or fails, and the resulting asset URLs are returned.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agbru/lookforge/internal/provider"
)

// Job states reported by the remote service.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPoll      = 10 * time.Second
	defaultMaxWait      = 10 * time.Minute
	maxErrorBody        = 512
)

// Config configures a Client.
type Config struct {
	// Endpoint is the job submission URL.
	Endpoint string
	APIKey   string
	Model    string
	// Options are forwarded verbatim in the submission body.
	Options      map[string]string
	PollInterval time.Duration
	MaxPoll      time.Duration
	// MaxWait bounds the whole polling phase.
	MaxWait    time.Duration
	HTTPClient *http.Client
}

// Client is a provider.Executor for submit/poll generation services.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("httpgen: endpoint is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPoll < cfg.PollInterval {
		cfg.MaxPoll = max(defaultMaxPoll, cfg.PollInterval)
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

type submitRequest struct {
	Model           string            `json:"model,omitempty"`
	Kind            provider.Kind     `json:"kind"`
	Prompt          string            `json:"prompt,omitempty"`
	ImageURLs       []string          `json:"imageUrls,omitempty"`
	Style           string            `json:"style,omitempty"`
	AspectRatio     string            `json:"aspectRatio,omitempty"`
	DurationSeconds int               `json:"durationSeconds,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

type jobAsset struct {
	URL      string `json:"url"`
	MIMEType string `json:"mimeType"`
}

type jobResponse struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	StatusURL string     `json:"statusUrl"`
	Assets    []jobAsset `json:"assets"`
	Error     string     `json:"error"`
}

// Execute submits the job and polls until it reaches a terminal state, the
// context ends, or the wait budget runs out.
func (c *Client) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	body := submitRequest{
		Model:           model,
		Kind:            req.Kind,
		Prompt:          req.Prompt,
		ImageURLs:       req.ImageURLs(),
		Style:           req.Style,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		Options:         c.cfg.Options,
	}
	job, err := c.submit(ctx, body)
	if err != nil {
		return provider.Result{}, err
	}
	if job.Status != StatusSucceeded && job.Status != StatusFailed {
		job, err = c.poll(ctx, job)
		if err != nil {
			return provider.Result{}, err
		}
	}
	return resultFrom(job, req.Kind)
}

func (c *Client) submit(ctx context.Context, body submitRequest) (jobResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return jobResponse{}, fmt.Errorf("httpgen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return jobResponse{}, fmt.Errorf("httpgen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	job, err := c.do(httpReq)
	if err != nil {
		return jobResponse{}, fmt.Errorf("httpgen: submit: %w", err)
	}
	return job, nil
}

func (c *Client) poll(ctx context.Context, job jobResponse) (jobResponse, error) {
	statusURL := job.StatusURL
	if statusURL == "" {
		if job.ID == "" {
			return jobResponse{}, errors.New("httpgen: response has neither status url nor job id")
		}
		statusURL = strings.TrimRight(c.cfg.Endpoint, "/") + "/" + job.ID
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.PollInterval
	b.MaxInterval = c.cfg.MaxPoll
	b.MaxElapsedTime = c.cfg.MaxWait
	b.RandomizationFactor = 0

	errPending := errors.New("job still pending")
	var last jobResponse
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.do(httpReq)
		if err != nil {
			return err
		}
		last = resp
		switch resp.Status {
		case StatusSucceeded, StatusFailed:
			return nil
		default:
			return errPending
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errPending) {
			return jobResponse{}, fmt.Errorf("httpgen: job %s did not finish within %s", job.ID, c.cfg.MaxWait)
		}
		return jobResponse{}, fmt.Errorf("httpgen: poll: %w", err)
	}
	return last, nil
}

func (c *Client) do(req *http.Request) (jobResponse, error) {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return jobResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return jobResponse{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return jobResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return job, nil
}

func resultFrom(job jobResponse, kind provider.Kind) (provider.Result, error) {
	if job.Status == StatusFailed {
		msg := job.Error
		if msg == "" {
			msg = "no reason given"
		}
		return provider.Result{}, fmt.Errorf("httpgen: job %s failed: %s", job.ID, msg)
	}
	assets := make([]provider.Asset, 0, len(job.Assets))
	for _, a := range job.Assets {
		if a.URL == "" {
			continue
		}
		mime := a.MIMEType
		if mime == "" {
			mime = defaultMIME(kind)
		}
		assets = append(assets, provider.Asset{URL: a.URL, MIMEType: mime})
	}
	if len(assets) == 0 {
		return provider.Result{}, fmt.Errorf("httpgen: job %s succeeded without assets", job.ID)
	}
	return provider.Result{Assets: assets}, nil
}

func defaultMIME(kind provider.Kind) string {
	if kind == provider.KindVideo {
		return "video/mp4"
	}
	return "image/png"
}
