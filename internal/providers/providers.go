// Package providers maps catalog entry types to the concrete adapters that
// implement them.
package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/providers/anthropic"
	"github.com/agbru/lookforge/internal/providers/httpgen"
	"github.com/agbru/lookforge/internal/providers/openai"
)

// Catalog entry types understood by Factories.
const (
	TypeOpenAIVision    = "openai-vision"
	TypeOpenAIImage     = "openai-image"
	TypeAnthropicVision = "anthropic-vision"
	TypeHTTP            = "http"
)

// Factories returns the executor factory for every supported entry type.
// httpClient is used by the generic HTTP adapter; nil selects a default.
func Factories(httpClient *http.Client) map[string]provider.Factory {
	return map[string]provider.Factory{
		TypeOpenAIVision: func(e provider.Entry, key string) (provider.Executor, error) {
			return openai.NewVision(openai.NewAPI(key, e.Endpoint), e.Model)
		},
		TypeOpenAIImage: func(e provider.Entry, key string) (provider.Executor, error) {
			return openai.NewImages(openai.NewAPI(key, e.Endpoint), e.Model)
		},
		TypeAnthropicVision: func(e provider.Entry, key string) (provider.Executor, error) {
			if key == "" {
				// Availability keeps the entry out of rotation while unset.
				return provider.ExecutorFunc(missingCredential), nil
			}
			return anthropic.NewFromAPIKey(key, e.Endpoint, e.Model)
		},
		TypeHTTP: func(e provider.Entry, key string) (provider.Executor, error) {
			cfg := httpgen.Config{
				Endpoint:   e.Endpoint,
				APIKey:     key,
				Model:      e.Model,
				HTTPClient: httpClient,
				Options:    map[string]string{},
			}
			for k, v := range e.Options {
				switch k {
				case "poll_interval":
					d, err := time.ParseDuration(v)
					if err != nil {
						return nil, err
					}
					cfg.PollInterval = d
				case "max_wait":
					d, err := time.ParseDuration(v)
					if err != nil {
						return nil, err
					}
					cfg.MaxWait = d
				case "max_poll_seconds":
					n, err := strconv.Atoi(v)
					if err != nil {
						return nil, err
					}
					cfg.MaxPoll = time.Duration(n) * time.Second
				default:
					cfg.Options[k] = v
				}
			}
			return httpgen.New(cfg)
		},
	}
}

func missingCredential(_ context.Context, _ provider.Request) (provider.Result, error) {
	return provider.Result{}, errors.New("credential not configured")
}
