// Package openai adapts the OpenAI API to provider.Executor using
// github.com/sashabaranov/go-openai. Vision analysis goes through chat
// completions with image URL parts; still images through the images API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agbru/lookforge/internal/provider"
)

const (
	defaultVisionModel = openai.GPT4o
	defaultImageModel  = openai.CreateImageModelDallE3
	defaultMaxTokens   = 800

	// DefaultAnalysisInstruction is used when an analysis request carries no prompt.
	DefaultAnalysisInstruction = "Describe the person and the garment in these images for a fashion photo shoot: " +
		"body type, pose, skin tone, hair, and the product's cut, fabric, colour and details."
)

// API captures the subset of the go-openai client used by the adapters.
type API interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// NewAPI builds a go-openai client. A non-empty baseURL targets an
// OpenAI-compatible endpoint.
func NewAPI(apiKey, baseURL string) API {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Vision analyzes reference images with a chat model.
type Vision struct {
	api       API
	model     string
	maxTokens int
}

// NewVision returns a vision executor. An empty model uses gpt-4o.
func NewVision(api API, model string) (*Vision, error) {
	if api == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		model = defaultVisionModel
	}
	return &Vision{api: api, model: model, maxTokens: defaultMaxTokens}, nil
}

// Execute sends the request's images and instruction as one user message.
func (v *Vision) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	urls := req.ImageURLs()
	if len(urls) == 0 {
		return provider.Result{}, errors.New("openai vision: at least one image url is required")
	}
	instruction := req.Prompt
	if instruction == "" {
		instruction = DefaultAnalysisInstruction
	}
	parts := make([]openai.ChatMessagePart, 0, len(urls)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: instruction})
	for _, u := range urls {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailAuto},
		})
	}
	model := v.model
	if req.Model != "" {
		model = req.Model
	}
	resp, err := v.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: v.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
	})
	if err != nil {
		return provider.Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	var text strings.Builder
	for _, choice := range resp.Choices {
		text.WriteString(choice.Message.Content)
	}
	if strings.TrimSpace(text.String()) == "" {
		return provider.Result{}, errors.New("openai chat completion: empty response")
	}
	return provider.Result{Text: text.String()}, nil
}

// Images generates still images from a text prompt.
type Images struct {
	api   API
	model string
}

// NewImages returns an image executor. An empty model uses dall-e-3.
func NewImages(api API, model string) (*Images, error) {
	if api == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		model = defaultImageModel
	}
	return &Images{api: api, model: model}, nil
}

// Execute generates one image. Responses may carry a hosted URL or inline
// base64 data; both are supported.
func (g *Images) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return provider.Result{}, errors.New("openai images: prompt is required")
	}
	model := g.model
	if req.Model != "" {
		model = req.Model
	}
	resp, err := g.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          model,
		N:              1,
		Size:           sizeFor(req.AspectRatio),
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return provider.Result{}, fmt.Errorf("openai create image: %w", err)
	}
	assets := make([]provider.Asset, 0, len(resp.Data))
	for _, d := range resp.Data {
		switch {
		case d.URL != "":
			assets = append(assets, provider.Asset{URL: d.URL, MIMEType: "image/png"})
		case d.B64JSON != "":
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return provider.Result{}, fmt.Errorf("openai create image: decode image: %w", err)
			}
			assets = append(assets, provider.Asset{MIMEType: "image/png", Data: data})
		}
	}
	if len(assets) == 0 {
		return provider.Result{}, errors.New("openai create image: no image returned")
	}
	return provider.Result{Assets: assets}, nil
}

func sizeFor(aspect string) string {
	switch aspect {
	case "16:9", "landscape":
		return openai.CreateImageSize1792x1024
	case "9:16", "portrait":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}
