// Package anthropic adapts the Claude Messages API to provider.Executor for
// vision analysis of reference images.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agbru/lookforge/internal/provider"
)

const defaultMaxTokens = 1024

// DefaultAnalysisInstruction is used when an analysis request carries no prompt.
const DefaultAnalysisInstruction = "You are styling a fashion shoot. Describe the person (build, pose, " +
	"skin tone, hair) and the product (cut, fabric, colour, details) shown in these images."

// MessagesClient is the subset of *sdk.MessageService used by Vision.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Vision analyzes reference images with a Claude model.
type Vision struct {
	msg       MessagesClient
	model     string
	maxTokens int64
}

// NewVision returns a vision executor. An empty model uses Claude Sonnet 4.5.
func NewVision(msg MessagesClient, model string) (*Vision, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if model == "" {
		model = string(sdk.ModelClaudeSonnet4_5_20250929)
	}
	return &Vision{msg: msg, model: model, maxTokens: defaultMaxTokens}, nil
}

// NewFromAPIKey builds a vision executor on the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, baseURL, model string) (*Vision, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := sdk.NewClient(opts...)
	return NewVision(&client.Messages, model)
}

// Execute sends the images followed by the instruction as one user turn and
// returns the concatenated text blocks.
func (v *Vision) Execute(ctx context.Context, req provider.Request) (provider.Result, error) {
	urls := req.ImageURLs()
	if len(urls) == 0 {
		return provider.Result{}, errors.New("anthropic vision: at least one image url is required")
	}
	instruction := req.Prompt
	if instruction == "" {
		instruction = DefaultAnalysisInstruction
	}
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(urls)+1)
	for _, u := range urls {
		blocks = append(blocks, sdk.NewImageBlock(sdk.URLImageSourceParam{URL: u}))
	}
	blocks = append(blocks, sdk.NewTextBlock(instruction))

	model := v.model
	if req.Model != "" {
		model = req.Model
	}
	msg, err := v.msg.New(ctx, sdk.MessageNewParams{
		MaxTokens: v.maxTokens,
		Model:     sdk.Model(model),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return provider.Result{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	if msg == nil {
		return provider.Result{}, errors.New("anthropic messages.new: nil response")
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return provider.Result{}, errors.New("anthropic messages.new: empty response")
	}
	return provider.Result{Text: text.String()}, nil
}
