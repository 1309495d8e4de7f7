// Package openaitext serves the text side of the gateway (prompt enhancement,
// explanations, image descriptions) from any OpenAI-compatible endpoint.
package openaitext

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"photo-studio/internal/gateway"
	"photo-studio/internal/imaging"
)

const DefaultModel = "gpt-4o-mini"

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

var _ gateway.TextModel = (*Client)(nil)

func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: opts.Logger,
	}
}

func (c *Client) EnhancePrompt(ctx context.Context, text string) (string, error) {
	return c.complete(ctx, 0.7, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: gateway.EnhanceInstruction + strings.TrimSpace(text),
	})
}

func (c *Client) Explain(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, 0.3, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: gateway.ExplainInstruction + strings.TrimSpace(prompt),
	})
}

// DescribeImage sends the photo inline as a data URL.
func (c *Client) DescribeImage(ctx context.Context, img imaging.Image) (string, error) {
	return c.complete(ctx, 0.3, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: gateway.DescribeInstruction},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: img.DataURL()}},
		},
	})
}

func (c *Client) complete(ctx context.Context, temperature float32, msg openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages:    []openai.ChatCompletionMessage{msg},
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.model).Msg("chat completion failed")
		return "", convertError(err)
	}
	if len(resp.Choices) == 0 {
		return "", gateway.ErrEmptyText
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", gateway.ErrEmptyText
	}
	return text, nil
}

// convertError maps OpenAI failures onto the shared envelope, using the
// canonical status names the translator already recognises.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &gateway.APIError{
			HTTPStatus: apiErr.HTTPStatusCode,
			Code:       apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Status:     canonicalStatus(apiErr.HTTPStatusCode),
			Provider:   "openai",
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &gateway.APIError{
			HTTPStatus: reqErr.HTTPStatusCode,
			Code:       reqErr.HTTPStatusCode,
			Message:    fmt.Sprint(reqErr.Err),
			Status:     canonicalStatus(reqErr.HTTPStatusCode),
			Provider:   "openai",
		}
	}
	return err
}

func canonicalStatus(code int) string {
	switch {
	case code == http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return "PERMISSION_DENIED"
	case code == http.StatusNotFound:
		return "NOT_FOUND"
	case code == http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case code == http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case code >= 500:
		return "INTERNAL"
	}
	return ""
}
