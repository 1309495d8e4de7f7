package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"photo-studio/internal/catalog"
	"photo-studio/internal/gateway"
	"photo-studio/internal/imaging"
)

const (
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTextModel  = "gemini-2.5-flash"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the generateContent REST endpoint directly.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	imageModel string
	textModel  string
	httpClient *http.Client
	logger     zerolog.Logger
}

var (
	_ gateway.Gateway   = (*Client)(nil)
	_ gateway.Explainer = (*Client)(nil)
)

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	textModel := strings.TrimSpace(opts.TextModel)
	if textModel == "" {
		textModel = DefaultTextModel
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		imageModel: imageModel,
		textModel:  textModel,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

func (c *Client) GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildImageParts(prompt, primary, secondary)}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, req)
	if err != nil {
		return imaging.Image{}, err
	}

	text, images := extractParts(resp)
	if len(images) > 0 {
		c.logger.Debug().Str("model", c.imageModel).Int("bytes", len(images[0].Data)).Msg("image generated")
		return images[0], nil
	}
	if text = strings.TrimSpace(text); text != "" {
		return imaging.Image{}, &gateway.NoImageError{Text: text}
	}
	if reason := blockReason(resp); reason != "" {
		return imaging.Image{}, fmt.Errorf("%w: prompt blocked for safety, category: %s", gateway.ErrNoImage, reason)
	}
	return imaging.Image{}, gateway.ErrNoImage
}

// buildImageParts fixes the part order: instruction, subject photo, then the
// labelled outfit reference.
func buildImageParts(prompt string, primary imaging.Image, secondary *imaging.Image) []part {
	parts := []part{
		{Text: prompt},
		{InlineData: toBlob(primary)},
	}
	if secondary != nil && !secondary.IsZero() {
		parts = append(parts,
			part{Text: gateway.OutfitLabel},
			part{InlineData: toBlob(*secondary)},
		)
	}
	return parts
}

func (c *Client) AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error) {
	text, err := c.askText(ctx, generationConfig{ResponseMIMEType: "application/json", Temperature: ptr(0.0)},
		part{Text: gateway.GenderInstruction},
		part{InlineData: toBlob(img)},
	)
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyText) {
			return "", gateway.ErrMalformedGender
		}
		return "", err
	}
	return gateway.ParseGender(text)
}

func (c *Client) DescribeImage(ctx context.Context, img imaging.Image) (string, error) {
	return c.askText(ctx, generationConfig{},
		part{Text: gateway.DescribeInstruction},
		part{InlineData: toBlob(img)},
	)
}

func (c *Client) EnhancePrompt(ctx context.Context, text string) (string, error) {
	return c.askText(ctx, generationConfig{Temperature: ptr(0.7)},
		part{Text: gateway.EnhanceInstruction + strings.TrimSpace(text)},
	)
}

func (c *Client) Explain(ctx context.Context, prompt string) (string, error) {
	return c.askText(ctx, generationConfig{},
		part{Text: gateway.ExplainInstruction + strings.TrimSpace(prompt)},
	)
}

func (c *Client) askText(ctx context.Context, cfg generationConfig, parts ...part) (string, error) {
	req := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: cfg,
	}

	resp, err := c.generateContent(ctx, c.textModel, req)
	if err != nil {
		return "", err
	}

	text, _ := extractParts(resp)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", gateway.ErrEmptyText
	}
	return text, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		apiErr := gateway.ParseAPIError("gemini", httpResp.StatusCode, rawBody)
		c.logger.Warn().Str("model", model).Int("status", httpResp.StatusCode).Str("api_status", apiErr.Status).Msg("gemini request failed")
		return generateContentResponse{}, apiErr
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func extractParts(resp generateContentResponse) (string, []imaging.Image) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []imaging.Image

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = imaging.DetectMIME(data)
			}
			images = append(images, imaging.Image{MIMEType: mime, Data: data})
		}
	}

	return textBuilder.String(), images
}

func blockReason(resp generateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return resp.PromptFeedback.BlockReason
	}
	if len(resp.Candidates) > 0 {
		switch reason := resp.Candidates[0].FinishReason; reason {
		case "SAFETY", "PROHIBITED_CONTENT", "IMAGE_SAFETY", "BLOCKLIST":
			return reason
		}
	}
	return ""
}

func toBlob(img imaging.Image) *blob {
	mime := img.MIMEType
	if mime == "" {
		mime = imaging.DetectMIME(img.Data)
	}
	return &blob{Data: img.Base64(), MimeType: mime}
}

func ptr[T any](v T) *T { return &v }
