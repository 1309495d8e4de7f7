// Package genaisdk implements the gateway on top of the official Gen AI SDK.
package genaisdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

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
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	models     *genai.Models
	imageModel string
	textModel  string
	logger     zerolog.Logger
}

var (
	_ gateway.Gateway   = (*Client)(nil)
	_ gateway.Explainer = (*Client)(nil)
)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("genai: API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	c := &Client{
		models:     client.Models,
		imageModel: strings.TrimSpace(opts.ImageModel),
		textModel:  strings.TrimSpace(opts.TextModel),
		logger:     opts.Logger,
	}
	if c.imageModel == "" {
		c.imageModel = DefaultImageModel
	}
	if c.textModel == "" {
		c.textModel = DefaultTextModel
	}
	return c, nil
}

func (c *Client) GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error) {
	resp, err := c.models.GenerateContent(ctx, c.imageModel, userContent(imageParts(prompt, primary, secondary)), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return imaging.Image{}, convertError(err)
	}
	img, err := imageFromResponse(resp)
	if err == nil {
		c.logger.Debug().Str("model", c.imageModel).Int("bytes", len(img.Data)).Msg("image generated")
	}
	return img, err
}

func (c *Client) AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error) {
	text, err := c.askText(ctx, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}, genai.NewPartFromText(gateway.GenderInstruction), toPart(img))
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyText) {
			return "", gateway.ErrMalformedGender
		}
		return "", err
	}
	return gateway.ParseGender(text)
}

func (c *Client) DescribeImage(ctx context.Context, img imaging.Image) (string, error) {
	return c.askText(ctx, nil, genai.NewPartFromText(gateway.DescribeInstruction), toPart(img))
}

func (c *Client) EnhancePrompt(ctx context.Context, text string) (string, error) {
	return c.askText(ctx, &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.7)},
		genai.NewPartFromText(gateway.EnhanceInstruction+strings.TrimSpace(text)))
}

func (c *Client) Explain(ctx context.Context, prompt string) (string, error) {
	return c.askText(ctx, nil, genai.NewPartFromText(gateway.ExplainInstruction+strings.TrimSpace(prompt)))
}

func (c *Client) askText(ctx context.Context, cfg *genai.GenerateContentConfig, parts ...*genai.Part) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.textModel, userContent(parts), cfg)
	if err != nil {
		return "", convertError(err)
	}
	text, _ := splitResponse(resp)
	if text = strings.TrimSpace(text); text == "" {
		return "", gateway.ErrEmptyText
	}
	return text, nil
}

func userContent(parts []*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: "user", Parts: parts}}
}

func imageParts(prompt string, primary imaging.Image, secondary *imaging.Image) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(prompt), toPart(primary)}
	if secondary != nil && !secondary.IsZero() {
		parts = append(parts, genai.NewPartFromText(gateway.OutfitLabel), toPart(*secondary))
	}
	return parts
}

func toPart(img imaging.Image) *genai.Part {
	mime := img.MIMEType
	if mime == "" {
		mime = imaging.DetectMIME(img.Data)
	}
	return genai.NewPartFromBytes(img.Data, mime)
}

func imageFromResponse(resp *genai.GenerateContentResponse) (imaging.Image, error) {
	text, images := splitResponse(resp)
	if len(images) > 0 {
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

func splitResponse(resp *genai.GenerateContentResponse) (string, []imaging.Image) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	var images []imaging.Image
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		sb.WriteString(p.Text)
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = imaging.DetectMIME(p.InlineData.Data)
			}
			images = append(images, imaging.Image{MIMEType: mime, Data: p.InlineData.Data})
		}
	}
	return sb.String(), images
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 {
		switch reason := string(resp.Candidates[0].FinishReason); reason {
		case "SAFETY", "PROHIBITED_CONTENT", "IMAGE_SAFETY", "BLOCKLIST":
			return reason
		}
	}
	return ""
}

// convertError rewraps SDK errors into the shared envelope so the translator
// sees the same text regardless of backend.
func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromSDK(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromSDK(*apiErrPtr)
	}
	return err
}

func fromSDK(e genai.APIError) *gateway.APIError {
	return &gateway.APIError{
		HTTPStatus: e.Code,
		Code:       e.Code,
		Message:    e.Message,
		Status:     e.Status,
		Details:    e.Details,
		Provider:   "gemini",
	}
}
