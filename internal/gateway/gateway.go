package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"photo-studio/internal/catalog"
	"photo-studio/internal/imaging"
)

// Gateway is everything the studio needs from a generative backend. Calls
// are single-shot; retrying is the user's decision.
type Gateway interface {
	GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error)
	AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error)
	DescribeImage(ctx context.Context, img imaging.Image) (string, error)
	EnhancePrompt(ctx context.Context, text string) (string, error)
}

// Explainer is implemented by backends that can describe a prompt back to
// the user in plain language.
type Explainer interface {
	Explain(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator and TextModel split Gateway so image and text traffic can go
// to different providers.
type ImageGenerator interface {
	GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error)
	AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error)
	DescribeImage(ctx context.Context, img imaging.Image) (string, error)
}

type TextModel interface {
	EnhancePrompt(ctx context.Context, text string) (string, error)
	Explain(ctx context.Context, prompt string) (string, error)
}

var (
	ErrNoImage            = errors.New("model did not return an image")
	ErrMalformedGender    = errors.New("model did not return valid JSON for gender analysis")
	ErrEmptyText          = errors.New("model returned an empty text response")
	ErrExplainUnsupported = errors.New("backend cannot explain prompts")
)

// NoImageError is returned when the model answered with text instead of an
// image. Its message is stable so the error translator can surface the text.
type NoImageError struct {
	Text string
}

func (e *NoImageError) Error() string {
	return fmt.Sprintf("model did not return an image but provided a text response: \"%s\"", e.Text)
}

func (e *NoImageError) Unwrap() error { return ErrNoImage }

// APIError carries a backend failure in the JSON envelope the REST API uses,
// whatever client produced it.
type APIError struct {
	HTTPStatus int              `json:"-"`
	Code       int              `json:"code,omitempty"`
	Message    string           `json:"message,omitempty"`
	Status     string           `json:"status,omitempty"`
	Details    []map[string]any `json:"details,omitempty"`
	Provider   string           `json:"-"`
}

func (e *APIError) Error() string {
	body, err := json.Marshal(struct {
		Error *APIError `json:"error"`
	}{Error: e})
	if err != nil {
		body = []byte(e.Message)
	}
	provider := e.Provider
	if provider == "" {
		provider = "backend"
	}
	return fmt.Sprintf("%s API %d %s: %s", provider, e.HTTPStatus, e.Status, body)
}

// ParseAPIError decodes a REST error body; bodies that are not the usual
// envelope are kept verbatim in Message.
func ParseAPIError(provider string, httpStatus int, body []byte) *APIError {
	var env struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.HTTPStatus = httpStatus
		env.Error.Provider = provider
		return env.Error
	}
	return &APIError{
		HTTPStatus: httpStatus,
		Code:       httpStatus,
		Message:    strings.TrimSpace(string(body)),
		Provider:   provider,
	}
}

// ParseGender reads the gender answer, accepting a JSON object or a bare word.
func ParseGender(text string) (catalog.Gender, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrMalformedGender
	}

	if fragment := extractJSONFragment(trimCodeFence(text)); fragment != "" {
		var payload struct {
			Gender string `json:"gender"`
		}
		if err := json.Unmarshal([]byte(fragment), &payload); err == nil {
			if g, ok := catalog.ParseGender(payload.Gender); ok {
				return g, nil
			}
		}
		return "", ErrMalformedGender
	}

	if g, ok := catalog.ParseGender(text); ok {
		return g, nil
	}
	if strings.Contains(text, string(catalog.Female)) {
		return catalog.Female, nil
	}
	if strings.Contains(text, string(catalog.Male)) {
		return catalog.Male, nil
	}
	return "", ErrMalformedGender
}

func trimCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func extractJSONFragment(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
