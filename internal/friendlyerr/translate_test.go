package friendlyerr

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"gender json", errors.New("Model did not return valid JSON for gender analysis"), AnalysisMalformed},
		{"api key", errors.New(`gemini API 400 Bad Request: {"error":{"message":"API key not valid. Please pass a valid API key."}}`), Auth},
		{"missing key", errors.New("API_KEY_MISSING"), Auth},
		{"quota", errors.New("You exceeded your current quota"), RateLimit},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), RateLimit},
		{"safety", errors.New("Candidate was blocked due to SAFETY"), Safety},
		{"face", errors.New("Face is not clear in the photo"), FaceNotDetected},
		{"small", errors.New("image is too small"), ImageTooSmall},
		{"large", errors.New("Resolution is too high"), ImageTooLarge},
		{"corrupt", errors.New("decode image/png: image may be corrupted: unexpected EOF"), ImageCorrupt},
		{"invalid data url", errors.New("invalid data url"), ImageCorrupt},
		{"invalid argument", errors.New("Request contains an invalid argument."), InvalidArgument},
		{"status invalid argument", errors.New(`{"error":{"status":"INVALID_ARGUMENT"}}`), InvalidArgument},
		{"no image with text", errors.New(`model did not return an image but provided a text response: "I can't do that"`), NoImageWithText},
		{"no image", errors.New("model did not return an image"), NoImage},
		{"not found", errors.New("gemini API 404 Not Found: models/foo is not found"), NotFound},
		{"not found status", errors.New("404 NOT_FOUND"), NotFound},
		{"server", errors.New("gemini API 503 Service Unavailable"), Server},
		{"internal", errors.New("INTERNAL error encountered"), Server},
		{"unknown", errors.New("something odd"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err)
			assert.Equal(t, tt.want, got.Category)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestTranslateNil(t *testing.T) {
	got := Translate(nil)
	assert.Equal(t, Unknown, got.Category)
	assert.Equal(t, msgDefault, got.Message)
}

func TestRateLimitRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want int
	}{
		{
			name: "json retry info rounds up",
			msg:  `quota exceeded: {"error":{"code":429,"details":[{"@type":"type.googleapis.com/google.rpc.QuotaFailure"},{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12.5s"}]}}`,
			want: 13,
		},
		{
			name: "json inside code fence",
			msg:  "429 ```{\"error\":{\"details\":[{\"@type\":\"type.googleapis.com/google.rpc.RetryInfo\",\"retryDelay\":\"7s\"}]}}```",
			want: 7,
		},
		{
			name: "text fallback",
			msg:  "RESOURCE_EXHAUSTED. Please retry in 31.2s.",
			want: 32,
		},
		{
			name: "sub-second clamps to one",
			msg:  "429 Please retry in 0.2s",
			want: 1,
		},
		{
			name: "default",
			msg:  "429 Too Many Requests",
			want: DefaultRetryAfter,
		},
		{
			name: "broken json falls back to text",
			msg:  `429 {"error": nope} Please retry in 5s`,
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(errors.New(tt.msg))
			require.Equal(t, RateLimit, got.Category)
			assert.Equal(t, tt.want, got.RetryAfter)
			assert.GreaterOrEqual(t, got.RetryAfter, 1)
		})
	}
}

func TestRateLimitWinsOverSafety(t *testing.T) {
	got := Translate(errors.New("429: request blocked by safety filter"))
	assert.Equal(t, RateLimit, got.Category)
}

func TestAuthWinsOverRateLimit(t *testing.T) {
	got := Translate(errors.New("429 api key not valid"))
	assert.Equal(t, Auth, got.Category)
}

func TestSafetyCategoryIsSurfaced(t *testing.T) {
	got := Translate(errors.New("blocked: category: HARM_CATEGORY_HARASSMENT"))
	require.Equal(t, Safety, got.Category)
	assert.Contains(t, got.Message, "HARM_CATEGORY_HARASSMENT")
}

func TestNoImageExplanationIsSurfaced(t *testing.T) {
	got := Translate(errors.New(`model did not return an image but provided a text response: "ขออภัย ไม่สามารถแก้ไขภาพนี้ได้"`))
	require.Equal(t, NoImageWithText, got.Category)
	assert.Contains(t, got.Message, `"ขออภัย ไม่สามารถแก้ไขภาพนี้ได้"`)

	got = Translate(errors.New(`model did not return an image but provided a text response: ""`))
	assert.Contains(t, got.Message, msgNoExplanation)
}

func TestNetworkNeedsTransportError(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "https://example.test", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	got := Translate(fmt.Errorf("request: %w", dial))
	assert.Equal(t, Network, got.Category)

	got = Translate(errors.New("dial tcp: connection refused"))
	assert.Equal(t, Unknown, got.Category)
}

func TestUnknownIsLoggedNotShown(t *testing.T) {
	var buf bytes.Buffer
	tr := New(zerolog.New(&buf))

	got := tr.Translate(errors.New("weird upstream failure xyz"))
	assert.Equal(t, Unknown, got.Category)
	assert.NotContains(t, got.Message, "xyz")
	assert.Contains(t, buf.String(), "weird upstream failure xyz")
}

func TestScoped(t *testing.T) {
	msg := Scoped(ScopeEnhance, errors.New("503 unavailable"))
	assert.Equal(t, ScopeEnhance+": "+msgServer, msg)
}

type panicError struct{}

func (panicError) Error() string { panic("boom") }

func TestTranslateNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		got := Translate(panicError{})
		assert.Equal(t, Unknown, got.Category)
	})
}
