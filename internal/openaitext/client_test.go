package openaitext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/gateway"
	"photo-studio/internal/imaging"
)

func newServer(t *testing.T, status int, body string, seen *[]map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if seen != nil {
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			*seen = append(*seen, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Options{APIKey: "key", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
}

const okBody = `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  ปรับแสงให้นุ่มนวล  "},"finish_reason":"stop"}]}`

func TestEnhancePrompt(t *testing.T) {
	var seen []map[string]any
	c := newServer(t, http.StatusOK, okBody, &seen)

	out, err := c.EnhancePrompt(context.Background(), "แสง")
	require.NoError(t, err)
	assert.Equal(t, "ปรับแสงให้นุ่มนวล", out)

	require.Len(t, seen, 1)
	assert.Equal(t, DefaultModel, seen[0]["model"])
	msgs := seen[0]["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, content, "แสง")
}

func TestDescribeImageSendsDataURL(t *testing.T) {
	var seen []map[string]any
	c := newServer(t, http.StatusOK, okBody, &seen)

	_, err := c.DescribeImage(context.Background(), imaging.Image{MIMEType: "image/png", Data: []byte{1, 2}})
	require.NoError(t, err)

	msgs := seen[0]["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,AQI=", img["url"])
}

func TestEmptyAnswer(t *testing.T) {
	c := newServer(t, http.StatusOK, `{"choices":[]}`, nil)
	_, err := c.Explain(context.Background(), "p")
	assert.ErrorIs(t, err, gateway.ErrEmptyText)
}

func TestRateLimitIsTranslated(t *testing.T) {
	c := newServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached. Please retry in 20s.","type":"requests","code":"rate_limit_exceeded"}}`, nil)

	_, err := c.EnhancePrompt(context.Background(), "x")
	require.Error(t, err)

	got := friendlyerr.Translate(err)
	assert.Equal(t, friendlyerr.RateLimit, got.Category)
	assert.Equal(t, 20, got.RetryAfter)
}

func TestAuthIsTranslated(t *testing.T) {
	c := newServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, nil)

	_, err := c.Explain(context.Background(), "x")
	assert.Equal(t, friendlyerr.Auth, friendlyerr.Translate(err).Category)
}

func TestCanonicalStatus(t *testing.T) {
	assert.Equal(t, "INVALID_ARGUMENT", canonicalStatus(400))
	assert.Equal(t, "UNAVAILABLE", canonicalStatus(503))
	assert.Equal(t, "INTERNAL", canonicalStatus(502))
	assert.Equal(t, "", canonicalStatus(418))
}
