package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/catalog"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/imaging"
)

func TestParseGender(t *testing.T) {
	tests := []struct {
		in      string
		want    catalog.Gender
		wantErr bool
	}{
		{in: `{"gender":"female"}`, want: catalog.Female},
		{in: "```json\n{\"gender\": \"male\"}\n```", want: catalog.Male},
		{in: "หญิง", want: catalog.Female},
		{in: "บุคคลในภาพเป็นผู้ชาย", want: catalog.Male},
		{in: "Male", want: catalog.Male},
		{in: `{"gender":"unknown"}`, wantErr: true},
		{in: "", wantErr: true},
		{in: "cannot tell", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseGender(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedGender, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAPIErrorIsTranslatable(t *testing.T) {
	body := []byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12.5s"}]}}`)
	apiErr := ParseAPIError("gemini", 429, body)

	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
	got := friendlyerr.Translate(apiErr)
	assert.Equal(t, friendlyerr.RateLimit, got.Category)
	assert.Equal(t, 13, got.RetryAfter)
}

func TestParseAPIErrorPlainBody(t *testing.T) {
	apiErr := ParseAPIError("openai", 502, []byte("bad gateway\n"))
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.Equal(t, 502, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "openai API 502")
}

func TestNoImageError(t *testing.T) {
	err := error(&NoImageError{Text: "ขอโทษ"})
	assert.ErrorIs(t, err, ErrNoImage)

	got := friendlyerr.Translate(err)
	assert.Equal(t, friendlyerr.NoImageWithText, got.Category)
	assert.Contains(t, got.Message, "ขอโทษ")

	assert.Equal(t, friendlyerr.NoImage, friendlyerr.Translate(ErrNoImage).Category)
	assert.Equal(t, friendlyerr.AnalysisMalformed, friendlyerr.Translate(ErrMalformedGender).Category)
}

func TestNoImageErrorKeepsRawText(t *testing.T) {
	text := "I can't do \"that\".\nTry another photo"
	got := friendlyerr.Translate(&NoImageError{Text: text})

	assert.Equal(t, friendlyerr.NoImageWithText, got.Category)
	assert.Contains(t, got.Message, text)
	assert.NotContains(t, got.Message, `\n`)
}

type fakeImages struct{ calls []string }

func (f *fakeImages) GenerateEditedImage(context.Context, string, imaging.Image, *imaging.Image) (imaging.Image, error) {
	f.calls = append(f.calls, "generate")
	return imaging.Image{MIMEType: "image/png", Data: []byte{1}}, nil
}

func (f *fakeImages) AnalyzeGender(context.Context, imaging.Image) (catalog.Gender, error) {
	f.calls = append(f.calls, "gender")
	return catalog.Male, nil
}

func (f *fakeImages) DescribeImage(context.Context, imaging.Image) (string, error) {
	f.calls = append(f.calls, "describe")
	return "desc", nil
}

type fakeText struct{ calls []string }

func (f *fakeText) EnhancePrompt(_ context.Context, text string) (string, error) {
	f.calls = append(f.calls, "enhance")
	return text + "!", nil
}

func (f *fakeText) Explain(context.Context, string) (string, error) {
	f.calls = append(f.calls, "explain")
	return "", errors.New("nope")
}

func TestComposeRoutes(t *testing.T) {
	img := &fakeImages{}
	txt := &fakeText{}
	var gw Gateway = Compose(img, txt)

	ctx := context.Background()
	_, _ = gw.GenerateEditedImage(ctx, "p", imaging.Image{}, nil)
	_, _ = gw.AnalyzeGender(ctx, imaging.Image{})
	_, _ = gw.DescribeImage(ctx, imaging.Image{})
	out, err := gw.EnhancePrompt(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x!", out)

	_, err = gw.(Explainer).Explain(ctx, "p")
	assert.Error(t, err)

	assert.Equal(t, []string{"generate", "gender", "describe"}, img.calls)
	assert.Equal(t, []string{"enhance", "explain"}, txt.calls)
}
