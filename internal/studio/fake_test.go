package studio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"photo-studio/internal/catalog"
	"photo-studio/internal/imaging"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	GenerateFunc func(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error)
	GenderFunc   func(ctx context.Context, img imaging.Image) (catalog.Gender, error)
	DescribeFunc func(ctx context.Context, img imaging.Image) (string, error)
	EnhanceFunc  func(ctx context.Context, text string) (string, error)
	ExplainFunc  func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGateway) GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error) {
	f.record("generate")
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, prompt, primary, secondary)
	}
	return imaging.Image{MIMEType: "image/png", Data: []byte("result")}, nil
}

func (f *fakeGateway) AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error) {
	f.record("gender")
	if f.GenderFunc != nil {
		return f.GenderFunc(ctx, img)
	}
	return catalog.Male, nil
}

func (f *fakeGateway) DescribeImage(ctx context.Context, img imaging.Image) (string, error) {
	f.record("describe")
	if f.DescribeFunc != nil {
		return f.DescribeFunc(ctx, img)
	}
	return "คำอธิบายภาพ", nil
}

func (f *fakeGateway) EnhancePrompt(ctx context.Context, text string) (string, error) {
	f.record("enhance")
	if f.EnhanceFunc != nil {
		return f.EnhanceFunc(ctx, text)
	}
	return text + " (ปรับปรุงแล้ว)", nil
}

func (f *fakeGateway) Explain(ctx context.Context, prompt string) (string, error) {
	f.record("explain")
	if f.ExplainFunc != nil {
		return f.ExplainFunc(ctx, prompt)
	}
	return "คำอธิบาย", nil
}

func testPNG(t *testing.T, w, h int) imaging.Image {
	t.Helper()
	pic := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pic.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, pic))
	return imaging.Image{MIMEType: "image/png", Data: buf.Bytes()}
}

func newTestSession(t *testing.T, gw *fakeGateway) *Session {
	t.Helper()
	s := NewSession(Options{Gateway: gw, TickInterval: -1})
	t.Cleanup(s.Close)
	return s
}
