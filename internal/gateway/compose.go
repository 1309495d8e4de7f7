package gateway

import (
	"context"

	"photo-studio/internal/catalog"
	"photo-studio/internal/imaging"
)

// Composite routes image work and prompt text work to separate backends.
type Composite struct {
	images ImageGenerator
	text   TextModel
}

func Compose(images ImageGenerator, text TextModel) *Composite {
	return &Composite{images: images, text: text}
}

func (c *Composite) GenerateEditedImage(ctx context.Context, prompt string, primary imaging.Image, secondary *imaging.Image) (imaging.Image, error) {
	return c.images.GenerateEditedImage(ctx, prompt, primary, secondary)
}

func (c *Composite) AnalyzeGender(ctx context.Context, img imaging.Image) (catalog.Gender, error) {
	return c.images.AnalyzeGender(ctx, img)
}

func (c *Composite) DescribeImage(ctx context.Context, img imaging.Image) (string, error) {
	return c.images.DescribeImage(ctx, img)
}

func (c *Composite) EnhancePrompt(ctx context.Context, text string) (string, error) {
	return c.text.EnhancePrompt(ctx, text)
}

func (c *Composite) Explain(ctx context.Context, prompt string) (string, error) {
	return c.text.Explain(ctx, prompt)
}
