package studio

import (
	"fmt"
	"strings"

	"photo-studio/internal/catalog"
)

// DefaultClothesColor fills the {color} placeholder when no color is chosen.
const DefaultClothesColor = "สีสุภาพ"

type PortraitParams struct {
	Gender         catalog.Gender
	Selection      Selection
	Details        string
	HasFaceImage   bool
	HasOutfitImage bool
	AspectRatio    AspectRatio
	HalfBody       bool
	Catalog        *catalog.Catalog
}

// BuildPortraitPrompt assembles the studio and headshot instruction.
func BuildPortraitPrompt(p PortraitParams) (string, error) {
	if !p.Gender.Valid() {
		return "", ErrGenderUnresolved
	}
	if !p.HasFaceImage {
		return "", ErrFaceImageMissing
	}
	cat := p.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	ratio := p.AspectRatio
	if ratio == "" {
		ratio = DefaultAspectRatio
	}
	sel := p.Selection

	lines := []string{
		fmt.Sprintf("Use the provided face photo as the only identity reference for this %s subject. Preserve the facial structure, skin tone and expression exactly.", p.Gender.English()),
	}
	if p.HalfBody {
		lines = append(lines, fmt.Sprintf("Framing: a half-body headshot, head and shoulders centered, aspect ratio %s.", ratio))
	} else {
		lines = append(lines, fmt.Sprintf("Framing: a standard studio portrait showing the upper body, aspect ratio %s.", ratio))
	}

	switch {
	case p.HasOutfitImage:
		lines = append(lines, "Outfit: dress the subject in the clothing from the uploaded outfit reference, matching its silhouette and fabric texture.")
	case sel.Clothes != "":
		clothes := cat.Resolve(catalog.Clothes, p.Gender, sel.Clothes)
		lines = append(lines, "Outfit: "+applyColor(clothes, sel.ClothesColor))
	}

	lines = appendResolved(lines, "Background", cat.Resolve(catalog.Background, p.Gender, sel.Background))
	lines = appendResolved(lines, "Hair color", cat.Resolve(catalog.HairColor, p.Gender, sel.HairColor))
	lines = appendResolved(lines, "Hairstyle", cat.Resolve(catalog.Hairstyle, p.Gender, sel.Hairstyle))
	lines = appendResolved(lines, "Pose", cat.Resolve(catalog.Pose, p.Gender, sel.Pose))
	lines = appendResolved(lines, "Retouching", resolveAll(cat, catalog.Retouching, p.Gender, sel.Retouching))
	lines = appendResolved(lines, "Lighting", resolveAll(cat, catalog.Lighting, p.Gender, sel.Lighting))
	lines = appendResolved(lines, "Additional instructions", strings.TrimSpace(p.Details))

	lines = append(lines,
		"Do not add real military insignia, rank badges, emblems, logos or any text to the image.",
		"Keep realistic skin texture and a respectful, professional presentation.",
	)
	return strings.Join(lines, "\n"), nil
}

// applyColor expands the {color} placeholder. Templates without one get the
// chosen color appended.
func applyColor(template, color string) string {
	color = strings.TrimSpace(color)
	if strings.Contains(template, catalog.ColorPlaceholder) {
		if color == "" {
			color = DefaultClothesColor
		}
		return strings.ReplaceAll(template, catalog.ColorPlaceholder, color)
	}
	if color != "" {
		return template + " (" + color + ")"
	}
	return template
}

func resolveAll(cat *catalog.Catalog, category catalog.Category, gender catalog.Gender, labels []string) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if v := cat.Resolve(category, gender, label); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "; ")
}

func appendResolved(lines []string, title, value string) []string {
	if value == "" {
		return lines
	}
	return append(lines, title+": "+value)
}

func BuildRestorePrompt() string {
	return strings.Join([]string{
		"You are an expert photo conservator restoring a damaged portrait.",
		"Repair cracks, scratches, stains, blur and faded colors.",
		"Preserve the person's identity, hairstyle and clothing exactly as they appear.",
		"Do not alter the facial expression.",
	}, "\n")
}

func BuildEnhancePrompt(nightMode bool) string {
	lines := []string{
		"Enhance this photo for clarity and detail.",
		"Sharpen fine details and remove noise while keeping the person looking natural.",
		"Rebalance the lighting and colors evenly.",
	}
	if nightMode {
		lines = append(lines, "This photo was taken at night: brighten the subject and reduce heavy shadows and night-time noise while preserving the night ambience.")
	}
	return strings.Join(lines, "\n")
}

type MemorialParams struct {
	Gender         catalog.Gender
	Outfit         string
	Background     string
	HasOutfitImage bool
	Catalog        *catalog.Catalog
}

// BuildMemorialPrompt builds the formal memorial portrait instruction. An
// uploaded outfit photo takes precedence over the outfit text.
func BuildMemorialPrompt(p MemorialParams) (string, error) {
	if !p.Gender.Valid() {
		return "", ErrGenderUnresolved
	}
	cat := p.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	lines := []string{
		fmt.Sprintf("Create a respectful, formal memorial portrait of this %s subject facing the camera.", p.Gender.English()),
		"Keep the identity from the reference face photo exactly.",
	}
	switch {
	case p.HasOutfitImage:
		lines = append(lines, "Outfit: use the uploaded outfit reference for the clothing, matching its fabric texture and silhouette.")
	case strings.TrimSpace(p.Outfit) != "":
		lines = append(lines, "Outfit: "+cat.Resolve(catalog.MemorialOutfit, "", p.Outfit))
	}
	lines = appendResolved(lines, "Background", cat.Resolve(catalog.MemorialBackground, "", p.Background))
	lines = append(lines, "Use soft, even and respectful lighting, like formal memorial studio photography.")
	return strings.Join(lines, "\n"), nil
}

func BuildEditorPrompt(instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", ErrEmptyInstruction
	}
	return strings.Join([]string{
		"Apply the following edit to the provided reference image, keeping the subject's identity unchanged.",
		instruction,
		"Keep proportions realistic and everything not mentioned exactly as it is.",
	}, "\n"), nil
}
