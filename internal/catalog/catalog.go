package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var embedded []byte

type Category string

const (
	Clothes      Category = "clothes"
	ClothesColor Category = "clothes_color"
	Background   Category = "background"
	HairColor    Category = "hair_color"
	Hairstyle    Category = "hairstyle"
	Pose         Category = "pose"
	Retouching   Category = "retouching"
	Lighting     Category = "lighting"

	MemorialOutfit     Category = "memorial_outfit"
	MemorialBackground Category = "memorial_background"
)

type Gender string

const (
	Male   Gender = "ชาย"
	Female Gender = "หญิง"
)

func (g Gender) Valid() bool { return g == Male || g == Female }

// English returns the word used inside model prompts.
func (g Gender) English() string {
	switch g {
	case Male:
		return "male"
	case Female:
		return "female"
	}
	return ""
}

func ParseGender(value string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male", "man", "m", string(Male):
		return Male, true
	case "female", "woman", "f", string(Female):
		return Female, true
	}
	return "", false
}

type ColorOption struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
	Hex   string `yaml:"hex" json:"hex"`
}

type Style struct {
	Label    string   `yaml:"label" json:"label"`
	Prompt   string   `yaml:"prompt" json:"prompt"`
	Palette  string   `yaml:"palette,omitempty" json:"palette,omitempty"`
	Previews []string `yaml:"previews,omitempty" json:"previews,omitempty"`
}

func (s Style) HasColorPlaceholder() bool {
	return strings.Contains(s.Prompt, ColorPlaceholder)
}

const ColorPlaceholder = "{color}"

type CategoryInfo struct {
	ID       Category `json:"id"`
	Title    string   `json:"title"`
	Multi    bool     `json:"multi"`
	Gendered bool     `json:"gendered"`
}

type rawCategory struct {
	ID      Category `yaml:"id"`
	Title   string   `yaml:"title"`
	Multi   bool     `yaml:"multi"`
	Options []Style  `yaml:"options"`
	Male    []Style  `yaml:"male"`
	Female  []Style  `yaml:"female"`
}

type rawCatalog struct {
	Palettes   map[string][]ColorOption `yaml:"palettes"`
	Categories []rawCategory            `yaml:"categories"`
	Memorial   struct {
		Outfits     []Style `yaml:"outfits"`
		Backgrounds []Style `yaml:"backgrounds"`
	} `yaml:"memorial"`
}

type lookupKey struct {
	category Category
	gender   Gender
	label    string
}

// Catalog is read-only after Parse and safe for concurrent use.
type Catalog struct {
	categories []CategoryInfo
	flat       map[Category][]Style
	gendered   map[Category]map[Gender][]Style
	palettes   map[string][]ColorOption
	index      map[lookupKey]Style
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary. A broken embedded
// file is a build defect, so it panics.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func Parse(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(raw.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}

	c := &Catalog{
		flat:     make(map[Category][]Style),
		gendered: make(map[Category]map[Gender][]Style),
		palettes: raw.Palettes,
		index:    make(map[lookupKey]Style),
	}
	if c.palettes == nil {
		c.palettes = map[string][]ColorOption{}
	}

	for _, rc := range raw.Categories {
		info := CategoryInfo{ID: rc.ID, Title: rc.Title, Multi: rc.Multi}
		if len(rc.Male) > 0 || len(rc.Female) > 0 {
			info.Gendered = true
			c.gendered[rc.ID] = map[Gender][]Style{Male: rc.Male, Female: rc.Female}
			for _, s := range rc.Male {
				c.index[lookupKey{rc.ID, Male, s.Label}] = s
			}
			for _, s := range rc.Female {
				c.index[lookupKey{rc.ID, Female, s.Label}] = s
			}
		} else {
			c.flat[rc.ID] = rc.Options
			for _, s := range rc.Options {
				c.index[lookupKey{rc.ID, "", s.Label}] = s
			}
		}
		for _, list := range [][]Style{rc.Male, rc.Female, rc.Options} {
			for _, s := range list {
				if s.Palette == "" {
					continue
				}
				if _, ok := c.palettes[s.Palette]; !ok {
					return nil, fmt.Errorf("style %q in %s references unknown palette %q", s.Label, rc.ID, s.Palette)
				}
			}
		}
		c.categories = append(c.categories, info)
	}

	c.flat[MemorialOutfit] = raw.Memorial.Outfits
	c.flat[MemorialBackground] = raw.Memorial.Backgrounds
	for _, s := range raw.Memorial.Outfits {
		c.index[lookupKey{MemorialOutfit, "", s.Label}] = s
	}
	for _, s := range raw.Memorial.Backgrounds {
		c.index[lookupKey{MemorialBackground, "", s.Label}] = s
	}

	return c, nil
}

func (c *Catalog) Categories() []CategoryInfo {
	return append([]CategoryInfo(nil), c.categories...)
}

func (c *Catalog) Info(category Category) (CategoryInfo, bool) {
	for _, info := range c.categories {
		if info.ID == category {
			return info, true
		}
	}
	return CategoryInfo{}, false
}

func (c *Catalog) IsGendered(category Category) bool {
	_, ok := c.gendered[category]
	return ok
}

// Options lists the entries of a category in display order. Gendered
// categories need a resolved gender and return nil otherwise.
func (c *Catalog) Options(category Category, gender Gender) []Style {
	if byGender, ok := c.gendered[category]; ok {
		if !gender.Valid() {
			return nil
		}
		return append([]Style(nil), byGender[gender]...)
	}
	return append([]Style(nil), c.flat[category]...)
}

func (c *Catalog) Lookup(category Category, gender Gender, label string) (Style, bool) {
	if _, ok := c.gendered[category]; !ok {
		gender = ""
	}
	s, ok := c.index[lookupKey{category, gender, label}]
	return s, ok
}

// Resolve returns the prompt fragment for a label. Labels that are not in the
// catalog are passed through unchanged; that is how free-text entries and
// labels from older presets keep working.
func (c *Catalog) Resolve(category Category, gender Gender, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if s, ok := c.Lookup(category, gender, label); ok {
		return s.Prompt
	}
	return label
}

func (c *Catalog) Palette(s Style) []ColorOption {
	if s.Palette == "" {
		return nil
	}
	return append([]ColorOption(nil), c.palettes[s.Palette]...)
}

func (c *Catalog) MemorialOutfits() []Style {
	return c.Options(MemorialOutfit, "")
}

func (c *Catalog) MemorialBackgrounds() []Style {
	return c.Options(MemorialBackground, "")
}
