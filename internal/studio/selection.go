package studio

import (
	"fmt"
	"slices"
	"strings"

	"photo-studio/internal/catalog"
)

// Selection is the sparse set of chosen styles. Single-valued categories hold
// a label (clothes_color holds the palette value); retouching and lighting
// keep insertion order and never repeat.
type Selection struct {
	Clothes      string   `json:"clothes,omitempty"`
	ClothesColor string   `json:"clothes_color,omitempty"`
	Background   string   `json:"background,omitempty"`
	HairColor    string   `json:"hair_color,omitempty"`
	Hairstyle    string   `json:"hairstyle,omitempty"`
	Pose         string   `json:"pose,omitempty"`
	Retouching   []string `json:"retouching"`
	Lighting     []string `json:"lighting"`
}

func (s Selection) Clone() Selection {
	out := s
	out.Retouching = slices.Clone(s.Retouching)
	out.Lighting = slices.Clone(s.Lighting)
	return out
}

func (s Selection) IsEmpty() bool {
	return s.Clothes == "" && s.ClothesColor == "" && s.Background == "" &&
		s.HairColor == "" && s.Hairstyle == "" && s.Pose == "" &&
		len(s.Retouching) == 0 && len(s.Lighting) == 0
}

// Value returns the single value of a category, or the joined list for the
// multi-valued ones.
func (s Selection) Value(category catalog.Category) string {
	switch category {
	case catalog.Clothes:
		return s.Clothes
	case catalog.ClothesColor:
		return s.ClothesColor
	case catalog.Background:
		return s.Background
	case catalog.HairColor:
		return s.HairColor
	case catalog.Hairstyle:
		return s.Hairstyle
	case catalog.Pose:
		return s.Pose
	case catalog.Retouching:
		return strings.Join(s.Retouching, ", ")
	case catalog.Lighting:
		return strings.Join(s.Lighting, ", ")
	}
	return ""
}

// Has reports whether label is currently chosen in category.
func (s Selection) Has(category catalog.Category, label string) bool {
	switch category {
	case catalog.Retouching:
		return slices.Contains(s.Retouching, label)
	case catalog.Lighting:
		return slices.Contains(s.Lighting, label)
	}
	v := s.Value(category)
	return v != "" && v == label
}

// Action is one selection change. The set of actions is closed; Reduce is the
// only place that interprets them.
type Action interface {
	action()
}

type (
	ClothesSelected      struct{ Label string }
	ClothesColorSelected struct{ Value string }
	BackgroundSelected   struct{ Label string }
	HairColorSelected    struct{ Label string }
	HairstyleSelected    struct{ Label string }
	PoseSelected         struct{ Label string }
	RetouchingToggled    struct{ Label string }
	LightingToggled      struct{ Label string }
	PresetLoaded         struct{ Styles Selection }
	SelectionCleared     struct{}
)

func (ClothesSelected) action()      {}
func (ClothesColorSelected) action() {}
func (BackgroundSelected) action()   {}
func (HairColorSelected) action()    {}
func (HairstyleSelected) action()    {}
func (PoseSelected) action()         {}
func (RetouchingToggled) action()    {}
func (LightingToggled) action()      {}
func (PresetLoaded) action()         {}
func (SelectionCleared) action()     {}

// Reduce applies a to sel and returns the new selection; sel is not modified.
func Reduce(sel Selection, a Action) (Selection, error) {
	next := sel.Clone()

	switch a := a.(type) {
	case ClothesSelected:
		// Any change of clothes, including clearing, drops the color.
		next.Clothes = toggle(next.Clothes, a.Label)
		next.ClothesColor = ""
	case ClothesColorSelected:
		if next.Clothes == "" {
			return sel, nil
		}
		next.ClothesColor = toggle(next.ClothesColor, a.Value)
	case BackgroundSelected:
		next.Background = toggle(next.Background, a.Label)
	case HairColorSelected:
		next.HairColor = toggle(next.HairColor, a.Label)
	case HairstyleSelected:
		next.Hairstyle = toggle(next.Hairstyle, a.Label)
	case PoseSelected:
		next.Pose = toggle(next.Pose, a.Label)
	case RetouchingToggled:
		next.Retouching = toggleList(next.Retouching, a.Label)
	case LightingToggled:
		next.Lighting = toggleList(next.Lighting, a.Label)
	case PresetLoaded:
		next = a.Styles.Clone()
		if next.Clothes == "" {
			next.ClothesColor = ""
		}
		next.Retouching = dedupe(next.Retouching)
		next.Lighting = dedupe(next.Lighting)
	case SelectionCleared:
		next = Selection{}
	default:
		return sel, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	return next, nil
}

// ActionFor maps a category and value coming from a front-end to an Action.
func ActionFor(category catalog.Category, value string) (Action, error) {
	value = strings.TrimSpace(value)
	switch category {
	case catalog.Clothes:
		return ClothesSelected{Label: value}, nil
	case catalog.ClothesColor:
		return ClothesColorSelected{Value: value}, nil
	case catalog.Background:
		return BackgroundSelected{Label: value}, nil
	case catalog.HairColor:
		return HairColorSelected{Label: value}, nil
	case catalog.Hairstyle:
		return HairstyleSelected{Label: value}, nil
	case catalog.Pose:
		return PoseSelected{Label: value}, nil
	case catalog.Retouching:
		return RetouchingToggled{Label: value}, nil
	case catalog.Lighting:
		return LightingToggled{Label: value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// needsGender reports whether a depends on a gender-partitioned category.
func needsGender(a Action) bool {
	switch a.(type) {
	case ClothesSelected, ClothesColorSelected, HairstyleSelected, RetouchingToggled:
		return true
	}
	return false
}

func toggle(current, value string) string {
	if value == "" || current == value {
		return ""
	}
	return value
}

func toggleList(list []string, value string) []string {
	if value == "" {
		return list
	}
	if i := slices.Index(list, value); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return append(list, value)
}

func dedupe(list []string) []string {
	var out []string
	for _, v := range list {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
