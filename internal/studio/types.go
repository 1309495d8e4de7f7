// Package studio holds the photo-studio state machine: operating modes, the
// style selection, prompt assembly and the generation workflow.
package studio

import (
	"errors"
	"strings"

	"photo-studio/internal/catalog"
	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/imaging"
)

type Mode string

const (
	ModeStudio   Mode = "studio"
	ModeHeadshot Mode = "headshot"
	ModeRepair   Mode = "repair"
	ModeEditor   Mode = "editor"
)

var Modes = []Mode{ModeStudio, ModeHeadshot, ModeRepair, ModeEditor}

func ParseMode(value string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// portraitLike modes build from the style selection.
func (m Mode) portraitLike() bool { return m == ModeStudio || m == ModeHeadshot }

func (m Mode) infersGender() bool { return m.portraitLike() || m == ModeRepair }

type RepairSubMode string

const (
	RepairSelection RepairSubMode = "selection"
	RepairRestore   RepairSubMode = "restore"
	RepairMemorial  RepairSubMode = "memorial"
	RepairEnhance   RepairSubMode = "enhance"
)

func ParseRepairSubMode(value string) (RepairSubMode, bool) {
	switch sm := RepairSubMode(strings.ToLower(strings.TrimSpace(value))); sm {
	case RepairSelection, RepairRestore, RepairMemorial, RepairEnhance:
		return sm, true
	}
	return "", false
}

type AspectRatio string

const (
	Ratio3x4  AspectRatio = "3:4"
	Ratio2x3  AspectRatio = "2:3"
	Ratio9x16 AspectRatio = "9:16"
	Ratio1x1  AspectRatio = "1:1"

	DefaultAspectRatio = Ratio3x4
)

var AspectRatios = []AspectRatio{Ratio3x4, Ratio2x3, Ratio9x16, Ratio1x1}

func ParseAspectRatio(value string) (AspectRatio, bool) {
	r := AspectRatio(strings.TrimSpace(value))
	for _, known := range AspectRatios {
		if r == known {
			return r, true
		}
	}
	return "", false
}

var (
	ErrValidation       = errors.New("studio: validation failed")
	ErrBusy             = errors.New("studio: action already in progress")
	ErrRateLimited      = errors.New("studio: generation is rate limited")
	ErrStale            = errors.New("studio: result discarded after state change")
	ErrClosed           = errors.New("studio: session closed")
	ErrUnknownMode      = errors.New("studio: unknown mode")
	ErrUnknownSubMode   = errors.New("studio: unknown repair sub-mode")
	ErrUnknownRatio     = errors.New("studio: unknown aspect ratio")
	ErrWrongMode        = errors.New("studio: action not available in this mode")
	ErrGenderRequired   = errors.New("studio: gender must be resolved first")
	ErrUnknownAction    = errors.New("studio: unknown selection action")
	ErrUnknownCategory  = errors.New("studio: unknown style category")
	ErrGenderUnresolved = errors.New("prompt: gender is not resolved")
	ErrFaceImageMissing = errors.New("prompt: face reference image is missing")
	ErrEmptyInstruction = errors.New("prompt: edit instruction is empty")
)

// ValidationError carries the Thai message shown when a precondition fails.
// GenderSlot routes it to the gender-analysis message instead of the main
// error slot.
type ValidationError struct {
	Message    string
	GenderSlot bool
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// State is a point-in-time copy of a session. Images are shared read-only.
type State struct {
	Mode          Mode          `json:"mode"`
	RepairSubMode RepairSubMode `json:"repair_sub_mode"`

	Primary imaging.Image `json:"-"`
	Outfit  imaging.Image `json:"-"`
	Result  imaging.Image `json:"-"`

	Gender          catalog.Gender `json:"gender,omitempty"`
	GenderError     string         `json:"gender_error,omitempty"`
	AnalyzingGender bool           `json:"analyzing_gender"`

	Selection   Selection   `json:"selection"`
	Details     string      `json:"details"`
	AspectRatio AspectRatio `json:"aspect_ratio"`

	MemorialOutfit     string `json:"memorial_outfit,omitempty"`
	MemorialBackground string `json:"memorial_background,omitempty"`
	NightMode          bool   `json:"night_mode"`
	EditorPrompt       string `json:"editor_prompt"`

	Prompt        string               `json:"prompt,omitempty"`
	Error         string               `json:"error,omitempty"`
	ErrorCategory friendlyerr.Category `json:"error_category,omitempty"`
	RetryAfter    int                  `json:"retry_after"`
	Explanation   string               `json:"explanation,omitempty"`

	Generating bool `json:"generating"`
	Analyzing  bool `json:"analyzing"`
	Enhancing  bool `json:"enhancing"`
	Explaining bool `json:"explaining"`
}

func (s State) HasPrimary() bool { return !s.Primary.IsZero() }
func (s State) HasOutfit() bool  { return !s.Outfit.IsZero() }
func (s State) HasResult() bool  { return !s.Result.IsZero() }

// CanGenerate reports whether the Generate action is currently enabled.
func (s State) CanGenerate() bool {
	return !s.Generating && s.RetryAfter == 0
}

func initialState() State {
	return State{
		Mode:          ModeStudio,
		RepairSubMode: RepairSelection,
		AspectRatio:   DefaultAspectRatio,
	}
}

func (s State) clone() State {
	out := s
	out.Selection = s.Selection.Clone()
	return out
}
