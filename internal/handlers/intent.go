package handlers

import (
	"strings"

	"photo-studio/internal/studio"
)

// wantsOutfitRole reports whether a photo caption marks the photo as an
// outfit reference rather than a new subject.
func wantsOutfitRole(caption string) bool {
	c := strings.ToLower(strings.TrimSpace(caption))
	if c == "" {
		return false
	}

	keywords := []string{
		"ชุด", "เสื้อ", "แต่งกาย", "เครื่องแบบ",
		"outfit", "clothes", "suit", "dress", "uniform",
	}

	for _, kw := range keywords {
		if strings.Contains(c, kw) {
			return true
		}
	}

	return false
}

// parseModeArg accepts both the mode id and its Thai button label.
func parseModeArg(arg string) (studio.Mode, bool) {
	if m, ok := studio.ParseMode(arg); ok {
		return m, true
	}
	a := strings.TrimSpace(arg)
	for _, m := range studio.Modes {
		if a == modeTitle(m) {
			return m, true
		}
	}
	return "", false
}
