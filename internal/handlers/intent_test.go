package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"photo-studio/internal/studio"
)

func TestWantsOutfitRole(t *testing.T) {
	tests := []struct {
		caption string
		want    bool
	}{
		{caption: "", want: false},
		{caption: "ใช้ชุดนี้", want: true},
		{caption: "Outfit reference", want: true},
		{caption: "เสื้อตัวนี้", want: true},
		{caption: "รูปของฉัน", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, wantsOutfitRole(tt.caption), tt.caption)
	}
}

func TestParseModeArg(t *testing.T) {
	m, ok := parseModeArg("headshot")
	assert.True(t, ok)
	assert.Equal(t, studio.ModeHeadshot, m)

	m, ok = parseModeArg(modeTitle(studio.ModeRepair))
	assert.True(t, ok)
	assert.Equal(t, studio.ModeRepair, m)

	_, ok = parseModeArg("video")
	assert.False(t, ok)
}
