package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytesKeepsRunes(t *testing.T) {
	text := strings.Repeat("สตูดิโอ", 500)
	parts := splitByBytes(text, 100)

	assert.Greater(t, len(parts), 1)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 100)
		assert.True(t, utf8.ValidString(p))
	}

	assert.Equal(t, []string{"short"}, splitByBytes("short", 100))
}

func TestTruncateByBytes(t *testing.T) {
	got := truncateByBytes("กขคงจ", 7)
	assert.Equal(t, "กข", got)
	assert.Equal(t, "abc", truncateByBytes("abc", 10))
}

func TestKeyboardHelpers(t *testing.T) {
	kb := NewKeyboard(NewRow(NewButton("A", "a"), NewButton("B", "b")))
	assert.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "b", *kb.InlineKeyboard[0][1].CallbackData)
}
