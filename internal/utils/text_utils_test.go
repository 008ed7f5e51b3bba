package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name    string
		text    string
		maxSize int
		want    string
	}{
		{"no limit", "hello world", 0, "hello world"},
		{"within limit", "hello", 10, "hello"},
		{"cut ascii", "hello world", 5, "hello"},
		{"cut inside rune", "café!", 4, "caf"},
		{"cut after rune", "café!", 5, "café"},
		{"cut inside four byte rune", "ab\U0001F600", 5, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tp.TruncateText(tt.text, tt.maxSize)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid", tp.SanitizeUTF8("valid"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "abc", tp.ProcessText("a\xffbcdef", 3))
}

func TestTruncateKeepsTextAfterEarlierInvalidByte(t *testing.T) {
	tp := NewTextProcessor(nil)

	// Only a partial rune at the cut is trimmed
	assert.Equal(t, "\xe9 hello ", tp.TruncateText("\xe9 hello world", 8))
	assert.Equal(t, " hello w", tp.ProcessText("\xe9 hello world", 8))
}

func TestNormalizeText(t *testing.T) {
	tp := NewTextProcessor(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case and whitespace", "  Verify   YOUR\n\tAccount ", "verify your account"},
		{"tags and entities", "<p>Click&nbsp;<b>HERE</b></p>", "click here"},
		{"compatibility forms", "Ｖｅｒｉｆｙ now", "verify now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.NormalizeText(tt.in))
		})
	}
}

func TestMarkupHelpers(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, 0, tp.MarkupLength("no markup here"))
	assert.Equal(t, len("<b>")+len("</b>"), tp.MarkupLength("<b>bold</b>"))
	assert.Equal(t, " bold ", tp.StripTags("<b>bold</b>"))

	assert.True(t, tp.LooksLikeHTML("<!DOCTYPE html><HTML><body>x</body></HTML>"))
	assert.True(t, tp.LooksLikeHTML("<body>fragment</body>"))
	assert.False(t, tp.LooksLikeHTML("a <b>bold</b> claim"))
}
