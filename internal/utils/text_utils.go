package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	// If no limit or text is already within limits, return as is
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Drop a partial rune left at the cut; earlier invalid bytes are kept
	for i := len(truncated) - 1; i >= 0 && i >= len(truncated)-utf8.UTFMax; i-- {
		if utf8.RuneStart(truncated[i]) {
			if !utf8.FullRuneInString(truncated[i:]) {
				truncated = truncated[:i]
			}
			break
		}
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// ProcessText sanitizes then truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(tp.SanitizeUTF8(text), maxSize)
}

// StripTags replaces markup tags with spaces and unescapes HTML entities
func (tp *TextProcessor) StripTags(text string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(text, " "))
}

// NormalizeText prepares text for case-insensitive phrase matching:
// tags stripped, compatibility forms folded (NFKC), whitespace collapsed, lower-cased
func (tp *TextProcessor) NormalizeText(text string) string {
	cleaned := norm.NFKC.String(tp.StripTags(text))
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.ToLower(strings.TrimSpace(cleaned))
}

// MarkupLength returns the number of bytes of text that sit inside <...> tags
func (tp *TextProcessor) MarkupLength(text string) int {
	total := 0
	for _, loc := range tagPattern.FindAllStringIndex(text, -1) {
		total += loc[1] - loc[0]
	}
	return total
}

// LooksLikeHTML reports whether text appears to be an HTML document
func (tp *TextProcessor) LooksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body")
}
