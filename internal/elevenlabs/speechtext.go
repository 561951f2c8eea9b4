package elevenlabs

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Patterns removed or collapsed before synthesis.
const (
	referenceRegexPattern  = `\[\d+(?:[,-]\s*\d+)*\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+`
	whitespaceRegexPattern = `\s+`
)

var (
	referencePattern  = regexp.MustCompile(referenceRegexPattern)
	whitespacePattern = regexp.MustCompile(whitespaceRegexPattern)

	typographyReplacer = strings.NewReplacer(
		"—", " - ",
		"–", "-",
		"‒", "-",
		"…", "...",
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Option configures a Client.
type Option func(*Client)

// WithTextNormalization makes Synthesize clean the text before sending it:
// footnote markers are dropped, whitespace and typographic punctuation are
// flattened and a missing final full stop is added.
func WithTextNormalization(enabled bool) Option {
	return func(c *Client) {
		c.normalize = enabled
	}
}

// NormalizeSpeechText returns text in the form sent when normalization is on.
func NormalizeSpeechText(text string) string {
	text = referencePattern.ReplaceAllString(text, "")
	text = typographyReplacer.Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = collapseRepeatedPunctuation(strings.TrimSpace(text))

	return terminateSentence(text)
}

// collapseRepeatedPunctuation keeps one mark of any run of the same mark,
// except for dots so that an ellipsis survives.
func collapseRepeatedPunctuation(text string) string {
	var (
		builder strings.Builder
		last    rune
	)

	builder.Grow(len(text))

	for _, char := range text {
		if char == last && char != '.' && unicode.IsPunct(char) {
			continue
		}

		builder.WriteRune(char)

		last = char
	}

	return builder.String()
}

func terminateSentence(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '"', '\'', ')':
		return text
	default:
		return text + "."
	}
}
