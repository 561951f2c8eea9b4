package core

import (
	"errors"
	"fmt"
	"strings"
)

// WritingStyle selects the instruction prefix sent ahead of the user's text.
type WritingStyle int

// Writing styles offered to the user.
const (
	StyleProfessional WritingStyle = iota
	StyleAcademic
	StyleCasual
	StyleCreative
	StyleTechnical
	StylePersuasive
	StyleConcise
	StyleStorytelling
)

// ErrUnknownStyle is returned by ParseStyle for unrecognised names.
var ErrUnknownStyle = errors.New("unknown writing style")

type styleInfo struct {
	id      string
	display string
	prompt  string
}

var styles = [...]styleInfo{
	StyleProfessional: {
		id:      "professional",
		display: "Professional",
		prompt: "Please improve the following text to be more professional, polished, " +
			"and business-appropriate while maintaining its core message: ",
	},
	StyleAcademic: {
		id:      "academic",
		display: "Academic",
		prompt: "Please improve the following text to meet academic writing standards with " +
			"proper scholarly tone, clarity, and analytical depth while maintaining its core argument: ",
	},
	StyleCasual: {
		id:      "casual",
		display: "Casual & Friendly",
		prompt: "Please improve the following text to be more conversational, friendly, " +
			"and engaging while keeping its main message: ",
	},
	StyleCreative: {
		id:      "creative",
		display: "Creative & Playful",
		prompt: "Please improve the following text to be more creative, vibrant, " +
			"and playful while preserving its essential meaning: ",
	},
	StyleTechnical: {
		id:      "technical",
		display: "Technical",
		prompt: "Please improve the following text to be more technically precise, detailed, " +
			"and well-structured while maintaining its core information: ",
	},
	StylePersuasive: {
		id:      "persuasive",
		display: "Persuasive",
		prompt: "Please improve the following text to be more persuasive and compelling " +
			"while keeping its main argument: ",
	},
	StyleConcise: {
		id:      "concise",
		display: "Concise & Clear",
		prompt: "Please improve the following text to be more concise and clear " +
			"while preserving its key points: ",
	},
	StyleStorytelling: {
		id:      "storytelling",
		display: "Storytelling",
		prompt: "Please improve the following text to be more narrative and engaging, " +
			"using storytelling techniques while maintaining its core message: ",
	},
}

// AllStyles returns every style in display order.
func AllStyles() []WritingStyle {
	all := make([]WritingStyle, len(styles))
	for i := range styles {
		all[i] = WritingStyle(i)
	}

	return all
}

func (s WritingStyle) valid() bool {
	return s >= 0 && int(s) < len(styles)
}

// String returns the display name, e.g. "Casual & Friendly".
func (s WritingStyle) String() string {
	if !s.valid() {
		return fmt.Sprintf("WritingStyle(%d)", int(s))
	}

	return styles[s].display
}

// ID returns the lower-case identifier used in configuration and on the wire.
func (s WritingStyle) ID() string {
	if !s.valid() {
		return ""
	}

	return styles[s].id
}

// Prompt returns the fixed instruction prefix for s.
func (s WritingStyle) Prompt() string {
	if !s.valid() {
		return styles[StyleProfessional].prompt
	}

	return styles[s].prompt
}

// BuildPrompt prepends the style's instruction to text. Empty text is allowed.
func (s WritingStyle) BuildPrompt(text string) string {
	return s.Prompt() + text
}

// ParseStyle accepts either the identifier or the display name, case-insensitively.
func ParseStyle(name string) (WritingStyle, error) {
	name = strings.TrimSpace(name)

	for i, info := range styles {
		if strings.EqualFold(name, info.id) || strings.EqualFold(name, info.display) {
			return WritingStyle(i), nil
		}
	}

	return StyleProfessional, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
}
