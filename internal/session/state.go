package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/text-improver/internal/core"
)

// ErrInvalidSpeakSource is returned for a speak source other than "input" or
// "output".
var ErrInvalidSpeakSource = errors.New("speak source must be \"input\" or \"output\"")

// Operation names the network action a busy session is running.
type Operation int

// Operations.
const (
	OperationNone Operation = iota
	OperationImprove
	OperationSpeak
)

func (o Operation) String() string {
	switch o {
	case OperationImprove:
		return "improve"
	case OperationSpeak:
		return "speak"
	default:
		return "none"
	}
}

// SpeakSource selects which text Speak reads aloud.
type SpeakSource int

// Speak sources. SpeakOutput is the default.
const (
	SpeakOutput SpeakSource = iota
	SpeakInput
)

func (s SpeakSource) String() string {
	if s == SpeakInput {
		return "input"
	}

	return "output"
}

// ParseSpeakSource maps "input" or "output", in any case, to a SpeakSource.
func ParseSpeakSource(name string) (SpeakSource, error) {
	trimmed := strings.TrimSpace(name)

	switch {
	case strings.EqualFold(trimmed, SpeakInput.String()):
		return SpeakInput, nil
	case strings.EqualFold(trimmed, SpeakOutput.String()):
		return SpeakOutput, nil
	default:
		return SpeakOutput, fmt.Errorf("%w: got %q", ErrInvalidSpeakSource, name)
	}
}

// State is a snapshot of a session. Busy is true exactly while one Improve or
// Speak call is in flight, and Operation says which.
type State struct {
	InputText     string
	OutputText    string
	Provider      core.Provider
	Style         core.WritingStyle
	VoiceSettings core.VoiceSettings
	SpeakSource   SpeakSource
	Busy          bool
	Operation     Operation
	LastError     error
}

// LastErrorKind returns the kind of LastError, or KindUnknown when there is none.
func (s State) LastErrorKind() core.ErrorKind {
	return core.KindOf(s.LastError)
}

// ErrorMessage returns the user-facing text for LastError, or "".
func (s State) ErrorMessage() string {
	if s.LastError == nil {
		return ""
	}

	return core.Message(s.LastErrorKind())
}

// Observer receives a snapshot after every state change.
type Observer interface {
	SessionChanged(state State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state State)

// SessionChanged calls f.
func (f ObserverFunc) SessionChanged(state State) {
	f(state)
}
