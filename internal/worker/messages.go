package worker

import (
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/google/uuid"
)

// ErrorPayload is the error part of a reply.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ImproveRequest asks for InputText to be rewritten. Empty Provider and Style
// keep the session's current selection.
type ImproveRequest struct {
	Header   events.EventHeader `json:"header"`
	Text     string             `json:"text"`
	Provider string             `json:"provider,omitempty"`
	Style    string             `json:"style,omitempty"`
}

// ImproveReply carries the rewritten text or an error.
type ImproveReply struct {
	Header events.EventHeader `json:"header"`
	Text   string             `json:"text,omitempty"`
	Error  *ErrorPayload      `json:"error,omitempty"`
}

// VoiceSettingsPayload overrides the session voice settings for a speak request.
type VoiceSettingsPayload struct {
	VoiceID         string  `json:"voice_id"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// SpeakRequest asks for the session text to be synthesized. Source is
// "input" or "output"; empty keeps the current source.
type SpeakRequest struct {
	Header events.EventHeader    `json:"header"`
	Source string                `json:"source,omitempty"`
	Voice  *VoiceSettingsPayload `json:"voice,omitempty"`
}

// SpeakReply names the object holding the audio. The requester downloads and
// deletes it.
type SpeakReply struct {
	Header      events.EventHeader `json:"header"`
	AudioKey    string             `json:"audio_key,omitempty"`
	ContentType string             `json:"content_type,omitempty"`
	Size        int64              `json:"size,omitempty"`
	Error       *ErrorPayload      `json:"error,omitempty"`
}

// VoicesRequest asks for the voice catalogue.
type VoicesRequest struct {
	Header events.EventHeader `json:"header"`
}

// VoicesReply carries the voice catalogue.
type VoicesReply struct {
	Header events.EventHeader `json:"header"`
	Voices []core.Voice       `json:"voices"`
	Error  *ErrorPayload      `json:"error,omitempty"`
}

// StateMessage is published after every session change.
type StateMessage struct {
	Header     events.EventHeader `json:"header"`
	InputText  string             `json:"input_text"`
	OutputText string             `json:"output_text"`
	Provider   string             `json:"provider"`
	Style      string             `json:"style"`
	Source     string             `json:"speak_source"`
	Busy       bool               `json:"busy"`
	Operation  string             `json:"operation"`
	Error      *ErrorPayload      `json:"error,omitempty"`
}

func newErrorPayload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}

	kind := core.KindOf(err)

	return &ErrorPayload{
		Kind:    kind.String(),
		Message: core.Message(kind),
		Detail:  err.Error(),
	}
}

// replyHeader keeps the workflow and tenant of the request and stamps a new
// event id.
func replyHeader(request events.EventHeader) events.EventHeader {
	header := request
	if header.WorkflowID == "" {
		header.WorkflowID = uuid.NewString()
	}

	header.EventID = uuid.NewString()
	header.Timestamp = time.Now()

	return header
}

func newStateMessage(workflowID string, state session.State) StateMessage {
	return StateMessage{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: workflowID,
			EventID:    uuid.NewString(),
		},
		InputText:  state.InputText,
		OutputText: state.OutputText,
		Provider:   state.Provider.String(),
		Style:      state.Style.ID(),
		Source:     state.SpeakSource.String(),
		Busy:       state.Busy,
		Operation:  state.Operation.String(),
		Error:      newErrorPayload(state.LastError),
	}
}
