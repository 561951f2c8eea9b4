// Package session owns the state of one user's improve/speak workflow.
//
// A Session serializes every mutation behind a mutex and runs at most one
// network action at a time: Improve and Speak acquire the busy flag before
// calling out and always release it on return. An overlapping call is
// rejected with core.ErrOperationInProgress rather than queued.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/core"
)

// DefaultRequestTimeout bounds each network call when Options leaves it unset.
const DefaultRequestTimeout = 30 * time.Second

// KeyValidator is implemented by voice clients that can check a key directly.
type KeyValidator interface {
	ValidateKey(ctx context.Context, key string) error
}

// Options configures a new Session.
type Options struct {
	Providers      map[core.Provider]core.ProviderClient
	Voice          core.VoiceClient
	Credentials    core.Credentials
	Provider       core.Provider
	Style          core.WritingStyle
	VoiceSettings  core.VoiceSettings
	SpeakSource    SpeakSource
	RequestTimeout time.Duration
	Observers      []Observer
	Logger         *logger.Logger
}

// Session is the single owner of a State.
type Session struct {
	mu        sync.Mutex
	state     State
	creds     core.Credentials
	providers map[core.Provider]core.ProviderClient
	voice     core.VoiceClient
	timeout   time.Duration
	observers []Observer
	log       *logger.Logger
}

// New creates an idle session with empty texts. Zero voice settings select
// core.DefaultVoiceSettings.
func New(opts Options) *Session {
	settings := opts.VoiceSettings
	if settings == (core.VoiceSettings{}) {
		settings = core.DefaultVoiceSettings()
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	providers := make(map[core.Provider]core.ProviderClient, len(opts.Providers))
	for name, client := range opts.Providers {
		providers[name] = client
	}

	return &Session{
		state: State{
			Provider:      opts.Provider,
			Style:         opts.Style,
			VoiceSettings: settings,
			SpeakSource:   opts.SpeakSource,
		},
		creds:     opts.Credentials,
		providers: providers,
		voice:     opts.Voice,
		timeout:   timeout,
		observers: append([]Observer(nil), opts.Observers...),
		log:       opts.Logger,
	}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Subscribe adds an observer for subsequent changes.
func (s *Session) Subscribe(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, observer)
}

// SetInputText replaces the text to improve, e.g. with the latest transcript.
func (s *Session) SetInputText(text string) {
	s.update(func(state *State) { state.InputText = text })
}

// SetProvider selects the provider used by the next Improve.
func (s *Session) SetProvider(provider core.Provider) {
	s.update(func(state *State) { state.Provider = provider })
}

// SetStyle selects the writing style used by the next Improve.
func (s *Session) SetStyle(style core.WritingStyle) {
	s.update(func(state *State) { state.Style = style })
}

// SetSpeakSource selects whether Speak reads the input or the output text.
func (s *Session) SetSpeakSource(source SpeakSource) {
	s.update(func(state *State) { state.SpeakSource = source })
}

// SetVoiceSettings validates and stores the voice parameters.
func (s *Session) SetVoiceSettings(settings core.VoiceSettings) error {
	err := settings.Validate()
	if err != nil {
		return fmt.Errorf("invalid voice settings: %w", err)
	}

	s.update(func(state *State) { state.VoiceSettings = settings })

	return nil
}

// SetCredentials replaces every API key. Calls already in flight keep the
// credentials they started with.
func (s *Session) SetCredentials(creds core.Credentials) {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
}

// Credentials returns the current keys.
func (s *Session) Credentials() core.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds
}

// ImproveParams are the selections ImproveWith applies once the session is
// free. Nil fields keep the current provider or style.
type ImproveParams struct {
	InputText string
	Provider  *core.Provider
	Style     *core.WritingStyle
}

// SpeakParams are the selections SpeakWith applies once the session is free.
// Nil fields keep the current value.
type SpeakParams struct {
	Source        *SpeakSource
	VoiceSettings *core.VoiceSettings
}

// Improve rewrites InputText with the selected provider and style and stores
// the result in OutputText. Failures are recorded in LastError and returned.
func (s *Session) Improve(ctx context.Context) error {
	_, err := s.improve(ctx, nil)

	return err
}

// ImproveWith applies params and runs Improve as one step, returning the
// improved text. A busy session rejects the call before params touch the state.
func (s *Session) ImproveWith(ctx context.Context, params ImproveParams) (string, error) {
	return s.improve(ctx, func(state *State) {
		state.InputText = params.InputText

		if params.Provider != nil {
			state.Provider = *params.Provider
		}

		if params.Style != nil {
			state.Style = *params.Style
		}
	})
}

func (s *Session) improve(ctx context.Context, apply func(state *State)) (string, error) {
	s.mu.Lock()

	if s.state.Busy {
		s.mu.Unlock()

		return "", core.ErrOperationInProgress
	}

	if apply != nil {
		apply(&s.state)
	}

	input := s.state.InputText
	style := s.state.Style
	selected := s.state.Provider
	creds := s.creds
	client := s.providers[selected]

	if input == "" {
		return "", s.rejectLocked(core.ErrEmptyInput)
	}

	if client == nil || !creds.ForProvider(selected).IsConfigured() {
		return "", s.rejectLocked(core.ErrNotConfigured)
	}

	s.beginLocked(OperationImprove)

	var (
		result    string
		callErr   error
		completed bool
	)

	defer func() {
		s.end(func(state *State) {
			if !completed {
				return
			}

			if callErr != nil {
				state.LastError = callErr

				return
			}

			state.OutputText = result
		})
	}()

	s.log.Info("Improving %d characters with %s in %s style", len(input), selected, style)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, callErr = client.Improve(callCtx, input, style, creds)
	completed = true

	if callErr != nil {
		callErr = classify(callErr)
		s.log.Error("Improve with %s failed: %v", selected, callErr)

		return "", callErr
	}

	s.log.Info("Improve with %s returned %d characters", selected, len(result))

	return result, nil
}

// Speak synthesizes the text chosen by SpeakSource with the current voice
// settings. The returned resource belongs to the caller.
func (s *Session) Speak(ctx context.Context) (*core.AudioResource, error) {
	return s.speak(ctx, nil)
}

// SpeakWith validates and applies params and runs Speak as one step. A busy
// session rejects the call before params touch the state.
func (s *Session) SpeakWith(ctx context.Context, params SpeakParams) (*core.AudioResource, error) {
	if params.VoiceSettings != nil {
		err := params.VoiceSettings.Validate()
		if err != nil {
			return nil, fmt.Errorf("invalid voice settings: %w", err)
		}
	}

	return s.speak(ctx, func(state *State) {
		if params.Source != nil {
			state.SpeakSource = *params.Source
		}

		if params.VoiceSettings != nil {
			state.VoiceSettings = *params.VoiceSettings
		}
	})
}

func (s *Session) speak(ctx context.Context, apply func(state *State)) (*core.AudioResource, error) {
	s.mu.Lock()

	if s.state.Busy {
		s.mu.Unlock()

		return nil, core.ErrOperationInProgress
	}

	if apply != nil {
		apply(&s.state)
	}

	text := s.state.OutputText
	if s.state.SpeakSource == SpeakInput {
		text = s.state.InputText
	}

	settings := s.state.VoiceSettings
	creds := s.creds

	if text == "" {
		return nil, s.rejectLocked(core.ErrEmptyInput)
	}

	if s.voice == nil || !creds.ElevenLabs.IsConfigured() {
		return nil, s.rejectLocked(core.ErrNotConfigured)
	}

	voice := s.voice

	s.beginLocked(OperationSpeak)

	var (
		callErr   error
		completed bool
	)

	defer func() {
		s.end(func(state *State) {
			if completed && callErr != nil {
				state.LastError = callErr
			}
		})
	}()

	s.log.Info("Synthesizing %d characters with voice %s", len(text), settings.VoiceID)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, callErr := voice.Synthesize(callCtx, text, settings, creds)
	completed = true

	if callErr != nil {
		callErr = classify(callErr)
		s.log.Error("Speech synthesis failed: %v", callErr)

		return nil, callErr
	}

	s.log.Info("Synthesized audio %s (%d bytes)", audio.Key, audio.Size)

	return audio, nil
}

// ListVoices returns the voice catalogue for the configured voice key. It
// does not touch the busy flag.
func (s *Session) ListVoices(ctx context.Context) ([]core.Voice, error) {
	s.mu.Lock()
	voice := s.voice
	creds := s.creds
	s.mu.Unlock()

	if voice == nil || !creds.ElevenLabs.IsConfigured() {
		return nil, core.ErrNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	voices, err := voice.ListVoices(callCtx, creds)
	if err != nil {
		return nil, classify(err)
	}

	return voices, nil
}

// ValidateVoiceKey checks key against the voice provider without storing it.
// A successful catalogue request validates the key, even an empty one.
func (s *Session) ValidateVoiceKey(ctx context.Context, key string) error {
	credential := core.NewCredential(key)
	if !credential.IsConfigured() {
		return core.ErrNotConfigured
	}

	s.mu.Lock()
	voice := s.voice
	s.mu.Unlock()

	if voice == nil {
		return core.ErrNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var err error

	if validator, ok := voice.(KeyValidator); ok {
		err = validator.ValidateKey(callCtx, credential.Key())
	} else {
		_, err = voice.ListVoices(callCtx, core.Credentials{ElevenLabs: credential})
	}

	if err != nil {
		err = classify(err)
		s.log.Warn("Voice key validation failed: %v", err)

		return err
	}

	return nil
}

// rejectLocked records err without entering the busy state. It is called
// with mu held and releases it.
func (s *Session) rejectLocked(err error) error {
	s.state.LastError = err
	snapshot := s.state
	s.mu.Unlock()

	s.log.Warn("Request rejected: %v", err)
	s.notify(snapshot)

	return err
}

// beginLocked marks the session busy and clears LastError. It is called with
// mu held and releases it.
func (s *Session) beginLocked(op Operation) {
	s.state.Busy = true
	s.state.Operation = op
	s.state.LastError = nil
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// end applies the outcome and clears the busy flag.
func (s *Session) end(apply func(state *State)) {
	s.mu.Lock()
	apply(&s.state)
	s.state.Busy = false
	s.state.Operation = OperationNone
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Session) update(apply func(state *State)) {
	s.mu.Lock()
	apply(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Session) notify(snapshot State) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, observer := range observers {
		observer.SessionChanged(snapshot)
	}
}

// classify keeps taxonomy errors and treats anything else, including an
// expired request timeout, as a network failure.
func classify(err error) error {
	if core.KindOf(err) != core.KindUnknown {
		return err
	}

	return core.NewError(core.KindNetworkFailure, err)
}
