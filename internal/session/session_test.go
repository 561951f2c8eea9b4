package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/objectstore"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct {
	calls atomic.Int32
}

func (p *echoProvider) Improve(_ context.Context, text string, style core.WritingStyle, _ core.Credentials) (string, error) {
	p.calls.Add(1)

	return "Improved " + text + " using " + style.String(), nil
}

type failingProvider struct {
	err error
}

func (p failingProvider) Improve(context.Context, string, core.WritingStyle, core.Credentials) (string, error) {
	return "", p.err
}

// blockingProvider holds every call until release is closed.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *blockingProvider) Improve(ctx context.Context, text string, _ core.WritingStyle, _ core.Credentials) (string, error) {
	p.started <- struct{}{}

	select {
	case <-p.release:
		return "slow " + text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fakeVoice struct {
	store    core.ObjectStore
	calls    atomic.Int32
	mu       sync.Mutex
	lastText string
	settings core.VoiceSettings
	voices   []core.Voice
}

func (v *fakeVoice) ListVoices(context.Context, core.Credentials) ([]core.Voice, error) {
	return v.voices, nil
}

func (v *fakeVoice) Synthesize(
	ctx context.Context,
	text string,
	settings core.VoiceSettings,
	_ core.Credentials,
) (*core.AudioResource, error) {
	v.calls.Add(1)

	v.mu.Lock()
	v.lastText = text
	v.settings = settings
	v.mu.Unlock()

	err := v.store.Upload(ctx, "speech.mp3", []byte(text))
	if err != nil {
		return nil, err
	}

	return core.NewAudioResource(v.store, "speech.mp3", "audio/mpeg", int64(len(text))), nil
}

type failingVoice struct {
	err   error
	calls atomic.Int32
}

func (v *failingVoice) ListVoices(context.Context, core.Credentials) ([]core.Voice, error) {
	return nil, v.err
}

func (v *failingVoice) Synthesize(context.Context, string, core.VoiceSettings, core.Credentials) (*core.AudioResource, error) {
	v.calls.Add(1)

	return nil, v.err
}

// blockingVoice holds every Synthesize call until release is closed.
type blockingVoice struct {
	*fakeVoice

	started chan struct{}
	release chan struct{}
}

func (v *blockingVoice) Synthesize(
	ctx context.Context,
	text string,
	settings core.VoiceSettings,
	creds core.Credentials,
) (*core.AudioResource, error) {
	v.started <- struct{}{}

	select {
	case <-v.release:
		return v.fakeVoice.Synthesize(ctx, text, settings, creds)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *recorder) SessionChanged(state session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, state)
}

func (r *recorder) busyTrail() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	trail := make([]bool, 0, len(r.states))
	for _, state := range r.states {
		trail = append(trail, state.Busy)
	}

	return trail
}

func allCredentials() core.Credentials {
	return core.Credentials{
		Anthropic:  core.NewCredential("sk-ant"),
		OpenAI:     core.NewCredential("sk-openai"),
		ElevenLabs: core.NewCredential("xi"),
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "session-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newVoice(t *testing.T) *fakeVoice {
	t.Helper()

	store, err := objectstore.NewDirStore(t.TempDir())
	require.NoError(t, err)

	return &fakeVoice{store: store}
}

func newSession(t *testing.T, client core.ProviderClient, voice core.VoiceClient, observers ...session.Observer) *session.Session {
	t.Helper()

	return session.New(session.Options{
		Providers: map[core.Provider]core.ProviderClient{
			core.ProviderAnthropic: client,
			core.ProviderOpenAI:    client,
		},
		Voice:          voice,
		Credentials:    allCredentials(),
		Provider:       core.ProviderAnthropic,
		Style:          core.StyleProfessional,
		RequestTimeout: 5 * time.Second,
		Observers:      observers,
		Logger:         testLogger(t),
	})
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, nil)
	state := sess.State()

	assert.Empty(t, state.InputText)
	assert.Empty(t, state.OutputText)
	assert.False(t, state.Busy)
	assert.Equal(t, session.OperationNone, state.Operation)
	require.NoError(t, state.LastError)
	assert.Equal(t, core.DefaultVoiceSettings(), state.VoiceSettings)
	assert.Equal(t, session.SpeakOutput, state.SpeakSource)
}

func TestImprove_StoresOutput(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, nil)
	sess.SetInputText("hello")
	sess.SetStyle(core.StyleAcademic)

	require.NoError(t, sess.Improve(context.Background()))

	state := sess.State()
	assert.Equal(t, "Improved hello using Academic", state.OutputText)
	assert.Equal(t, "hello", state.InputText)
	assert.False(t, state.Busy)
	require.NoError(t, state.LastError)
}

func TestImprove_UsesSelectedProvider(t *testing.T) {
	t.Parallel()

	anthropic := &echoProvider{}
	openai := &echoProvider{}

	sess := session.New(session.Options{
		Providers: map[core.Provider]core.ProviderClient{
			core.ProviderAnthropic: anthropic,
			core.ProviderOpenAI:    openai,
		},
		Credentials: allCredentials(),
		Logger:      testLogger(t),
	})

	sess.SetInputText("text")
	sess.SetProvider(core.ProviderOpenAI)

	require.NoError(t, sess.Improve(context.Background()))
	assert.Equal(t, int32(0), anthropic.calls.Load())
	assert.Equal(t, int32(1), openai.calls.Load())
}

func TestImprove_BusyTransitions(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sess := newSession(t, &echoProvider{}, nil)
	sess.SetInputText("hello")
	sess.Subscribe(rec)

	require.NoError(t, sess.Improve(context.Background()))

	assert.Equal(t, []bool{true, false}, rec.busyTrail())

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Equal(t, session.OperationImprove, rec.states[0].Operation)
	assert.Empty(t, rec.states[0].OutputText)
	assert.Equal(t, "Improved hello using Professional", rec.states[1].OutputText)
}

func TestImprove_EmptyInput(t *testing.T) {
	t.Parallel()

	provider := &echoProvider{}
	rec := &recorder{}
	sess := newSession(t, provider, nil, rec)

	err := sess.Improve(context.Background())
	require.ErrorIs(t, err, core.ErrEmptyInput)

	state := sess.State()
	assert.Equal(t, core.KindEmptyInput, state.LastErrorKind())
	assert.Equal(t, core.Message(core.KindEmptyInput), state.ErrorMessage())
	assert.Equal(t, int32(0), provider.calls.Load())
	assert.NotContains(t, rec.busyTrail(), true, "an empty request never becomes busy")
}

func TestImprove_NotConfigured(t *testing.T) {
	t.Parallel()

	provider := &echoProvider{}
	sess := newSession(t, provider, nil)
	sess.SetInputText("hello")
	sess.SetCredentials(core.Credentials{OpenAI: core.NewCredential("sk-openai")})

	err := sess.Improve(context.Background())
	require.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Equal(t, int32(0), provider.calls.Load())
	assert.False(t, sess.State().Busy)

	sess.SetProvider(core.ProviderOpenAI)
	require.NoError(t, sess.Improve(context.Background()))
}

func TestImprove_FailureRecordsKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{name: "rejected key", err: core.NewError(core.KindInvalidCredential, errors.New("401")), want: core.KindInvalidCredential},
		{name: "bad payload", err: core.NewError(core.KindMalformedResponse, errors.New("no text")), want: core.KindMalformedResponse},
		{name: "unclassified", err: errors.New("boom"), want: core.KindNetworkFailure},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			sess := newSession(t, failingProvider{err: testCase.err}, nil)
			sess.SetInputText("hello")

			err := sess.Improve(context.Background())
			require.Error(t, err)
			assert.Equal(t, testCase.want, core.KindOf(err))

			state := sess.State()
			assert.Empty(t, state.OutputText)
			assert.False(t, state.Busy)
			assert.Equal(t, testCase.want, state.LastErrorKind())
		})
	}
}

func TestImprove_SuccessClearsLastError(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, nil)

	require.ErrorIs(t, sess.Improve(context.Background()), core.ErrEmptyInput)

	sess.SetInputText("hello")
	require.NoError(t, sess.Improve(context.Background()))
	require.NoError(t, sess.State().LastError)
}

func TestImprove_TimeoutIsNetworkFailure(t *testing.T) {
	t.Parallel()

	provider := newBlockingProvider()

	sess := session.New(session.Options{
		Providers:      map[core.Provider]core.ProviderClient{core.ProviderAnthropic: provider},
		Credentials:    allCredentials(),
		RequestTimeout: 20 * time.Millisecond,
		Logger:         testLogger(t),
	})
	sess.SetInputText("hello")

	err := sess.Improve(context.Background())
	require.ErrorIs(t, err, core.ErrNetworkFailure)
	assert.False(t, sess.State().Busy)
}

func TestOverlappingCallsRejected(t *testing.T) {
	t.Parallel()

	provider := newBlockingProvider()
	voice := newVoice(t)
	sess := newSession(t, provider, voice)
	sess.SetInputText("hello")

	done := make(chan error, 1)

	go func() {
		done <- sess.Improve(context.Background())
	}()

	<-provider.started

	inFlight := sess.State()
	assert.True(t, inFlight.Busy)
	assert.Equal(t, session.OperationImprove, inFlight.Operation)

	require.ErrorIs(t, sess.Improve(context.Background()), core.ErrOperationInProgress)

	_, err := sess.Speak(context.Background())
	require.ErrorIs(t, err, core.ErrOperationInProgress)

	rejected := sess.State()
	assert.Empty(t, rejected.OutputText)
	require.NoError(t, rejected.LastError, "a rejected overlap leaves the in-flight state alone")
	assert.Equal(t, int32(0), voice.calls.Load())

	close(provider.release)
	require.NoError(t, <-done)

	final := sess.State()
	assert.Equal(t, "slow hello", final.OutputText)
	assert.False(t, final.Busy)
}

func TestSpeak_OutputText(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	rec := &recorder{}
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("hello")
	require.NoError(t, sess.Improve(context.Background()))
	sess.Subscribe(rec)

	settings := core.VoiceSettings{VoiceID: "voice-7", Stability: 0.8, SimilarityBoost: 0.9}
	require.NoError(t, sess.SetVoiceSettings(settings))

	audio, err := sess.Speak(context.Background())
	require.NoError(t, err)

	data, err := audio.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Improved hello using Professional", string(data))
	require.NoError(t, audio.Release(context.Background()))

	voice.mu.Lock()
	assert.Equal(t, settings, voice.settings)
	voice.mu.Unlock()

	assert.Equal(t, []bool{false, true, false}, rec.busyTrail())
}

func TestSpeak_FailureRecordsKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{name: "unclassified", err: errors.New("connection reset"), want: core.KindNetworkFailure},
		{name: "rejected key", err: core.NewError(core.KindInvalidCredential, errors.New("401")), want: core.KindInvalidCredential},
		{name: "empty audio", err: core.NewError(core.KindMalformedResponse, errors.New("no bytes")), want: core.KindMalformedResponse},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			voice := &failingVoice{err: testCase.err}
			rec := &recorder{}
			sess := newSession(t, &echoProvider{}, voice)
			sess.SetInputText("hello")
			sess.SetSpeakSource(session.SpeakInput)
			sess.Subscribe(rec)

			audio, err := sess.Speak(context.Background())
			require.Error(t, err)
			assert.Nil(t, audio)
			assert.Equal(t, testCase.want, core.KindOf(err))
			assert.Equal(t, int32(1), voice.calls.Load())

			state := sess.State()
			assert.False(t, state.Busy)
			assert.Equal(t, session.OperationNone, state.Operation)
			assert.Equal(t, testCase.want, state.LastErrorKind())
			assert.Equal(t, []bool{true, false}, rec.busyTrail())
		})
	}
}

func TestSpeak_OverlappingSpeakRejected(t *testing.T) {
	t.Parallel()

	voice := &blockingVoice{
		fakeVoice: newVoice(t),
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("hello")
	sess.SetSpeakSource(session.SpeakInput)

	done := make(chan error, 1)

	go func() {
		_, err := sess.Speak(context.Background())
		done <- err
	}()

	<-voice.started

	inFlight := sess.State()
	assert.True(t, inFlight.Busy)
	assert.Equal(t, session.OperationSpeak, inFlight.Operation)

	_, err := sess.Speak(context.Background())
	require.ErrorIs(t, err, core.ErrOperationInProgress)
	require.NoError(t, sess.State().LastError)

	require.ErrorIs(t, sess.Improve(context.Background()), core.ErrOperationInProgress)

	close(voice.release)
	require.NoError(t, <-done)
	assert.False(t, sess.State().Busy)
	assert.Equal(t, int32(1), voice.calls.Load())
}

func TestImproveWith_AppliesSelections(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, nil)
	provider := core.ProviderOpenAI
	style := core.StyleTechnical

	text, err := sess.ImproveWith(context.Background(), session.ImproveParams{
		InputText: "draft",
		Provider:  &provider,
		Style:     &style,
	})
	require.NoError(t, err)
	assert.Equal(t, "Improved draft using Technical", text)

	state := sess.State()
	assert.Equal(t, "draft", state.InputText)
	assert.Equal(t, text, state.OutputText)
	assert.Equal(t, core.ProviderOpenAI, state.Provider)
	assert.Equal(t, core.StyleTechnical, state.Style)

	_, err = sess.ImproveWith(context.Background(), session.ImproveParams{})
	require.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Equal(t, core.StyleTechnical, sess.State().Style, "nil fields keep the selection")
}

func TestBusySessionKeepsSelections(t *testing.T) {
	t.Parallel()

	provider := newBlockingProvider()
	voice := newVoice(t)
	sess := newSession(t, provider, voice)
	sess.SetInputText("hello")

	done := make(chan error, 1)

	go func() {
		done <- sess.Improve(context.Background())
	}()

	<-provider.started

	openai := core.ProviderOpenAI
	style := core.StyleStorytelling

	_, err := sess.ImproveWith(context.Background(), session.ImproveParams{
		InputText: "replacement",
		Provider:  &openai,
		Style:     &style,
	})
	require.ErrorIs(t, err, core.ErrOperationInProgress)

	source := session.SpeakInput
	settings := core.VoiceSettings{VoiceID: "voice-2", Stability: 0.1, SimilarityBoost: 0.2}

	_, err = sess.SpeakWith(context.Background(), session.SpeakParams{Source: &source, VoiceSettings: &settings})
	require.ErrorIs(t, err, core.ErrOperationInProgress)

	state := sess.State()
	assert.Equal(t, "hello", state.InputText)
	assert.Equal(t, core.ProviderAnthropic, state.Provider)
	assert.Equal(t, core.StyleProfessional, state.Style)
	assert.Equal(t, session.SpeakOutput, state.SpeakSource)
	assert.Equal(t, core.DefaultVoiceSettings(), state.VoiceSettings)

	close(provider.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(0), voice.calls.Load())
}

func TestSpeakWith_InvalidSettingsLeaveState(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("hello")

	source := session.SpeakInput
	bad := core.VoiceSettings{VoiceID: "v", Stability: 0.5, SimilarityBoost: 1.5}

	_, err := sess.SpeakWith(context.Background(), session.SpeakParams{Source: &source, VoiceSettings: &bad})
	require.ErrorIs(t, err, core.ErrSimilarityBoostRange)
	assert.Equal(t, session.SpeakOutput, sess.State().SpeakSource)
	assert.Equal(t, int32(0), voice.calls.Load())

	good := core.VoiceSettings{VoiceID: "v", Stability: 0.8, SimilarityBoost: 0.9}

	_, err = sess.SpeakWith(context.Background(), session.SpeakParams{Source: &source, VoiceSettings: &good})
	require.NoError(t, err)

	voice.mu.Lock()
	defer voice.mu.Unlock()

	assert.Equal(t, "hello", voice.lastText)
	assert.Equal(t, good, voice.settings)
}

func TestSpeak_InputSource(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("raw transcript")
	sess.SetSpeakSource(session.SpeakInput)

	_, err := sess.Speak(context.Background())
	require.NoError(t, err)

	voice.mu.Lock()
	defer voice.mu.Unlock()

	assert.Equal(t, "raw transcript", voice.lastText)
}

func TestSpeak_EmptyTextNeverCallsVoice(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("not spoken, output is still empty")

	_, err := sess.Speak(context.Background())
	require.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Equal(t, int32(0), voice.calls.Load())
	assert.Equal(t, core.KindEmptyInput, sess.State().LastErrorKind())
}

func TestSpeak_NotConfigured(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	sess := newSession(t, &echoProvider{}, voice)
	sess.SetInputText("hello")
	sess.SetSpeakSource(session.SpeakInput)
	sess.SetCredentials(core.Credentials{Anthropic: core.NewCredential("sk-ant")})

	_, err := sess.Speak(context.Background())
	require.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Equal(t, int32(0), voice.calls.Load())
}

func TestSetVoiceSettings_Invalid(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, nil)

	err := sess.SetVoiceSettings(core.VoiceSettings{VoiceID: "v", Stability: 1.5, SimilarityBoost: 0.5})
	require.ErrorIs(t, err, core.ErrStabilityRange)
	assert.Equal(t, core.DefaultVoiceSettings(), sess.State().VoiceSettings)
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	voice := newVoice(t)
	voice.voices = []core.Voice{{ID: "v1", DisplayName: "Rachel"}}
	sess := newSession(t, &echoProvider{}, voice)

	voices, err := sess.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, voice.voices, voices)

	sess.SetCredentials(core.Credentials{})

	_, err = sess.ListVoices(context.Background())
	require.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestValidateVoiceKey_FallsBackToCatalogue(t *testing.T) {
	t.Parallel()

	sess := newSession(t, &echoProvider{}, newVoice(t))

	require.NoError(t, sess.ValidateVoiceKey(context.Background(), "xi-new"), "an empty catalogue is still a valid key")
	require.ErrorIs(t, sess.ValidateVoiceKey(context.Background(), "   "), core.ErrNotConfigured)
}

func TestParseSpeakSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  session.SpeakSource
	}{
		{input: "input", want: session.SpeakInput},
		{input: "Input", want: session.SpeakInput},
		{input: " INPUT ", want: session.SpeakInput},
		{input: "output", want: session.SpeakOutput},
		{input: "Output", want: session.SpeakOutput},
	}

	for _, testCase := range tests {
		source, err := session.ParseSpeakSource(testCase.input)
		require.NoError(t, err, testCase.input)
		assert.Equal(t, testCase.want, source, testCase.input)
	}

	for _, bogus := range []string{"", "both", "inputs", "in put"} {
		_, err := session.ParseSpeakSource(bogus)
		require.ErrorIs(t, err, session.ErrInvalidSpeakSource, bogus)
	}

	assert.Equal(t, "input", session.SpeakInput.String())
}
