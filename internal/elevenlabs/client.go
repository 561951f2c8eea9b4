// Package elevenlabs implements core.VoiceClient on the ElevenLabs REST API.
//
// Voices are listed with GET /v1/voices and speech is produced by the
// streaming text-to-speech endpoint. The returned audio is written to a
// core.ObjectStore and handed back as a core.AudioResource the caller owns.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/provider"
	"github.com/google/uuid"
)

// API endpoints and paths.
const (
	DefaultURL     = "https://api.elevenlabs.io"
	apiVoices      = "/v1/voices"
	apiSpeechFmt   = "/v1/text-to-speech/%s/stream"
	audioKeyFormat = "%s.mp3"
)

// HTTP headers.
const (
	headerAPIKey      = "xi-api-key"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// DefaultModelID is the synthesis model used when none is configured.
const DefaultModelID = "eleven_monolingual_v1"

// Error messages.
const (
	errFmtServiceError = "ElevenLabs returned %s: %s"
	errReceivedEmpty   = "received empty audio data"
)

var errEmptyAudio = errors.New(errReceivedEmpty)

var _ core.VoiceClient = (*Client)(nil)

// Client talks to ElevenLabs. It keeps no per-call state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	modelID    string
	store      core.ObjectStore
	normalize  bool
}

// SpeechRequest is the JSON payload of a text-to-speech request.
type SpeechRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings SpeechVoiceSettings `json:"voice_settings"`
}

// SpeechVoiceSettings carries the tunable synthesis ratios.
type SpeechVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type voicesResponse struct {
	Voices []core.Voice `json:"voices"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// NewClient creates a Client. Synthesized audio is uploaded to store; an
// empty baseURL or modelID selects the defaults and a nil httpClient gets
// the provider default timeout.
func NewClient(baseURL, modelID string, httpClient *http.Client, store core.ObjectStore, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	if modelID == "" {
		modelID = DefaultModelID
	}

	client := &Client{
		httpClient: provider.HTTPClient(httpClient),
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelID:    modelID,
		store:      store,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// ListVoices returns the voice catalogue for the ElevenLabs key in creds.
func (c *Client) ListVoices(ctx context.Context, creds core.Credentials) ([]core.Voice, error) {
	if !creds.ElevenLabs.IsConfigured() {
		return nil, core.ErrNotConfigured
	}

	return c.listVoices(ctx, creds.ElevenLabs.Key())
}

// ValidateKey reports whether key is accepted by ElevenLabs. A successful
// catalogue request validates the key even when the catalogue is empty.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	credential := core.NewCredential(key)
	if !credential.IsConfigured() {
		return core.ErrNotConfigured
	}

	_, err := c.listVoices(ctx, credential.Key())

	return err
}

// Synthesize converts text to speech with settings and stores the audio.
// Empty text and a missing key are rejected before any request is made.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	settings core.VoiceSettings,
	creds core.Credentials,
) (*core.AudioResource, error) {
	if text == "" {
		return nil, core.ErrEmptyInput
	}

	if !creds.ElevenLabs.IsConfigured() {
		return nil, core.ErrNotConfigured
	}

	if c.normalize {
		text = NormalizeSpeechText(text)
	}

	voiceID := settings.VoiceID
	if voiceID == "" {
		voiceID = core.DefaultVoiceID
	}

	requestBody, err := json.Marshal(SpeechRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: SpeechVoiceSettings{
			Stability:       settings.Stability,
			SimilarityBoost: settings.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + fmt.Sprintf(apiSpeechFmt, voiceID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerAPIKey, creds.ElevenLabs.Key())
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	audioData, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	if len(audioData) == 0 {
		return nil, core.NewError(core.KindMalformedResponse, errEmptyAudio)
	}

	key := fmt.Sprintf(audioKeyFormat, uuid.NewString())

	err = c.store.Upload(ctx, key, audioData)
	if err != nil {
		return nil, fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	return core.NewAudioResource(c.store, key, contentTypeMPEG, int64(len(audioData))), nil
}

func (c *Client) listVoices(ctx context.Context, key string) ([]core.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiVoices, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerAPIKey, key)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var resp voicesResponse

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, core.NewError(core.KindMalformedResponse, fmt.Errorf("failed to decode voices: %w", err))
	}

	if resp.Voices == nil {
		resp.Voices = []core.Voice{}
	}

	return resp.Voices, nil
}

// do sends req once and returns the body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewError(core.KindNetworkFailure,
			fmt.Errorf("failed to send request to ElevenLabs at %s: %w", c.baseURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.KindNetworkFailure, fmt.Errorf("failed to read response: %w", err))
	}

	return body, nil
}

// parseErrorResponse keeps the service's detail message when it sent one and
// falls back to the raw body otherwise.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	detail := strings.TrimSpace(string(body))

	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Detail) > 0 {
		detail = string(parsed.Detail)
	}

	return core.NewError(provider.KindForStatus(resp.StatusCode),
		fmt.Errorf(errFmtServiceError, resp.Status, detail))
}
