package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names a text-improvement backend.
type Provider int

// Supported providers.
const (
	ProviderAnthropic Provider = iota
	ProviderOpenAI
)

// DefaultVoiceID is the built-in ElevenLabs voice ("Rachel").
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// Default voice parameters.
const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
)

var (
	// ErrUnknownProvider is returned by ParseProvider for unrecognised names.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrVoiceIDEmpty indicates that the voice id is empty.
	ErrVoiceIDEmpty = errors.New("voice id cannot be empty")
	// ErrStabilityRange indicates that stability is outside [0.0, 1.0].
	ErrStabilityRange = errors.New("stability must be between 0.0 and 1.0")
	// ErrSimilarityBoostRange indicates that similarity boost is outside [0.0, 1.0].
	ErrSimilarityBoostRange = errors.New("similarity boost must be between 0.0 and 1.0")
)

func (p Provider) String() string {
	switch p {
	case ProviderAnthropic:
		return "anthropic"
	case ProviderOpenAI:
		return "openai"
	default:
		return fmt.Sprintf("Provider(%d)", int(p))
	}
}

// ParseProvider maps "anthropic" or "openai" to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	default:
		return ProviderAnthropic, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// Voice is one entry of the voice provider's catalogue.
type Voice struct {
	ID          string `json:"voice_id"`
	DisplayName string `json:"name"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Category    string `json:"category,omitempty"`
}

// VoiceSettings are the user-tunable synthesis parameters.
type VoiceSettings struct {
	VoiceID         string  `json:"voice_id"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// DefaultVoiceSettings returns the built-in voice with stability 0.5 and
// similarity boost 0.75.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		VoiceID:         DefaultVoiceID,
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}

// Validate checks the voice id and that both ratios lie in [0.0, 1.0].
func (v VoiceSettings) Validate() error {
	if v.VoiceID == "" {
		return ErrVoiceIDEmpty
	}

	if v.Stability < 0.0 || v.Stability > 1.0 {
		return fmt.Errorf("%w: got %f", ErrStabilityRange, v.Stability)
	}

	if v.SimilarityBoost < 0.0 || v.SimilarityBoost > 1.0 {
		return fmt.Errorf("%w: got %f", ErrSimilarityBoostRange, v.SimilarityBoost)
	}

	return nil
}

// Credential is an API key together with its configured flag. The flag is
// fixed when the credential is created.
type Credential struct {
	key        string
	configured bool
}

// NewCredential trims key and records whether anything is left.
func NewCredential(key string) Credential {
	key = strings.TrimSpace(key)

	return Credential{key: key, configured: key != ""}
}

// Key returns the raw API key.
func (c Credential) Key() string { return c.key }

// IsConfigured reports whether a non-empty key was assigned.
func (c Credential) IsConfigured() bool { return c.configured }

// Credentials groups the keys for every external service.
type Credentials struct {
	Anthropic  Credential
	OpenAI     Credential
	ElevenLabs Credential
}

// ForProvider returns the credential used by p.
func (c Credentials) ForProvider(p Provider) Credential {
	if p == ProviderOpenAI {
		return c.OpenAI
	}

	return c.Anthropic
}

// AudioResource is synthesized audio held in an ObjectStore. The caller owns
// it and must Release it once played.
type AudioResource struct {
	Key         string
	ContentType string
	Size        int64

	store ObjectStore
}

// NewAudioResource describes an object already uploaded to store under key.
func NewAudioResource(store ObjectStore, key, contentType string, size int64) *AudioResource {
	return &AudioResource{
		Key:         key,
		ContentType: contentType,
		Size:        size,
		store:       store,
	}
}

// Location returns where the audio lives, a file path or an object URL.
func (a *AudioResource) Location() string {
	return a.store.Location(a.Key)
}

// Bytes reads the audio back from its store.
func (a *AudioResource) Bytes(ctx context.Context) ([]byte, error) {
	data, err := a.store.Download(ctx, a.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio '%s': %w", a.Key, err)
	}

	return data, nil
}

// Release deletes the audio from its store.
func (a *AudioResource) Release(ctx context.Context) error {
	err := a.store.Delete(ctx, a.Key)
	if err != nil {
		return fmt.Errorf("failed to release audio '%s': %w", a.Key, err)
	}

	return nil
}
