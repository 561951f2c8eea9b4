// Package config provides the configuration structure for the text-improver.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/session"
)

// Environment variables holding the API keys.
const (
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
)

// Defaults applied to unset fields.
const (
	defaultProvider        = "anthropic"
	defaultAnthropicURL    = "https://api.anthropic.com/"
	defaultAnthropicModel  = "claude-3-sonnet-20240229"
	defaultOpenAIURL       = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4-turbo-preview"
	defaultMaxTokens       = 1024
	defaultVoiceURL        = "https://api.elevenlabs.io"
	defaultVoiceModel      = "eleven_monolingual_v1"
	defaultSpeakSource     = "output"
	defaultStyle           = "professional"
	defaultTimeoutSeconds  = 30
	defaultNATSURL         = "nats://127.0.0.1:4222"
	defaultImproveSubject  = "improver.improve"
	defaultSpeakSubject    = "improver.speak"
	defaultVoicesSubject   = "improver.voices"
	defaultStateSubject    = "improver.state"
	defaultAudioBucket     = "IMPROVER_AUDIO"
	defaultUpdateAPIURL    = "https://api.github.com"
	defaultCurrentVersion  = "1.0.0"
	defaultIntervalMinutes = 360
	defaultLogsDir         = "/tmp/text-improver/logs"
)

// ErrInvalidSpeakSource is returned when voice.speak_source is neither
// "input" nor "output".
var ErrInvalidSpeakSource = session.ErrInvalidSpeakSource

// ProvidersConfig selects and addresses the text-improvement services.
type ProvidersConfig struct {
	Default        string `toml:"default"`
	AnthropicURL   string `toml:"anthropic_url"`
	AnthropicModel string `toml:"anthropic_model"`
	OpenAIURL      string `toml:"openai_url"`
	OpenAIModel    string `toml:"openai_model"`
	MaxTokens      int    `toml:"max_tokens"`
}

// VoiceConfig holds the ElevenLabs endpoint and the initial voice settings.
type VoiceConfig struct {
	BaseURL         string  `toml:"base_url"`
	ModelID         string  `toml:"model_id"`
	VoiceID         string  `toml:"voice_id"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	SpeakSource     string  `toml:"speak_source"`
	NormalizeText   bool    `toml:"normalize_text"`
}

// SessionConfig holds the initial style and the per-request timeout.
type SessionConfig struct {
	Style                 string `toml:"style"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	ImproveSubject         string `toml:"improve_subject"`
	SpeakSubject           string `toml:"speak_subject"`
	VoicesSubject          string `toml:"voices_subject"`
	StateSubject           string `toml:"state_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// UpdateConfig points the update checker at a GitHub repository.
type UpdateConfig struct {
	APIURL          string `toml:"api_url"`
	Owner           string `toml:"owner"`
	Repo            string `toml:"repo"`
	CurrentVersion  string `toml:"current_version"`
	IntervalMinutes int    `toml:"interval_minutes"`
	AssetSuffix     string `toml:"asset_suffix"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	AudioDir    string `toml:"audio_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Providers ProvidersConfig `toml:"providers"`
	Voice     VoiceConfig     `toml:"voice"`
	Session   SessionConfig   `toml:"session"`
	NATS      NATSConfig      `toml:"nats"`
	Update    UpdateConfig    `toml:"update"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the service configuration through the configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFile reads a TOML file. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		err = toml.Unmarshal(data, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset field. Zero ratios are kept as set only
// when a voice id was configured alongside them.
func (c *Config) ApplyDefaults() {
	setString(&c.Providers.Default, defaultProvider)
	setString(&c.Providers.AnthropicURL, defaultAnthropicURL)
	setString(&c.Providers.AnthropicModel, defaultAnthropicModel)
	setString(&c.Providers.OpenAIURL, defaultOpenAIURL)
	setString(&c.Providers.OpenAIModel, defaultOpenAIModel)
	setInt(&c.Providers.MaxTokens, defaultMaxTokens)

	setString(&c.Voice.BaseURL, defaultVoiceURL)
	setString(&c.Voice.ModelID, defaultVoiceModel)
	setString(&c.Voice.SpeakSource, defaultSpeakSource)

	if c.Voice.VoiceID == "" {
		c.Voice.VoiceID = core.DefaultVoiceID
		c.Voice.Stability = core.DefaultStability
		c.Voice.SimilarityBoost = core.DefaultSimilarityBoost
	}

	setString(&c.Session.Style, defaultStyle)
	setInt(&c.Session.RequestTimeoutSeconds, defaultTimeoutSeconds)

	setString(&c.NATS.URL, defaultNATSURL)
	setString(&c.NATS.ImproveSubject, defaultImproveSubject)
	setString(&c.NATS.SpeakSubject, defaultSpeakSubject)
	setString(&c.NATS.VoicesSubject, defaultVoicesSubject)
	setString(&c.NATS.StateSubject, defaultStateSubject)
	setString(&c.NATS.AudioObjectStoreBucket, defaultAudioBucket)

	setString(&c.Update.APIURL, defaultUpdateAPIURL)
	setString(&c.Update.CurrentVersion, defaultCurrentVersion)
	setInt(&c.Update.IntervalMinutes, defaultIntervalMinutes)

	setString(&c.Paths.BaseLogsDir, defaultLogsDir)
}

// Validate checks the values that have a closed set of choices.
func (c *Config) Validate() error {
	_, err := c.Provider()
	if err != nil {
		return fmt.Errorf("invalid providers.default: %w", err)
	}

	_, err = c.Style()
	if err != nil {
		return fmt.Errorf("invalid session.style: %w", err)
	}

	err = c.VoiceSettings().Validate()
	if err != nil {
		return fmt.Errorf("invalid voice settings: %w", err)
	}

	_, err = c.SpeakSource()
	if err != nil {
		return fmt.Errorf("invalid voice.speak_source: %w", err)
	}

	return nil
}

// Provider returns the configured default provider.
func (c *Config) Provider() (core.Provider, error) {
	return core.ParseProvider(c.Providers.Default)
}

// Style returns the configured initial writing style.
func (c *Config) Style() (core.WritingStyle, error) {
	return core.ParseStyle(c.Session.Style)
}

// VoiceSettings returns the configured initial voice parameters.
func (c *Config) VoiceSettings() core.VoiceSettings {
	return core.VoiceSettings{
		VoiceID:         c.Voice.VoiceID,
		Stability:       c.Voice.Stability,
		SimilarityBoost: c.Voice.SimilarityBoost,
	}
}

// SpeakSource returns which text the session reads aloud.
func (c *Config) SpeakSource() (session.SpeakSource, error) {
	return session.ParseSpeakSource(c.Voice.SpeakSource)
}

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Session.RequestTimeoutSeconds) * time.Second
}

// UpdateInterval returns the polling interval of the update checker.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Update.IntervalMinutes) * time.Minute
}

// LoadCredentials reads the three API keys from the environment. Keys missing
// from the environment are taken from the given .env files; missing files are
// skipped.
func LoadCredentials(envFiles ...string) (core.Credentials, error) {
	fromFiles := map[string]string{}

	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return core.Credentials{}, fmt.Errorf("failed to read env file %s: %w", file, err)
		}

		for key, value := range values {
			if _, seen := fromFiles[key]; !seen {
				fromFiles[key] = value
			}
		}
	}

	lookup := func(name string) core.Credential {
		value := os.Getenv(name)
		if strings.TrimSpace(value) == "" {
			value = fromFiles[name]
		}

		return core.NewCredential(value)
	}

	return core.Credentials{
		Anthropic:  lookup(EnvAnthropicKey),
		OpenAI:     lookup(EnvOpenAIKey),
		ElevenLabs: lookup(EnvElevenLabsKey),
	}, nil
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field <= 0 {
		*field = value
	}
}
