// Package improver assembles a session from the loaded configuration.
package improver

import (
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/config"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/elevenlabs"
	"github.com/book-expert/text-improver/internal/provider/anthropic"
	"github.com/book-expert/text-improver/internal/provider/openai"
	"github.com/book-expert/text-improver/internal/session"
)

// NewSession builds both provider clients and the ElevenLabs client from cfg
// and returns an idle session using them. Synthesized audio goes to store.
func NewSession(
	cfg *config.Config,
	creds core.Credentials,
	store core.ObjectStore,
	log *logger.Logger,
) (*session.Session, error) {
	selected, err := cfg.Provider()
	if err != nil {
		return nil, fmt.Errorf("invalid provider: %w", err)
	}

	style, err := cfg.Style()
	if err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}

	source, err := cfg.SpeakSource()
	if err != nil {
		return nil, fmt.Errorf("invalid speak source: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}

	voice := elevenlabs.NewClient(
		cfg.Voice.BaseURL, cfg.Voice.ModelID, httpClient, store,
		elevenlabs.WithTextNormalization(cfg.Voice.NormalizeText),
	)

	log.Info("Session uses %s in %s style, speaking the %s text", selected, style, source)

	return session.New(session.Options{
		Providers: map[core.Provider]core.ProviderClient{
			core.ProviderAnthropic: anthropic.New(
				anthropic.WithURL(cfg.Providers.AnthropicURL),
				anthropic.WithModel(cfg.Providers.AnthropicModel),
				anthropic.WithMaxTokens(cfg.Providers.MaxTokens),
				anthropic.WithClient(httpClient),
			),
			core.ProviderOpenAI: openai.New(
				openai.WithURL(cfg.Providers.OpenAIURL),
				openai.WithModel(cfg.Providers.OpenAIModel),
				openai.WithMaxTokens(cfg.Providers.MaxTokens),
				openai.WithClient(httpClient),
			),
		},
		Voice:          voice,
		Credentials:    creds,
		Provider:       selected,
		Style:          style,
		VoiceSettings:  cfg.VoiceSettings(),
		SpeakSource:    source,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         log,
	}), nil
}
