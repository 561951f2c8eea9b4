// Package core defines the domain types, error taxonomy and collaborator
// interfaces shared by the text-improver components.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Location(key string) string
}

// ProviderClient rewrites text through one remote language model. It issues
// exactly one request per call and never touches session state.
type ProviderClient interface {
	Improve(ctx context.Context, text string, style WritingStyle, creds Credentials) (string, error)
}

// VoiceClient lists synthetic voices and turns text into audio.
type VoiceClient interface {
	ListVoices(ctx context.Context, creds Credentials) ([]Voice, error)
	Synthesize(ctx context.Context, text string, settings VoiceSettings, creds Credentials) (*AudioResource, error)
}
