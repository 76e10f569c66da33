package domain

import "context"

// Voice describes one synthesizer voice.
type Voice struct {
	ID           string `json:"id"`
	LanguageCode string `json:"languageCode"`
	Gender       string `json:"gender"`
}

// SpeechSynthesizer narrates model turns aloud. The chat pipeline never
// blocks on synthesis.
type SpeechSynthesizer interface {
	ListVoices(ctx context.Context, languageCode string) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}
