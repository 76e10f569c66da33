package domain

import "context"

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Generate takes a single stateless prompt and returns the model's
	// reply. Used for extraction and one-off content generation.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateTurn sends the full turn history, ending with the pending
	// user turn, and returns the model's next turn text.
	GenerateTurn(ctx context.Context, history []Turn) (string, error)
}
