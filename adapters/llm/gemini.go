package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/reveriechat/reverie/domain"
)

const defaultModel = "gemini-2.0-flash-001"

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Generate runs a stateless single-turn prompt, used for extraction and
// one-off content generation.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", translateError(err)
	}
	if blocked(resp) {
		return "", &domain.UpstreamError{Kind: domain.UpstreamContentFilter, Message: "response blocked by safety filter"}
	}
	return resp.Text(), nil
}

// GenerateTurn sends the full turn history, ending with the pending user
// turn, and returns the model's next turn.
func (g *GeminiClient) GenerateTurn(ctx context.Context, history []domain.Turn) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("generate turn: empty history")
	}

	geminiHistory := make([]*genai.Content, 0, len(history)-1)
	for _, turn := range history[:len(history)-1] {
		geminiHistory = append(geminiHistory, toContent(turn))
	}

	chat, err := g.client.Chats.Create(ctx, g.model, nil, geminiHistory)
	if err != nil {
		return "", translateError(err)
	}

	last := history[len(history)-1]
	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Text})
	if err != nil {
		return "", translateError(err)
	}
	if blocked(resp) {
		return "", &domain.UpstreamError{Kind: domain.UpstreamContentFilter, Message: "response blocked by safety filter"}
	}
	return resp.Text(), nil
}

// toContent maps a domain turn onto the wire roles. The v1 chat surface has
// no dedicated system channel, so the context turn rides as user content.
func toContent(turn domain.Turn) *genai.Content {
	role := genai.RoleUser
	if turn.Role == domain.ModelRole {
		role = genai.RoleModel
	}
	return &genai.Content{
		Role:  role,
		Parts: []*genai.Part{{Text: turn.Text}},
	}
}

func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return true
	}
	for _, c := range resp.Candidates {
		if c.FinishReason == genai.FinishReasonSafety {
			return true
		}
	}
	return false
}

// translateError maps genai failures onto the domain taxonomy so the
// orchestrator can decide what retries and what surfaces immediately.
func translateError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &domain.UpstreamError{Kind: domain.UpstreamNetwork, Message: err.Error()}
	}

	switch {
	case apiErr.Code == 401 || apiErr.Code == 403:
		return &domain.UpstreamError{Kind: domain.UpstreamAuth, Status: apiErr.Code, Message: apiErr.Message}
	case apiErr.Code == 404:
		return &domain.UpstreamError{Kind: domain.UpstreamNotFound, Status: apiErr.Code, Message: apiErr.Message}
	case apiErr.Code == 429:
		return &domain.UpstreamError{Kind: domain.UpstreamRateLimit, Status: apiErr.Code, Message: apiErr.Message}
	case apiErr.Code >= 500:
		return &domain.UpstreamError{Kind: domain.UpstreamUnavailable, Status: apiErr.Code, Message: apiErr.Message}
	default:
		return &domain.UpstreamError{Kind: domain.UpstreamNetwork, Status: apiErr.Code, Message: apiErr.Message}
	}
}

// Probe makes a throwaway stateless call to verify the configured key and
// model are usable, without touching any session state.
func (g *GeminiClient) Probe(ctx context.Context) error {
	_, err := g.Generate(ctx, "Reply with the single word: ok")
	return err
}
