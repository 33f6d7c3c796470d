package contract

import "errors"

var (
	// ErrNoChoices is returned when a provider answers without any completion.
	ErrNoChoices = errors.New("no choices returned")
	// ErrUnexpectedFormat is returned when a completion carries no text content.
	ErrUnexpectedFormat = errors.New("unexpected response format")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type CompletionResponse struct {
	Content string `json:"content"`
}
