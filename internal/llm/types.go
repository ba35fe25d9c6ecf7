package llm

import (
	"context"
)

const RoleUser = "user"

// DefaultModel is the model every relayed message is sent to.
const DefaultModel = "mistral"

// DefaultChatURL is the chat endpoint of a local Ollama server.
const DefaultChatURL = "http://localhost:11434/api/chat"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options is the sampling bundle sent with every request.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

// DefaultOptions returns the fixed sampling parameters. Callers of the relay
// cannot change them.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		NumPredict:  500,
		TopK:        40,
		TopP:        0.9,
	}
}

// Client turns a single user message into generated text.
type Client interface {
	Generate(ctx context.Context, message string) (string, error)
}
