package llm

// Request shape sent to the inference server (Ollama /api/chat).
type providerChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  Options       `json:"options"`
}

// Pointers let us tell a missing field apart from an empty one.
type providerMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type providerChatResponse struct {
	Model           string           `json:"model"`
	CreatedAt       string           `json:"created_at"`
	Message         *providerMessage `json:"message"`
	Done            bool             `json:"done"`
	DoneReason      string           `json:"done_reason,omitempty"`
	TotalDuration   int64            `json:"total_duration"`
	PromptEvalCount int              `json:"prompt_eval_count"`
	EvalCount       int              `json:"eval_count"`
}

// Ollama reports failures as {"error": "..."}.
type providerErrorResponse struct {
	Error string `json:"error"`
}

func newProviderChatRequest(message string) providerChatRequest {
	return providerChatRequest{
		Model: DefaultModel,
		Messages: []ChatMessage{
			{Role: RoleUser, Content: message},
		},
		Stream:  false,
		Options: DefaultOptions(),
	}
}
