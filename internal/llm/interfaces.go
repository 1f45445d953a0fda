package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Rewrite, chat and summarizer prompts all use single-string completion
// style; the system instruction is baked into the prompt text.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}
