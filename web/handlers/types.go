// Package handlers provides the HTTP handlers and middleware for the
// Recall API surface: event ingestion, context-aware rewriting, chat,
// page summarization and the live activity feed.
package handlers

import (
	"encoding/json"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventEnvelope is one ingestion event on the wire. Kind selects which
// payload fields apply.
type EventEnvelope struct {
	Kind string `json:"kind"`

	// message fields
	Platform    string    `json:"platform,omitempty"`
	Counterpart string    `json:"counterpart,omitempty"`
	Text        string    `json:"text,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	OccurredAt  time.Time `json:"occurred_at,omitempty"`

	// profile / page payloads
	Profile json.RawMessage `json:"profile,omitempty"`
	Page    json.RawMessage `json:"page,omitempty"`

	// chat_turn fields
	SessionID string `json:"session_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// IngestRequest is the request format for POST /api/events.
type IngestRequest struct {
	Events []EventEnvelope `json:"events"`
}

// IngestResponse reports how many events the queue accepted. Dropped
// events are logged server-side, never surfaced as request errors.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// RewriteRequest is the request format for POST /api/rewrite.
type RewriteRequest struct {
	Message    string `json:"message"`
	Platform   string `json:"platform,omitempty"`
	Tone       string `json:"tone,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Model      string `json:"model,omitempty"`
	UseContext *bool  `json:"use_context,omitempty"` // default true
}

// RewriteResponse is the response format for POST /api/rewrite.
type RewriteResponse struct {
	RewrittenMessage string `json:"rewritten_message"`
	OriginalMessage  string `json:"original_message"`
	ContextUsed      bool   `json:"context_used"`
	RAGContext       string `json:"rag_context,omitempty"`
	Model            string `json:"model"`
}

// ConversationResponse is the response format for
// GET /api/conversations/{recipient}.
type ConversationResponse struct {
	Recipient string                      `json:"recipient"`
	Platform  string                      `json:"platform"`
	Messages  []*types.InteractionMessage `json:"messages"`
}

// PurgeResponse is the response format for
// DELETE /api/conversations/{recipient}.
type PurgeResponse struct {
	Recipient       string `json:"recipient"`
	Platform        string `json:"platform"`
	MessagesDeleted int    `json:"messages_deleted"`
}

// ChatRequest is the request format for POST /api/chat.
type ChatRequest struct {
	Question    string `json:"question"`
	SessionTag  string `json:"session_tag,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Counterpart string `json:"counterpart,omitempty"`
	Model       string `json:"model,omitempty"`
	PageURL     string `json:"page_url,omitempty"`
}

// ChatResponse is the response format for POST /api/chat.
type ChatResponse struct {
	Answer      string `json:"answer"`
	SessionID   string `json:"session_id"`
	ContextUsed bool   `json:"context_used"`
	Model       string `json:"model"`
}

// SummarizeRequest is the request format for POST /api/summarize.
type SummarizeRequest struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"`
}

// SummarizeResponse is the response format for POST /api/summarize.
type SummarizeResponse struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Model     string `json:"model"`
}

// PageSearchResponse is the response format for GET /api/pages/search.
type PageSearchResponse struct {
	Query   string               `json:"query"`
	Results []*types.PageSummary `json:"results"`
}

// HealthResponse is the response format for GET /health.
type HealthResponse struct {
	Status       string `json:"status"` // healthy or degraded
	Store        string `json:"store"`  // ok or unreachable
	LLMAvailable bool   `json:"llm_available"`
	QueueSize    int    `json:"queue_size"`
	Version      string `json:"version"`
}

// ModelsResponse is the response format for GET /api/llm/models.
type ModelsResponse struct {
	Models []string `json:"models"`
}
