// Package composer implements the interactive flows on top of the memory
// engine: draft rewriting with retrieved context, chat with memory, and
// page summarization. The LLM is optional; every flow has a deterministic
// fallback so the engine stays useful offline.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/pkg/types"
)

// ErrGeneration wraps provider failures during text generation. The
// original draft is always preserved; callers decide whether to surface
// the error or retry with the fallback model.
var ErrGeneration = errors.New("text generation failed")

// Composer drives the rewrite, chat and summarize flows.
type Composer struct {
	engine *engine.Engine
	router *llm.Router
}

// New creates a composer over the engine and LLM router.
func New(eng *engine.Engine, router *llm.Router) *Composer {
	return &Composer{engine: eng, router: router}
}

// DraftRequest describes one rewrite call.
type DraftRequest struct {
	// Message is the user's draft to rewrite. Required.
	Message string

	// Platform selects the prompt register (linkedin, gmail, other).
	Platform string

	// Tone adjusts the fallback template (professional, friendly).
	Tone string

	// Recipient is the counterpart display name, used for lane routing
	// and addressed naturally in the rewrite when known.
	Recipient string

	// Model is the requested model name; normalized before routing.
	// "fallback" forces the deterministic rewrite.
	Model string

	// UseContext disables retrieval when false.
	UseContext bool
}

// RewriteResult is the outcome of a rewrite call.
type RewriteResult struct {
	RewrittenMessage string
	OriginalMessage  string
	ContextUsed      bool
	RAGContext       string
	Model            string
}

// Rewrite retrieves conversation context for the recipient, builds a
// platform-specific prompt and asks the generator. Provider failures
// surface as ErrGeneration; a missing provider degrades to the
// deterministic fallback rewrite instead.
func (c *Composer) Rewrite(ctx context.Context, req DraftRequest) (*RewriteResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: draft message is required", types.ErrValidation)
	}

	result := &RewriteResult{OriginalMessage: req.Message}

	if req.UseContext {
		bundle, err := c.engine.RetrieveAndAssemble(ctx, engine.RetrieveRequest{
			Platform:    req.Platform,
			Counterpart: req.Recipient,
		})
		if err != nil {
			return nil, err
		}
		result.ContextUsed = bundle.ContextUsed
		result.RAGContext = bundle.Text
	}

	model := llm.NormalizeModel(req.Model)
	if model == "fallback" {
		result.RewrittenMessage = fallbackRewrite(message, req.Tone, req.Platform)
		result.Model = "fallback"
		return result, nil
	}

	gen, err := c.router.ForModel(model)
	if errors.Is(err, llm.ErrNoProvider) {
		log.Printf("No LLM provider for model %q, using fallback rewrite", model)
		result.RewrittenMessage = fallbackRewrite(message, req.Tone, req.Platform)
		result.Model = "fallback"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	prompt := rewritePrompt(message, result.RAGContext, req.Platform, req.Recipient)
	raw, err := gen.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	result.RewrittenMessage = cleanResponse(raw)
	result.Model = gen.GetModel()
	return result, nil
}

// ChatRequest describes one chat-with-memory call.
type ChatRequest struct {
	// Question is the user's message. Required.
	Question string

	// SessionTag selects an explicit lane ("summarizer"); empty routes to
	// the counterpart lane derived from Platform and Counterpart.
	SessionTag  string
	Platform    string
	Counterpart string

	// Model is the requested model name.
	Model string

	// PageURL attaches the stored page summary for that URL to the
	// prompt, switching the chat into page Q&A mode.
	PageURL string
}

// ChatResult is the outcome of a chat call.
type ChatResult struct {
	Answer      string
	SessionID   string
	ContextUsed bool
	Model       string
}

// Chat appends the user turn to its session lane, gathers lane history
// plus knowledge snippets, asks the generator, and appends the assistant
// turn. Each lane's history is isolated: the summarizer lane never mixes
// with counterpart lanes.
func (c *Composer) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", types.ErrValidation)
	}

	lane := engine.Route(req.Platform, req.Counterpart, req.SessionTag)
	store := c.engine.Store()
	now := time.Now().UTC()

	// History is read before appending the user turn so the prompt does
	// not repeat the current question.
	history, err := store.ChatHistory(ctx, lane.ID, 0)
	if err != nil {
		log.Printf("Chat history unavailable for lane %s: %v", lane.ID, err)
	}

	if err := store.AppendChatTurn(ctx, &types.ChatTurn{
		ID: uuid.NewString(), SessionID: lane.ID, Role: types.RoleUser, Text: question, OccurredAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to record user turn: %w", err)
	}

	// Knowledge snippets: counterpart lanes pull conversation memory;
	// tagged lanes rely on their own history.
	var knowledge string
	contextUsed := false
	if !lane.Tagged {
		bundle, err := c.engine.RetrieveAndAssemble(ctx, engine.RetrieveRequest{
			Platform:    req.Platform,
			Counterpart: req.Counterpart,
		})
		if err == nil {
			knowledge = bundle.Text
			contextUsed = bundle.ContextUsed
		}
	}

	var page *types.PageSummary
	if req.PageURL != "" {
		page, err = store.PageSummary(ctx, req.PageURL)
		if err != nil {
			log.Printf("No stored page for %s: %v", req.PageURL, err)
			page = nil
		} else {
			contextUsed = true
		}
	}

	answer, model, err := c.generateAnswer(ctx, question, knowledge, page, history, req.Model)
	if err != nil {
		return nil, err
	}

	if err := store.AppendChatTurn(ctx, &types.ChatTurn{
		ID: uuid.NewString(), SessionID: lane.ID, Role: types.RoleAssistant, Text: answer, OccurredAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("Failed to record assistant turn for lane %s: %v", lane.ID, err)
	}

	return &ChatResult{
		Answer:      answer,
		SessionID:   lane.ID,
		ContextUsed: contextUsed,
		Model:       model,
	}, nil
}

func (c *Composer) generateAnswer(ctx context.Context, question, knowledge string, page *types.PageSummary, history []*types.ChatTurn, model string) (string, string, error) {
	normalized := llm.NormalizeModel(model)
	if normalized == "fallback" {
		return fallbackAnswer(question, knowledge), "fallback", nil
	}

	gen, err := c.router.ForModel(normalized)
	if errors.Is(err, llm.ErrNoProvider) {
		return fallbackAnswer(question, knowledge), "fallback", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var prompt string
	if page != nil {
		prompt = summarizerPrompt(question, page, historyText(history))
	} else {
		prompt = chatPrompt(question, knowledge, historyText(history))
	}

	raw, err := gen.Complete(ctx, prompt)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return strings.TrimSpace(raw), gen.GetModel(), nil
}

// SummarizeRequest describes one page summarization call.
type SummarizeRequest struct {
	// SourceURL keys the stored page. Required.
	SourceURL string

	// Title is the page title; empty falls back to the first markdown
	// heading of the content.
	Title string

	// Content is the captured page text. Required.
	Content string

	// Model is the requested model name.
	Model string
}

// SummarizeResult is the outcome of a summarize call.
type SummarizeResult struct {
	SourceURL string
	Title     string
	Summary   string
	Model     string
}

// Summarize stores the page (latest capture wins) and generates a summary
// in the summarizer lane.
func (c *Composer) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResult, error) {
	if req.SourceURL == "" {
		return nil, fmt.Errorf("%w: source URL is required", types.ErrValidation)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: page content is required", types.ErrValidation)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = titleFromMarkdown(content)
	}

	page := &types.PageSummary{
		SourceURL:   req.SourceURL,
		Title:       title,
		SummaryText: content,
		CapturedAt:  time.Now().UTC(),
	}
	if err := c.engine.Store().UpsertPageSummary(ctx, page); err != nil {
		return nil, fmt.Errorf("failed to store page: %w", err)
	}

	chatResult, err := c.Chat(ctx, ChatRequest{
		Question:   "Summarize this page.",
		SessionTag: "summarizer",
		Model:      req.Model,
		PageURL:    req.SourceURL,
	})
	if err != nil {
		return nil, err
	}

	return &SummarizeResult{
		SourceURL: req.SourceURL,
		Title:     title,
		Summary:   chatResult.Answer,
		Model:     chatResult.Model,
	}, nil
}

// ClearChat wipes one session lane's history.
func (c *Composer) ClearChat(ctx context.Context, platform, counterpart, tag string) error {
	lane := engine.Route(platform, counterpart, tag)
	return c.engine.Store().ClearChatHistory(ctx, lane.ID)
}

func historyText(history []*types.ChatTurn) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range history {
		label := "User"
		if turn.Role == types.RoleAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// titleFromMarkdown falls back to the first markdown heading of the text.
func titleFromMarkdown(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}
