package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scrypster/recall/internal/composer"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// defaultPlatform applies when a request omits the platform field.
const defaultPlatform = "linkedin"

// APIHandlers contains the HTTP handlers for the REST API.
type APIHandlers struct {
	engine    *engine.Engine
	composer  *composer.Composer
	llmRouter *llm.Router
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng *engine.Engine, comp *composer.Composer, router *llm.Router) *APIHandlers {
	return &APIHandlers{
		engine:    eng,
		composer:  comp,
		llmRouter: router,
	}
}

// Health handles GET /health. It reports store reachability and generator
// availability; an unreachable store degrades the status and the HTTP code
// so monitors and the extension can back off.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "healthy",
		Store:        "ok",
		LLMAvailable: h.llmRouter.Available(),
		QueueSize:    h.engine.QueueSize(),
		Version:      Version,
	}

	code := http.StatusOK
	if err := h.engine.Store().Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "unreachable"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, resp)
}

// IngestEvents handles POST /api/events. Events are validated and queued
// for asynchronous persistence; the response is always 202 once the body
// parses. Per-event failures are counted, logged and dropped, never
// surfaced as request errors.
func (h *APIHandlers) IngestEvents(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if len(req.Events) == 0 {
		respondError(w, http.StatusBadRequest, "events list is empty", nil)
		return
	}

	resp := IngestResponse{}
	for _, env := range req.Events {
		event, err := toEvent(env)
		if err != nil {
			resp.Dropped++
			continue
		}
		if h.engine.Ingest(event) {
			resp.Accepted++
		} else {
			resp.Dropped++
		}
	}

	respondJSON(w, http.StatusAccepted, resp)
}

// toEvent converts a wire envelope into a typed ingestion event.
func toEvent(env EventEnvelope) (types.Event, error) {
	switch types.EventKind(env.Kind) {
	case types.EventKindMessage:
		return types.MessageEvent{
			Platform:    env.Platform,
			Counterpart: env.Counterpart,
			Text:        env.Text,
			Direction:   types.Direction(env.Direction),
			OccurredAt:  env.OccurredAt,
		}, nil
	case types.EventKindProfile:
		var profile types.CapturedProfile
		if err := json.Unmarshal(env.Profile, &profile); err != nil {
			return nil, fmt.Errorf("invalid profile payload: %w", err)
		}
		profile.ClampLists()
		return types.ProfileEvent{Profile: profile}, nil
	case types.EventKindPage:
		var page types.PageSummary
		if err := json.Unmarshal(env.Page, &page); err != nil {
			return nil, fmt.Errorf("invalid page payload: %w", err)
		}
		return types.PageEvent{Page: page}, nil
	case types.EventKindChatTurn:
		return types.ChatTurnEvent{
			SessionID:  env.SessionID,
			Role:       types.Role(env.Role),
			Text:       env.Text,
			OccurredAt: env.OccurredAt,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

// Rewrite handles POST /api/rewrite.
func (h *APIHandlers) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	useContext := true
	if req.UseContext != nil {
		useContext = *req.UseContext
	}

	result, err := h.composer.Rewrite(r.Context(), composer.DraftRequest{
		Message:    req.Message,
		Platform:   platformOrDefault(req.Platform),
		Tone:       req.Tone,
		Recipient:  req.Recipient,
		Model:      req.Model,
		UseContext: useContext,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			respondError(w, http.StatusBadRequest, "invalid rewrite request", err)
		case errors.Is(err, composer.ErrGeneration):
			respondError(w, http.StatusBadGateway, "text generation failed", err)
		default:
			respondError(w, http.StatusInternalServerError, "rewrite failed", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, RewriteResponse{
		RewrittenMessage: result.RewrittenMessage,
		OriginalMessage:  result.OriginalMessage,
		ContextUsed:      result.ContextUsed,
		RAGContext:       result.RAGContext,
		Model:            result.Model,
	})
}

// GetConversation handles GET /api/conversations/{recipient}. Messages
// come back most-recent-first.
func (h *APIHandlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	recipient := r.PathValue("recipient")
	if recipient == "" {
		respondError(w, http.StatusBadRequest, "recipient is required", nil)
		return
	}
	platform := platformOrDefault(r.URL.Query().Get("platform"))
	limit := storage.ClampLimit(parseInt(r.URL.Query().Get("limit"), 0), storage.DefaultMessageLimit)

	key := storage.NewContactKey(platform, recipient)
	messages, err := h.engine.Store().RecentMessages(r.Context(), key, limit)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "failed to load conversation", err)
		return
	}
	if messages == nil {
		messages = []*types.InteractionMessage{}
	}

	respondJSON(w, http.StatusOK, ConversationResponse{
		Recipient: key.NormalizedName,
		Platform:  key.Platform,
		Messages:  messages,
	})
}

// DeleteConversation handles DELETE /api/conversations/{recipient}. The
// contact and its full message subgraph are removed; purging an unknown
// contact reports zero deletions.
func (h *APIHandlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	recipient := r.PathValue("recipient")
	if recipient == "" {
		respondError(w, http.StatusBadRequest, "recipient is required", nil)
		return
	}
	platform := platformOrDefault(r.URL.Query().Get("platform"))

	deleted, err := h.engine.PurgeContact(r.Context(), platform, recipient)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to purge conversation", err)
		return
	}

	key := storage.NewContactKey(platform, recipient)
	respondJSON(w, http.StatusOK, PurgeResponse{
		Recipient:       key.NormalizedName,
		Platform:        key.Platform,
		MessagesDeleted: deleted,
	})
}

// ContactStats handles GET /api/contacts/{recipient}/stats.
func (h *APIHandlers) ContactStats(w http.ResponseWriter, r *http.Request) {
	recipient := r.PathValue("recipient")
	if recipient == "" {
		respondError(w, http.StatusBadRequest, "recipient is required", nil)
		return
	}
	platform := platformOrDefault(r.URL.Query().Get("platform"))

	key := storage.NewContactKey(platform, recipient)
	stats, err := h.engine.Store().ContactStats(r.Context(), key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load contact stats", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Chat handles POST /api/chat.
func (h *APIHandlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	result, err := h.composer.Chat(r.Context(), composer.ChatRequest{
		Question:    req.Question,
		SessionTag:  req.SessionTag,
		Platform:    req.Platform,
		Counterpart: req.Counterpart,
		Model:       req.Model,
		PageURL:     req.PageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			respondError(w, http.StatusBadRequest, "invalid chat request", err)
		case errors.Is(err, composer.ErrGeneration):
			respondError(w, http.StatusBadGateway, "text generation failed", err)
		default:
			respondError(w, http.StatusInternalServerError, "chat failed", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, ChatResponse{
		Answer:      result.Answer,
		SessionID:   result.SessionID,
		ContextUsed: result.ContextUsed,
		Model:       result.Model,
	})
}

// ClearChatHistory handles DELETE /api/chat-history. The lane is selected
// by session_id, by tag, or by platform and counterpart.
func (h *APIHandlers) ClearChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if sessionID := q.Get("session_id"); sessionID != "" {
		if err := h.engine.Store().ClearChatHistory(r.Context(), sessionID); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to clear chat history", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"cleared": sessionID})
		return
	}

	tag := q.Get("tag")
	counterpart := q.Get("counterpart")
	if tag == "" && counterpart == "" {
		respondError(w, http.StatusBadRequest, "session_id, tag or counterpart is required", nil)
		return
	}

	platform := platformOrDefault(q.Get("platform"))
	if err := h.composer.ClearChat(r.Context(), platform, counterpart, tag); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear chat history", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"cleared": engine.Route(platform, counterpart, tag).ID})
}

// Summarize handles POST /api/summarize.
func (h *APIHandlers) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	result, err := h.composer.Summarize(r.Context(), composer.SummarizeRequest{
		SourceURL: req.SourceURL,
		Title:     req.Title,
		Content:   req.Content,
		Model:     req.Model,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			respondError(w, http.StatusBadRequest, "invalid summarize request", err)
		case errors.Is(err, composer.ErrGeneration):
			respondError(w, http.StatusBadGateway, "text generation failed", err)
		default:
			respondError(w, http.StatusInternalServerError, "summarize failed", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, SummarizeResponse{
		SourceURL: result.SourceURL,
		Title:     result.Title,
		Summary:   result.Summary,
		Model:     result.Model,
	})
}

// SearchPages handles GET /api/pages/search.
func (h *APIHandlers) SearchPages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}
	limit := storage.ClampLimit(parseInt(r.URL.Query().Get("limit"), 0), 20)

	results, err := h.engine.Store().SearchPages(r.Context(), query, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "page search failed", err)
		return
	}
	if results == nil {
		results = []*types.PageSummary{}
	}

	respondJSON(w, http.StatusOK, PageSearchResponse{Query: query, Results: results})
}

// AvailableModels handles GET /api/llm/models.
func (h *APIHandlers) AvailableModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModelsResponse{Models: h.llmRouter.AvailableModels()})
}

func platformOrDefault(platform string) string {
	if platform == "" {
		return defaultPlatform
	}
	return platform
}

// parseInt parses an integer from a string, returning defaultValue if
// parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent, nothing more to do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{"error": err.Error()}
	}
	respondJSON(w, statusCode, errResp)
}
