package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// ingestWorker processes ingest jobs until the queue is closed.
func (e *Engine) ingestWorker(ctx context.Context, workerID int) {
	defer e.workerWaitGroup.Done()

	log.Printf("Ingest worker %d started", workerID)

	for job := range e.ingestQueue {
		e.processIngestJob(ctx, workerID, job)
	}

	log.Printf("Ingest worker %d stopped", workerID)
}

// processIngestJob persists one event. Transient failures are retried at
// most once with backoff; a second failure drops the event with a logged
// error. storage.ErrConflict counts as success: replays of an already
// stored event are idempotent no-ops.
func (e *Engine) processIngestJob(ctx context.Context, workerID int, job *IngestJob) {
	// Background context for store writes so in-flight jobs survive
	// request cancellation during shutdown drain.
	dbCtx := context.Background()

	if job.Attempt > 0 {
		backoff := time.Duration(job.Attempt*job.Attempt) * 100 * time.Millisecond
		log.Printf("Worker %d: waiting %v before retry of %s event", workerID, backoff, job.Event.Kind())
		time.Sleep(backoff)
	}

	err := e.storeEvent(dbCtx, job.Event)
	if err == nil || errors.Is(err, storage.ErrConflict) {
		return
	}
	if errors.Is(err, storage.ErrInvalidInput) {
		log.Printf("Worker %d: dropping invalid %s event: %v", workerID, job.Event.Kind(), err)
		e.notifyDropped(job.Event.Kind(), "invalid: "+err.Error())
		return
	}

	if job.Attempt == 0 {
		job.Attempt++
		// A failed requeue already logs and notifies the drop.
		if !e.queueJob(job) {
			log.Printf("ERROR: Worker %d could not requeue failed %s event: %v",
				workerID, job.Event.Kind(), err)
		}
		return
	}

	log.Printf("ERROR: Worker %d dropping %s event after %d attempts: %v",
		workerID, job.Event.Kind(), job.Attempt+1, err)
	e.notifyDropped(job.Event.Kind(), err.Error())
}

// storeEvent dispatches one event to the graph store.
func (e *Engine) storeEvent(ctx context.Context, event types.Event) error {
	switch ev := event.(type) {
	case *types.MessageEvent:
		return e.storeMessage(ctx, ev)
	case *types.ProfileEvent:
		return e.storeProfile(ctx, ev.Profile)
	case *types.PageEvent:
		return e.storePage(ctx, ev.Page)
	case *types.ChatTurnEvent:
		return e.storeChatTurn(ctx, ev)
	case types.MessageEvent:
		return e.storeMessage(ctx, &ev)
	case types.ProfileEvent:
		return e.storeProfile(ctx, ev.Profile)
	case types.PageEvent:
		return e.storePage(ctx, ev.Page)
	case types.ChatTurnEvent:
		return e.storeChatTurn(ctx, &ev)
	default:
		log.Printf("Dropping event of unknown kind %s", event.Kind())
		return nil
	}
}

func (e *Engine) storeProfile(ctx context.Context, profile types.CapturedProfile) error {
	if profile.CapturedAt.IsZero() {
		profile.CapturedAt = time.Now().UTC()
	}
	if err := e.store.UpsertProfile(ctx, &profile); err != nil {
		return err
	}
	e.notifyStored(types.EventKindProfile, profile.SourceURL)
	return nil
}

func (e *Engine) storePage(ctx context.Context, page types.PageSummary) error {
	if page.CapturedAt.IsZero() {
		page.CapturedAt = time.Now().UTC()
	}
	if page.Title == "" {
		page.Title = titleFromMarkdown(page.SummaryText)
	}
	if err := e.store.UpsertPageSummary(ctx, &page); err != nil {
		return err
	}
	e.notifyStored(types.EventKindPage, page.SourceURL)
	return nil
}

func (e *Engine) storeChatTurn(ctx context.Context, ev *types.ChatTurnEvent) error {
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	turn := &types.ChatTurn{
		ID:         uuid.NewString(),
		SessionID:  ev.SessionID,
		Role:       ev.Role,
		Text:       ev.Text,
		OccurredAt: occurredAt,
	}
	if err := e.store.AppendChatTurn(ctx, turn); err != nil {
		return err
	}
	e.notifyStored(types.EventKindChatTurn, ev.SessionID)
	return nil
}

// storeMessage appends one interaction message, skipping replays. The
// dedupe check compares (text, direction) against the most recent window
// of stored messages so the same visible conversation can be captured
// repeatedly without growing the graph.
func (e *Engine) storeMessage(ctx context.Context, ev *types.MessageEvent) error {
	key := storage.NewContactKey(ev.Platform, ev.Counterpart)

	recent, err := e.store.RecentMessages(ctx, key, e.config.MessageWindow)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	for _, m := range recent {
		if m.Text == ev.Text && m.Direction == ev.Direction {
			return nil
		}
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	msg := &types.InteractionMessage{
		ID:         uuid.NewString(),
		Text:       ev.Text,
		Direction:  ev.Direction,
		OccurredAt: occurredAt,
		Platform:   ev.Platform,
	}
	if err := e.store.AppendMessage(ctx, key, msg); err != nil {
		return err
	}
	e.notifyStored(types.EventKindMessage, key.String())
	return nil
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
