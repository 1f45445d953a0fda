// Package engine provides the core memory engine: asynchronous event
// ingestion over a worker pool, recency-based context retrieval under a
// hard read deadline, and bounded context assembly.
package engine

import (
	"fmt"
	"time"

	"github.com/scrypster/recall/pkg/types"
)

// IngestJob carries one event through the ingestion pipeline.
// Jobs are queued by Ingest and processed by worker goroutines.
type IngestJob struct {
	// Event is the validated event to persist.
	Event types.Event

	// Timestamp is when the job was queued.
	Timestamp time.Time

	// Attempt tracks retry attempts for this job. Each job is retried at
	// most once after a transient failure.
	Attempt int
}

// Config holds configuration for the memory engine.
type Config struct {
	// NumWorkers is the number of ingestion worker goroutines (default: 2).
	NumWorkers int

	// QueueSize is the size of the ingest job queue buffer (default: 256).
	QueueSize int

	// ShutdownTimeout is the maximum time to wait for workers to drain on
	// shutdown (default: 30s).
	ShutdownTimeout time.Duration

	// ReadDeadline bounds each retrieval; on expiry the engine serves an
	// empty context instead of blocking the caller (default: 500ms).
	ReadDeadline time.Duration

	// MessageWindow is the number of recent messages retrieved per contact
	// (default: 10). The ingestion dedupe check uses the same window.
	MessageWindow int

	// TurnWindow is the number of chat turns retrieved per session lane
	// (default: 20).
	TurnWindow int

	// ContextCharLimit is the assembled context character budget
	// (default: 4000).
	ContextCharLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NumWorkers:       2,
		QueueSize:        256,
		ShutdownTimeout:  30 * time.Second,
		ReadDeadline:     500 * time.Millisecond,
		MessageWindow:    10,
		TurnWindow:       20,
		ContextCharLimit: 4000,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("NumWorkers must be >= 1, got %d", c.NumWorkers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QueueSize must be >= 1, got %d", c.QueueSize)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}
	if c.ReadDeadline <= 0 {
		return fmt.Errorf("ReadDeadline must be > 0, got %v", c.ReadDeadline)
	}
	if c.MessageWindow < 1 {
		return fmt.Errorf("MessageWindow must be >= 1, got %d", c.MessageWindow)
	}
	if c.TurnWindow < 1 {
		return fmt.Errorf("TurnWindow must be >= 1, got %d", c.TurnWindow)
	}
	if c.ContextCharLimit < 1 {
		return fmt.Errorf("ContextCharLimit must be >= 1, got %d", c.ContextCharLimit)
	}
	return nil
}

// ContextSlice is the raw material retrieved for one lane before assembly.
// A zero slice is a valid result: it means nothing was found (or the read
// deadline expired) and assembly degrades to the visible snippet alone.
type ContextSlice struct {
	// Profile is the captured profile matching the counterpart, if any.
	Profile *types.CapturedProfile

	// Messages holds prior interaction messages in chronological order.
	Messages []*types.InteractionMessage

	// Turns holds chat turns for a tagged lane, oldest-first.
	Turns []*types.ChatTurn
}

// Empty reports whether the slice contributed no retrieved nodes.
func (s *ContextSlice) Empty() bool {
	return s == nil || (s.Profile == nil && len(s.Messages) == 0 && len(s.Turns) == 0)
}

// ContextBundle is the assembled context ready to prepend to a prompt.
type ContextBundle struct {
	// Text is the ordered, budgeted context text including the visible
	// snippet as its final section.
	Text string

	// ContextUsed is true iff at least one retrieved node contributed
	// text that survived budgeting.
	ContextUsed bool

	// Lane is the session lane the context was retrieved from.
	Lane string
}

// RetrieveRequest describes one retrieval and assembly call.
type RetrieveRequest struct {
	// Platform and Counterpart identify the default lane.
	Platform    string
	Counterpart string

	// Tag routes to an explicit session lane, independent of counterpart.
	Tag string

	// VisibleSnippet is what the caller currently sees (the draft being
	// rewritten, the visible conversation tail). Always included in the
	// assembled text and never truncated away.
	VisibleSnippet string

	// MaxMessages overrides the configured message window when positive.
	MaxMessages int

	// Deadline overrides the configured read deadline when positive.
	Deadline time.Duration
}
