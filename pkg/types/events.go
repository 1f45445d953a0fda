package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation is the sentinel for malformed ingestion events. The
// ingestion pipeline drops such events and logs them; the error is never
// surfaced to interactive callers.
var ErrValidation = errors.New("event validation failed")

// EventKind identifies an ingestion event variant.
type EventKind string

const (
	EventKindMessage  EventKind = "message"
	EventKindProfile  EventKind = "profile"
	EventKindPage     EventKind = "page"
	EventKindChatTurn EventKind = "chat_turn"
)

// Event is the closed union of ingestion event shapes. The sealed marker
// method keeps the set of variants fixed; the ingestion pipeline dispatches
// on the concrete type with an exhaustive switch instead of probing fields.
type Event interface {
	Kind() EventKind
	Validate() error

	sealedEvent()
}

// MessageEvent records one sent or observed interaction message.
type MessageEvent struct {
	Platform    string
	Counterpart string
	Text        string
	Direction   Direction
	OccurredAt  time.Time
}

func (MessageEvent) Kind() EventKind { return EventKindMessage }
func (MessageEvent) sealedEvent()    {}

// Validate checks the required identity and payload fields.
func (e MessageEvent) Validate() error {
	if e.Platform == "" {
		return fmt.Errorf("%w: message event missing platform", ErrValidation)
	}
	if NormalizeName(e.Counterpart) == "" {
		return fmt.Errorf("%w: message event missing counterpart", ErrValidation)
	}
	if e.Text == "" {
		return fmt.Errorf("%w: message event missing text", ErrValidation)
	}
	if !e.Direction.Valid() {
		return fmt.Errorf("%w: message event has unknown direction %q", ErrValidation, e.Direction)
	}
	return nil
}

// ProfileEvent records a captured counterpart profile.
type ProfileEvent struct {
	Profile CapturedProfile
}

func (ProfileEvent) Kind() EventKind { return EventKindProfile }
func (ProfileEvent) sealedEvent()    {}

// Validate checks the upsert key fields.
func (e ProfileEvent) Validate() error {
	if e.Profile.SourceURL == "" {
		return fmt.Errorf("%w: profile event missing source URL", ErrValidation)
	}
	if e.Profile.Platform == "" {
		return fmt.Errorf("%w: profile event missing platform", ErrValidation)
	}
	return nil
}

// PageEvent records a captured page for summarization and Q&A.
type PageEvent struct {
	Page PageSummary
}

func (PageEvent) Kind() EventKind { return EventKindPage }
func (PageEvent) sealedEvent()    {}

// Validate checks the upsert key fields.
func (e PageEvent) Validate() error {
	if e.Page.SourceURL == "" {
		return fmt.Errorf("%w: page event missing source URL", ErrValidation)
	}
	return nil
}

// ChatTurnEvent records one turn of an assistant chat session.
type ChatTurnEvent struct {
	SessionID  string
	Role       Role
	Text       string
	OccurredAt time.Time
}

func (ChatTurnEvent) Kind() EventKind { return EventKindChatTurn }
func (ChatTurnEvent) sealedEvent()    {}

// Validate checks the lane key and payload fields.
func (e ChatTurnEvent) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("%w: chat turn event missing session ID", ErrValidation)
	}
	if !e.Role.Valid() {
		return fmt.Errorf("%w: chat turn event has unknown role %q", ErrValidation, e.Role)
	}
	if e.Text == "" {
		return fmt.Errorf("%w: chat turn event missing text", ErrValidation)
	}
	return nil
}
