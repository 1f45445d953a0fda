// Package types defines the graph node types and ingestion event variants
// shared across the Recall engine, storage backends, and HTTP layer.
package types

import (
	"strings"
	"time"
)

// Direction indicates whether an interaction message was sent or received.
type Direction string

const (
	// DirectionOutgoing marks a message the user sent to the counterpart.
	DirectionOutgoing Direction = "outgoing"

	// DirectionIncoming marks a message the counterpart sent to the user.
	DirectionIncoming Direction = "incoming"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// NormalizeName canonicalizes a counterpart display name for identity keys:
// lowercase with internal whitespace collapsed to single spaces.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// Contact is a graph node representing a message counterpart.
// Identity key is (Platform, NormalizedName); one node per key.
type Contact struct {
	Platform          string    `json:"platform"`
	NormalizedName    string    `json:"normalized_name"`
	DisplayName       string    `json:"display_name"`
	FirstSeenAt       time.Time `json:"first_seen_at"`
	LastInteractionAt time.Time `json:"last_interaction_at"` // monotonic, never decreases
}

// InteractionMessage is a single sent or received message, owned by exactly
// one Contact. Immutable once created; corrections are new nodes.
type InteractionMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Direction  Direction `json:"direction"`
	OccurredAt time.Time `json:"occurred_at"`
	Platform   string    `json:"platform"`
}

// Sub-list caps for captured profiles. Re-captures replace the lists in
// full, so these bound payload growth per profile.
const (
	MaxProfileExperience = 5
	MaxProfileEducation  = 3
	MaxProfileSkills     = 10
)

// ExperienceEntry is one position in a captured profile's experience list.
type ExperienceEntry struct {
	Title    string `json:"title"`
	Company  string `json:"company,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// EducationEntry is one school in a captured profile's education list.
type EducationEntry struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Years  string `json:"years,omitempty"`
}

// CapturedProfile is a scraped counterpart profile, upserted by SourceURL.
// A re-capture replaces scalar fields and sub-lists atomically.
type CapturedProfile struct {
	SourceURL   string            `json:"source_url"`
	Platform    string            `json:"platform"`
	DisplayName string            `json:"display_name"`
	Headline    string            `json:"headline,omitempty"`
	Location    string            `json:"location,omitempty"`
	About       string            `json:"about,omitempty"`
	Experience  []ExperienceEntry `json:"experience,omitempty"`
	Education   []EducationEntry  `json:"education,omitempty"`
	Skills      []string          `json:"skills,omitempty"`
	CapturedAt  time.Time         `json:"captured_at"`
}

// ClampLists enforces the fixed sub-list caps in place.
func (p *CapturedProfile) ClampLists() {
	if len(p.Experience) > MaxProfileExperience {
		p.Experience = p.Experience[:MaxProfileExperience]
	}
	if len(p.Education) > MaxProfileEducation {
		p.Education = p.Education[:MaxProfileEducation]
	}
	if len(p.Skills) > MaxProfileSkills {
		p.Skills = p.Skills[:MaxProfileSkills]
	}
}

// PageSummary is a captured page, upserted by SourceURL with latest-wins
// semantics.
type PageSummary struct {
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	SummaryText string    `json:"summary_text"`
	CapturedAt  time.Time `json:"captured_at"`
}

// ChatTurn is one turn in an assistant chat session lane. Append-only,
// totally ordered by OccurredAt within a SessionID (ties broken by
// insertion sequence).
type ChatTurn struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ContactStats summarizes stored interaction history for one contact.
type ContactStats struct {
	TotalMessages int        `json:"total_messages"`
	OutgoingCount int        `json:"outgoing_count"`
	IncomingCount int        `json:"incoming_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}
