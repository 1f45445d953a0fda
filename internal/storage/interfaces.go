// Package storage defines the graph store contract for the Recall engine.
//
// The graph is the only persisted state: contacts, their interaction
// messages, captured profiles, page summaries and chat turns are nodes,
// and edges are the only relationship mechanism. Backends implement the
// GraphStore interface independently (sqlite, postgres, neo4j).
package storage

import (
	"context"

	"github.com/scrypster/recall/pkg/types"
)

// GraphStore is typed CRUD over the relationship graph. All write
// operations are atomic per call: a crash mid-call leaves either the prior
// state or the fully-applied new state, never a partial node. Reads never
// hold locks beyond one operation's duration. Implementations must be safe
// for concurrent use by multiple in-flight requests.
type GraphStore interface {
	// UpsertContact creates the contact node for the given key if it does
	// not exist and returns it. Concurrent first-writes for the same key
	// converge to one node. LastInteractionAt advances monotonically and
	// never decreases.
	UpsertContact(ctx context.Context, key ContactKey) (*types.Contact, error)

	// AppendMessage stores an immutable interaction message owned by the
	// contact. Fails with ErrConflict only if msg.ID already exists;
	// otherwise it always succeeds and advances the contact's
	// LastInteractionAt.
	AppendMessage(ctx context.Context, key ContactKey, msg *types.InteractionMessage) error

	// RecentMessages returns up to limit messages for the contact,
	// most-recent-first. A contact with no history yields an empty slice,
	// not an error.
	RecentMessages(ctx context.Context, key ContactKey, limit int) ([]*types.InteractionMessage, error)

	// UpsertProfile stores a captured profile keyed by SourceURL. A
	// re-capture replaces scalar fields and sub-lists atomically; there is
	// no partial merge. Last write wins by CapturedAt.
	UpsertProfile(ctx context.Context, profile *types.CapturedProfile) error

	// Profile returns the captured profile for the URL, or ErrNotFound.
	Profile(ctx context.Context, sourceURL string) (*types.CapturedProfile, error)

	// ProfileByName returns the most recently captured profile on the
	// platform whose normalized display name matches, or ErrNotFound.
	ProfileByName(ctx context.Context, platform, displayName string) (*types.CapturedProfile, error)

	// UpsertPageSummary stores a page summary keyed by SourceURL,
	// latest-wins by CapturedAt.
	UpsertPageSummary(ctx context.Context, page *types.PageSummary) error

	// PageSummary returns the stored page for the URL, or ErrNotFound.
	PageSummary(ctx context.Context, sourceURL string) (*types.PageSummary, error)

	// SearchPages returns pages whose title or URL contains the query,
	// most recently captured first.
	SearchPages(ctx context.Context, query string, limit int) ([]*types.PageSummary, error)

	// AppendChatTurn appends one turn to a session lane. Turns are
	// append-only and totally ordered by OccurredAt within the lane, ties
	// broken by insertion sequence.
	AppendChatTurn(ctx context.Context, turn *types.ChatTurn) error

	// ChatHistory returns up to limit turns for the lane, oldest-first.
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]*types.ChatTurn, error)

	// ClearChatHistory removes all turns for the lane.
	ClearChatHistory(ctx context.Context, sessionID string) error

	// ContactStats summarizes the stored history for one contact. A
	// contact with no history yields zero counts, not an error.
	ContactStats(ctx context.Context, key ContactKey) (*types.ContactStats, error)

	// PurgeContact deletes the contact's full subgraph (the contact node
	// and every message it owns) and returns the number of messages
	// removed. Purging an unknown contact returns 0, not an error.
	PurgeContact(ctx context.Context, key ContactKey) (int, error)

	// Ping reports whether the underlying store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
