// Package sqlite implements the GraphStore on an embedded SQLite database.
// It is the default backend: zero external dependencies, one file on disk.
//
// Nodes live in typed tables; the edges table is the only link between
// contacts and messages. Edge kind encodes message direction the same way
// the graph model does: SENT (contact→message, incoming) and SENT_TO
// (message→contact, outgoing).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Schema creates all node tables and the edges table. Kept as one constant
// so a fresh database is fully initialized in a single Exec.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	platform            TEXT NOT NULL,
	name_norm           TEXT NOT NULL,
	display_name        TEXT NOT NULL DEFAULT '',
	first_seen_at       TIMESTAMP NOT NULL,
	last_interaction_at TIMESTAMP NOT NULL,
	PRIMARY KEY (platform, name_norm)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	direction   TEXT NOT NULL CHECK (direction IN ('outgoing', 'incoming')),
	occurred_at TIMESTAMP NOT NULL,
	platform    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	kind             TEXT NOT NULL CHECK (kind IN ('SENT', 'SENT_TO')),
	contact_platform TEXT NOT NULL,
	contact_name     TEXT NOT NULL,
	message_id       TEXT NOT NULL UNIQUE,
	FOREIGN KEY (contact_platform, contact_name) REFERENCES contacts(platform, name_norm),
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_edges_contact ON edges(contact_platform, contact_name);

CREATE TABLE IF NOT EXISTS profiles (
	source_url      TEXT PRIMARY KEY,
	platform        TEXT NOT NULL,
	display_name    TEXT NOT NULL DEFAULT '',
	name_norm       TEXT NOT NULL DEFAULT '',
	headline        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	about           TEXT NOT NULL DEFAULT '',
	experience_json TEXT NOT NULL DEFAULT '[]',
	education_json  TEXT NOT NULL DEFAULT '[]',
	skills_json     TEXT NOT NULL DEFAULT '[]',
	captured_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profiles_name ON profiles(platform, name_norm);

CREATE TABLE IF NOT EXISTS pages (
	source_url   TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	summary_text TEXT NOT NULL DEFAULT '',
	captured_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_turns (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	session_id  TEXT NOT NULL,
	role        TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
	text        TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, occurred_at, seq);
`

// GraphStore implements storage.GraphStore using SQLite.
type GraphStore struct {
	db *sql.DB
}

// timeNowUTC is a seam for tests that need deterministic contact timestamps.
var timeNowUTC = func() time.Time { return time.Now().UTC() }

// NewGraphStore opens (creating if necessary) a SQLite graph store at dsn.
func NewGraphStore(dsn string) (*GraphStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent
	// load. WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// GetDB exposes the underlying connection for diagnostics and tests.
func (s *GraphStore) GetDB() *sql.DB {
	return s.db
}

// UpsertContact creates or returns the contact node for the key. The
// ON CONFLICT clause makes concurrent first-writes converge, and
// MAX() keeps last_interaction_at monotonic.
func (s *GraphStore) UpsertContact(ctx context.Context, key storage.ContactKey) (*types.Contact, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	// Timestamps are written from Go (not CURRENT_TIMESTAMP) so every row
	// uses one format and MAX() compares correctly.
	now := timeNowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (platform, name_norm, display_name, first_seen_at, last_interaction_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform, name_norm) DO UPDATE SET
			last_interaction_at = MAX(last_interaction_at, excluded.last_interaction_at)
	`, key.Platform, key.NormalizedName, key.NormalizedName, now, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to upsert contact %s: %w", key, err)
	}

	return s.getContact(ctx, key)
}

func (s *GraphStore) getContact(ctx context.Context, key storage.ContactKey) (*types.Contact, error) {
	var c types.Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT platform, name_norm, display_name, first_seen_at, last_interaction_at
		FROM contacts WHERE platform = ? AND name_norm = ?
	`, key.Platform, key.NormalizedName).Scan(
		&c.Platform, &c.NormalizedName, &c.DisplayName, &c.FirstSeenAt, &c.LastInteractionAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load contact %s: %w", key, err)
	}
	return &c, nil
}

// AppendMessage stores an immutable message node and its ownership edge in
// one transaction. The write connection serialises transactions, so the
// duplicate-ID check inside the transaction is race-free.
func (s *GraphStore) AppendMessage(ctx context.Context, key storage.ContactKey, msg *types.InteractionMessage) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("%w: message ID is required", storage.ErrInvalidInput)
	}
	if !msg.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", storage.ErrInvalidInput, msg.Direction)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM messages WHERE id = ?`, msg.ID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: failed to check message ID: %w", err)
	}
	if exists > 0 {
		return storage.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO contacts (platform, name_norm, display_name, first_seen_at, last_interaction_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform, name_norm) DO UPDATE SET
			last_interaction_at = MAX(last_interaction_at, excluded.last_interaction_at)
	`, key.Platform, key.NormalizedName, key.NormalizedName, msg.OccurredAt.UTC(), msg.OccurredAt.UTC()); err != nil {
		return fmt.Errorf("sqlite: failed to upsert contact for message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, text, direction, occurred_at, platform)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Text, string(msg.Direction), msg.OccurredAt.UTC(), msg.Platform); err != nil {
		return fmt.Errorf("sqlite: failed to insert message %s: %w", msg.ID, err)
	}

	kind := "SENT" // incoming: contact → message
	if msg.Direction == types.DirectionOutgoing {
		kind = "SENT_TO" // outgoing: message → contact
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edges (kind, contact_platform, contact_name, message_id)
		VALUES (?, ?, ?, ?)
	`, kind, key.Platform, key.NormalizedName, msg.ID); err != nil {
		return fmt.Errorf("sqlite: failed to insert edge for message %s: %w", msg.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit message append: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages for the contact,
// most-recent-first (ties broken by insertion sequence).
func (s *GraphStore) RecentMessages(ctx context.Context, key storage.ContactKey, limit int) ([]*types.InteractionMessage, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit, storage.DefaultMessageLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.text, m.direction, m.occurred_at, m.platform
		FROM messages m
		JOIN edges e ON e.message_id = m.id
		WHERE e.contact_platform = ? AND e.contact_name = ?
		ORDER BY m.occurred_at DESC, e.seq DESC
		LIMIT ?
	`, key.Platform, key.NormalizedName, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query messages for %s: %w", key, err)
	}
	defer rows.Close()

	var msgs []*types.InteractionMessage
	for rows.Next() {
		var m types.InteractionMessage
		var direction string
		if err := rows.Scan(&m.ID, &m.Text, &direction, &m.OccurredAt, &m.Platform); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan message: %w", err)
		}
		m.Direction = types.Direction(direction)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// UpsertProfile replaces the profile row for the URL when the capture is at
// least as new. Scalars and sub-lists change together in one statement, so
// a reader never observes a half-replaced profile.
func (s *GraphStore) UpsertProfile(ctx context.Context, profile *types.CapturedProfile) error {
	if profile == nil || profile.SourceURL == "" {
		return fmt.Errorf("%w: profile source URL is required", storage.ErrInvalidInput)
	}

	profile.ClampLists()

	experience, err := json.Marshal(profile.Experience)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal experience: %w", err)
	}
	education, err := json.Marshal(profile.Education)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal education: %w", err)
	}
	skills, err := json.Marshal(profile.Skills)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal skills: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (source_url, platform, display_name, name_norm, headline,
			location, about, experience_json, education_json, skills_json, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			platform = excluded.platform,
			display_name = excluded.display_name,
			name_norm = excluded.name_norm,
			headline = excluded.headline,
			location = excluded.location,
			about = excluded.about,
			experience_json = excluded.experience_json,
			education_json = excluded.education_json,
			skills_json = excluded.skills_json,
			captured_at = excluded.captured_at
		WHERE excluded.captured_at >= profiles.captured_at
	`, profile.SourceURL, profile.Platform, profile.DisplayName,
		types.NormalizeName(profile.DisplayName), profile.Headline, profile.Location,
		profile.About, string(experience), string(education), string(skills),
		profile.CapturedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert profile %s: %w", profile.SourceURL, err)
	}
	return nil
}

// Profile returns the captured profile for the URL.
func (s *GraphStore) Profile(ctx context.Context, sourceURL string) (*types.CapturedProfile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT source_url, platform, display_name, headline, location, about,
			experience_json, education_json, skills_json, captured_at
		FROM profiles WHERE source_url = ?
	`, sourceURL))
}

// ProfileByName returns the most recently captured profile whose normalized
// display name matches on the platform.
func (s *GraphStore) ProfileByName(ctx context.Context, platform, displayName string) (*types.CapturedProfile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT source_url, platform, display_name, headline, location, about,
			experience_json, education_json, skills_json, captured_at
		FROM profiles
		WHERE platform = ? AND name_norm = ?
		ORDER BY captured_at DESC
		LIMIT 1
	`, platform, types.NormalizeName(displayName)))
}

func (s *GraphStore) scanProfile(row *sql.Row) (*types.CapturedProfile, error) {
	var p types.CapturedProfile
	var experience, education, skills string
	err := row.Scan(&p.SourceURL, &p.Platform, &p.DisplayName, &p.Headline,
		&p.Location, &p.About, &experience, &education, &skills, &p.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan profile: %w", err)
	}
	if err := json.Unmarshal([]byte(experience), &p.Experience); err != nil {
		return nil, fmt.Errorf("sqlite: corrupt experience list: %w", err)
	}
	if err := json.Unmarshal([]byte(education), &p.Education); err != nil {
		return nil, fmt.Errorf("sqlite: corrupt education list: %w", err)
	}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("sqlite: corrupt skills list: %w", err)
	}
	return &p, nil
}

// UpsertPageSummary stores a page node keyed by URL, latest capture wins.
func (s *GraphStore) UpsertPageSummary(ctx context.Context, page *types.PageSummary) error {
	if page == nil || page.SourceURL == "" {
		return fmt.Errorf("%w: page source URL is required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (source_url, title, summary_text, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title = excluded.title,
			summary_text = excluded.summary_text,
			captured_at = excluded.captured_at
		WHERE excluded.captured_at >= pages.captured_at
	`, page.SourceURL, page.Title, page.SummaryText, page.CapturedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert page %s: %w", page.SourceURL, err)
	}
	return nil
}

// PageSummary returns the stored page for the URL.
func (s *GraphStore) PageSummary(ctx context.Context, sourceURL string) (*types.PageSummary, error) {
	var p types.PageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT source_url, title, summary_text, captured_at
		FROM pages WHERE source_url = ?
	`, sourceURL).Scan(&p.SourceURL, &p.Title, &p.SummaryText, &p.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load page %s: %w", sourceURL, err)
	}
	return &p, nil
}

// SearchPages returns pages whose title or URL contains the query,
// most recently captured first.
func (s *GraphStore) SearchPages(ctx context.Context, query string, limit int) ([]*types.PageSummary, error) {
	limit = storage.ClampLimit(limit, 5)
	pattern := "%" + strings.TrimSpace(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_url, title, summary_text, captured_at
		FROM pages
		WHERE title LIKE ? OR source_url LIKE ?
		ORDER BY captured_at DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to search pages: %w", err)
	}
	defer rows.Close()

	var pages []*types.PageSummary
	for rows.Next() {
		var p types.PageSummary
		if err := rows.Scan(&p.SourceURL, &p.Title, &p.SummaryText, &p.CapturedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan page: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// AppendChatTurn appends one turn to a session lane. The autoincrement seq
// column breaks ordering ties between turns with identical timestamps.
func (s *GraphStore) AppendChatTurn(ctx context.Context, turn *types.ChatTurn) error {
	if turn == nil || turn.SessionID == "" {
		return fmt.Errorf("%w: chat turn session ID is required", storage.ErrInvalidInput)
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: unknown chat role %q", storage.ErrInvalidInput, turn.Role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, role, text, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, turn.ID, turn.SessionID, string(turn.Role), turn.Text, turn.OccurredAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrConflict
		}
		return fmt.Errorf("sqlite: failed to append chat turn: %w", err)
	}
	return nil
}

// ChatHistory returns up to limit turns for the lane, oldest-first.
func (s *GraphStore) ChatHistory(ctx context.Context, sessionID string, limit int) ([]*types.ChatTurn, error) {
	limit = storage.ClampLimit(limit, storage.DefaultTurnLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, text, occurred_at
		FROM chat_turns
		WHERE session_id = ?
		ORDER BY occurred_at ASC, seq ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query chat history for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []*types.ChatTurn
	for rows.Next() {
		var t types.ChatTurn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Text, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan chat turn: %w", err)
		}
		t.Role = types.Role(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// ClearChatHistory removes all turns for the lane.
func (s *GraphStore) ClearChatHistory(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqlite: failed to clear chat history for %s: %w", sessionID, err)
	}
	return nil
}

// ContactStats summarizes stored interaction history for one contact.
func (s *GraphStore) ContactStats(ctx context.Context, key storage.ContactKey) (*types.ContactStats, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var stats types.ContactStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(m.id),
			COALESCE(SUM(CASE WHEN m.direction = 'outgoing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN m.direction = 'incoming' THEN 1 ELSE 0 END), 0)
		FROM messages m
		JOIN edges e ON e.message_id = m.id
		WHERE e.contact_platform = ? AND e.contact_name = ?
	`, key.Platform, key.NormalizedName).Scan(
		&stats.TotalMessages, &stats.OutgoingCount, &stats.IncomingCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load stats for %s: %w", key, err)
	}

	// The driver only maps TIMESTAMP columns to time.Time when the column
	// type is known; an aggregate like MAX() comes back as a bare string.
	// Reading the newest row directly keeps the conversion.
	var last time.Time
	err = s.db.QueryRowContext(ctx, `
		SELECT m.occurred_at
		FROM messages m
		JOIN edges e ON e.message_id = m.id
		WHERE e.contact_platform = ? AND e.contact_name = ?
		ORDER BY m.occurred_at DESC, e.seq DESC
		LIMIT 1
	`, key.Platform, key.NormalizedName).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("sqlite: failed to load stats for %s: %w", key, err)
	default:
		stats.LastMessageAt = &last
	}
	return &stats, nil
}

// PurgeContact deletes the contact node and its full message subgraph in
// one transaction.
func (s *GraphStore) PurgeContact(ctx context.Context, key storage.ContactKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	// Message IDs are collected before the edges go away: the edges table
	// holds the FK on message_id, so edges must be deleted first.
	rows, err := tx.QueryContext(ctx,
		`SELECT message_id FROM edges WHERE contact_platform = ? AND contact_name = ?`,
		key.Platform, key.NormalizedName)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to list messages for %s: %w", key, err)
	}
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("sqlite: failed to scan message ID: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to list messages for %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE contact_platform = ? AND contact_name = ?`,
		key.Platform, key.NormalizedName); err != nil {
		return 0, fmt.Errorf("sqlite: failed to purge edges for %s: %w", key, err)
	}

	if len(ids) > 0 {
		placeholders := strings.Repeat("?,", len(ids)-1) + "?"
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE id IN (`+placeholders+`)`, ids...); err != nil {
			return 0, fmt.Errorf("sqlite: failed to purge messages for %s: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contacts WHERE platform = ? AND name_norm = ?`,
		key.Platform, key.NormalizedName); err != nil {
		return 0, fmt.Errorf("sqlite: failed to purge contact %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: failed to commit purge: %w", err)
	}
	return len(ids), nil
}

// Ping reports whether the database is reachable.
func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Close releases the database connection.
func (s *GraphStore) Close() error {
	return s.db.Close()
}
