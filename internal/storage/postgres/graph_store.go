// Package postgres implements the GraphStore on PostgreSQL for deployments
// that already run a shared database server. Semantics match the sqlite
// backend; concurrency relies on per-call transactions instead of a single
// write connection.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Schema creates all node tables and the edges table.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	platform            TEXT NOT NULL,
	name_norm           TEXT NOT NULL,
	display_name        TEXT NOT NULL DEFAULT '',
	first_seen_at       TIMESTAMPTZ NOT NULL,
	last_interaction_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (platform, name_norm)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	direction   TEXT NOT NULL CHECK (direction IN ('outgoing', 'incoming')),
	occurred_at TIMESTAMPTZ NOT NULL,
	platform    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	seq              BIGSERIAL PRIMARY KEY,
	kind             TEXT NOT NULL CHECK (kind IN ('SENT', 'SENT_TO')),
	contact_platform TEXT NOT NULL,
	contact_name     TEXT NOT NULL,
	message_id       TEXT NOT NULL UNIQUE REFERENCES messages(id),
	FOREIGN KEY (contact_platform, contact_name) REFERENCES contacts(platform, name_norm)
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
	experience_json JSONB NOT NULL DEFAULT '[]',
	education_json  JSONB NOT NULL DEFAULT '[]',
	skills_json     JSONB NOT NULL DEFAULT '[]',
	captured_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_profiles_name ON profiles(platform, name_norm);

CREATE TABLE IF NOT EXISTS pages (
	source_url   TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	summary_text TEXT NOT NULL DEFAULT '',
	captured_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_turns (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	session_id  TEXT NOT NULL,
	role        TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
	text        TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, occurred_at, seq);
`

// GraphStore implements storage.GraphStore using PostgreSQL via lib/pq.
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore connects to PostgreSQL and ensures the schema exists.
func NewGraphStore(dsn string) (*GraphStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: %w: %v", storage.ErrUnavailable, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// isUniqueViolation reports whether err is the PostgreSQL unique_violation
// error class (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// UpsertContact creates or returns the contact node, converging concurrent
// first-writes via ON CONFLICT and keeping last_interaction_at monotonic
// via GREATEST().
func (s *GraphStore) UpsertContact(ctx context.Context, key storage.ContactKey) (*types.Contact, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var c types.Contact
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (platform, name_norm, display_name, first_seen_at, last_interaction_at)
		VALUES ($1, $2, $2, NOW(), NOW())
		ON CONFLICT (platform, name_norm) DO UPDATE SET
			last_interaction_at = GREATEST(contacts.last_interaction_at, excluded.last_interaction_at)
		RETURNING platform, name_norm, display_name, first_seen_at, last_interaction_at
	`, key.Platform, key.NormalizedName).Scan(
		&c.Platform, &c.NormalizedName, &c.DisplayName, &c.FirstSeenAt, &c.LastInteractionAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to upsert contact %s: %w", key, err)
	}
	return &c, nil
}

// AppendMessage stores the message node and its ownership edge in one
// transaction. The unique index on messages.id turns duplicate appends
// into ErrConflict without a separate existence check.
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
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO contacts (platform, name_norm, display_name, first_seen_at, last_interaction_at)
		VALUES ($1, $2, $2, $3, $3)
		ON CONFLICT (platform, name_norm) DO UPDATE SET
			last_interaction_at = GREATEST(contacts.last_interaction_at, excluded.last_interaction_at)
	`, key.Platform, key.NormalizedName, msg.OccurredAt.UTC()); err != nil {
		return fmt.Errorf("postgres: failed to upsert contact for message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, text, direction, occurred_at, platform)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.Text, string(msg.Direction), msg.OccurredAt.UTC(), msg.Platform); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("postgres: failed to insert message %s: %w", msg.ID, err)
	}

	kind := "SENT"
	if msg.Direction == types.DirectionOutgoing {
		kind = "SENT_TO"
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edges (kind, contact_platform, contact_name, message_id)
		VALUES ($1, $2, $3, $4)
	`, kind, key.Platform, key.NormalizedName, msg.ID); err != nil {
		return fmt.Errorf("postgres: failed to insert edge for message %s: %w", msg.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit message append: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages, most-recent-first.
func (s *GraphStore) RecentMessages(ctx context.Context, key storage.ContactKey, limit int) ([]*types.InteractionMessage, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit, storage.DefaultMessageLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.text, m.direction, m.occurred_at, m.platform
		FROM messages m
		JOIN edges e ON e.message_id = m.id
		WHERE e.contact_platform = $1 AND e.contact_name = $2
		ORDER BY m.occurred_at DESC, e.seq DESC
		LIMIT $3
	`, key.Platform, key.NormalizedName, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query messages for %s: %w", key, err)
	}
	defer rows.Close()

	var msgs []*types.InteractionMessage
	for rows.Next() {
		var m types.InteractionMessage
		var direction string
		if err := rows.Scan(&m.ID, &m.Text, &direction, &m.OccurredAt, &m.Platform); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan message: %w", err)
		}
		m.Direction = types.Direction(direction)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// UpsertProfile replaces the profile row when the capture is at least as
// new. One statement, so scalars and sub-lists change atomically.
func (s *GraphStore) UpsertProfile(ctx context.Context, profile *types.CapturedProfile) error {
	if profile == nil || profile.SourceURL == "" {
		return fmt.Errorf("%w: profile source URL is required", storage.ErrInvalidInput)
	}

	profile.ClampLists()

	experience, err := json.Marshal(profile.Experience)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal experience: %w", err)
	}
	education, err := json.Marshal(profile.Education)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal education: %w", err)
	}
	skills, err := json.Marshal(profile.Skills)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal skills: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (source_url, platform, display_name, name_norm, headline,
			location, about, experience_json, education_json, skills_json, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_url) DO UPDATE SET
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
		return fmt.Errorf("postgres: failed to upsert profile %s: %w", profile.SourceURL, err)
	}
	return nil
}

// Profile returns the captured profile for the URL.
func (s *GraphStore) Profile(ctx context.Context, sourceURL string) (*types.CapturedProfile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT source_url, platform, display_name, headline, location, about,
			experience_json, education_json, skills_json, captured_at
		FROM profiles WHERE source_url = $1
	`, sourceURL))
}

// ProfileByName returns the most recent profile matching the normalized
// display name on the platform.
func (s *GraphStore) ProfileByName(ctx context.Context, platform, displayName string) (*types.CapturedProfile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT source_url, platform, display_name, headline, location, about,
			experience_json, education_json, skills_json, captured_at
		FROM profiles
		WHERE platform = $1 AND name_norm = $2
		ORDER BY captured_at DESC
		LIMIT 1
	`, platform, types.NormalizeName(displayName)))
}

func (s *GraphStore) scanProfile(row *sql.Row) (*types.CapturedProfile, error) {
	var p types.CapturedProfile
	var experience, education, skills []byte
	err := row.Scan(&p.SourceURL, &p.Platform, &p.DisplayName, &p.Headline,
		&p.Location, &p.About, &experience, &education, &skills, &p.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan profile: %w", err)
	}
	if err := json.Unmarshal(experience, &p.Experience); err != nil {
		return nil, fmt.Errorf("postgres: corrupt experience list: %w", err)
	}
	if err := json.Unmarshal(education, &p.Education); err != nil {
		return nil, fmt.Errorf("postgres: corrupt education list: %w", err)
	}
	if err := json.Unmarshal(skills, &p.Skills); err != nil {
		return nil, fmt.Errorf("postgres: corrupt skills list: %w", err)
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
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_url) DO UPDATE SET
			title = excluded.title,
			summary_text = excluded.summary_text,
			captured_at = excluded.captured_at
		WHERE excluded.captured_at >= pages.captured_at
	`, page.SourceURL, page.Title, page.SummaryText, page.CapturedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert page %s: %w", page.SourceURL, err)
	}
	return nil
}

// PageSummary returns the stored page for the URL.
func (s *GraphStore) PageSummary(ctx context.Context, sourceURL string) (*types.PageSummary, error) {
	var p types.PageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT source_url, title, summary_text, captured_at
		FROM pages WHERE source_url = $1
	`, sourceURL).Scan(&p.SourceURL, &p.Title, &p.SummaryText, &p.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load page %s: %w", sourceURL, err)
	}
	return &p, nil
}

// SearchPages returns pages whose title or URL contains the query.
func (s *GraphStore) SearchPages(ctx context.Context, query string, limit int) ([]*types.PageSummary, error) {
	limit = storage.ClampLimit(limit, 5)
	pattern := "%" + strings.TrimSpace(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_url, title, summary_text, captured_at
		FROM pages
		WHERE title ILIKE $1 OR source_url ILIKE $1
		ORDER BY captured_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to search pages: %w", err)
	}
	defer rows.Close()

	var pages []*types.PageSummary
	for rows.Next() {
		var p types.PageSummary
		if err := rows.Scan(&p.SourceURL, &p.Title, &p.SummaryText, &p.CapturedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan page: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// AppendChatTurn appends one turn to a session lane.
func (s *GraphStore) AppendChatTurn(ctx context.Context, turn *types.ChatTurn) error {
	if turn == nil || turn.SessionID == "" {
		return fmt.Errorf("%w: chat turn session ID is required", storage.ErrInvalidInput)
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: unknown chat role %q", storage.ErrInvalidInput, turn.Role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, role, text, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, turn.ID, turn.SessionID, string(turn.Role), turn.Text, turn.OccurredAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("postgres: failed to append chat turn: %w", err)
	}
	return nil
}

// ChatHistory returns up to limit turns for the lane, oldest-first.
func (s *GraphStore) ChatHistory(ctx context.Context, sessionID string, limit int) ([]*types.ChatTurn, error) {
	limit = storage.ClampLimit(limit, storage.DefaultTurnLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, text, occurred_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY occurred_at ASC, seq ASC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query chat history for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []*types.ChatTurn
	for rows.Next() {
		var t types.ChatTurn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Text, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan chat turn: %w", err)
		}
		t.Role = types.Role(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// ClearChatHistory removes all turns for the lane.
func (s *GraphStore) ClearChatHistory(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres: failed to clear chat history for %s: %w", sessionID, err)
	}
	return nil
}

// ContactStats summarizes stored interaction history for one contact.
func (s *GraphStore) ContactStats(ctx context.Context, key storage.ContactKey) (*types.ContactStats, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var stats types.ContactStats
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(m.id),
			COALESCE(SUM(CASE WHEN m.direction = 'outgoing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN m.direction = 'incoming' THEN 1 ELSE 0 END), 0),
			MAX(m.occurred_at)
		FROM messages m
		JOIN edges e ON e.message_id = m.id
		WHERE e.contact_platform = $1 AND e.contact_name = $2
	`, key.Platform, key.NormalizedName).Scan(
		&stats.TotalMessages, &stats.OutgoingCount, &stats.IncomingCount, &last)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load stats for %s: %w", key, err)
	}
	if last.Valid {
		t := last.Time
		stats.LastMessageAt = &t
	}
	return &stats, nil
}

// PurgeContact deletes the contact node and its full message subgraph.
func (s *GraphStore) PurgeContact(ctx context.Context, key storage.ContactKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE contact_platform = $1 AND contact_name = $2`,
		key.Platform, key.NormalizedName); err != nil {
		return 0, fmt.Errorf("postgres: failed to purge edges for %s: %w", key, err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE id NOT IN (SELECT message_id FROM edges)
	`)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge messages for %s: %w", key, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count purged messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contacts WHERE platform = $1 AND name_norm = $2`,
		key.Platform, key.NormalizedName); err != nil {
		return 0, fmt.Errorf("postgres: failed to purge contact %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: failed to commit purge: %w", err)
	}
	return int(deleted), nil
}

// Ping reports whether the database is reachable.
func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GraphStore) Close() error {
	return s.db.Close()
}
