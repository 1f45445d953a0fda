// Package neo4jdb implements the GraphStore on Neo4j, where the node and
// edge model maps directly onto the database: Contact, Message, Profile,
// Page and ChatTurn nodes linked by SENT / SENT_TO relationships.
package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// GraphStore implements storage.GraphStore against a Neo4j database.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	// MaxPoolSize bounds the driver connection pool. Zero means 50.
	MaxPoolSize int
	// ConnectTimeout bounds socket establishment. Zero means 10s.
	ConnectTimeout time.Duration
}

// NewGraphStore connects to Neo4j, verifies connectivity and ensures
// uniqueness constraints exist.
func NewGraphStore(ctx context.Context, cfg Config) (*GraphStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("%w: neo4j URI is required", storage.ErrInvalidInput)
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: %w: %v", storage.ErrUnavailable, err)
	}

	s := &GraphStore{driver: driver, database: cfg.Database}
	if err := s.initSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *GraphStore) initSchema(ctx context.Context) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT contact_key_unique IF NOT EXISTS FOR (c:Contact) REQUIRE (c.platform, c.name_norm) IS UNIQUE`,
		`CREATE CONSTRAINT message_id_unique IF NOT EXISTS FOR (m:Message) REQUIRE m.id IS UNIQUE`,
		`CREATE CONSTRAINT profile_url_unique IF NOT EXISTS FOR (p:Profile) REQUIRE p.source_url IS UNIQUE`,
		`CREATE CONSTRAINT page_url_unique IF NOT EXISTS FOR (p:Page) REQUIRE p.source_url IS UNIQUE`,
		`CREATE CONSTRAINT chat_turn_id_unique IF NOT EXISTS FOR (t:ChatTurn) REQUIRE t.id IS UNIQUE`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("neo4j: failed to create constraint: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("neo4j: failed to create constraint: %w", err)
		}
	}
	return nil
}

func (s *GraphStore) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

func (s *GraphStore) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
}

// UpsertContact merges the contact node, keeping last_interaction_at
// monotonic. MERGE on the constrained key converges concurrent
// first-writes to one node.
func (s *GraphStore) UpsertContact(ctx context.Context, key storage.ContactKey) (*types.Contact, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (c:Contact {platform: $platform, name_norm: $name_norm})
ON CREATE SET c.display_name = $name_norm,
              c.first_seen_at = $now,
              c.last_interaction_at = $now
ON MATCH SET c.last_interaction_at =
    CASE WHEN c.last_interaction_at < $now THEN $now ELSE c.last_interaction_at END
RETURN c.platform AS platform, c.name_norm AS name_norm, c.display_name AS display_name,
       c.first_seen_at AS first_seen_at, c.last_interaction_at AS last_interaction_at
`, map[string]any{
			"platform":  key.Platform,
			"name_norm": key.NormalizedName,
			"now":       time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to upsert contact %s: %w", key, err)
	}

	return contactFromRecord(record.(*neo4j.Record))
}

func contactFromRecord(record *neo4j.Record) (*types.Contact, error) {
	c := &types.Contact{}
	var ok bool
	var err error
	if c.Platform, ok = stringValue(record, "platform"); !ok {
		return nil, errors.New("neo4j: contact record missing platform")
	}
	c.NormalizedName, _ = stringValue(record, "name_norm")
	c.DisplayName, _ = stringValue(record, "display_name")
	if c.FirstSeenAt, err = timeValue(record, "first_seen_at"); err != nil {
		return nil, err
	}
	if c.LastInteractionAt, err = timeValue(record, "last_interaction_at"); err != nil {
		return nil, err
	}
	return c, nil
}

func stringValue(record *neo4j.Record, key string) (string, bool) {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func timeValue(record *neo4j.Record, key string) (time.Time, error) {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return time.Time{}, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("neo4j: field %s is not a datetime", key)
	}
	return t, nil
}

// AppendMessage creates the message node and the ownership edge in one
// managed transaction. Incoming messages get (contact)-[:SENT]->(message);
// outgoing messages get (message)-[:SENT_TO]->(contact).
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

	edge := `MERGE (c)-[:SENT]->(m)`
	if msg.Direction == types.DirectionOutgoing {
		edge = `MERGE (m)-[:SENT_TO]->(c)`
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (m:Message {id: $id}) RETURN m.id LIMIT 1`,
			map[string]any{"id": msg.ID})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			return nil, storage.ErrConflict
		}

		res, err = tx.Run(ctx, `
MERGE (c:Contact {platform: $platform, name_norm: $name_norm})
ON CREATE SET c.display_name = $name_norm,
              c.first_seen_at = $occurred_at,
              c.last_interaction_at = $occurred_at
ON MATCH SET c.last_interaction_at =
    CASE WHEN c.last_interaction_at < $occurred_at THEN $occurred_at ELSE c.last_interaction_at END
CREATE (m:Message {id: $id, text: $text, direction: $direction,
                   occurred_at: $occurred_at, platform: $msg_platform,
                   inserted_at: $inserted_at})
`+edge, map[string]any{
			"platform":     key.Platform,
			"name_norm":    key.NormalizedName,
			"id":           msg.ID,
			"text":         msg.Text,
			"direction":    string(msg.Direction),
			"occurred_at":  msg.OccurredAt.UTC(),
			"msg_platform": msg.Platform,
			"inserted_at":  time.Now().UnixNano(),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if errors.Is(err, storage.ErrConflict) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("neo4j: failed to append message %s: %w", msg.ID, err)
	}
	return nil
}

// RecentMessages returns up to limit messages, most-recent-first,
// traversing both edge kinds from the contact.
func (s *GraphStore) RecentMessages(ctx context.Context, key storage.ContactKey, limit int) ([]*types.InteractionMessage, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	limit = storage.ClampLimit(limit, storage.DefaultMessageLimit)

	session := s.readSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Contact {platform: $platform, name_norm: $name_norm})
MATCH (c)-[:SENT|SENT_TO]-(m:Message)
RETURN m.id AS id, m.text AS text, m.direction AS direction,
       m.occurred_at AS occurred_at, m.platform AS msg_platform
ORDER BY m.occurred_at DESC, m.inserted_at DESC
LIMIT $limit
`, map[string]any{
			"platform":  key.Platform,
			"name_norm": key.NormalizedName,
			"limit":     limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to query messages for %s: %w", key, err)
	}

	var msgs []*types.InteractionMessage
	for _, record := range records.([]*neo4j.Record) {
		m := &types.InteractionMessage{}
		m.ID, _ = stringValue(record, "id")
		m.Text, _ = stringValue(record, "text")
		direction, _ := stringValue(record, "direction")
		m.Direction = types.Direction(direction)
		m.Platform, _ = stringValue(record, "msg_platform")
		if m.OccurredAt, err = timeValue(record, "occurred_at"); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// UpsertProfile merges the profile node, replacing every field when the
// capture is at least as new. Sub-lists are flattened to property lists
// and never merged.
func (s *GraphStore) UpsertProfile(ctx context.Context, profile *types.CapturedProfile) error {
	if profile == nil || profile.SourceURL == "" {
		return fmt.Errorf("%w: profile source URL is required", storage.ErrInvalidInput)
	}

	profile.ClampLists()

	experience := make([]map[string]any, 0, len(profile.Experience))
	for _, e := range profile.Experience {
		experience = append(experience, map[string]any{
			"title": e.Title, "company": e.Company, "duration": e.Duration,
		})
	}
	education := make([]map[string]any, 0, len(profile.Education))
	for _, e := range profile.Education {
		education = append(education, map[string]any{
			"school": e.School, "degree": e.Degree, "years": e.Years,
		})
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (p:Profile {source_url: $source_url})
WITH p
WHERE p.captured_at IS NULL OR p.captured_at <= $captured_at
SET p.platform = $platform,
    p.display_name = $display_name,
    p.name_norm = $name_norm,
    p.headline = $headline,
    p.location = $location,
    p.about = $about,
    p.experience = [e IN $experience | e.title + '|' + e.company + '|' + e.duration],
    p.education = [e IN $education | e.school + '|' + e.degree + '|' + e.years],
    p.skills = $skills,
    p.captured_at = $captured_at
`, map[string]any{
			"source_url":   profile.SourceURL,
			"platform":     profile.Platform,
			"display_name": profile.DisplayName,
			"name_norm":    types.NormalizeName(profile.DisplayName),
			"headline":     profile.Headline,
			"location":     profile.Location,
			"about":        profile.About,
			"experience":   experience,
			"education":    education,
			"skills":       profile.Skills,
			"captured_at":  profile.CapturedAt.UTC(),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: failed to upsert profile %s: %w", profile.SourceURL, err)
	}
	return nil
}

// Profile returns the captured profile for the URL.
func (s *GraphStore) Profile(ctx context.Context, sourceURL string) (*types.CapturedProfile, error) {
	return s.queryProfile(ctx, `
MATCH (p:Profile {source_url: $key})
RETURN p ORDER BY p.captured_at DESC LIMIT 1
`, sourceURL)
}

// ProfileByName returns the most recent profile matching the normalized
// display name on the platform.
func (s *GraphStore) ProfileByName(ctx context.Context, platform, displayName string) (*types.CapturedProfile, error) {
	return s.queryProfile(ctx, `
MATCH (p:Profile {platform: $platform, name_norm: $key})
RETURN p ORDER BY p.captured_at DESC LIMIT 1
`, types.NormalizeName(displayName), platform)
}

func (s *GraphStore) queryProfile(ctx context.Context, query, key string, platform ...string) (*types.CapturedProfile, error) {
	params := map[string]any{"key": key}
	if len(platform) > 0 {
		params["platform"] = platform[0]
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, storage.ErrNotFound
		}
		return res.Record(), nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to load profile: %w", err)
	}

	node, ok := record.(*neo4j.Record).Get("p")
	if !ok {
		return nil, errors.New("neo4j: profile record missing node")
	}
	return profileFromNode(node.(neo4j.Node))
}

func profileFromNode(node neo4j.Node) (*types.CapturedProfile, error) {
	p := &types.CapturedProfile{
		SourceURL:   nodeString(node, "source_url"),
		Platform:    nodeString(node, "platform"),
		DisplayName: nodeString(node, "display_name"),
		Headline:    nodeString(node, "headline"),
		Location:    nodeString(node, "location"),
		About:       nodeString(node, "about"),
	}
	if t, ok := node.Props["captured_at"].(time.Time); ok {
		p.CapturedAt = t
	}
	for _, raw := range nodeStrings(node, "experience") {
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) == 3 {
			p.Experience = append(p.Experience, types.ExperienceEntry{
				Title: parts[0], Company: parts[1], Duration: parts[2],
			})
		}
	}
	for _, raw := range nodeStrings(node, "education") {
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) == 3 {
			p.Education = append(p.Education, types.EducationEntry{
				School: parts[0], Degree: parts[1], Years: parts[2],
			})
		}
	}
	p.Skills = nodeStrings(node, "skills")
	return p, nil
}

func nodeString(node neo4j.Node, key string) string {
	s, _ := node.Props[key].(string)
	return s
}

func nodeStrings(node neo4j.Node, key string) []string {
	raw, ok := node.Props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// UpsertPageSummary merges the page node, latest capture wins.
func (s *GraphStore) UpsertPageSummary(ctx context.Context, page *types.PageSummary) error {
	if page == nil || page.SourceURL == "" {
		return fmt.Errorf("%w: page source URL is required", storage.ErrInvalidInput)
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (p:Page {source_url: $source_url})
WITH p
WHERE p.captured_at IS NULL OR p.captured_at <= $captured_at
SET p.title = $title,
    p.summary_text = $summary_text,
    p.captured_at = $captured_at
`, map[string]any{
			"source_url":   page.SourceURL,
			"title":        page.Title,
			"summary_text": page.SummaryText,
			"captured_at":  page.CapturedAt.UTC(),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: failed to upsert page %s: %w", page.SourceURL, err)
	}
	return nil
}

// PageSummary returns the stored page for the URL.
func (s *GraphStore) PageSummary(ctx context.Context, sourceURL string) (*types.PageSummary, error) {
	pages, err := s.queryPages(ctx, `
MATCH (p:Page {source_url: $key})
RETURN p LIMIT 1
`, map[string]any{"key": sourceURL})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, storage.ErrNotFound
	}
	return pages[0], nil
}

// SearchPages returns pages whose title or URL contains the query,
// case-insensitively, most recently captured first.
func (s *GraphStore) SearchPages(ctx context.Context, query string, limit int) ([]*types.PageSummary, error) {
	limit = storage.ClampLimit(limit, 5)
	return s.queryPages(ctx, `
MATCH (p:Page)
WHERE toLower(p.title) CONTAINS toLower($query)
   OR toLower(p.source_url) CONTAINS toLower($query)
RETURN p
ORDER BY p.captured_at DESC
LIMIT $limit
`, map[string]any{"query": strings.TrimSpace(query), "limit": limit})
}

func (s *GraphStore) queryPages(ctx context.Context, query string, params map[string]any) ([]*types.PageSummary, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to query pages: %w", err)
	}

	var pages []*types.PageSummary
	for _, record := range records.([]*neo4j.Record) {
		raw, ok := record.Get("p")
		if !ok {
			continue
		}
		node := raw.(neo4j.Node)
		p := &types.PageSummary{
			SourceURL:   nodeString(node, "source_url"),
			Title:       nodeString(node, "title"),
			SummaryText: nodeString(node, "summary_text"),
		}
		if t, ok := node.Props["captured_at"].(time.Time); ok {
			p.CapturedAt = t
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// AppendChatTurn creates one turn node in a session lane. The inserted_at
// counter breaks ordering ties between turns with identical timestamps.
func (s *GraphStore) AppendChatTurn(ctx context.Context, turn *types.ChatTurn) error {
	if turn == nil || turn.SessionID == "" {
		return fmt.Errorf("%w: chat turn session ID is required", storage.ErrInvalidInput)
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: unknown chat role %q", storage.ErrInvalidInput, turn.Role)
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (t:ChatTurn {id: $id}) RETURN t.id LIMIT 1`,
			map[string]any{"id": turn.ID})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			return nil, storage.ErrConflict
		}

		res, err = tx.Run(ctx, `
CREATE (t:ChatTurn {id: $id, session_id: $session_id, role: $role,
                    text: $text, occurred_at: $occurred_at,
                    inserted_at: $inserted_at})
`, map[string]any{
			"id":          turn.ID,
			"session_id":  turn.SessionID,
			"role":        string(turn.Role),
			"text":        turn.Text,
			"occurred_at": turn.OccurredAt.UTC(),
			"inserted_at": time.Now().UnixNano(),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if errors.Is(err, storage.ErrConflict) {
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("neo4j: failed to append chat turn: %w", err)
	}
	return nil
}

// ChatHistory returns up to limit turns for the lane, oldest-first.
func (s *GraphStore) ChatHistory(ctx context.Context, sessionID string, limit int) ([]*types.ChatTurn, error) {
	limit = storage.ClampLimit(limit, storage.DefaultTurnLimit)

	session := s.readSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:ChatTurn {session_id: $session_id})
RETURN t.id AS id, t.session_id AS session_id, t.role AS role,
       t.text AS text, t.occurred_at AS occurred_at
ORDER BY t.occurred_at ASC, t.inserted_at ASC
LIMIT $limit
`, map[string]any{"session_id": sessionID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to query chat history for %s: %w", sessionID, err)
	}

	var turns []*types.ChatTurn
	for _, record := range records.([]*neo4j.Record) {
		t := &types.ChatTurn{}
		t.ID, _ = stringValue(record, "id")
		t.SessionID, _ = stringValue(record, "session_id")
		role, _ := stringValue(record, "role")
		t.Role = types.Role(role)
		t.Text, _ = stringValue(record, "text")
		if t.OccurredAt, err = timeValue(record, "occurred_at"); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ClearChatHistory removes all turns for the lane.
func (s *GraphStore) ClearChatHistory(ctx context.Context, sessionID string) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (t:ChatTurn {session_id: $session_id}) DETACH DELETE t`,
			map[string]any{"session_id": sessionID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: failed to clear chat history for %s: %w", sessionID, err)
	}
	return nil
}

// ContactStats summarizes stored interaction history for one contact.
func (s *GraphStore) ContactStats(ctx context.Context, key storage.ContactKey) (*types.ContactStats, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
OPTIONAL MATCH (c:Contact {platform: $platform, name_norm: $name_norm})-[:SENT|SENT_TO]-(m:Message)
RETURN count(m) AS total,
       count(CASE WHEN m.direction = 'outgoing' THEN 1 END) AS outgoing,
       count(CASE WHEN m.direction = 'incoming' THEN 1 END) AS incoming,
       max(m.occurred_at) AS last_at
`, map[string]any{"platform": key.Platform, "name_norm": key.NormalizedName})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to load stats for %s: %w", key, err)
	}

	rec := record.(*neo4j.Record)
	stats := &types.ContactStats{}
	if v, ok := rec.Get("total"); ok {
		stats.TotalMessages = int(v.(int64))
	}
	if v, ok := rec.Get("outgoing"); ok {
		stats.OutgoingCount = int(v.(int64))
	}
	if v, ok := rec.Get("incoming"); ok {
		stats.IncomingCount = int(v.(int64))
	}
	if v, ok := rec.Get("last_at"); ok && v != nil {
		if t, ok := v.(time.Time); ok {
			stats.LastMessageAt = &t
		}
	}
	return stats, nil
}

// PurgeContact deletes the contact node and every message it owns.
func (s *GraphStore) PurgeContact(ctx context.Context, key storage.ContactKey) (int, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	deleted, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
OPTIONAL MATCH (c:Contact {platform: $platform, name_norm: $name_norm})
OPTIONAL MATCH (c)-[:SENT|SENT_TO]-(m:Message)
WITH c, collect(m) AS msgs
FOREACH (m IN msgs | DETACH DELETE m)
DETACH DELETE c
RETURN size(msgs) AS deleted
`, map[string]any{"platform": key.Platform, "name_norm": key.NormalizedName})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := record.Get("deleted")
		n, _ := v.(int64)
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j: failed to purge contact %s: %w", key, err)
	}
	return int(deleted.(int64)), nil
}

// Ping reports whether the database is reachable.
func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Close shuts down the driver and its connection pool.
func (s *GraphStore) Close() error {
	return s.driver.Close(context.Background())
}
