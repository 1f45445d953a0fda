package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

func newTestStore(t *testing.T) *GraphStore {
	t.Helper()
	store, err := NewGraphStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testMessage(id, text string, dir types.Direction, at time.Time) *types.InteractionMessage {
	return &types.InteractionMessage{
		ID:         id,
		Text:       text,
		Direction:  dir,
		OccurredAt: at,
		Platform:   "linkedin",
	}
}

func TestUpsertContactConverges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := storage.NewContactKey("linkedin", "John Doe")

	first, err := store.UpsertContact(ctx, key)
	require.NoError(t, err)
	second, err := store.UpsertContact(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, first.NormalizedName, second.NormalizedName)
	assert.Equal(t, "john doe", second.NormalizedName)
	assert.False(t, second.LastInteractionAt.Before(first.LastInteractionAt))

	// Identity key is normalized, so differently-spaced spellings converge too.
	third, err := store.UpsertContact(ctx, storage.NewContactKey("linkedin", "  john   DOE "))
	require.NoError(t, err)
	assert.Equal(t, second.NormalizedName, third.NormalizedName)
}

func TestAppendMessageDuplicateIDConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := storage.NewContactKey("linkedin", "John Doe")

	msg := testMessage("msg-1", "hello", types.DirectionOutgoing, time.Now())
	require.NoError(t, store.AppendMessage(ctx, key, msg))

	err := store.AppendMessage(ctx, key, msg)
	assert.ErrorIs(t, err, storage.ErrConflict)

	msgs, err := store.RecentMessages(ctx, key, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRecentMessagesRecencyWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := storage.NewContactKey("linkedin", "John Doe")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		msg := testMessage(fmt.Sprintf("msg-%d", i), fmt.Sprintf("text %d", i),
			types.DirectionOutgoing, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.AppendMessage(ctx, key, msg))
	}

	// maxMessages=2 must return exactly the two newest, newest first.
	msgs, err := store.RecentMessages(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-3", msgs[0].ID)
	assert.Equal(t, "msg-2", msgs[1].ID)
}

func TestRecentMessagesContactIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	john := storage.NewContactKey("linkedin", "John Doe")
	jane := storage.NewContactKey("linkedin", "Jane Smith")

	require.NoError(t, store.AppendMessage(ctx, john,
		testMessage("m-john", "for john", types.DirectionOutgoing, time.Now())))
	require.NoError(t, store.AppendMessage(ctx, jane,
		testMessage("m-jane", "for jane", types.DirectionIncoming, time.Now())))

	msgs, err := store.RecentMessages(ctx, john, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for john", msgs[0].Text)
}

func TestUpsertProfileReplacesSubLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, store.UpsertProfile(ctx, &types.CapturedProfile{
		SourceURL:   "https://linkedin.com/in/john",
		Platform:    "linkedin",
		DisplayName: "John Doe",
		Headline:    "Engineer at Acme",
		Experience:  []types.ExperienceEntry{{Title: "Engineer", Company: "Acme"}, {Title: "Intern", Company: "Initech"}},
		Skills:      []string{"Go", "SQL"},
		CapturedAt:  t1,
	}))

	require.NoError(t, store.UpsertProfile(ctx, &types.CapturedProfile{
		SourceURL:   "https://linkedin.com/in/john",
		Platform:    "linkedin",
		DisplayName: "John Doe",
		Headline:    "CTO at Acme",
		Experience:  []types.ExperienceEntry{{Title: "CTO", Company: "Acme"}},
		Skills:      []string{"Leadership"},
		CapturedAt:  t2,
	}))

	// Only the t2 capture survives, with no residual t1 sub-list entries.
	p, err := store.Profile(ctx, "https://linkedin.com/in/john")
	require.NoError(t, err)
	assert.Equal(t, "CTO at Acme", p.Headline)
	require.Len(t, p.Experience, 1)
	assert.Equal(t, "CTO", p.Experience[0].Title)
	assert.Equal(t, []string{"Leadership"}, p.Skills)
}

func TestUpsertProfileStaleCaptureIgnored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertProfile(ctx, &types.CapturedProfile{
		SourceURL: "https://linkedin.com/in/john", Platform: "linkedin",
		DisplayName: "John Doe", Headline: "current", CapturedAt: t1,
	}))

	// An older capture arriving late must not win.
	require.NoError(t, store.UpsertProfile(ctx, &types.CapturedProfile{
		SourceURL: "https://linkedin.com/in/john", Platform: "linkedin",
		DisplayName: "John Doe", Headline: "stale", CapturedAt: t1.Add(-time.Hour),
	}))

	p, err := store.Profile(ctx, "https://linkedin.com/in/john")
	require.NoError(t, err)
	assert.Equal(t, "current", p.Headline)
}

func TestProfileByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProfile(ctx, &types.CapturedProfile{
		SourceURL: "https://linkedin.com/in/john", Platform: "linkedin",
		DisplayName: "John Doe", Headline: "Engineer", CapturedAt: time.Now(),
	}))

	p, err := store.ProfileByName(ctx, "linkedin", "  JOHN doe ")
	require.NoError(t, err)
	assert.Equal(t, "Engineer", p.Headline)

	_, err = store.ProfileByName(ctx, "linkedin", "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPageSummaryLatestWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertPageSummary(ctx, &types.PageSummary{
		SourceURL: "https://example.com/post", Title: "v1", SummaryText: "first", CapturedAt: t1,
	}))
	require.NoError(t, store.UpsertPageSummary(ctx, &types.PageSummary{
		SourceURL: "https://example.com/post", Title: "v2", SummaryText: "second", CapturedAt: t1.Add(time.Minute),
	}))

	p, err := store.PageSummary(ctx, "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Title)
	assert.Equal(t, "second", p.SummaryText)
}

func TestSearchPages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.UpsertPageSummary(ctx, &types.PageSummary{
		SourceURL: "https://example.com/go-release", Title: "Go 1.24 Released", CapturedAt: now,
	}))
	require.NoError(t, store.UpsertPageSummary(ctx, &types.PageSummary{
		SourceURL: "https://example.com/other", Title: "Unrelated", CapturedAt: now,
	}))

	pages, err := store.SearchPages(ctx, "Go 1.24", 5)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://example.com/go-release", pages[0].SourceURL)
}

func TestChatHistoryOrderingAndTies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	// Two turns with identical timestamps: insertion sequence breaks the tie.
	for i, text := range []string{"first", "second", "third"} {
		turn := &types.ChatTurn{
			ID:         fmt.Sprintf("turn-%d", i),
			SessionID:  "summarizer",
			Role:       types.RoleUser,
			Text:       text,
			OccurredAt: at,
		}
		require.NoError(t, store.AppendChatTurn(ctx, turn))
	}

	turns, err := store.ChatHistory(ctx, "summarizer", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, "second", turns[1].Text)
	assert.Equal(t, "third", turns[2].Text)
}

func TestChatHistoryLaneIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendChatTurn(ctx, &types.ChatTurn{
		ID: "t1", SessionID: "summarizer", Role: types.RoleUser,
		Text: "summarize this", OccurredAt: time.Now(),
	}))
	require.NoError(t, store.AppendChatTurn(ctx, &types.ChatTurn{
		ID: "t2", SessionID: "linkedin/john doe", Role: types.RoleUser,
		Text: "counterpart chat", OccurredAt: time.Now(),
	}))

	turns, err := store.ChatHistory(ctx, "summarizer", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "summarize this", turns[0].Text)

	require.NoError(t, store.ClearChatHistory(ctx, "summarizer"))
	turns, err = store.ChatHistory(ctx, "summarizer", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	// Clearing one lane leaves the other intact.
	other, err := store.ChatHistory(ctx, "linkedin/john doe", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestContactStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := storage.NewContactKey("linkedin", "John Doe")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendMessage(ctx, key,
		testMessage("m1", "out", types.DirectionOutgoing, base)))
	require.NoError(t, store.AppendMessage(ctx, key,
		testMessage("m2", "in", types.DirectionIncoming, base.Add(time.Minute))))

	stats, err := store.ContactStats(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 1, stats.OutgoingCount)
	assert.Equal(t, 1, stats.IncomingCount)
	require.NotNil(t, stats.LastMessageAt)
	assert.True(t, stats.LastMessageAt.Equal(base.Add(time.Minute)))

	// Unknown contact: zero counts, not an error.
	empty, err := store.ContactStats(ctx, storage.NewContactKey("linkedin", "nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalMessages)
	assert.Nil(t, empty.LastMessageAt)
}

func TestPurgeContactDeletesSubgraph(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	john := storage.NewContactKey("linkedin", "John Doe")
	jane := storage.NewContactKey("linkedin", "Jane Smith")

	now := time.Now()
	require.NoError(t, store.AppendMessage(ctx, john, testMessage("m1", "a", types.DirectionOutgoing, now)))
	require.NoError(t, store.AppendMessage(ctx, john, testMessage("m2", "b", types.DirectionIncoming, now)))
	require.NoError(t, store.AppendMessage(ctx, jane, testMessage("m3", "c", types.DirectionOutgoing, now)))

	deleted, err := store.PurgeContact(ctx, john)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	msgs, err := store.RecentMessages(ctx, john, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Message rows and edge rows are both gone, not just unreachable.
	var orphans int
	require.NoError(t, store.GetDB().QueryRow(
		`SELECT COUNT(1) FROM messages WHERE id IN ('m1', 'm2')`).Scan(&orphans))
	assert.Zero(t, orphans)
	require.NoError(t, store.GetDB().QueryRow(
		`SELECT COUNT(1) FROM edges WHERE contact_name = 'john doe'`).Scan(&orphans))
	assert.Zero(t, orphans)

	// Other contacts are untouched.
	msgs, err = store.RecentMessages(ctx, jane, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// Purging again is a no-op, not an error.
	deleted, err = store.PurgeContact(ctx, john)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestAppendMessageValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := storage.NewContactKey("linkedin", "John Doe")

	err := store.AppendMessage(ctx, key, &types.InteractionMessage{Text: "no id"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.AppendMessage(ctx, storage.ContactKey{}, testMessage("m", "x", types.DirectionOutgoing, time.Now()))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
