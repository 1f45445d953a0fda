package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// mockGraphStore is an in-memory GraphStore for engine tests. readDelay
// simulates a slow backend; appendErrs feeds scripted failures to
// AppendMessage calls; appendGate, when set, makes each AppendMessage
// handshake with the test before proceeding.
type mockGraphStore struct {
	mu          sync.Mutex
	contacts    map[string]*types.Contact
	messages    map[string][]*types.InteractionMessage
	profiles    map[string]*types.CapturedProfile
	pages       map[string]*types.PageSummary
	turns       map[string][]*types.ChatTurn
	readDelay   time.Duration
	appendErrs  []error
	appendCalls int
	appendGate  chan struct{}
}

func newMockGraphStore() *mockGraphStore {
	return &mockGraphStore{
		contacts: make(map[string]*types.Contact),
		messages: make(map[string][]*types.InteractionMessage),
		profiles: make(map[string]*types.CapturedProfile),
		pages:    make(map[string]*types.PageSummary),
		turns:    make(map[string][]*types.ChatTurn),
	}
}

func (m *mockGraphStore) UpsertContact(ctx context.Context, key storage.ContactKey) (*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[key.String()]
	if !ok {
		c = &types.Contact{Platform: key.Platform, NormalizedName: key.NormalizedName}
		m.contacts[key.String()] = c
	}
	return c, nil
}

func (m *mockGraphStore) AppendMessage(ctx context.Context, key storage.ContactKey, msg *types.InteractionMessage) error {
	if m.appendGate != nil {
		m.appendGate <- struct{}{} // write is in flight
		<-m.appendGate             // test releases it
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if len(m.appendErrs) > 0 {
		err := m.appendErrs[0]
		m.appendErrs = m.appendErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.messages[key.String()] {
		if existing.ID == msg.ID {
			return storage.ErrConflict
		}
	}
	m.messages[key.String()] = append(m.messages[key.String()], msg)
	return nil
}

func (m *mockGraphStore) RecentMessages(ctx context.Context, key storage.ContactKey, limit int) ([]*types.InteractionMessage, error) {
	if m.readDelay > 0 {
		select {
		case <-time.After(m.readDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.messages[key.String()]
	var out []*types.InteractionMessage
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (m *mockGraphStore) UpsertProfile(ctx context.Context, profile *types.CapturedProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.SourceURL] = profile
	return nil
}

func (m *mockGraphStore) Profile(ctx context.Context, sourceURL string) (*types.CapturedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[sourceURL]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockGraphStore) ProfileByName(ctx context.Context, platform, displayName string) (*types.CapturedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	norm := types.NormalizeName(displayName)
	for _, p := range m.profiles {
		if p.Platform == platform && types.NormalizeName(p.DisplayName) == norm {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockGraphStore) UpsertPageSummary(ctx context.Context, page *types.PageSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.SourceURL] = page
	return nil
}

func (m *mockGraphStore) PageSummary(ctx context.Context, sourceURL string) (*types.PageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[sourceURL]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockGraphStore) SearchPages(ctx context.Context, query string, limit int) ([]*types.PageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.PageSummary
	for _, p := range m.pages {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockGraphStore) AppendChatTurn(ctx context.Context, turn *types.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], turn)
	return nil
}

func (m *mockGraphStore) ChatHistory(ctx context.Context, sessionID string, limit int) ([]*types.ChatTurn, error) {
	if m.readDelay > 0 {
		select {
		case <-time.After(m.readDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[sessionID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (m *mockGraphStore) ClearChatHistory(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

func (m *mockGraphStore) ContactStats(ctx context.Context, key storage.ContactKey) (*types.ContactStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &types.ContactStats{}
	for _, msg := range m.messages[key.String()] {
		stats.TotalMessages++
		if msg.Direction == types.DirectionOutgoing {
			stats.OutgoingCount++
		} else {
			stats.IncomingCount++
		}
	}
	return stats, nil
}

func (m *mockGraphStore) PurgeContact(ctx context.Context, key storage.ContactKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.messages[key.String()])
	delete(m.messages, key.String())
	delete(m.contacts, key.String())
	return n, nil
}

func (m *mockGraphStore) Ping(ctx context.Context) error { return nil }
func (m *mockGraphStore) Close() error                   { return nil }

func (m *mockGraphStore) messageCount(key storage.ContactKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[key.String()])
}

var _ storage.GraphStore = (*mockGraphStore)(nil)

func startedEngine(t *testing.T, store storage.GraphStore, cfg Config) *Engine {
	t.Helper()
	eng, err := NewEngine(store, cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })
	return eng
}

func TestEngineLifecycle(t *testing.T) {
	store := newMockGraphStore()
	eng, err := NewEngine(store, DefaultConfig())
	require.NoError(t, err)

	// Not started yet: ingest refuses, retrieval errors.
	assert.False(t, eng.Ingest(&types.MessageEvent{
		Platform: "linkedin", Counterpart: "Dana", Text: "hi", Direction: types.DirectionOutgoing,
	}))
	_, err = eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{Platform: "linkedin", Counterpart: "Dana"})
	assert.Error(t, err)

	require.NoError(t, eng.Start(context.Background()))
	assert.Error(t, eng.Start(context.Background()), "double start must fail")

	require.NoError(t, eng.Shutdown(context.Background()))
	assert.Error(t, eng.Shutdown(context.Background()), "double shutdown must fail")
}

func TestShutdownDrainDropsFailedRetry(t *testing.T) {
	store := newMockGraphStore()
	gate := make(chan struct{})
	store.appendGate = gate
	store.appendErrs = []error{errors.New("transient write failure")}

	cfg := DefaultConfig()
	cfg.NumWorkers = 1
	cfg.ShutdownTimeout = 5 * time.Second
	eng, err := NewEngine(store, cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	var mu sync.Mutex
	var reasons []string
	eng.SetOnEventDropped(func(kind types.EventKind, reason string) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	})

	require.True(t, eng.Ingest(&types.MessageEvent{
		Platform: "linkedin", Counterpart: "Dana", Text: "hello", Direction: types.DirectionIncoming,
	}))
	<-gate // worker is inside the store write

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		_ = eng.Shutdown(context.Background())
	}()
	require.Eventually(t, func() bool {
		eng.mu.RLock()
		defer eng.mu.RUnlock()
		return eng.shuttingDown
	}, time.Second, 5*time.Millisecond)

	// The write fails after the queue is closed. The retry must be dropped,
	// not requeued, and shutdown must still complete.
	gate <- struct{}{}
	select {
	case <-shutdownDone:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete after a failed drain write")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "shutting down")
	assert.Zero(t, store.messageCount(storage.NewContactKey("linkedin", "Dana")))
}

func TestRetrieveAndAssembleEndToEnd(t *testing.T) {
	store := newMockGraphStore()
	eng := startedEngine(t, store, DefaultConfig())

	key := storage.NewContactKey("linkedin", "Dana Smith")
	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.AppendMessage(context.Background(), key, &types.InteractionMessage{
		ID: "m1", Text: "I'm interested in collaborating", Direction: types.DirectionOutgoing, OccurredAt: base, Platform: "linkedin",
	}))
	require.NoError(t, store.AppendMessage(context.Background(), key, &types.InteractionMessage{
		ID: "m2", Text: "When works?", Direction: types.DirectionIncoming, OccurredAt: base.Add(time.Minute), Platform: "linkedin",
	}))

	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:       "linkedin",
		Counterpart:    "Dana Smith",
		VisibleSnippet: "Let me check my calendar",
	})
	require.NoError(t, err)

	assert.True(t, bundle.ContextUsed)
	assert.Equal(t, "linkedin/dana smith", bundle.Lane)

	outgoing := strings.Index(bundle.Text, "You: I'm interested in collaborating")
	incoming := strings.Index(bundle.Text, "Dana Smith: When works?")
	snippet := strings.Index(bundle.Text, "Let me check my calendar")
	require.GreaterOrEqual(t, outgoing, 0)
	require.Greater(t, incoming, outgoing, "messages must appear in chronological order")
	require.Greater(t, snippet, incoming, "snippet must come last")
}

func TestRetrieveRecencyWindow(t *testing.T) {
	store := newMockGraphStore()
	eng := startedEngine(t, store, DefaultConfig())

	key := storage.NewContactKey("linkedin", "Dana")
	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendMessage(context.Background(), key, &types.InteractionMessage{
			ID: text, Text: text, Direction: types.DirectionIncoming,
			OccurredAt: base.Add(time.Duration(i) * time.Minute), Platform: "linkedin",
		}))
	}

	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:    "linkedin",
		Counterpart: "Dana",
		MaxMessages: 2,
	})
	require.NoError(t, err)

	assert.NotContains(t, bundle.Text, "first", "window of 2 keeps only the newest pair")
	second := strings.Index(bundle.Text, "second")
	third := strings.Index(bundle.Text, "third")
	require.GreaterOrEqual(t, second, 0)
	require.Greater(t, third, second, "kept messages stay chronological")
}

func TestRetrieveDeadlineServesEmptyContext(t *testing.T) {
	store := newMockGraphStore()
	store.readDelay = 500 * time.Millisecond

	key := storage.NewContactKey("linkedin", "Dana")
	require.NoError(t, store.AppendMessage(context.Background(), key, &types.InteractionMessage{
		ID: "m1", Text: "hello", Direction: types.DirectionIncoming, OccurredAt: time.Now(), Platform: "linkedin",
	}))

	eng := startedEngine(t, store, DefaultConfig())

	start := time.Now()
	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:       "linkedin",
		Counterpart:    "Dana",
		VisibleSnippet: "draft text",
		Deadline:       50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, bundle.ContextUsed)
	assert.Equal(t, "draft text", bundle.Text)
	assert.Less(t, elapsed, 300*time.Millisecond, "deadline expiry must not block the caller")
}

func TestRetrieveStoreErrorDegradesToEmpty(t *testing.T) {
	store := newMockGraphStore()
	store.readDelay = 10 * time.Second // read context expires first

	eng := startedEngine(t, store, DefaultConfig())

	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:       "gmail",
		Counterpart:    "bob",
		VisibleSnippet: "snippet",
		Deadline:       20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.False(t, bundle.ContextUsed)
}

func TestTaggedLaneRetrievalIsolation(t *testing.T) {
	store := newMockGraphStore()
	eng := startedEngine(t, store, DefaultConfig())

	now := time.Now().UTC()
	require.NoError(t, store.AppendChatTurn(context.Background(), &types.ChatTurn{
		ID: "t1", SessionID: "tag:summarizer", Role: types.RoleUser, Text: "summarize this page", OccurredAt: now,
	}))
	require.NoError(t, store.AppendChatTurn(context.Background(), &types.ChatTurn{
		ID: "t2", SessionID: "linkedin/dana", Role: types.RoleUser, Text: "lane two text", OccurredAt: now,
	}))

	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:    "linkedin",
		Counterpart: "Whoever Is Open", // tag wins regardless of counterpart
		Tag:         "summarizer",
	})
	require.NoError(t, err)

	assert.Contains(t, bundle.Text, "summarize this page")
	assert.NotContains(t, bundle.Text, "lane two text")
	assert.Equal(t, "tag:summarizer", bundle.Lane)
}

func TestProfileHeaderIncludedForKnownCounterpart(t *testing.T) {
	store := newMockGraphStore()
	require.NoError(t, store.UpsertProfile(context.Background(), &types.CapturedProfile{
		SourceURL:   "https://linkedin.com/in/dana",
		Platform:    "linkedin",
		DisplayName: "Dana Smith",
		Headline:    "Staff Engineer",
		CapturedAt:  time.Now(),
	}))

	eng := startedEngine(t, store, DefaultConfig())

	bundle, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{
		Platform:       "linkedin",
		Counterpart:    "dana smith",
		VisibleSnippet: "hi",
	})
	require.NoError(t, err)
	assert.True(t, bundle.ContextUsed)
	assert.Contains(t, bundle.Text, "About Dana Smith: Staff Engineer")
}

func TestPurgeContact(t *testing.T) {
	store := newMockGraphStore()
	eng := startedEngine(t, store, DefaultConfig())

	key := storage.NewContactKey("linkedin", "Dana")
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.AppendMessage(context.Background(), key, &types.InteractionMessage{
			ID: id, Text: id, Direction: types.DirectionOutgoing, OccurredAt: time.Now(), Platform: "linkedin",
		}))
	}

	deleted, err := eng.PurgeContact(context.Background(), "linkedin", "Dana")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	deleted, err = eng.PurgeContact(context.Background(), "linkedin", "Dana")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCallbacksFire(t *testing.T) {
	store := newMockGraphStore()
	eng := startedEngine(t, store, DefaultConfig())

	var mu sync.Mutex
	var storedKinds []types.EventKind
	var servedLanes []string
	eng.SetOnEventStored(func(kind types.EventKind, ref string) {
		mu.Lock()
		storedKinds = append(storedKinds, kind)
		mu.Unlock()
	})
	eng.SetOnContextServed(func(lane string, used bool) {
		mu.Lock()
		servedLanes = append(servedLanes, lane)
		mu.Unlock()
	})

	require.True(t, eng.Ingest(&types.MessageEvent{
		Platform: "linkedin", Counterpart: "Dana", Text: "hello", Direction: types.DirectionIncoming,
	}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(storedKinds) == 1 && storedKinds[0] == types.EventKindMessage
	}, 2*time.Second, 10*time.Millisecond)

	_, err := eng.RetrieveAndAssemble(context.Background(), RetrieveRequest{Platform: "linkedin", Counterpart: "Dana"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"linkedin/dana"}, servedLanes)
}
