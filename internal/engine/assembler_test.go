package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/pkg/types"
)

func testEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	eng, err := NewEngine(newMockGraphStore(), cfg)
	require.NoError(t, err)
	return eng
}

func msgAt(text string, dir types.Direction, at time.Time) *types.InteractionMessage {
	return &types.InteractionMessage{ID: text, Text: text, Direction: dir, OccurredAt: at, Platform: "linkedin"}
}

func TestAssembleOrdering(t *testing.T) {
	eng := testEngine(t, DefaultConfig())
	base := time.Now()

	slice := &ContextSlice{
		Profile: &types.CapturedProfile{DisplayName: "Dana", Headline: "CTO"},
		Messages: []*types.InteractionMessage{
			msgAt("first message", types.DirectionOutgoing, base),
			msgAt("second message", types.DirectionIncoming, base.Add(time.Minute)),
		},
	}

	bundle := eng.assemble(slice, "the visible draft", "Dana")

	require.True(t, bundle.ContextUsed)
	profileIdx := strings.Index(bundle.Text, "About Dana: CTO")
	firstIdx := strings.Index(bundle.Text, "You: first message")
	secondIdx := strings.Index(bundle.Text, "Dana: second message")
	snippetIdx := strings.Index(bundle.Text, "the visible draft")
	require.GreaterOrEqual(t, profileIdx, 0)
	assert.Greater(t, firstIdx, profileIdx)
	assert.Greater(t, secondIdx, firstIdx)
	assert.Greater(t, snippetIdx, secondIdx)
}

func TestAssembleEmptySliceSnippetOnly(t *testing.T) {
	eng := testEngine(t, DefaultConfig())

	bundle := eng.assemble(&ContextSlice{}, "just the draft", "Dana")
	assert.False(t, bundle.ContextUsed)
	assert.Equal(t, "just the draft", bundle.Text)

	bundle = eng.assemble(nil, "just the draft", "Dana")
	assert.False(t, bundle.ContextUsed)
	assert.Equal(t, "just the draft", bundle.Text)
}

func TestAssembleBudgetDropsOldestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContextCharLimit = 120
	eng := testEngine(t, cfg)
	base := time.Now()

	slice := &ContextSlice{
		Messages: []*types.InteractionMessage{
			msgAt(strings.Repeat("old ", 20), types.DirectionOutgoing, base),
			msgAt("newest short line", types.DirectionIncoming, base.Add(time.Minute)),
		},
	}

	bundle := eng.assemble(slice, "snippet stays", "Dana")

	assert.NotContains(t, bundle.Text, "old old", "oldest entry must be dropped first")
	assert.Contains(t, bundle.Text, "newest short line")
	assert.Contains(t, bundle.Text, "snippet stays")
	assert.True(t, bundle.ContextUsed)
	assert.LessOrEqual(t, len(bundle.Text), cfg.ContextCharLimit)
}

func TestAssembleSnippetNeverTruncated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContextCharLimit = 40
	eng := testEngine(t, cfg)

	snippet := strings.Repeat("the snippet always survives ", 4)
	slice := &ContextSlice{
		Messages: []*types.InteractionMessage{
			msgAt("retrieved line", types.DirectionIncoming, time.Now()),
		},
	}

	bundle := eng.assemble(slice, snippet, "Dana")
	assert.Contains(t, bundle.Text, strings.TrimSpace(snippet))
	assert.NotContains(t, bundle.Text, "retrieved line")
	assert.False(t, bundle.ContextUsed, "nothing retrieved survived the budget")
}

func TestAssembleDedupesSnippetLines(t *testing.T) {
	eng := testEngine(t, DefaultConfig())
	base := time.Now()

	slice := &ContextSlice{
		Messages: []*types.InteractionMessage{
			msgAt("already on screen", types.DirectionIncoming, base),
			msgAt("new information", types.DirectionIncoming, base.Add(time.Minute)),
		},
	}

	bundle := eng.assemble(slice, "already on screen", "Dana")

	assert.Equal(t, 1, strings.Count(bundle.Text, "already on screen"))
	assert.Contains(t, bundle.Text, "Dana: new information")
	assert.True(t, bundle.ContextUsed)
}

func TestAssembleChatTurnAttribution(t *testing.T) {
	eng := testEngine(t, DefaultConfig())
	base := time.Now()

	slice := &ContextSlice{
		Turns: []*types.ChatTurn{
			{ID: "t1", SessionID: "tag:s", Role: types.RoleUser, Text: "question", OccurredAt: base},
			{ID: "t2", SessionID: "tag:s", Role: types.RoleAssistant, Text: "answer", OccurredAt: base.Add(time.Second)},
		},
	}

	bundle := eng.assemble(slice, "", "")
	assert.Contains(t, bundle.Text, "User: question")
	assert.Contains(t, bundle.Text, "Assistant: answer")
}
