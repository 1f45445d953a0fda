package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/recall/pkg/types"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"passes clean text through",
			"Happy to connect next week.",
			"Happy to connect next week.",
		},
		{
			"cuts at note marker",
			"Great catching up!\n\nNote: I kept the tone casual.",
			"Great catching up!",
		},
		{
			"cuts at divider",
			"The message itself.\n---\nFeel free to adjust.",
			"The message itself.",
		},
		{
			"cuts at suggestion section",
			"Short and sweet.\nSuggestions:\n- add emoji",
			"Short and sweet.",
		},
		{
			"strips bracket placeholders",
			"Hi [Name], thanks for reaching out!",
			"Hi , thanks for reaching out!",
		},
		{
			"collapses blank line runs",
			"First paragraph.\n\n\n\nSecond paragraph.",
			"First paragraph.\n\nSecond paragraph.",
		},
		{
			"trims surrounding whitespace",
			"  \n  the content  \n ",
			"the content",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanResponse(tt.input))
		})
	}
}

func TestFallbackRewrite(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		tone     string
		platform string
		want     string
	}{
		{
			"linkedin friendly template",
			"hey there. hope all is well",
			"friendly", "linkedin",
			"Just to share heads-up: Hey there. Hope all is well.",
		},
		{
			"linkedin default template",
			"checking in on the proposal",
			"professional", "linkedin",
			"Following up: Checking in on the proposal.",
		},
		{
			"gmail keeps plain body",
			"thanks for the update. talk soon",
			"professional", "gmail",
			"Thanks for the update. Talk soon.",
		},
		{
			"newlines flattened",
			"line one\nline two",
			"", "other",
			"Line one line two.",
		},
		{
			"existing terminal punctuation preserved",
			"are you joining?",
			"", "other",
			"Are you joining?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fallbackRewrite(tt.input, tt.tone, tt.platform))
		})
	}
}

func TestFallbackAnswer(t *testing.T) {
	withKnowledge := fallbackAnswer("when is launch?", "Dana: launch is in March")
	assert.Contains(t, withKnowledge, "Based on what I currently know:")
	assert.Contains(t, withKnowledge, "Dana: launch is in March")

	empty := fallbackAnswer("when is launch?", "  ")
	assert.Contains(t, empty, "I don't have any saved knowledge yet")
}

func TestSummarizerPromptCapsContent(t *testing.T) {
	long := make([]byte, summarizerPageLimit+500)
	for i := range long {
		long[i] = 'x'
	}
	page := &types.PageSummary{Title: "Big Page", SummaryText: string(long)}

	prompt := summarizerPrompt("summarize", page, "")
	assert.Less(t, len(prompt), summarizerPageLimit+600)
	assert.Contains(t, prompt, `"Big Page"`)
}
