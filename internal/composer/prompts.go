package composer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

const rewriteSystem = "You are a writing assistant. Rewrite the user's message EXACTLY as requested. Output ONLY the rewritten message, no explanations, no notes, no suggestions."

// rewritePrompt builds the platform-specific rewrite prompt. LinkedIn
// gets a casual networking register, Gmail a warm professional one.
func rewritePrompt(message, ragContext, platform, recipient string) string {
	var instruction string
	switch platform {
	case "linkedin":
		instruction = `Rewrite this as a casual, conversational LinkedIn message.
- Keep it short and natural (2-3 sentences max)
- Use a friendly, networking tone (not formal business)
- NO greetings like "Dear" or closings like "Best regards, Sincerely"
- Just write the message content itself
- If you know the recipient's name from context, use it naturally`
	case "gmail":
		instruction = `Rewrite this as a polite, professional email.
- Keep it concise and clear
- Maintain a warm but professional tone
- NO stiff closings like "Sincerely" or "Best regards"
- Just write the message content itself
- If you know the recipient's name from context, use it naturally`
	default:
		instruction = "Rewrite this message to be clear and natural."
	}

	var b strings.Builder
	b.WriteString(rewriteSystem)
	b.WriteString("\n\n")
	b.WriteString(instruction)

	recipient = strings.TrimSpace(recipient)
	if recipient != "" && recipient != "LinkedIn Contact" && recipient != "Email Recipient" {
		b.WriteString("\nRecipient: ")
		b.WriteString(recipient)
	}
	if strings.TrimSpace(ragContext) != "" {
		b.WriteString("\nPrevious conversation context:\n")
		b.WriteString(ragContext)
		b.WriteString("\n")
	}

	b.WriteString("\n\nUser's draft:\n")
	b.WriteString(message)
	b.WriteString("\n\nRewritten message (ONLY the message content, no extra notes or suggestions):")
	return b.String()
}

// chatPrompt builds the knowledge-graph chat prompt.
func chatPrompt(question, knowledge, history string) string {
	var b strings.Builder
	b.WriteString(`You are a personalized assistant with access to the user's saved conversation memory.
Use the knowledge snippets below when they are relevant, reference past conversations naturally, and answer directly.
`)
	if knowledge != "" {
		b.WriteString("\nKnowledge snippets:\n")
		b.WriteString(knowledge)
		b.WriteString("\n")
	} else {
		b.WriteString("\nKnowledge snippets: (none)\n")
	}
	if history != "" {
		b.WriteString("\nPrevious conversation:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// summarizerPageLimit bounds how much page content enters the prompt.
const summarizerPageLimit = 4000

// summarizerPrompt builds the page Q&A prompt, grounded only in the
// stored page content.
func summarizerPrompt(question string, page *types.PageSummary, history string) string {
	content := page.SummaryText
	if len(content) > summarizerPageLimit {
		content = content[:summarizerPageLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing the webpage: %q\n\n", page.Title)
	b.WriteString("Answer questions about this specific page using ONLY the content provided below.\n\n")
	b.WriteString("Page Content:\n")
	b.WriteString(content)
	b.WriteString(`

Guidelines:
- If asked to summarize, provide a clear, concise overview of the main points
- If asked a specific question, extract and explain the relevant information
- Be accurate and stick to what's in the content
- If the answer isn't in the page, clearly state that
`)
	if history != "" {
		b.WriteString("\nPrevious conversation:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("\nUser's Question: ")
	b.WriteString(question)
	b.WriteString("\n\nYour Response:")
	return b.String()
}

var (
	placeholderRe = regexp.MustCompile(`\[.*?\]`)
	blankRunsRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// noteMarkers start trailing sections that generators sometimes append
// despite the instructions. Everything from the first marker on is cut.
var noteMarkers = []string{
	"---",
	"**note:**",
	"note:",
	"feel free to",
	"you can also",
	"suggestions:",
	"tips:",
	"remember to",
	"don't forget",
	"consider adding",
}

// cleanResponse strips trailing meta-commentary, placeholder brackets and
// excess blank lines from a generated rewrite.
func cleanResponse(response string) string {
	var kept []string
	for _, line := range strings.Split(response, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		isMarker := false
		for _, marker := range noteMarkers {
			if strings.Contains(lower, marker) {
				isMarker = true
				break
			}
		}
		if isMarker {
			break
		}
		kept = append(kept, line)
	}

	result := strings.Join(kept, "\n")
	result = placeholderRe.ReplaceAllString(result, "")
	result = blankRunsRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}
