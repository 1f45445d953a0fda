package composer

import "strings"

// fallbackRewrite is the deterministic rewrite used when no LLM provider
// is configured. It tidies sentence casing and punctuation and applies a
// light platform template so the extension keeps working offline.
func fallbackRewrite(input, tone, platform string) string {
	text := strings.ReplaceAll(strings.TrimSpace(input), "\n", " ")

	var sentences []string
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, strings.ToUpper(s[:1])+s[1:])
	}
	body := strings.Join(sentences, ". ")
	if body != "" && !strings.HasSuffix(body, ".") && !strings.HasSuffix(body, "!") && !strings.HasSuffix(body, "?") {
		body += "."
	}

	if platform == "linkedin" {
		if tone == "friendly" {
			return "Just to share heads-up: " + body
		}
		return "Following up: " + body
	}
	return body
}

// fallbackAnswer answers a chat question from retrieved knowledge alone.
func fallbackAnswer(question, knowledge string) string {
	if strings.TrimSpace(knowledge) != "" {
		return "Based on what I currently know:\n" + knowledge +
			"\n\nConfigure an LLM provider for richer answers."
	}
	return "I don't have any saved knowledge yet to answer that. " +
		"Try capturing profiles or conversations, then ask again."
}
