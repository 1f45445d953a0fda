package engine

import (
	"fmt"
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

// assemble renders a ContextSlice into the bounded context text. Order is
// fixed: profile header, then prior messages oldest to newest with speaker
// attribution, then chat turns, then the caller's visible snippet. When
// the character budget overflows, the oldest retrieved entries are dropped
// first; the snippet is never truncated away.
func (e *Engine) assemble(slice *ContextSlice, visibleSnippet, counterpart string) *ContextBundle {
	var header []string
	var entries []string

	if slice != nil && slice.Profile != nil {
		header = append(header, profileHeader(slice.Profile))
	}

	if slice != nil {
		for _, m := range slice.Messages {
			speaker := counterpart
			if m.Direction == types.DirectionOutgoing {
				speaker = "You"
			}
			entries = append(entries, speaker+": "+m.Text)
		}
		for _, t := range slice.Turns {
			entries = append(entries, turnLabel(t.Role)+": "+t.Text)
		}
	}

	// Drop retrieved lines that just repeat what the caller already sees.
	snippet := strings.TrimSpace(visibleSnippet)
	snippetLines := make(map[string]bool)
	for _, line := range strings.Split(snippet, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			snippetLines[line] = true
		}
	}
	deduped := entries[:0]
	for _, entry := range entries {
		if snippetLines[entry] || snippetLines[payloadOf(entry)] {
			continue
		}
		deduped = append(deduped, entry)
	}
	entries = deduped

	// Budget: headers and entries compete for what the snippet leaves
	// over, oldest entries dropped first.
	budget := e.config.ContextCharLimit - len(snippet)
	kept := entries
	for len(kept) > 0 && sectionLen(header, kept) > budget {
		kept = kept[1:]
	}
	if sectionLen(header, kept) > budget {
		header = nil
	}

	var b strings.Builder
	for _, h := range header {
		b.WriteString(h)
		b.WriteString("\n")
	}
	for _, entry := range kept {
		b.WriteString(entry)
		b.WriteString("\n")
	}
	if snippet != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(snippet)
	}

	return &ContextBundle{
		Text:        strings.TrimSpace(b.String()),
		ContextUsed: len(header) > 0 || len(kept) > 0,
	}
}

// profileHeader renders the one-line profile summary that leads the
// assembled context.
func profileHeader(p *types.CapturedProfile) string {
	var parts []string
	if p.Headline != "" {
		parts = append(parts, p.Headline)
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	name := p.DisplayName
	if name == "" {
		name = p.SourceURL
	}
	if len(parts) == 0 {
		return fmt.Sprintf("About %s", name)
	}
	return fmt.Sprintf("About %s: %s", name, strings.Join(parts, ", "))
}

func turnLabel(role types.Role) string {
	switch role {
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	default:
		return "User"
	}
}

// payloadOf strips the speaker prefix so dedupe matches raw message text.
func payloadOf(entry string) string {
	if idx := strings.Index(entry, ": "); idx >= 0 {
		return entry[idx+2:]
	}
	return entry
}

func sectionLen(header, entries []string) int {
	n := 0
	for _, h := range header {
		n += len(h) + 1
	}
	for _, e := range entries {
		n += len(e) + 1
	}
	return n
}

// counterpartLabel names the other party in assembled context lines.
func counterpartLabel(counterpart string) string {
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" {
		return "Them"
	}
	return counterpart
}
