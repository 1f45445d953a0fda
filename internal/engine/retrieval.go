package engine

import (
	"context"
	"errors"

	"github.com/scrypster/recall/internal/storage"
)

// retrieveContext loads the raw context for one lane. Ranking is pure
// recency: the newest window of nodes wins, nothing is scored.
func (e *Engine) retrieveContext(ctx context.Context, lane Lane, maxMessages int) (*ContextSlice, error) {
	if lane.Tagged {
		turns, err := e.store.ChatHistory(ctx, lane.ID, e.config.TurnWindow)
		if err != nil {
			return nil, err
		}
		return &ContextSlice{Turns: turns}, nil
	}

	messages, err := e.store.RecentMessages(ctx, lane.Key, maxMessages)
	if err != nil {
		return nil, err
	}
	// Newest-first from the store, reversed to chronological for assembly.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	slice := &ContextSlice{Messages: messages}

	profile, err := e.store.ProfileByName(ctx, lane.Key.Platform, lane.Key.NormalizedName)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// Messages alone still make a usable context.
		return slice, nil
	}
	slice.Profile = profile
	return slice, nil
}
