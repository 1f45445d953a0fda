package engine

import (
	"github.com/scrypster/recall/internal/storage"
)

// Lane identifies one isolated session history. Two different lanes never
// leak turns into each other.
type Lane struct {
	// ID is the lane identifier used as the chat session key.
	ID string

	// Key is the contact key for default lanes. Zero for tagged lanes.
	Key storage.ContactKey

	// Tagged is true when the lane was selected by an explicit tag.
	Tagged bool
}

// Route derives the session lane for a request. The default lane is bound
// to the (platform, normalized counterpart) pair; an explicit tag always
// wins and is independent of the counterpart, so "summarizer" stays the
// same lane whichever contact the user is looking at.
func Route(platform, counterpart, explicitTag string) Lane {
	if explicitTag != "" {
		return Lane{ID: "tag:" + explicitTag, Tagged: true}
	}
	key := storage.NewContactKey(platform, counterpart)
	return Lane{ID: key.String(), Key: key}
}
