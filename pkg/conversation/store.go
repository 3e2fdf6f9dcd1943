package conversation

import (
	"context"
	"errors"
)

// ErrUnknownConversation is returned by read-style calls for a conversation
// id that has no live session. It is reported rather than fabricated so the
// caller can decide to create-or-reject.
var ErrUnknownConversation = errors.New("conversation: unknown conversation id")

// Store persists conversation state. Implementations must tolerate
// concurrent callers; the Tracker serializes writes per conversation id on
// top of the store.
type Store interface {
	// Get retrieves a session by id. Returns nil, nil if not found.
	Get(ctx context.Context, conversationID string) (*State, error)

	// Save creates or updates a session.
	Save(ctx context.Context, state *State) error

	// Delete removes a session.
	Delete(ctx context.Context, conversationID string) error

	// Close releases store resources.
	Close() error
}
