package store

import (
	"context"
	"errors"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrInvalidTurn is returned when a turn is missing required fields.
var ErrInvalidTurn = errors.New("invalid conversation turn")

// Turn is one appended conversation entry. Turns are never mutated after
// creation.
type Turn struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the append-only conversation log consumed by the pipeline.
type Store interface {
	// AppendTurn records one conversation turn.
	AppendTurn(ctx context.Context, userID, role, content, threadID string) error

	// LatestThreadID returns the most recent non-empty thread handle stored
	// for the user, or "" when the user has no thread yet.
	LatestThreadID(ctx context.Context, userID string) (string, error)

	// UserMessages returns the contents of the user's own turns in
	// chronological order. Used by the suggestion endpoint.
	UserMessages(ctx context.Context, userID string) ([]string, error)
}
