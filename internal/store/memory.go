package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process conversation log for tests and storeless runs.
type Memory struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AppendTurn(ctx context.Context, userID, role, content, threadID string) error {
	if userID == "" || role == "" {
		return ErrInvalidTurn
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		ThreadID:  threadID,
		Timestamp: time.Now(),
	})
	return nil
}

func (m *Memory) LatestThreadID(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].UserID == userID && m.turns[i].ThreadID != "" {
			return m.turns[i].ThreadID, nil
		}
	}
	return "", nil
}

func (m *Memory) UserMessages(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var messages []string
	for _, turn := range m.turns {
		if turn.UserID == userID && turn.Role == RoleUser {
			messages = append(messages, turn.Content)
		}
	}
	return messages, nil
}

// Turns returns a copy of all recorded turns. Test helper.
func (m *Memory) Turns() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

var _ Store = (*Memory)(nil)
