package store

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const chatHistoryTable = "chat_history"

// Supabase persists conversation turns in a Supabase "chat_history" table.
type Supabase struct {
	client *supabase.Client
}

type chatHistoryRow struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSupabase creates a Supabase-backed conversation store.
func NewSupabase(url, apiKey string) (*Supabase, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) AppendTurn(ctx context.Context, userID, role, content, threadID string) error {
	if userID == "" || role == "" {
		return ErrInvalidTurn
	}
	row := chatHistoryRow{
		UserID:    userID,
		Role:      role,
		Content:   content,
		ThreadID:  threadID,
		Timestamp: time.Now().UTC(),
	}
	_, _, err := s.client.From(chatHistoryTable).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (s *Supabase) LatestThreadID(ctx context.Context, userID string) (string, error) {
	var rows []chatHistoryRow
	_, err := s.client.From(chatHistoryTable).
		Select("thread_id", "", false).
		Eq("user_id", userID).
		Neq("thread_id", "").
		Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to query latest thread: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ThreadID, nil
}

func (s *Supabase) UserMessages(ctx context.Context, userID string) ([]string, error) {
	var rows []chatHistoryRow
	_, err := s.client.From(chatHistoryTable).
		Select("content", "", false).
		Eq("user_id", userID).
		Eq("role", RoleUser).
		Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query user messages: %w", err)
	}
	messages := make([]string, len(rows))
	for i, row := range rows {
		messages[i] = row.Content
	}
	return messages, nil
}

var _ Store = (*Supabase)(nil)
