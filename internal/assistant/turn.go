package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/adityawrdhn/voicecart/internal/catalog"
	"github.com/adityawrdhn/voicecart/internal/store"
)

// ErrRunTimeout is returned when a run does not reach a terminal status
// within the configured poll window.
var ErrRunTimeout = errors.New("assistant run did not complete in time")

// RunFailedError reports a run that reached a terminal status other than
// completed. The status is surfaced to the user as-is and the run is not
// retried.
type RunFailedError struct {
	Status string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("assistant run failed with status: %s", e.Status)
}

// Result is the outcome of one assistant turn.
type Result struct {
	Response    string
	Suggestions []Suggestion
}

// Runner drives the assistant turn protocol: thread resolution, message
// submission, run polling, and response parsing. One Runner is shared by
// all connections; per-thread locks serialize concurrent turns on the same
// thread handle, since the provider does not define an ordering for
// interleaved submissions.
type Runner struct {
	client      *Client
	store       store.Store
	catalog     catalog.Catalog
	assistantID string

	pollInterval time.Duration
	pollTimeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner wires the turn protocol to its collaborators.
func NewRunner(client *Client, st store.Store, cat catalog.Catalog, assistantID string, pollInterval, pollTimeout time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	return &Runner{
		client:       client,
		store:        st,
		catalog:      cat,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		locks:        make(map[string]*sync.Mutex),
	}
}

// ResolveThread returns the user's existing thread handle, or creates a new
// thread primed with the product catalog and response-format instructions.
// Creation failures propagate to the caller and are not retried.
func (r *Runner) ResolveThread(ctx context.Context, userID string) (string, error) {
	threadID, err := r.store.LatestThreadID(ctx, userID)
	if err != nil {
		log.Printf("assistant: thread lookup failed for user %s: %v", userID, err)
		threadID = ""
	}
	if threadID != "" {
		return threadID, nil
	}

	threadID, err = r.client.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("assistant: created thread %s for user %s", threadID, userID)

	if err := r.store.AppendTurn(ctx, userID, store.RoleSystem, "Initial context set", threadID); err != nil {
		return "", fmt.Errorf("persist new thread: %w", err)
	}

	names, err := r.catalog.AllNames(ctx)
	if err != nil {
		return "", fmt.Errorf("load catalog: %w", err)
	}
	if err := r.client.CreateMessage(ctx, threadID, "user", primingMessage(names)); err != nil {
		return "", err
	}
	return threadID, nil
}

// ProcessMessage runs one full assistant turn for a finalized utterance.
// The user turn is persisted before the run is created, so history survives
// a failed run. The assistant turn is persisted with the parsed
// conversational text only after a completed run.
func (r *Runner) ProcessMessage(ctx context.Context, userID, threadID, userText string) (Result, error) {
	lock := r.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.client.CreateMessage(ctx, threadID, "user", wrapUserMessage(userText)); err != nil {
		return Result{}, err
	}
	if err := r.store.AppendTurn(ctx, userID, store.RoleUser, userText, threadID); err != nil {
		return Result{}, fmt.Errorf("persist user turn: %w", err)
	}

	run, err := r.client.CreateRun(ctx, threadID, r.assistantID)
	if err != nil {
		return Result{}, err
	}

	run, err = r.pollRun(ctx, threadID, run)
	if err != nil {
		return Result{}, err
	}
	if run.Status != StatusCompleted {
		return Result{}, &RunFailedError{Status: run.Status}
	}

	raw, err := r.client.LatestAssistantText(ctx, threadID)
	if err != nil {
		return Result{}, err
	}

	response, suggestions := ParseReply(ctx, raw, r.catalog)
	if err := r.store.AppendTurn(ctx, userID, store.RoleAssistant, response, threadID); err != nil {
		log.Printf("assistant: failed to persist assistant turn: %v", err)
	}
	return Result{Response: response, Suggestions: suggestions}, nil
}

// pollRun polls at a fixed interval until the run reaches a terminal status
// or the poll window elapses.
func (r *Runner) pollRun(ctx context.Context, threadID string, run Run) (Run, error) {
	deadline := time.Now().Add(r.pollTimeout)
	for !isTerminal(run.Status) {
		if time.Now().After(deadline) {
			return run, ErrRunTimeout
		}
		select {
		case <-time.After(r.pollInterval):
		case <-ctx.Done():
			return run, ctx.Err()
		}

		var err error
		run, err = r.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, err
		}
	}
	return run, nil
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (r *Runner) threadLock(threadID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[threadID] = lock
	}
	return lock
}

// primingMessage enumerates the catalog and the response-format contract
// for a freshly created thread.
func primingMessage(productNames []string) string {
	var bullets strings.Builder
	for _, name := range productNames {
		bullets.WriteString("- ")
		bullets.WriteString(name)
		bullets.WriteString("\n")
	}
	return fmt.Sprintf(`You are a helpful AI assistant for suggesting products. Your goal is to suggest relevant products from the following list: %s. When the user asks for product suggestions, understand the category and suggest up to 3 products. Format your response with "**Response:**" followed by your conversational answer, and then "**Suggested Products:**" followed by a bulleted list of product names. Remember the user's name if provided.

Available Products:
%s`, strings.Join(productNames, ", "), bullets.String())
}

// wrapUserMessage embeds the per-message formatting instruction alongside
// the raw transcript.
func wrapUserMessage(userText string) string {
	return fmt.Sprintf("users message : %s note : if the user asks for product suggestions, understand the category and suggest up to 3 products else if not asked for product give info they needed but at end try ask if any product is requied. Format your response with **Response:** followed by your conversational answer, and then **Suggested Products:** followed by a bulleted list of product names, remember the format. if not asked for product act as general bot and tell what is asked for. After bulleted list of product names do not add any info and info in responce and maintain format", userText)
}
