// Package suggest serves proactive product suggestions derived from the
// user's past messages.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/redis/go-redis/v9"

	"github.com/adityawrdhn/voicecart/internal/auth"
	"github.com/adityawrdhn/voicecart/internal/catalog"
	"github.com/adityawrdhn/voicecart/internal/store"
)

const (
	maxSuggestions = 4
	maxTokens      = 150
	temperature    = 0.6

	// Most recent history is kept within this token budget so the prompt
	// never crowds out the instructions.
	historyTokenBudget = 2000

	cacheKeyPrefix = "suggestions:"
)

// CompletionClient issues one single-turn chat completion.
type CompletionClient interface {
	ChatCompletion(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error)
}

// Suggestion is one recommended product.
type Suggestion struct {
	Name string `json:"name"`
}

// Handler owns GET /api/suggestions. The Redis client is optional; without
// it every request recomputes.
type Handler struct {
	resolver auth.Resolver
	store    store.Store
	catalog  catalog.Catalog
	client   CompletionClient
	cache    *redis.Client
	model    string
	cacheTTL time.Duration
}

// NewHandler wires the suggestion endpoint. cache may be nil.
func NewHandler(resolver auth.Resolver, st store.Store, cat catalog.Catalog, client CompletionClient, cache *redis.Client, model string, cacheTTL time.Duration) *Handler {
	if model == "" {
		model = "gpt-4-turbo"
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Handler{
		resolver: resolver,
		store:    st,
		catalog:  cat,
		client:   client,
		cache:    cache,
		model:    model,
		cacheTTL: cacheTTL,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	identity := h.resolver.Resolve(bearerToken(r))
	if identity.IsAnonymous() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	ctx := r.Context()

	if cached, ok := h.cachedSuggestions(ctx, identity.UserID); ok {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": cached})
		return
	}

	history, err := h.store.UserMessages(ctx, identity.UserID)
	if err != nil {
		log.Printf("suggest: history lookup failed for user %s: %v", identity.UserID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"suggestions": []Suggestion{}})
		return
	}
	if len(history) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []Suggestion{}})
		return
	}

	names, err := h.catalog.AllNames(ctx)
	if err != nil {
		log.Printf("suggest: catalog load failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"suggestions": []Suggestion{}})
		return
	}

	raw, err := h.client.ChatCompletion(ctx, h.model, buildPrompt(names, trimHistory(history, h.model)), maxTokens, temperature)
	if err != nil {
		log.Printf("suggest: completion failed for user %s: %v", identity.UserID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"suggestions": []Suggestion{}})
		return
	}

	suggestions := parseSuggestions(raw, names)
	h.storeSuggestions(ctx, identity.UserID, suggestions)
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// bearerToken extracts the access token from the Authorization header, with
// the token query parameter as a fallback for browser clients.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func buildPrompt(productNames, history []string) string {
	return fmt.Sprintf(`You are an AI assistant designed to suggest products to users based on their past chat history. Your goal is to provide up to 4 relevant product names from the following list of available products: %s.

Consider the user's past chat history to understand their interests and preferences. If the chat history does not provide clear product interests, suggest general popular products from the available list.

Chat History:
%s

Provide your suggestions as a numbered list of product names. If you cannot find any suitable products, return an empty list.
Product Suggestions:`, strings.Join(productNames, ", "), strings.Join(history, "\n"))
}

// trimHistory keeps the most recent messages that fit the token budget.
func trimHistory(history []string, model string) []string {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// No encoder available, keep history as-is.
			return history
		}
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += len(enc.Encode(history[i], nil, nil))
		if total > historyTokenBudget {
			break
		}
		start = i
	}
	return history[start:]
}

// parseSuggestions extracts "1." through "4." numbered lines and keeps the
// ones naming a real product, canonically cased from the catalog.
func parseSuggestions(raw string, productNames []string) []Suggestion {
	byLower := make(map[string]string, len(productNames))
	for _, name := range productNames {
		byLower[strings.ToLower(name)] = name
	}

	suggestions := []Suggestion{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if !hasNumberPrefix(line) {
			continue
		}
		_, name, _ := strings.Cut(line, ".")
		if canonical, ok := byLower[strings.ToLower(strings.TrimSpace(name))]; ok {
			suggestions = append(suggestions, Suggestion{Name: canonical})
			if len(suggestions) == maxSuggestions {
				break
			}
		}
	}
	return suggestions
}

func hasNumberPrefix(line string) bool {
	for _, prefix := range []string{"1.", "2.", "3.", "4."} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (h *Handler) cachedSuggestions(ctx context.Context, userID string) ([]Suggestion, bool) {
	if h.cache == nil {
		return nil, false
	}
	payload, err := h.cache.Get(ctx, cacheKeyPrefix+userID).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("suggest: cache read failed: %v", err)
		}
		return nil, false
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(payload), &suggestions); err != nil {
		return nil, false
	}
	return suggestions, true
}

func (h *Handler) storeSuggestions(ctx context.Context, userID string, suggestions []Suggestion) {
	if h.cache == nil {
		return
	}
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, cacheKeyPrefix+userID, payload, h.cacheTTL).Err(); err != nil {
		log.Printf("suggest: cache write failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
