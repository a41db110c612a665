package main

import (
	"log"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/adityawrdhn/voicecart/internal/assistant"
	"github.com/adityawrdhn/voicecart/internal/audio"
	"github.com/adityawrdhn/voicecart/internal/auth"
	"github.com/adityawrdhn/voicecart/internal/catalog"
	"github.com/adityawrdhn/voicecart/internal/config"
	"github.com/adityawrdhn/voicecart/internal/store"
	"github.com/adityawrdhn/voicecart/internal/stt"
	"github.com/adityawrdhn/voicecart/internal/suggest"
	"github.com/adityawrdhn/voicecart/internal/tts"
	"github.com/adityawrdhn/voicecart/internal/websocket"
)

func main() {
	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using system environment variables")
	}

	cfg := config.FromEnv()
	if cfg.OpenAIAPIKey == "" {
		log.Fatalf("Missing environment variable %s", config.OpenAIKeyEnvVar)
	}
	if cfg.AssistantID == "" {
		log.Fatalf("Missing environment variable %s", config.AssistantIDEnvVar)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("Missing environment variable %s", config.JWTSecretEnvVar)
	}

	chatStore, cat := buildStorage(cfg)
	resolver := auth.NewJWTResolver(cfg.JWTSecret)

	client := assistant.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	runner := assistant.NewRunner(client, chatStore, cat, cfg.AssistantID, cfg.RunPollInterval, cfg.RunPollTimeout)

	synth := tts.NewSynthesizer(tts.Config{
		Region:  cfg.PollyRegion,
		VoiceID: cfg.PollyVoice,
		Engine:  cfg.PollyEngine,
	})

	sttCfg := stt.Config{
		URL:            cfg.STTURL,
		APIKey:         cfg.STTAPIKey,
		SampleRate:     cfg.ProviderSampleRate,
		SourceRate:     cfg.ClientSampleRate,
		Language:       cfg.Language,
		InterimResults: true,
		Dialer:         gorilla.DefaultDialer,
	}

	overflow := audio.DropNewest
	if cfg.BlockOnFull {
		overflow = audio.Block
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(resolver, runner, synth, sttCfg, cfg.BufferCapacity, overflow))
	mux.Handle("/api/suggestions", suggest.NewHandler(resolver, chatStore, cat, client, cache, cfg.ChatModel, cfg.SuggestionTTL))

	log.Printf("Starting server on %s", cfg.ListenAddr)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws?token=<jwt>", cfg.ListenAddr)

	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// buildStorage returns the Supabase-backed store and catalog when
// configured, falling back to in-memory implementations for local runs.
func buildStorage(cfg config.Config) (store.Store, catalog.Catalog) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		log.Print("Supabase not configured; using in-memory store and empty catalog")
		return store.NewMemory(), catalog.NewMemory(nil)
	}

	chatStore, err := store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		log.Fatalf("Supabase store setup failed: %v", err)
	}
	cat, err := catalog.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, 5*time.Minute)
	if err != nil {
		log.Fatalf("Supabase catalog setup failed: %v", err)
	}
	return chatStore, cat
}
