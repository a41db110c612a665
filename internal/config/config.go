package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names and protocol defaults.
const (
	OpenAIKeyEnvVar   = "OPENAI_API_KEY"
	AssistantIDEnvVar = "OPENAI_ASSISTANT_ID"
	STTKeyEnvVar      = "STT_API_KEY"
	JWTSecretEnvVar   = "JWT_SECRET"

	DefaultListenAddr    = ":8080"
	DefaultSTTURL        = "wss://stt.voicecart.dev/v1/stream"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Client audio arrives as 16-bit LE mono PCM at ClientSampleRate; the
	// STT provider expects ProviderSampleRate.
	DefaultClientSampleRate   = 48000
	DefaultProviderSampleRate = 16000
)

// Config holds all runtime settings, loaded once in main and passed down
// explicitly. Nothing in the pipeline reads the environment after startup.
type Config struct {
	ListenAddr string
	JWTSecret  string

	STTURL             string
	STTAPIKey          string
	Language           string
	ClientSampleRate   int
	ProviderSampleRate int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	AssistantID   string
	ChatModel     string

	RunPollInterval time.Duration
	RunPollTimeout  time.Duration

	PollyRegion string
	PollyVoice  string
	PollyEngine string

	SupabaseURL string
	SupabaseKey string

	RedisAddr     string
	SuggestionTTL time.Duration

	// Ingress buffer tuning. BlockOnFull switches the overflow policy from
	// drop-newest to blocking the reader.
	BufferCapacity int
	BlockOnFull    bool
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything optional. Required variables are validated by the caller.
func FromEnv() Config {
	return Config{
		ListenAddr: envString("LISTEN_ADDR", DefaultListenAddr),
		JWTSecret:  os.Getenv(JWTSecretEnvVar),

		STTURL:             envString("STT_WS_URL", DefaultSTTURL),
		STTAPIKey:          os.Getenv(STTKeyEnvVar),
		Language:           envString("STT_LANGUAGE", "en-US"),
		ClientSampleRate:   envInt("CLIENT_SAMPLE_RATE", DefaultClientSampleRate),
		ProviderSampleRate: envInt("STT_SAMPLE_RATE", DefaultProviderSampleRate),

		OpenAIAPIKey:  os.Getenv(OpenAIKeyEnvVar),
		OpenAIBaseURL: envString("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		AssistantID:   os.Getenv(AssistantIDEnvVar),
		ChatModel:     envString("OPENAI_CHAT_MODEL", "gpt-4-turbo"),

		RunPollInterval: envDuration("RUN_POLL_INTERVAL", time.Second),
		RunPollTimeout:  envDuration("RUN_POLL_TIMEOUT", 2*time.Minute),

		PollyRegion: envString("POLLY_REGION", envString("AWS_REGION", "us-east-1")),
		PollyVoice:  envString("POLLY_VOICE", "Joanna"),
		PollyEngine: envString("POLLY_ENGINE", "neural"),

		SupabaseURL: os.Getenv("SUPABASE_URL"),
		SupabaseKey: os.Getenv("SUPABASE_ANON_KEY"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		SuggestionTTL: envDuration("SUGGESTION_CACHE_TTL", 5*time.Minute),

		BufferCapacity: envInt("AUDIO_BUFFER_CAPACITY", 256),
		BlockOnFull:    envBool("AUDIO_BUFFER_BLOCK", false),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
