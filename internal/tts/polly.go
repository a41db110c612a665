// Package tts turns assistant responses into playable audio via Amazon
// Polly. Synthesis is best effort: a failure degrades the turn to
// text-only and never fails the conversation.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

const defaultMimeType = "audio/mpeg"

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config holds the Polly voice settings.
type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

// Synthesizer converts text to MP3 audio. It lazily builds the Polly
// client on first use so construction never needs AWS credentials.
type Synthesizer struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// NewSynthesizer creates a synthesizer with the given voice settings.
// Empty fields fall back to sensible defaults.
func NewSynthesizer(cfg Config) *Synthesizer {
	return newSynthesizerWithClient(cfg, nil)
}

func newSynthesizerWithClient(cfg Config, client synthClient) *Synthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Synthesizer{client: client, cfg: cfg}
}

// Synthesize renders text as a single audio payload and returns it with
// its MIME type. Blank input and provider failures both return (nil, "");
// failures are logged, not surfaced, so the caller falls back to
// text-only delivery.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, string) {
	if strings.TrimSpace(text) == "" {
		return nil, ""
	}

	client, err := s.resolveClient(ctx)
	if err != nil {
		log.Printf("tts: client setup failed: %v", err)
		return nil, ""
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.cfg.VoiceID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Printf("tts: synthesis failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		} else {
			log.Printf("tts: synthesis failed: %v", err)
		}
		return nil, ""
	}
	if output == nil || output.AudioStream == nil {
		log.Printf("tts: provider returned no audio")
		return nil, ""
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		log.Printf("tts: reading audio stream failed: %v", err)
		return nil, ""
	}
	if len(audio) == 0 {
		return nil, ""
	}

	mime := defaultMimeType
	if output.ContentType != nil && *output.ContentType != "" {
		mime = *output.ContentType
	}
	return audio, mime
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}
