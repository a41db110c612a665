package tts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	pollysdk "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type fakePollyClient struct {
	out  *pollysdk.SynthesizeSpeechOutput
	err  error
	seen *pollysdk.SynthesizeSpeechInput
}

func (f *fakePollyClient) SynthesizeSpeech(ctx context.Context, params *pollysdk.SynthesizeSpeechInput, optFns ...func(*pollysdk.Options)) (*pollysdk.SynthesizeSpeechOutput, error) {
	f.seen = params
	return f.out, f.err
}

func audioStream(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

func TestSynthesizeSuccess(t *testing.T) {
	mime := "audio/mpeg"
	client := &fakePollyClient{out: &pollysdk.SynthesizeSpeechOutput{
		AudioStream: audioStream([]byte("mp3-bytes")),
		ContentType: &mime,
	}}
	s := newSynthesizerWithClient(Config{VoiceID: "Joanna", Engine: "neural"}, client)

	audio, gotMime := s.Synthesize(context.Background(), "hello there")
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
	if gotMime != "audio/mpeg" {
		t.Errorf("mime = %q", gotMime)
	}
	if client.seen.Engine != pollytypes.EngineNeural {
		t.Errorf("engine = %v", client.seen.Engine)
	}
	if *client.seen.Text != "hello there" {
		t.Errorf("text = %q", *client.seen.Text)
	}
}

func TestSynthesizeBlankInput(t *testing.T) {
	client := &fakePollyClient{}
	s := newSynthesizerWithClient(Config{}, client)

	for _, text := range []string{"", "   ", "\n\t"} {
		audio, mime := s.Synthesize(context.Background(), text)
		if audio != nil || mime != "" {
			t.Errorf("Synthesize(%q) = (%v, %q), want (nil, \"\")", text, audio, mime)
		}
	}
	if client.seen != nil {
		t.Error("blank input must not reach the provider")
	}
}

func TestSynthesizeProviderFailureDegrades(t *testing.T) {
	client := &fakePollyClient{err: errors.New("throttled")}
	s := newSynthesizerWithClient(Config{}, client)

	audio, mime := s.Synthesize(context.Background(), "hello")
	if audio != nil || mime != "" {
		t.Errorf("expected text-only fallback, got (%v, %q)", audio, mime)
	}
}

func TestSynthesizeEmptyStreamDegrades(t *testing.T) {
	client := &fakePollyClient{out: &pollysdk.SynthesizeSpeechOutput{
		AudioStream: audioStream(nil),
	}}
	s := newSynthesizerWithClient(Config{}, client)

	audio, mime := s.Synthesize(context.Background(), "hello")
	if audio != nil || mime != "" {
		t.Errorf("expected text-only fallback, got (%v, %q)", audio, mime)
	}
}

func TestSynthesizeDefaultMime(t *testing.T) {
	client := &fakePollyClient{out: &pollysdk.SynthesizeSpeechOutput{
		AudioStream: audioStream([]byte("mp3")),
	}}
	s := newSynthesizerWithClient(Config{Engine: "standard"}, client)

	_, mime := s.Synthesize(context.Background(), "hello")
	if mime != defaultMimeType {
		t.Errorf("mime = %q, want %q", mime, defaultMimeType)
	}
	if client.seen.Engine != pollytypes.EngineStandard {
		t.Errorf("engine = %v", client.seen.Engine)
	}
}
