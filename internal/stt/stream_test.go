package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adityawrdhn/voicecart/internal/audio"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// fakeProvider runs an in-process STT endpoint driven by the given handler.
func fakeProvider(t *testing.T, handler func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenSendsConfigFirst(t *testing.T) {
	received := make(chan configMessage, 1)
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		if err := conn.ReadJSON(&cfg); err != nil {
			t.Errorf("read config: %v", err)
			return
		}
		received <- cfg
	})
	defer srv.Close()

	stream, err := Open(context.Background(), Config{
		URL:            url,
		SampleRate:     16000,
		Language:       "en-US",
		InterimResults: true,
		Dialer:         websocket.DefaultDialer,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	select {
	case cfg := <-received:
		if cfg.Type != "config" {
			t.Errorf("first message type = %q, want config", cfg.Type)
		}
		if cfg.Encoding != "pcm_s16le" || cfg.SampleRate != 16000 || cfg.Language != "en-US" {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if !cfg.InterimResults || cfg.SingleUtterance {
			t.Errorf("expected interim results on and continuous mode, got %+v", cfg)
		}
	case <-time.After(time.Second):
		t.Fatal("provider never received config")
	}
}

func TestStreamNormalizesResults(t *testing.T) {
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		conn.ReadJSON(&cfg)
		// Empty transcripts and unknown types must be skipped.
		conn.WriteJSON(resultMessage{Type: "begin"})
		conn.WriteJSON(resultMessage{Type: "transcript", Text: "", IsFinal: false})
		conn.WriteJSON(resultMessage{Type: "transcript", Text: "hello", IsFinal: false})
		conn.WriteJSON(resultMessage{Type: "transcript", Text: "hello world", IsFinal: true})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	defer srv.Close()

	stream, err := Open(context.Background(), Config{URL: url, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := audio.NewBuffer(4, audio.DropNewest)
	buf.SignalEnd()
	go stream.Run(context.Background(), buf)

	var got []TranscriptEvent
	for ev := range stream.Events() {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(got), got)
	}
	if got[0].Text != "hello" || got[0].IsFinal {
		t.Errorf("unexpected interim event: %+v", got[0])
	}
	if got[1].Text != "hello world" || !got[1].IsFinal {
		t.Errorf("unexpected final event: %+v", got[1])
	}
	if err := stream.Err(); err != nil {
		t.Errorf("clean close should not record an error, got %v", err)
	}
}

func TestStreamForwardsAudioAndTerminates(t *testing.T) {
	type received struct {
		kind int
		data []byte
	}
	messages := make(chan received, 8)
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		conn.ReadJSON(&cfg)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			messages <- received{kind, data}
		}
	})
	defer srv.Close()

	stream, err := Open(context.Background(), Config{URL: url, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := audio.NewBuffer(4, audio.DropNewest)
	buf.Push([]byte{1, 0, 2, 0})
	buf.SignalEnd()

	done := make(chan struct{})
	go func() {
		stream.Run(context.Background(), buf)
		close(done)
	}()

	select {
	case msg := <-messages:
		if msg.kind != websocket.BinaryMessage || len(msg.data) != 4 {
			t.Errorf("expected 4-byte binary frame, got kind %d len %d", msg.kind, len(msg.data))
		}
	case <-time.After(time.Second):
		t.Fatal("provider never received audio")
	}

	select {
	case msg := <-messages:
		var term terminateMessage
		if err := json.Unmarshal(msg.data, &term); err != nil || term.Type != "terminate" {
			t.Errorf("expected terminate message, got %s", msg.data)
		}
	case <-time.After(time.Second):
		t.Fatal("provider never received terminate")
	}

	<-done
}

func TestStreamResamplesBeforeSending(t *testing.T) {
	frames := make(chan []byte, 1)
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		conn.ReadJSON(&cfg)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				frames <- data
				return
			}
		}
	})
	defer srv.Close()

	stream, err := Open(context.Background(), Config{
		URL:        url,
		SampleRate: 16000,
		SourceRate: 48000,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := audio.NewBuffer(4, audio.DropNewest)
	buf.Push(make([]byte, 960)) // 10ms at 48kHz
	buf.SignalEnd()
	go stream.Run(context.Background(), buf)

	select {
	case frame := <-frames:
		if len(frame) != 320 { // 10ms at 16kHz
			t.Errorf("expected resampled 320-byte frame, got %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("provider never received audio")
	}
}

func TestStreamSurfacesProviderError(t *testing.T) {
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		conn.ReadJSON(&cfg)
		conn.WriteJSON(resultMessage{Type: "error", Message: "quota exceeded"})
	})
	defer srv.Close()

	stream, err := Open(context.Background(), Config{URL: url, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := audio.NewBuffer(4, audio.DropNewest)
	done := make(chan struct{})
	go func() {
		stream.Run(context.Background(), buf)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on provider error")
	}
	buf.SignalEnd()

	if err := stream.Err(); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected provider error surfaced, got %v", err)
	}
}

func TestStreamStopsOnCancellation(t *testing.T) {
	srv, url := fakeProvider(t, func(conn *websocket.Conn) {
		var cfg configMessage
		conn.ReadJSON(&cfg)
		// Hold the stream open; no responses.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := Open(ctx, Config{URL: url, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := audio.NewBuffer(4, audio.DropNewest)
	done := make(chan struct{})
	go func() {
		stream.Run(ctx, buf)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop within the cancellation window")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("cancellation should not record a provider error, got %v", err)
	}
}
