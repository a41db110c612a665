package websocket

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/adityawrdhn/voicecart/internal/assistant"
	"github.com/adityawrdhn/voicecart/internal/audio"
	"github.com/adityawrdhn/voicecart/internal/auth"
	"github.com/adityawrdhn/voicecart/internal/stt"
)

const (
	writeWait = 10 * time.Second
	// How long disconnect waits for in-flight utterance tasks before
	// abandoning them.
	shutdownGrace = 2 * time.Second
)

// TurnRunner is the assistant turn protocol consumed per utterance.
type TurnRunner interface {
	ResolveThread(ctx context.Context, userID string) (string, error)
	ProcessMessage(ctx context.Context, userID, threadID, text string) (assistant.Result, error)
}

// Synthesizer converts a response into one audio payload and its MIME type.
// Empty output means synthesis was skipped or failed; the turn degrades to
// text-only.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string)
}

// conn is the per-connection state: one client socket, one ingress buffer,
// one transcription stream, and any number of in-flight utterance tasks.
type conn struct {
	id       string
	ws       *websocket.Conn
	identity auth.Identity
	threadID string
	buffer   *audio.Buffer

	runner TurnRunner
	synth  Synthesizer

	// sttActive is true only while the transcription stream consumes the
	// buffer. Without a consumer, audio frames are ignored rather than
	// queued against a buffer nothing will drain.
	sttActive   atomic.Bool
	audioNotice sync.Once

	writeMu sync.Mutex
	tasks   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

func newConn(ws *websocket.Conn, id string, identity auth.Identity, buffer *audio.Buffer, runner TurnRunner, synth Synthesizer) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	tasks, ctx := errgroup.WithContext(ctx)
	return &conn{
		id:       id,
		ws:       ws,
		identity: identity,
		buffer:   buffer,
		runner:   runner,
		synth:    synth,
		tasks:    tasks,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// send writes one JSON message under the write mutex. Write failures are
// logged, not propagated: a dead socket ends the read loop on its own.
func (c *conn) send(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(v); err != nil {
		log.Printf("conn %s: write failed: %v", c.id, err)
	}
}

func (c *conn) sendStatus(status, detail string) {
	c.send(statusMessage{Type: "status", Message: status, Detail: detail})
}

func (c *conn) sendError(message, detail string) {
	c.send(errorMessage{Type: "error", Message: message, Detail: detail})
}

func (c *conn) sendWarning(message string) {
	c.send(warningMessage{Type: "warning", Message: message})
}

// handleBinary queues one audio frame for transcription. Frames are only
// accepted while the transcription stream is consuming the buffer; without
// a consumer they are ignored, with a single notice to the client. A full
// buffer drops the frame and warns; the connection continues either way.
func (c *conn) handleBinary(frame []byte) {
	if !c.sttActive.Load() {
		c.audioNotice.Do(func() {
			c.sendWarning("audio ignored: transcription is not active")
		})
		return
	}
	if !c.buffer.Push(frame) {
		log.Printf("conn %s: audio frame dropped, buffer full", c.id)
		c.sendWarning("audio frame dropped: server is behind, reduce send rate")
	}
}

// handleControl dispatches one validated text frame. Malformed messages are
// reported without closing the connection.
func (c *conn) handleControl(raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		log.Printf("conn %s: rejected control message: %v", c.id, err)
		c.sendError("invalid message", err.Error())
		return
	}

	switch msg.Kind {
	case KindStopRecording:
		// Advisory only. The audio stream stays open; only disconnect or
		// the end-of-stream sentinel terminates it.
		log.Printf("conn %s: stop_recording received", c.id)
	case KindTextSubmission:
		if strings.TrimSpace(msg.Text) == "" {
			log.Printf("conn %s: ignoring blank text submission", c.id)
			return
		}
		c.startUtterance(msg.Text)
	}
}

// startUtterance dispatches one finalized utterance as an independent task,
// so a new utterance can stream in while a prior one is still speaking.
func (c *conn) startUtterance(text string) {
	c.tasks.Go(func() error {
		c.processUtterance(c.ctx, text)
		return nil
	})
}

// processUtterance drives one full turn: assistant run, response delivery,
// speech synthesis. Every failure path ends with an error notification and
// a ready status so the client can retry without reconnecting.
func (c *conn) processUtterance(ctx context.Context, userText string) {
	c.sendStatus(StatusProcessing, "")

	result, err := c.runner.ProcessMessage(ctx, c.identity.UserID, c.threadID, userText)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("conn %s: assistant turn failed: %v", c.id, err)
		c.sendError("assistant request failed", err.Error())
		c.sendStatus(StatusReady, "")
		return
	}

	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []assistant.Suggestion{}
	}
	c.send(botResponseMessage{
		Type:              "bot_response",
		UserText:          userText,
		Text:              result.Response,
		SuggestedProducts: suggestions,
	})

	c.sendStatus(StatusSpeaking, "")
	audioBytes, mime := c.synth.Synthesize(ctx, result.Response)
	if len(audioBytes) == 0 {
		if ctx.Err() != nil {
			return
		}
		c.sendStatus(StatusReady, "synthesis produced no audio")
		return
	}

	c.send(ttsChunkMessage{
		Event:     "tts_chunk",
		SessionID: c.id,
		Payload:   base64.StdEncoding.EncodeToString(audioBytes),
		Mime:      mime,
	})
	c.sendStatus(StatusReady, "")
}

// consumeTranscripts turns final transcription events into utterance tasks.
// Interim events are advisory and skipped; exactly one task is started per
// final event.
func (c *conn) consumeTranscripts(stream *stt.Stream) {
	for event := range stream.Events() {
		if !event.IsFinal || strings.TrimSpace(event.Text) == "" {
			continue
		}
		log.Printf("conn %s: final transcript: %q", c.id, event.Text)
		c.startUtterance(event.Text)
	}
	if err := stream.Err(); err != nil && c.ctx.Err() == nil {
		log.Printf("conn %s: transcription stream failed: %v", c.id, err)
		c.sendError("transcription failed", err.Error())
		c.sendStatus(StatusReady, "")
	}
}

// teardown runs when the read loop exits: end the audio stream, cancel all
// tasks, then wait a bounded grace period before giving up on them.
func (c *conn) teardown() {
	c.buffer.SignalEnd()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Printf("conn %s: tasks did not finish within grace period", c.id)
	}

	if n := c.buffer.Drain(); n > 0 {
		log.Printf("conn %s: discarded %d queued audio frames", c.id, n)
	}
	c.ws.Close()
	log.Printf("conn %s: closed", c.id)
}
