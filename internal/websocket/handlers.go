package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/adityawrdhn/voicecart/internal/audio"
	"github.com/adityawrdhn/voicecart/internal/auth"
	"github.com/adityawrdhn/voicecart/internal/stt"
)

// Close codes sent to the client.
const (
	CloseApplicationError = 4000
	ClosePolicyViolation  = 4003
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handler owns the /ws endpoint. All collaborators are injected once at
// startup and shared across connections.
type Handler struct {
	resolver auth.Resolver
	runner   TurnRunner
	synth    Synthesizer

	sttCfg   stt.Config
	capacity int
	overflow audio.OverflowPolicy
}

// NewHandler wires the voice endpoint to its collaborators. sttCfg is the
// per-connection transcription stream template; a copy is used for each
// connection.
func NewHandler(resolver auth.Resolver, runner TurnRunner, synth Synthesizer, sttCfg stt.Config, capacity int, overflow audio.OverflowPolicy) *Handler {
	return &Handler{
		resolver: resolver,
		runner:   runner,
		synth:    synth,
		sttCfg:   sttCfg,
		capacity: capacity,
		overflow: overflow,
	}
}

// ServeHTTP upgrades the connection, authenticates it, resolves the user's
// conversation thread, and runs the read loop until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	identity := h.resolver.Resolve(r.URL.Query().Get("token"))
	if identity.IsAnonymous() {
		log.Printf("ws: rejected unauthenticated connection from %s", r.RemoteAddr)
		closeWith(ws, ClosePolicyViolation, "authentication required")
		return
	}

	c := newConn(ws, ulid.Make().String(), identity, audio.NewBuffer(h.capacity, h.overflow), h.runner, h.synth)
	log.Printf("conn %s: user %s connected", c.id, identity.UserID)

	threadID, err := h.runner.ResolveThread(c.ctx, identity.UserID)
	if err != nil {
		log.Printf("conn %s: thread setup failed: %v", c.id, err)
		c.sendError("session setup failed", err.Error())
		c.cancel()
		closeWith(ws, CloseApplicationError, "session setup failed")
		return
	}
	c.threadID = threadID

	h.startTranscription(c)
	c.sendStatus(StatusReady, "")

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			log.Printf("conn %s: read loop ended: %v", c.id, err)
			break
		}
		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinary(data)
		case websocket.TextMessage:
			c.handleControl(data)
		}
	}
	c.teardown()
}

// startTranscription opens the provider stream and starts the writer and
// transcript-consumer tasks. An open failure degrades the connection to
// text-only rather than closing it.
func (h *Handler) startTranscription(c *conn) {
	cfg := h.sttCfg
	stream, err := stt.Open(c.ctx, cfg)
	if err != nil {
		log.Printf("conn %s: transcription unavailable: %v", c.id, err)
		c.sendError("transcription unavailable", err.Error())
		return
	}

	c.sttActive.Store(true)
	c.tasks.Go(func() error {
		stream.Run(c.ctx, c.buffer)
		// The buffer has no consumer once Run returns: stop accepting
		// audio and release any producer blocked on a full buffer.
		c.sttActive.Store(false)
		c.buffer.SignalEnd()
		return nil
	})
	c.tasks.Go(func() error {
		c.consumeTranscripts(stream)
		return nil
	})
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	ws.Close()
}
