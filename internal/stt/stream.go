package stt

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/adityawrdhn/voicecart/internal/audio"
)

// Dialer abstracts the WebSocket dial so tests can point the adapter at an
// in-process server.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Config describes one transcription stream.
type Config struct {
	URL    string
	APIKey string
	// SampleRate is the rate the provider expects; SourceRate is the rate
	// frames arrive at from the client. Frames are resampled when they
	// differ.
	SampleRate     int
	SourceRate     int
	Language       string
	InterimResults bool
	Dialer         Dialer
}

// Stream bridges an audio ingress buffer to the provider's bidirectional
// streaming endpoint. One Stream serves one connection and is not restartable
// mid-stream.
type Stream struct {
	cfg    Config
	conn   *websocket.Conn
	events chan TranscriptEvent

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Open dials the provider and sends the stream configuration as the first
// message. The returned stream does not consume audio until Run is called.
func Open(ctx context.Context, cfg Config) (*Stream, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.SourceRate == 0 {
		cfg.SourceRate = cfg.SampleRate
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", cfg.APIKey)
	}

	conn, _, err := cfg.Dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to STT provider: %w", err)
	}

	cfgMsg := configMessage{
		Type:            messageTypeConfig,
		Encoding:        encodingPCM16,
		SampleRate:      cfg.SampleRate,
		Language:        cfg.Language,
		InterimResults:  cfg.InterimResults,
		SingleUtterance: false,
	}
	if err := conn.WriteJSON(cfgMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send stream config: %w", err)
	}

	return &Stream{
		cfg:    cfg,
		conn:   conn,
		events: make(chan TranscriptEvent, 16),
	}, nil
}

// Events returns the normalized transcript sequence. The channel is closed
// when the stream ends; check Err afterwards for the failure, if any.
func (s *Stream) Events() <-chan TranscriptEvent {
	return s.events
}

// Err reports the provider failure that ended the stream, or nil for a clean
// shutdown or cancellation.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Run feeds audio from buf to the provider and decodes responses until the
// buffer signals end-of-stream, the provider fails, or ctx is cancelled. It
// closes the event channel before returning and never leaks the provider
// socket.
func (s *Stream) Run(ctx context.Context, buf *audio.Buffer) {
	defer close(s.events)
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket is what unblocks ReadMessage, so cancellation is
	// bounded by the close.
	go func() {
		<-runCtx.Done()
		s.Close()
	}()

	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		s.writeLoop(runCtx, buf)
	}()

	s.readLoop(runCtx)
	// A read-side exit (provider failure or close) must also release the
	// writer, which may be blocked waiting for audio.
	cancel()
	writers.Wait()
}

// writeLoop pulls frames until end-of-stream, then tells the provider the
// input is complete.
func (s *Stream) writeLoop(ctx context.Context, buf *audio.Buffer) {
	for {
		frame, ok := buf.Pull(ctx)
		if !ok {
			// End of input. Best effort: the socket may already be gone.
			if err := s.conn.WriteJSON(terminateMessage{Type: messageTypeTerminate}); err != nil {
				log.Printf("stt: failed to send terminate: %v", err)
			}
			return
		}

		if s.cfg.SourceRate != s.cfg.SampleRate {
			frame = audio.Resample(frame, s.cfg.SourceRate, s.cfg.SampleRate)
			if len(frame) == 0 {
				continue // skip frame, never terminate the stream
			}
		}

		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}
}

// readLoop decodes provider responses into TranscriptEvents. Results without
// transcript text are skipped rather than surfaced.
func (s *Stream) readLoop(ctx context.Context) {
	for {
		var msg resultMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(fmt.Errorf("stream read failed: %w", err))
			}
			return
		}

		switch msg.Type {
		case messageTypeTranscript:
			if msg.Text == "" {
				continue
			}
			select {
			case s.events <- TranscriptEvent{Text: msg.Text, IsFinal: msg.IsFinal}:
			case <-ctx.Done():
				return
			}
		case messageTypeError:
			s.setErr(fmt.Errorf("provider error: %s", msg.Message))
			return
		default:
			// Session bookkeeping messages are not surfaced.
		}
	}
}

// Close releases the provider socket. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			log.Printf("stt: close: %v", err)
		}
	})
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
