package audio

import (
	"context"
	"sync"
)

// OverflowPolicy decides what Push does when the buffer is full.
type OverflowPolicy int

const (
	// DropNewest discards the incoming frame and reports the drop to the
	// caller. Favors latency over completeness.
	DropNewest OverflowPolicy = iota
	// Block makes Push wait until space frees up or the stream ends.
	Block
)

// Buffer is a bounded, ordered queue of PCM frames that decouples WebSocket
// receipt from STT consumption. Frames queued before SignalEnd are still
// delivered; once the queue is empty after SignalEnd, Pull reports end of
// stream.
type Buffer struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
	policy OverflowPolicy
}

// NewBuffer creates a buffer holding at most capacity frames.
func NewBuffer(capacity int, policy OverflowPolicy) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		frames: make(chan []byte, capacity),
		done:   make(chan struct{}),
		policy: policy,
	}
}

// Push enqueues a frame. It returns false when the frame was not accepted:
// either the stream has ended, or the buffer is full under DropNewest.
func (b *Buffer) Push(frame []byte) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	if b.policy == Block {
		select {
		case b.frames <- frame:
			return true
		case <-b.done:
			return false
		}
	}

	select {
	case b.frames <- frame:
		return true
	default:
		return false
	}
}

// Pull waits for the next frame. The second return value is false when the
// stream has ended (all previously queued frames drained) or ctx is done.
func (b *Buffer) Pull(ctx context.Context) ([]byte, bool) {
	// Drain queued frames before honoring the end signal so nothing queued
	// ahead of SignalEnd is lost.
	select {
	case frame := <-b.frames:
		return frame, true
	default:
	}

	select {
	case frame := <-b.frames:
		return frame, true
	case <-b.done:
		select {
		case frame := <-b.frames:
			return frame, true
		default:
			return nil, false
		}
	case <-ctx.Done():
		return nil, false
	}
}

// SignalEnd marks the end of the stream. Idempotent; pending and future Pull
// calls return end-of-stream once queued frames are drained.
func (b *Buffer) SignalEnd() {
	b.once.Do(func() { close(b.done) })
}

// Drain discards any queued frames. Used during disconnect cleanup.
func (b *Buffer) Drain() int {
	n := 0
	for {
		select {
		case <-b.frames:
			n++
		default:
			return n
		}
	}
}

// Len reports the number of queued frames.
func (b *Buffer) Len() int {
	return len(b.frames)
}
