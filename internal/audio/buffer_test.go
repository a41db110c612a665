package audio

import (
	"context"
	"testing"
	"time"
)

func TestBufferPushPullOrder(t *testing.T) {
	buf := NewBuffer(4, DropNewest)

	for _, frame := range [][]byte{{1}, {2}, {3}} {
		if !buf.Push(frame) {
			t.Fatalf("push of %v rejected", frame)
		}
	}

	ctx := context.Background()
	for _, want := range []byte{1, 2, 3} {
		frame, ok := buf.Pull(ctx)
		if !ok {
			t.Fatal("pull reported end of stream with frames queued")
		}
		if frame[0] != want {
			t.Errorf("expected frame %d, got %d", want, frame[0])
		}
	}
}

func TestBufferDropNewestWhenFull(t *testing.T) {
	buf := NewBuffer(2, DropNewest)

	if !buf.Push([]byte{1}) || !buf.Push([]byte{2}) {
		t.Fatal("pushes within capacity should succeed")
	}
	if buf.Push([]byte{3}) {
		t.Error("push beyond capacity should report a drop")
	}
	if buf.Len() != 2 {
		t.Errorf("expected 2 queued frames, got %d", buf.Len())
	}
}

func TestBufferSignalEndDeliversQueuedFramesFirst(t *testing.T) {
	buf := NewBuffer(4, DropNewest)
	buf.Push([]byte{1})
	buf.SignalEnd()
	buf.SignalEnd() // idempotent

	ctx := context.Background()
	frame, ok := buf.Pull(ctx)
	if !ok || frame[0] != 1 {
		t.Fatalf("expected queued frame before end of stream, got %v %v", frame, ok)
	}
	if _, ok := buf.Pull(ctx); ok {
		t.Error("expected end of stream after queued frames drained")
	}
	if buf.Push([]byte{2}) {
		t.Error("push after SignalEnd should be rejected")
	}
}

func TestBufferPullUnblocksOnSignalEnd(t *testing.T) {
	buf := NewBuffer(4, DropNewest)
	result := make(chan bool, 1)

	go func() {
		_, ok := buf.Pull(context.Background())
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	buf.SignalEnd()

	select {
	case ok := <-result:
		if ok {
			t.Error("pending pull should report end of stream")
		}
	case <-time.After(time.Second):
		t.Fatal("pull did not unblock after SignalEnd")
	}
}

func TestBufferPullRespectsContext(t *testing.T) {
	buf := NewBuffer(4, DropNewest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := buf.Pull(ctx); ok {
		t.Error("pull with cancelled context should not return a frame")
	}
}

func TestBufferBlockPolicyWaitsForSpace(t *testing.T) {
	buf := NewBuffer(1, Block)
	buf.Push([]byte{1})

	pushed := make(chan bool, 1)
	go func() { pushed <- buf.Push([]byte{2}) }()

	select {
	case <-pushed:
		t.Fatal("blocking push returned before space freed up")
	case <-time.After(20 * time.Millisecond):
	}

	if _, ok := buf.Pull(context.Background()); !ok {
		t.Fatal("pull failed")
	}
	select {
	case ok := <-pushed:
		if !ok {
			t.Error("blocking push should succeed once space frees up")
		}
	case <-time.After(time.Second):
		t.Fatal("blocking push never completed")
	}
}

func TestBufferDrain(t *testing.T) {
	buf := NewBuffer(4, DropNewest)
	buf.Push([]byte{1})
	buf.Push([]byte{2})

	if n := buf.Drain(); n != 2 {
		t.Errorf("expected 2 drained frames, got %d", n)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty buffer after drain, got %d", buf.Len())
	}
}
