package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-visionassist/internal/log"
)

func attach(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, sendBuffer)}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestBroadcastReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("status", WithLogger(log.Discard()))
	go h.Run(ctx)

	a, b := attach(h), attach(h)
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", h.ClientCount())
	}

	if err := h.BroadcastJSON(map[string]string{"state": "idle"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	for _, c := range []*Client{a, b} {
		m := receive(t, c)
		if m.Type != JSONMessage || string(m.Data) != `{"state":"idle"}` {
			t.Errorf("unexpected message %+v", m)
		}
	}
}

func TestReplaySendsLastMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("status", WithReplay(), WithLogger(log.Discard()))
	go h.Run(ctx)

	first := attach(h)
	h.BroadcastBinary([]byte{1, 2, 3})
	receive(t, first)

	late := attach(h)
	m := receive(t, late)
	if m.Type != BinaryMessage || len(m.Data) != 3 {
		t.Errorf("expected replayed frame, got %+v", m)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("camera", WithLogger(log.Discard()))
	go h.Run(ctx)

	c := attach(h)
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", h.ClientCount())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("camera", WithLogger(log.Discard()))

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := attach(h)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if _, ok := <-c.send; ok {
		t.Error("expected client closed on shutdown")
	}
	if h.IsRunning() {
		t.Error("expected hub stopped")
	}
}

func TestLeaveAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("status", WithLogger(log.Discard()))

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := attach(h)
	cancel()
	<-stopped

	left := make(chan struct{})
	go func() {
		h.leave(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked after the hub stopped")
	}
}

func TestJoinAfterStopFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("camera", WithLogger(log.Discard()))

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	select {
	case <-h.Done():
	default:
		t.Fatal("expected Done closed after Run returned")
	}

	errc := make(chan error, 1)
	go func() {
		_, err := NewClient(h, nil)
		errc <- err
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("NewClient blocked after the hub stopped")
	}
}
