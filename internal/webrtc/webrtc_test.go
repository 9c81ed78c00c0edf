package webrtc

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/1ureka/ferry/internal/signaling"
)

// TestLoopbackTransfer negotiates a real PeerConnection on this host and
// pushes more than HighWaterMark through it so backpressure engages.
func TestLoopbackTransfer(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates a real PeerConnection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ln, err := Listen("127.0.0.1:0", "2468", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	payload := make([]byte, HighWaterMark*3+123)
	rand.Read(payload)

	serverErr := make(chan error, 1)
	received := make(chan []byte, 1)
	go func() {
		s, err := ln.Accept(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		got := make([]byte, len(payload))
		if _, err := io.ReadFull(s, got); err != nil {
			s.Close()
			serverErr <- err
			return
		}
		received <- got
		if _, err := s.Write([]byte("File received")); err != nil {
			s.Close()
			serverErr <- err
			return
		}
		serverErr <- s.Close()
	}()

	c, err := Dial(ctx, ln.URL(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if c.RemoteAddr() == "" {
		t.Error("empty remote address")
	}

	if n, err := c.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	status := make([]byte, 64)
	n, err := io.ReadAtLeast(c, status, len("File received"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if string(status[:n]) != "File received" {
		t.Errorf("status = %q", status[:n])
	}
	c.Close()

	if err := <-serverErr; err != nil {
		t.Fatalf("server: %v", err)
	}
	if got := <-received; !bytes.Equal(got, payload) {
		t.Error("payload corrupted in transit")
	}
}

func TestDialWrongPIN(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", "2468", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Dial(ctx, "ws://"+ln.Addr()+"/ws?pin=0000", nil); !errors.Is(err, signaling.ErrWrongPIN) {
		t.Fatalf("expected ErrWrongPIN, got %v", err)
	}
}
