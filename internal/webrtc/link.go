package webrtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/ferry/internal/signaling"
	"github.com/1ureka/ferry/internal/transport"
)

// The listening side keeps its channel this long after its last write so the
// status reaches the dialer before the PeerConnection is torn down.
const listenerLinger = 2 * time.Second

// Listener accepts one PeerConnection per signaling client.
type Listener struct {
	sig        *signaling.Server
	iceServers []string
}

// Listen starts the signaling server on addr. Clients must present pin.
func Listen(addr, pin string, iceServers []string) (*Listener, error) {
	sig, err := signaling.NewServer(addr, pin)
	if err != nil {
		return nil, err
	}
	return &Listener{sig: sig, iceServers: iceServers}, nil
}

// Accept waits for a signaling client, negotiates a PeerConnection as the
// offering side and returns once the DataChannel is open.
func (l *Listener) Accept(ctx context.Context) (transport.Stream, error) {
	conn, err := l.sig.WaitForClient(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	s, err := connect(ctx, conn, l.iceServers, true)
	if err != nil {
		return nil, err
	}
	s.linger = listenerLinger
	return s, nil
}

// Addr returns the signaling server's host:port.
func (l *Listener) Addr() string { return l.sig.Addr() }

// URL returns the signaling URL, PIN included, to hand to the dialer.
func (l *Listener) URL() string { return l.sig.URL() }

func (l *Listener) Close() error { return l.sig.Close() }

// Dial connects to the signaling URL and negotiates a PeerConnection as the
// answering side.
func Dial(ctx context.Context, url string, iceServers []string) (transport.Stream, error) {
	conn, err := signaling.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return connect(ctx, conn, iceServers, false)
}

func connect(ctx context.Context, conn *websocket.Conn, iceServers []string, offer bool) (*Stream, error) {
	pc, err := NewPeerConnection(iceServers)
	if err != nil {
		return nil, fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	dc, err := CreateDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create DataChannel: %w", err)
	}

	s := newStream(pc, dc)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.failed:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := signaling.Exchange(ctx, conn, pc, offer, s.opened); err != nil {
		pc.Close()
		select {
		case <-s.failed:
			return nil, ErrConnectionFailed
		default:
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to negotiate PeerConnection: %w", err)
	}

	s.remote = selectedRemote(pc)
	if s.remote == "" {
		s.remote = conn.RemoteAddr().String()
	}
	return s, nil
}

var _ transport.Listener = (*Listener)(nil)
var _ transport.Stream = (*Stream)(nil)
