package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// fakePeer records what signaling does to it and closes ready once a remote
// description has been applied.
type fakePeer struct {
	name  string
	ready chan struct{}
	once  sync.Once

	mu          sync.Mutex
	local       webrtc.SessionDescription
	remote      webrtc.SessionDescription
	candidates  []string
	earlyAdds   int // candidates added before the remote description
	remoteIsSet bool
}

func newFakePeer(name string) *fakePeer {
	return &fakePeer{name: name, ready: make(chan struct{})}
}

func (p *fakePeer) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.name + "-offer"}, nil
}

func (p *fakePeer) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.name + "-answer"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = d
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	p.remote = d
	p.remoteIsSet = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remoteIsSet {
		p.earlyAdds++
	}
	p.candidates = append(p.candidates, c.Candidate)
	return nil
}

func (p *fakePeer) OnICECandidate(func(*webrtc.ICECandidate)) {}

func connectPair(t *testing.T, ctx context.Context) (server, client *websocket.Conn) {
	t.Helper()

	srv, err := NewServer("127.0.0.1:0", "4321")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	if !strings.HasSuffix(srv.URL(), "/ws?pin=4321") {
		t.Errorf("URL = %q", srv.URL())
	}

	client, err = Connect(ctx, srv.URL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	server, err = srv.WaitForClient(ctx)
	if err != nil {
		t.Fatalf("WaitForClient: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	return server, client
}

func TestConnectWrongPIN(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", "4321")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Connect(ctx, "ws://"+srv.Addr()+Path+"?pin=0000"); !errors.Is(err, ErrWrongPIN) {
		t.Fatalf("expected ErrWrongPIN, got %v", err)
	}
}

// TestExchangeOfferAnswer runs both sides of the exchange against fake peers.
func TestExchangeOfferAnswer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConn, clientConn := connectPair(t, ctx)
	offerer, answerer := newFakePeer("host"), newFakePeer("client")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- Exchange(ctx, serverConn, offerer, true, offerer.ready)
	}()
	go func() {
		defer wg.Done()
		errs <- Exchange(ctx, clientConn, answerer, false, answerer.ready)
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Exchange: %v", err)
		}
	}

	if answerer.remote.SDP != "host-offer" || answerer.remote.Type != webrtc.SDPTypeOffer {
		t.Errorf("answerer remote = %+v", answerer.remote)
	}
	if offerer.remote.SDP != "client-answer" || offerer.remote.Type != webrtc.SDPTypeAnswer {
		t.Errorf("offerer remote = %+v", offerer.remote)
	}
	if offerer.local.SDP != "host-offer" || answerer.local.SDP != "client-answer" {
		t.Errorf("local descriptions = %q / %q", offerer.local.SDP, answerer.local.SDP)
	}
}

// TestCandidatesBeforeOfferAreHeld sends a candidate ahead of the offer and
// checks it is applied only after the remote description.
func TestCandidatesBeforeOfferAreHeld(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConn, clientConn := connectPair(t, ctx)
	peer := newFakePeer("client")

	init, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"})
	if err := serverConn.WriteJSON(message{Type: msgTypeCandidate, Candidate: string(init)}); err != nil {
		t.Fatal(err)
	}
	if err := serverConn.WriteJSON(message{Type: msgTypeOffer, SDP: "host-offer"}); err != nil {
		t.Fatal(err)
	}

	if err := Exchange(ctx, clientConn, peer, false, peer.ready); err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	// The answer follows the offer on the wire.
	var answer message
	if err := serverConn.ReadJSON(&answer); err != nil {
		t.Fatalf("read answer: %v", err)
	}
	if answer.Type != msgTypeAnswer || answer.SDP != "client-answer" {
		t.Errorf("answer = %+v", answer)
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if len(peer.candidates) != 1 {
		t.Fatalf("candidates applied = %d, want 1", len(peer.candidates))
	}
	if peer.earlyAdds != 0 {
		t.Errorf("%d candidates applied before the remote description", peer.earlyAdds)
	}
}

func TestExchangeFailsWhenSocketCloses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConn, clientConn := connectPair(t, ctx)
	serverConn.Close()

	peer := newFakePeer("client")
	if err := Exchange(ctx, clientConn, peer, false, peer.ready); err == nil {
		t.Fatal("expected an error when the signaling socket closes")
	}
}

func TestGeneratePIN(t *testing.T) {
	pin := GeneratePIN(6)
	if len(pin) != 6 {
		t.Fatalf("len = %d, want 6", len(pin))
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit %q in PIN %q", c, pin)
		}
	}
}
