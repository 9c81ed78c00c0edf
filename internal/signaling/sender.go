package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// writeTimeout bounds each signaling write.
const writeTimeout = 5 * time.Second

// sender writes outgoing signaling messages. gorilla connections allow one
// concurrent writer, and pion fires candidate callbacks from its own
// goroutines, hence the mutex.
type sender struct {
	peer Peer
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *sender) send(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer s.conn.SetWriteDeadline(time.Time{})
	return s.conn.WriteJSON(msg)
}

// describe creates the local description of the given kind (offer or
// answer), applies it and sends its SDP.
func (s *sender) describe(kind msgType) error {
	var (
		desc webrtc.SessionDescription
		err  error
	)
	switch kind {
	case msgTypeOffer:
		desc, err = s.peer.CreateOffer(nil)
	case msgTypeAnswer:
		desc, err = s.peer.CreateAnswer(nil)
	default:
		return fmt.Errorf("cannot describe %q", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", kind, err)
	}

	if err := s.peer.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("failed to set local %s: %w", kind, err)
	}
	return s.send(message{Type: kind, SDP: desc.SDP})
}

// trickle sends one local ICE candidate.
func (s *sender) trickle(c *webrtc.ICECandidate) error {
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		return err
	}
	return s.send(message{Type: msgTypeCandidate, Candidate: string(data)})
}
