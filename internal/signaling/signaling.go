package signaling

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// Peer is the part of *webrtc.PeerConnection signaling drives.
type Peer interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
}

var _ Peer = (*webrtc.PeerConnection)(nil)

// Exchange runs the SDP/ICE exchange over conn:
//   - the offering side creates and sends an Offer
//   - the answering side replies to the Offer with an Answer
//   - both sides trickle ICE candidates
//
// It blocks until ready is closed (the DataChannel opened), the WebSocket
// fails, or ctx is done. The caller owns conn and closes it afterwards.
func Exchange(ctx context.Context, conn *websocket.Conn, peer Peer, offer bool, ready <-chan struct{}) error {
	s := &sender{peer: peer, conn: conn}
	r := &receiver{peer: peer, conn: conn, sender: s}

	// Forward local ICE candidates through the sender.
	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			// Late candidates may hit a socket the peer already closed.
			s.trickle(c)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch() // exits when the caller closes conn
	}()

	if offer {
		if err := s.describe(msgTypeOffer); err != nil {
			return fmt.Errorf("failed to send Offer: %w", err)
		}
	}

	select {
	case <-ready:
		return nil

	case err := <-errCh:
		// The other side closes the WS as soon as its own channel opens.
		// Once descriptions are exchanged ICE carries on without it.
		if !r.haveRemote {
			select {
			case <-ready:
				return nil
			default:
				return fmt.Errorf("signaling failed: %w", err)
			}
		}
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case <-ctx.Done():
		return ctx.Err()
	}
}
