// Package webrtc carries a transfer over a single ordered DataChannel. The
// PeerConnection is negotiated through the signaling package and the
// resulting channel is exposed as a transport.Stream.
package webrtc

import (
	"net"
	"strconv"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are used for ICE candidate gathering when none are
// configured. No TURN: peers must reach each other directly.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// NewPeerConnection creates a PeerConnection using iceServers. Loopback
// candidates are gathered too so both ends may live on one host.
func NewPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	config := webrtc.Configuration{}
	if len(iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return api.NewPeerConnection(config)
}

// CreateDataChannel creates the transfer channel. It is ordered, since the
// size frame, body and status must arrive in sequence, and pre-negotiated
// with a fixed ID so both sides create it before signaling starts.
func CreateDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered, negotiated := true, true
	var id uint16
	return pc.CreateDataChannel("ferry", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}

// selectedRemote returns host:port of the nominated remote candidate, or ""
// before ICE has picked a pair.
func selectedRemote(pc *webrtc.PeerConnection) string {
	sctp := pc.SCTP()
	if sctp == nil || sctp.Transport() == nil {
		return ""
	}
	pair, err := sctp.Transport().ICETransport().GetSelectedCandidatePair()
	if err != nil || pair == nil || pair.Remote == nil {
		return ""
	}
	return net.JoinHostPort(pair.Remote.Address, strconv.Itoa(int(pair.Remote.Port)))
}
