package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/1ureka/ferry/internal/transport"
)

// Path is the HTTP path the signaling server upgrades on.
const Path = "/ws"

// Server is the listener-side WebSocket server used for signaling. Only
// clients presenting the PIN are upgraded, and only one waits at a time.
type Server struct {
	pin string
	ws  *transport.WSServer
}

// NewServer starts a signaling server on addr guarded by pin.
func NewServer(addr, pin string) (*Server, error) {
	s := &Server{pin: pin}
	ws, err := transport.ListenWS(addr, Path, 1, s.authorize)
	if err != nil {
		return nil, err
	}
	s.ws = ws
	return s, nil
}

func (s *Server) authorize(r *http.Request) error {
	if r.URL.Query().Get("pin") != s.pin {
		return errors.New("invalid PIN")
	}
	return nil
}

// WaitForClient blocks until a client connects or ctx is cancelled.
func (s *Server) WaitForClient(ctx context.Context) (*websocket.Conn, error) {
	return s.ws.AcceptConn(ctx)
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string { return s.ws.Addr() }

// URL returns the URL, PIN included, a client should Connect to.
func (s *Server) URL() string { return s.ws.URL() + "?pin=" + s.pin }

// Close shuts down the listener, preventing new connections.
func (s *Server) Close() error { return s.ws.Close() }

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
