package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamPath is the HTTP path the ws transport upgrades on.
const StreamPath = "/stream"

const closeGrace = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// WSServer upgrades HTTP requests on one path and queues the resulting
// WebSocket connections for AcceptConn. Connections arriving while the queue
// is full are refused with a policy-violation close.
type WSServer struct {
	path      string
	authorize func(*http.Request) error
	listener  net.Listener
	server    *http.Server
	connCh    chan *websocket.Conn
}

// ListenWS starts a WebSocket server on addr serving path. authorize may be
// nil; when set, requests it rejects get 401. backlog bounds how many
// upgraded connections may wait for AcceptConn.
func ListenWS(addr, path string, backlog int, authorize func(*http.Request) error) (*WSServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start WS server: %w", err)
	}
	if backlog < 1 {
		backlog = 1
	}

	s := &WSServer{
		path:      path,
		authorize: authorize,
		listener:  listener,
		connCh:    make(chan *websocket.Conn, backlog),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleWS)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		_ = s.server.Serve(listener)
	}()

	return s, nil
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.authorize != nil {
		if err := s.authorize(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "busy"))
		conn.Close()
	}
}

// AcceptConn blocks until a client has been upgraded or ctx is done.
func (s *WSServer) AcceptConn(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the listening host:port.
func (s *WSServer) Addr() string { return s.listener.Addr().String() }

// URL returns the ws:// URL clients should dial.
func (s *WSServer) URL() string { return "ws://" + s.Addr() + s.path }

// Close stops accepting connections. Connections already handed out stay open.
func (s *WSServer) Close() error {
	return s.server.Close()
}

// ---------------------------------------------------------------------------
// Stream adapter
// ---------------------------------------------------------------------------

// wsStream presents a message-oriented WebSocket as a byte stream: every
// Write becomes one binary message and Read walks through message bodies in
// arrival order.
type wsStream struct {
	conn *websocket.Conn
	cur  io.Reader

	closeOnce sync.Once
	closeErr  error
}

// NewWSStream wraps an established WebSocket connection.
func NewWSStream(conn *websocket.Conn) Stream {
	return &wsStream{conn: conn}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.cur = r
		}

		n, err := s.cur.Read(p)
		if errors.Is(err, io.EOF) {
			s.cur = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure frame so the peer reads io.EOF, then closes
// the socket.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *wsStream) SetDeadline(t time.Time) error {
	return errors.Join(s.conn.SetReadDeadline(t), s.conn.SetWriteDeadline(t))
}

func (s *wsStream) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// ---------------------------------------------------------------------------
// Dial / Listen
// ---------------------------------------------------------------------------

// WSURL turns host:port into a ws:// URL on path. Values that already carry a
// ws:// or wss:// scheme are returned unchanged.
func WSURL(addr, path string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + path
}

// DialWS connects to a ws transport listener at addr (host:port or URL).
func DialWS(ctx context.Context, addr string) (Stream, error) {
	url := WSURL(addr, StreamPath)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return NewWSStream(conn), nil
}

type wsListener struct {
	srv *WSServer
}

// ListenWSStream starts a ws transport listener on addr.
func ListenWSStream(addr string) (Listener, error) {
	srv, err := ListenWS(addr, StreamPath, 16, nil)
	if err != nil {
		return nil, err
	}
	return &wsListener{srv: srv}, nil
}

func (l *wsListener) Accept(ctx context.Context) (Stream, error) {
	conn, err := l.srv.AcceptConn(ctx)
	if err != nil {
		return nil, err
	}
	return NewWSStream(conn), nil
}

func (l *wsListener) Addr() string { return l.srv.Addr() }
func (l *wsListener) Close() error { return l.srv.Close() }
