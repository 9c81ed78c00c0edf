package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// tcpStream adapts a net.Conn. Deadlines are promoted from the conn.
type tcpStream struct {
	net.Conn
}

func (s tcpStream) RemoteAddr() string {
	return s.Conn.RemoteAddr().String()
}

// DialTCP connects to addr over TCP.
func DialTCP(ctx context.Context, addr string) (Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return tcpStream{conn}, nil
}

type tcpListener struct {
	ln *net.TCPListener
}

// ListenTCP starts a TCP listener on addr. Use port 0 for an ephemeral port.
func ListenTCP(ctx context.Context, addr string) (Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &tcpListener{ln: ln.(*net.TCPListener)}, nil
}

// Accept waits for the next connection. Cancelling ctx unblocks it by
// expiring the listener deadline.
func (l *tcpListener) Accept(ctx context.Context) (Stream, error) {
	stop := context.AfterFunc(ctx, func() {
		l.ln.SetDeadline(time.Now())
	})
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			l.ln.SetDeadline(time.Time{})
			return nil, ctxErr
		}
		return nil, err
	}
	return tcpStream{conn}, nil
}

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }
func (l *tcpListener) Close() error { return l.ln.Close() }
