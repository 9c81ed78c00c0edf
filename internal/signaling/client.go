package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrWrongPIN is returned by Connect when the server rejects the PIN.
var ErrWrongPIN = errors.New("signaling server rejected the PIN")

const handshakeTimeout = 10 * time.Second

// Connect dials the signaling URL, PIN included, e.g.
//
//	ws://192.168.1.20:12345/ws?pin=1234
func Connect(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrWrongPIN
		}
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	return conn, nil
}
