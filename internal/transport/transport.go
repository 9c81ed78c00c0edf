// Package transport provides the byte-stream connections a transfer runs
// over. Every transport presents the same contract as a TCP socket: Write may
// accept fewer bytes than offered, Read returns io.EOF once the peer has
// closed its side in an orderly way.
package transport

import (
	"context"
	"io"
	"time"
)

// Stream is one persistent, ordered, reliable byte stream to a peer.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Listener accepts inbound streams.
type Listener interface {
	// Accept blocks until a peer connects or ctx is done.
	Accept(ctx context.Context) (Stream, error)

	// Addr returns the address peers should dial.
	Addr() string

	Close() error
}

// Deadliner is implemented by streams that support I/O deadlines.
type Deadliner interface {
	SetDeadline(t time.Time) error
}
