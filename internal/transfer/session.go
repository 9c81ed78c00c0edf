// Package transfer moves one file over one stream: the sending side emits a
// size frame and the body, the receiving side persists exactly that many
// bytes and answers with a short status.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/qos"
	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
)

// Options tune a Session. The zero value is usable.
type Options struct {
	// ChunkSize bounds each body read and write. Defaults to
	// protocol.DefaultChunkSize.
	ChunkSize int

	// IOTimeout, when positive, is applied as a deadline before every stream
	// read and write on streams that support deadlines.
	IOTimeout time.Duration

	// Recorder times the sender's round trip. A fresh one is created when nil.
	Recorder *qos.Recorder

	// Status is the acknowledgment a receiver sends back. Defaults to
	// protocol.StatusReceived.
	Status string

	// Destination, when set, is called by a receiver once the size frame has
	// been decoded. It returns the path to persist into, replacing the
	// session's Path, and the status to answer with (empty keeps Status).
	// Nothing is reserved for a peer that never sends a valid frame.
	Destination func() (path, status string, err error)

	// OnProgress, when set, is called with the byte count of every body
	// chunk moved.
	OnProgress func(n int)
}

// Session is one transfer over one stream. It is driven by a single
// goroutine; State may be read from others.
type Session struct {
	ID   string
	Path string // source file for senders, destination for receivers

	opts Options

	mu     sync.Mutex
	state  State
	stream transport.Stream
	peer   string

	closeOnce sync.Once
	closeErr  error
}

// New creates an Idle session for the file at path.
func New(path string, opts Options) *Session {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = protocol.DefaultChunkSize
	}
	if opts.Recorder == nil {
		opts.Recorder = qos.NewRecorder()
	}
	if opts.Status == "" {
		opts.Status = protocol.StatusReceived
	}
	opts.Status = clampStatus(opts.Status)
	return &Session{
		ID:   util.NewSessionID(),
		Path: path,
		opts: opts,
	}
}

func clampStatus(status string) string {
	if len(status) > protocol.MaxStatusSize {
		return status[:protocol.MaxStatusSize]
	}
	return status
}

// Bind attaches the session's stream and moves it to Connected. The session
// owns the stream from here on.
func (s *Session) Bind(stream transport.Stream) error {
	if err := s.transition(Connected); err != nil {
		return err
	}

	s.mu.Lock()
	s.stream = stream
	s.peer = stream.RemoteAddr()
	s.mu.Unlock()

	util.Stats.AddSession()
	util.LogSessionDebug(s.ID, s.peer, "session bound")
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Peer returns the remote address of the bound stream.
func (s *Session) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// Recorder returns the recorder timing this session.
func (s *Session) Recorder() *qos.Recorder { return s.opts.Recorder }

// Close releases the stream. Only the first call closes it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		stream := s.stream
		s.mu.Unlock()

		if stream != nil {
			s.closeErr = stream.Close()
		}
	})
	return s.closeErr
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// begin moves the session to Transferring and arranges for the stream to be
// closed if ctx is cancelled while an operation is blocked on it. The returned
// func detaches that hook.
func (s *Session) begin(ctx context.Context) (stop func() bool, err error) {
	if err := s.transition(Transferring); err != nil {
		return nil, err
	}
	return context.AfterFunc(ctx, func() { s.Close() }), nil
}

// finish records the terminal state for err and returns err unchanged.
func (s *Session) finish(err error) error {
	if err == nil {
		s.transition(Completed)
		util.Stats.AddCompleted()
		return nil
	}

	s.transition(Failed)
	util.Stats.AddFailed()
	util.LogSessionDebug(s.ID, s.Peer(), "session failed: %v", err)
	return err
}

// transportErr classifies a stream failure. A cancelled ctx takes precedence
// over whatever error the closed stream produced.
func transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return protocol.Fail(protocol.ErrTransport, op, err)
}
