package transfer

import (
	"time"

	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
)

// streamIO wraps the session stream with the per-call deadline and the
// process-wide byte counters.
type streamIO struct {
	stream   transport.Stream
	deadline transport.Deadliner // nil when unsupported or no timeout
	timeout  time.Duration
}

func (s *Session) io() *streamIO {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	sio := &streamIO{stream: stream, timeout: s.opts.IOTimeout}
	if d, ok := stream.(transport.Deadliner); ok && s.opts.IOTimeout > 0 {
		sio.deadline = d
	}
	return sio
}

func (s *streamIO) arm() error {
	if s.deadline == nil {
		return nil
	}
	return s.deadline.SetDeadline(time.Now().Add(s.timeout))
}

func (s *streamIO) Read(p []byte) (int, error) {
	if err := s.arm(); err != nil {
		return 0, err
	}
	n, err := s.stream.Read(p)
	util.Stats.AddRecv(n)
	return n, err
}

func (s *streamIO) Write(p []byte) (int, error) {
	if err := s.arm(); err != nil {
		return 0, err
	}
	n, err := s.stream.Write(p)
	util.Stats.AddSent(n)
	return n, err
}
