package webrtc

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	HighWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	LowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this

	// Writes are split into messages no larger than this.
	maxMessageSize = 16 * 1024

	inboxSize  = 64
	flushGrace = 5 * time.Second
)

// ErrConnectionFailed is returned once ICE or DTLS gives up on the peer.
var ErrConnectionFailed = errors.New("webrtc: peer connection failed")

// Stream presents a DataChannel as a byte stream. Message boundaries are not
// preserved: Read walks through message bodies in arrival order.
type Stream struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	remote string
	linger time.Duration

	inbox   chan []byte
	cur     []byte
	drained chan struct{}

	opened       chan struct{}
	remoteClosed chan struct{}
	failed       chan struct{}
	done         chan struct{}

	openOnce, remoteOnce, failOnce sync.Once
	closeOnce                      sync.Once
	closeErr                       error
}

// newStream wires callbacks on pc and dc. It must run before signaling so no
// message or state change is missed.
func newStream(pc *webrtc.PeerConnection, dc *webrtc.DataChannel) *Stream {
	s := &Stream{
		pc:           pc,
		dc:           dc,
		inbox:        make(chan []byte, inboxSize),
		drained:      make(chan struct{}, 1),
		opened:       make(chan struct{}),
		remoteClosed: make(chan struct{}),
		failed:       make(chan struct{}),
		done:         make(chan struct{}),
	}

	dc.SetBufferedAmountLowThreshold(uint64(LowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	})

	dc.OnOpen(func() { s.openOnce.Do(func() { close(s.opened) }) })
	dc.OnClose(func() { s.remoteOnce.Do(func() { close(s.remoteClosed) }) })

	// Blocking here stalls the SCTP read loop, which is the receive-side
	// backpressure.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := append([]byte(nil), msg.Data...)
		select {
		case s.inbox <- data:
		case <-s.done:
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.failOnce.Do(func() { close(s.failed) })
		}
	})

	return s
}

// Read returns buffered message bytes. After the remote closes the channel,
// messages already delivered are drained before io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.cur) == 0 {
		select {
		case b := <-s.inbox:
			s.cur = b
			continue
		default:
		}

		select {
		case b := <-s.inbox:
			s.cur = b
		case <-s.remoteClosed:
			if !s.takePending() {
				return 0, io.EOF
			}
		case <-s.failed:
			if !s.takePending() {
				return 0, ErrConnectionFailed
			}
		case <-s.done:
			return 0, net.ErrClosed
		}
	}

	n := copy(p, s.cur)
	s.cur = s.cur[n:]
	return n, nil
}

func (s *Stream) takePending() bool {
	select {
	case b := <-s.inbox:
		s.cur = b
		return true
	default:
		return false
	}
}

// Write sends p as one or more messages, blocking while the channel's
// buffered amount is above HighWaterMark.
func (s *Stream) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if err := s.waitWritable(); err != nil {
			return written, err
		}

		n := min(len(p), maxMessageSize)
		if err := s.dc.Send(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (s *Stream) waitWritable() error {
	for s.dc.BufferedAmount() > uint64(HighWaterMark) {
		select {
		case <-s.drained:
		case <-s.remoteClosed:
			return io.ErrClosedPipe
		case <-s.failed:
			return ErrConnectionFailed
		case <-s.done:
			return net.ErrClosed
		}
	}
	return nil
}

// Close flushes queued messages, lingers for the remote close when this is
// the listening side, then tears down the channel and the PeerConnection.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.flush(flushGrace)

		if s.linger > 0 {
			select {
			case <-s.remoteClosed:
			case <-s.failed:
			case <-time.After(s.linger):
			}
		}

		close(s.done)
		s.closeErr = errors.Join(s.dc.Close(), s.pc.Close())
	})
	return s.closeErr
}

func (s *Stream) flush(grace time.Duration) {
	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for s.dc.BufferedAmount() > 0 {
		select {
		case <-tick.C:
		case <-s.failed:
			return
		case <-deadline.C:
			return
		}
	}
}

// RemoteAddr returns the nominated remote ICE candidate.
func (s *Stream) RemoteAddr() string { return s.remote }
