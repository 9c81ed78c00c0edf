package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/util"
)

// ReceiveFile reads one framed file from the peer into s.Path, or the path
// Options.Destination returns, and answers with the configured status. It
// returns the number of bytes persisted, which on a truncated transfer is
// what arrived before the peer hung up; the partial file is kept.
func (s *Session) ReceiveFile(ctx context.Context) (persisted int64, err error) {
	stop, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer stop()
	defer func() { err = s.finish(err) }()

	sio := s.io()

	total, err := protocol.ReadHeader(ctx, sio)
	if err != nil {
		if ctx.Err() != nil {
			return 0, transportErr(ctx, "read header", err)
		}
		return 0, err
	}
	util.LogSessionDebug(s.ID, s.Peer(), "size frame received: %d bytes", total)

	if s.opts.Destination != nil {
		path, status, err := s.opts.Destination()
		if err != nil {
			return 0, protocol.Fail(protocol.ErrFile, "reserve destination", err)
		}
		s.Path = path
		if status != "" {
			s.opts.Status = clampStatus(status)
		}
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return 0, protocol.Fail(protocol.ErrFile, "create file", err)
	}
	closed := false
	defer func() {
		if !closed {
			f.Close()
		}
	}()

	buf := make([]byte, s.opts.ChunkSize)
	var received uint64
	for received < total {
		if err := ctx.Err(); err != nil {
			return int64(received), transportErr(ctx, "read body", err)
		}

		want := min(uint64(len(buf)), total-received)
		n, rerr := protocol.ReadSome(sio, buf[:want])
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return int64(received), protocol.Fail(protocol.ErrFile, "write file", err)
			}
			received += uint64(n)
			if s.opts.OnProgress != nil {
				s.opts.OnProgress(n)
			}
		}

		if rerr == nil || received == total {
			continue
		}
		if errors.Is(rerr, io.EOF) && ctx.Err() == nil {
			return int64(received), protocol.Fail(protocol.ErrTruncated, "read body",
				fmt.Errorf("stream closed after %d of %d bytes", received, total))
		}
		return int64(received), transportErr(ctx, "read body", rerr)
	}

	closed = true
	if err := f.Close(); err != nil {
		return int64(received), protocol.Fail(protocol.ErrFile, "close file", err)
	}

	if _, err := protocol.WriteAll(ctx, sio, []byte(s.opts.Status)); err != nil {
		return int64(received), transportErr(ctx, "write status", err)
	}
	util.LogSessionDebug(s.ID, s.Peer(), "status sent: %q", s.opts.Status)

	return int64(received), nil
}
