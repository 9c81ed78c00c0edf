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

// SendFile streams the file at s.Path to the peer and returns the status the
// receiver answered with. The recorder times from the first byte of the size
// frame until the status arrives; a failed transfer leaves no sample.
func (s *Session) SendFile(ctx context.Context) (status string, err error) {
	stop, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	rec := s.opts.Recorder
	started := false
	defer func() {
		if err != nil && started {
			rec.Abort()
		}
		err = s.finish(err)
	}()

	f, err := os.Open(s.Path)
	if err != nil {
		return "", protocol.Fail(protocol.ErrFile, "open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", protocol.Fail(protocol.ErrFile, "stat file", err)
	}
	if !info.Mode().IsRegular() {
		return "", protocol.Fail(protocol.ErrFile, "stat file",
			fmt.Errorf("%s is not a regular file", s.Path))
	}
	total := uint64(info.Size())

	sio := s.io()

	rec.Start()
	started = true

	if _, err := protocol.WriteAll(ctx, sio, protocol.EncodeLength(total)); err != nil {
		return "", transportErr(ctx, "write header", err)
	}
	util.LogSessionDebug(s.ID, s.Peer(), "size frame sent: %d bytes", total)

	buf := make([]byte, s.opts.ChunkSize)
	var sent uint64
	for sent < total {
		if err := ctx.Err(); err != nil {
			return "", transportErr(ctx, "send body", err)
		}

		want := min(uint64(len(buf)), total-sent)
		n, err := io.ReadFull(f, buf[:want])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", protocol.Fail(protocol.ErrFile, "read file",
				fmt.Errorf("file shrank: %d of %d bytes readable", sent+uint64(n), total))
		}
		if err != nil {
			return "", protocol.Fail(protocol.ErrFile, "read file", err)
		}

		if _, err := protocol.WriteAll(ctx, sio, buf[:n]); err != nil {
			return "", transportErr(ctx, "send body", err)
		}
		sent += uint64(n)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(n)
		}
	}

	reply := make([]byte, protocol.MaxStatusSize)
	n, err := protocol.ReadSome(sio, reply)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = errors.New("stream closed before status")
		}
		return "", transportErr(ctx, "read status", err)
	}

	if sample, ok := rec.Stop(); ok {
		util.LogSessionDebug(s.ID, s.Peer(), "round trip %d took %s", sample.Seq, sample.Duration)
	}
	return string(reply[:n]), nil
}
