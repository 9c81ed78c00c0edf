package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// maxEmptyReads mirrors bufio: a reader returning (0, nil) this many times in
// a row is treated as broken.
const maxEmptyReads = 100

// WriteAll writes p to w, looping until every byte has been accepted. A
// transport may take fewer bytes than offered on each call. ctx is checked
// before every write.
func WriteAll(ctx context.Context, w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// ReadSome performs one read into p, retrying reads that return neither data
// nor an error. It returns io.EOF only when the peer closed the stream.
func ReadSome(r io.Reader, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// ReadHeader reads exactly one size frame from r, looping over partial reads,
// and returns the declared body length. A stream that closes before the header
// is complete yields an ErrFrame failure.
func ReadHeader(ctx context.Context, r io.Reader) (uint64, error) {
	const op = "read header"

	buf := make([]byte, HeaderSize)
	got := 0
	for got < HeaderSize {
		if err := ctx.Err(); err != nil {
			return 0, Fail(ErrTransport, op, err)
		}

		n, err := ReadSome(r, buf[got:])
		got += n
		if got == HeaderSize {
			break
		}
		if errors.Is(err, io.EOF) {
			return 0, Fail(ErrFrame, op,
				fmt.Errorf("stream closed after %d of %d header bytes", got, HeaderSize))
		}
		if err != nil {
			return 0, Fail(ErrTransport, op, err)
		}
	}

	return DecodeLength(buf)
}
