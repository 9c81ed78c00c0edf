// Package probe measures link quality with fixed-size echo round trips: the
// prober writes a payload, the echo side writes it straight back, and each
// round trip becomes one qos sample.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/qos"
	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
)

const (
	DefaultCount = 1000
	DefaultSize  = 1024

	// MaxEchoRead bounds each read on the echo side. Messages larger than
	// this are echoed over several reads.
	MaxEchoRead = 1024
)

// Probe sends Count payloads of Size bytes and times each echo.
type Probe struct {
	Count    int
	Size     int
	Recorder *qos.Recorder // a fresh one is used when nil; may be shared across runs
}

// Payload returns size bytes of the repeated probe greeting.
func Payload(size int) []byte {
	const greeting = "Hello, there! "
	if size <= 0 {
		return nil
	}
	return bytes.Repeat([]byte(greeting), size/len(greeting)+1)[:size]
}

// Run performs the round trips on stream and reports them against Count, so
// probes never sent after a failure count as lost. The returned error is the
// failure that stopped the run, if any; the report is valid either way.
func (p Probe) Run(ctx context.Context, stream transport.Stream) (qos.Report, error) {
	count, size := p.Count, p.Size
	if count <= 0 {
		count = DefaultCount
	}
	if size <= 0 {
		size = DefaultSize
	}
	rec := p.Recorder
	if rec == nil {
		rec = qos.NewRecorder()
	}

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	// Only this run's samples count against this run's Count.
	before := len(rec.Samples())

	payload := Payload(size)
	echo := make([]byte, size)

	var runErr error
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			runErr = protocol.Fail(protocol.ErrTransport, "probe", err)
			break
		}
		if err := roundTrip(ctx, stream, rec, payload, echo); err != nil {
			runErr = err
			break
		}
	}

	samples := rec.Samples()[before:]
	util.LogDebug("probe finished: %d of %d round trips", len(samples), count)
	return qos.Aggregate(samples, count), runErr
}

func roundTrip(ctx context.Context, stream transport.Stream, rec *qos.Recorder, payload, echo []byte) error {
	rec.Start()

	if _, err := protocol.WriteAll(ctx, stream, payload); err != nil {
		rec.Abort()
		return protocol.Fail(protocol.ErrTransport, "write probe", ctxOr(ctx, err))
	}
	util.Stats.AddSent(len(payload))

	n, err := io.ReadFull(stream, echo)
	util.Stats.AddRecv(n)
	if err != nil {
		rec.Abort()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return protocol.Fail(protocol.ErrTruncated, "read echo",
				fmt.Errorf("stream closed after %d of %d echo bytes", n, len(echo)))
		}
		return protocol.Fail(protocol.ErrTransport, "read echo", ctxOr(ctx, err))
	}
	if !bytes.Equal(echo, payload) {
		rec.Abort()
		return protocol.Fail(protocol.ErrFrame, "read echo", errors.New("echo does not match payload"))
	}

	rec.Stop()
	return nil
}

// Echo writes back everything it reads from stream until the peer closes,
// ctx is done, or limit messages of size bytes have been echoed (limit <= 0
// means no limit, size <= 0 means DefaultSize). Reads are at most
// MaxEchoRead bytes and never run past the limit, so message boundaries do
// not have to line up with reads. It returns the number of complete messages
// echoed.
func Echo(ctx context.Context, stream transport.Stream, limit, size int) (int, error) {
	if size <= 0 {
		size = DefaultSize
	}
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	budget := int64(limit) * int64(size)
	buf := make([]byte, MaxEchoRead)
	var echoed int64
	messages := func() int { return int(echoed / int64(size)) }

	for limit <= 0 || echoed < budget {
		p := buf
		if limit > 0 {
			p = buf[:min(int64(len(buf)), budget-echoed)]
		}

		n, err := protocol.ReadSome(stream, p)
		util.Stats.AddRecv(n)
		if n > 0 {
			if _, werr := protocol.WriteAll(ctx, stream, p[:n]); werr != nil {
				return messages(), protocol.Fail(protocol.ErrTransport, "write echo", ctxOr(ctx, werr))
			}
			util.Stats.AddSent(n)
			echoed += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return messages(), nil
		}
		if err != nil {
			return messages(), protocol.Fail(protocol.ErrTransport, "read probe", ctxOr(ctx, err))
		}
	}
	return messages(), nil
}

func ctxOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
