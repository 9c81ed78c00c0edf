package probe_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/ferry/internal/probe"
	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/qos"
	"github.com/1ureka/ferry/internal/transport"
)

type pipeStream struct {
	net.Conn
}

func (p pipeStream) RemoteAddr() string { return "pipe" }

func pipe() (transport.Stream, transport.Stream) {
	a, b := net.Pipe()
	return pipeStream{a}, pipeStream{b}
}

func TestPayload(t *testing.T) {
	testCases := []struct {
		size int
		want string
	}{
		{0, ""},
		{5, "Hello"},
		{14, "Hello, there! "},
		{20, "Hello, there! Hello,"},
	}
	for _, tc := range testCases {
		if got := string(probe.Payload(tc.size)); got != tc.want {
			t.Errorf("Payload(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
	if got := probe.Payload(1024); len(got) != 1024 || !strings.HasPrefix(string(got), "Hello, there! ") {
		t.Errorf("Payload(1024) has %d bytes", len(got))
	}
}

func TestProbeEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, server := pipe()

	echoed := make(chan int, 1)
	go func() {
		n, _ := probe.Echo(ctx, server, 0, 100)
		echoed <- n
		server.Close()
	}()

	rec := qos.NewRecorder()
	report, err := probe.Probe{Count: 50, Size: 100, Recorder: rec}.Run(ctx, client)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	client.Close()

	if report.Count != 50 || report.Attempted != 50 {
		t.Errorf("report counts = %d/%d", report.Count, report.Attempted)
	}
	if report.LossRate != 0 {
		t.Errorf("loss = %v", report.LossRate)
	}
	if report.StdDev < 0 || report.Mean <= 0 {
		t.Errorf("mean = %v, stddev = %v", report.Mean, report.StdDev)
	}
	if rec.Attempts() != 50 {
		t.Errorf("attempts = %d", rec.Attempts())
	}
	if n := <-echoed; n != 50 {
		t.Errorf("echoed %d messages", n)
	}
}

// TestProbeCountsUnsentAsLost stops the echo side half way through.
func TestProbeCountsUnsentAsLost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, server := pipe()
	go func() {
		probe.Echo(ctx, server, 10, 64)
		server.Close()
	}()

	report, err := probe.Probe{Count: 20, Size: 64}.Run(ctx, client)
	client.Close()

	if protocol.KindOf(err) == nil {
		t.Fatalf("expected a classified failure, got %v", err)
	}
	if report.Count != 10 || report.Attempted != 20 {
		t.Errorf("report counts = %d/%d", report.Count, report.Attempted)
	}
	if report.LossRate != 0.5 {
		t.Errorf("loss = %v, want 0.5", report.LossRate)
	}
}

func TestProbeNoEcho(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipe()
	server.Close()

	report, err := probe.Probe{Count: 5, Size: 16}.Run(ctx, client)
	if err == nil {
		t.Fatal("expected an error against a closed peer")
	}
	if !report.NoData || report.LossRate != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client, server := pipe()
	defer server.Close()

	// Nothing echoes, so the first round trip blocks until cancellation.
	go func() {
		buf := make([]byte, 64)
		server.Read(buf)
	}()
	time.AfterFunc(50*time.Millisecond, cancel)

	report, err := probe.Probe{Count: 3, Size: 64}.Run(ctx, client)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Attempted != 3 || report.Count != 0 || report.LossRate != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestEchoLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipe()
	defer client.Close()

	done := make(chan int, 1)
	go func() {
		n, _ := probe.Echo(ctx, server, 2, 3)
		done <- n
	}()

	buf := make([]byte, 3)
	for _, msg := range []string{"abc", "def"} {
		client.Write([]byte(msg))
		if _, err := client.Read(buf); err != nil || string(buf) != msg {
			t.Fatalf("echo of %q = %q, %v", msg, buf, err)
		}
	}

	if n := <-done; n != 2 {
		t.Errorf("echoed %d, want 2", n)
	}
}

// TestEchoLargeMessagesOverTCP sends messages spanning several echo reads;
// the echo side must serve all of them before hanging up.
func TestEchoLargeMessagesOverTCP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := transport.ListenTCP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	const count, size = 10, 4 * probe.MaxEchoRead

	echoed := make(chan int, 1)
	go func() {
		server, err := ln.Accept(ctx)
		if err != nil {
			echoed <- -1
			return
		}
		defer server.Close()
		n, _ := probe.Echo(ctx, server, count, size)
		echoed <- n
	}()

	client, err := transport.DialTCP(ctx, ln.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	report, err := probe.Probe{Count: count, Size: size}.Run(ctx, client)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Count != count || report.LossRate != 0 {
		t.Errorf("report = %d/%d, loss %v", report.Count, report.Attempted, report.LossRate)
	}
	if n := <-echoed; n != count {
		t.Errorf("echoed %d messages, want %d", n, count)
	}
}

func TestEchoPartialMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := pipe()

	done := make(chan int, 1)
	go func() {
		n, _ := probe.Echo(ctx, server, 3, 8)
		done <- n
	}()

	// One and a half messages, then hang up.
	msg := []byte("0123456789ab")
	client.Write(msg)
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatal(err)
	}
	client.Close()

	if n := <-done; n != 1 {
		t.Errorf("echoed %d complete messages, want 1", n)
	}
}

// TestProbeSharedRecorder reuses one recorder for two runs; the second
// report covers only its own round trips.
func TestProbeSharedRecorder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := qos.NewRecorder()

	client, server := pipe()
	go func() {
		probe.Echo(ctx, server, 0, 32)
		server.Close()
	}()
	if _, err := (probe.Probe{Count: 5, Size: 32, Recorder: rec}).Run(ctx, client); err != nil {
		t.Fatalf("first run: %v", err)
	}
	client.Close()

	client, server = pipe()
	go func() {
		probe.Echo(ctx, server, 2, 32)
		server.Close()
	}()
	report, _ := probe.Probe{Count: 4, Size: 32, Recorder: rec}.Run(ctx, client)
	client.Close()

	if report.Count != 2 || report.Attempted != 4 || report.LossRate != 0.5 {
		t.Errorf("second report = %d/%d, loss %v; want 2/4, 0.5", report.Count, report.Attempted, report.LossRate)
	}
}
