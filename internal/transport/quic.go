package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/logging"

	"github.com/1ureka/ferry/internal/util"
)

// ALPN protocol id negotiated by the quic transport.
const quicALPN = "ferry"

// Listener-side streams wait this long for the dialer to close the
// connection after the last write, so the status frame is not cut off by an
// immediate CONNECTION_CLOSE.
const quicLinger = 2 * time.Second

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// quicStream is the single bidirectional stream of a QUIC connection.
type quicStream struct {
	quic.Stream
	conn   quic.Connection
	linger time.Duration
	stats  *QUICStats // dialer side only

	closeOnce sync.Once
	closeErr  error
}

// Read maps a peer closing the connection with code 0 to io.EOF, matching
// an orderly TCP close.
func (s *quicStream) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
		return n, io.EOF
	}
	return n, err
}

// Close finishes the send side, optionally lingers until the peer hangs up,
// then closes the connection.
func (s *quicStream) Close() error {
	s.closeOnce.Do(func() {
		err := s.Stream.Close()
		if s.linger > 0 {
			select {
			case <-s.conn.Context().Done():
			case <-time.After(s.linger):
			}
		}
		s.closeErr = errors.Join(err, s.conn.CloseWithError(0, ""))
		if s.stats != nil {
			util.LogDebug("quic transport: %s", s.stats)
		}
	})
	return s.closeErr
}

func (s *quicStream) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// DialQUIC connects to addr and opens the transfer stream. A nil tlsConf
// accepts the listener's self-signed certificate.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) (Stream, error) {
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true, NextProtos: []string{quicALPN}}
	}

	stats := &QUICStats{}
	conf := quicConfig()
	conf.Tracer = stats.tracer

	conn, err := quic.DialAddr(ctx, addr, tlsConf, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(1, "open stream")
		return nil, fmt.Errorf("failed to open stream to %s: %w", addr, err)
	}

	return &quicStream{Stream: stream, conn: conn, stats: stats}, nil
}

// QUICStats collects what the QUIC stack itself measured on a connection:
// its RTT estimates and the packets it declared lost.
type QUICStats struct {
	mu          sync.Mutex
	minRTT      time.Duration
	smoothedRTT time.Duration
	lost        int
}

func (q *QUICStats) tracer(context.Context, logging.Perspective, quic.ConnectionID) *logging.ConnectionTracer {
	return &logging.ConnectionTracer{
		UpdatedMetrics: func(rtt *logging.RTTStats, _, _ logging.ByteCount, _ int) {
			q.mu.Lock()
			q.minRTT = rtt.MinRTT()
			q.smoothedRTT = rtt.SmoothedRTT()
			q.mu.Unlock()
		},
		LostPacket: func(logging.EncryptionLevel, logging.PacketNumber, logging.PacketLossReason) {
			q.mu.Lock()
			q.lost++
			q.mu.Unlock()
		},
	}
}

// Snapshot returns the latest RTT estimates and the lost packet count.
func (q *QUICStats) Snapshot() (minRTT, smoothedRTT time.Duration, lost int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.minRTT, q.smoothedRTT, q.lost
}

func (q *QUICStats) String() string {
	minRTT, smoothed, lost := q.Snapshot()
	return fmt.Sprintf("min RTT %s, smoothed RTT %s, %d packets lost", minRTT, smoothed, lost)
}

// Stats returns the transport statistics of a stream opened by DialQUIC, or
// nil for other streams.
func Stats(s Stream) *QUICStats {
	if qs, ok := s.(*quicStream); ok {
		return qs.stats
	}
	return nil
}

type quicListener struct {
	ln *quic.Listener
}

// ListenQUIC starts a QUIC listener on addr. A nil tlsConf uses a freshly
// generated self-signed certificate.
func ListenQUIC(addr string, tlsConf *tls.Config) (Listener, error) {
	if tlsConf == nil {
		var err error
		if tlsConf, err = SelfSignedTLS(); err != nil {
			return nil, err
		}
	}

	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &quicListener{ln: ln}, nil
}

// Accept waits for a connection and its first stream. The dialer's stream is
// only announced once it carries data, i.e. with the size frame.
func (l *quicListener) Accept(ctx context.Context) (Stream, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(1, "no stream")
		return nil, err
	}

	return &quicStream{Stream: stream, conn: conn, linger: quicLinger}, nil
}

func (l *quicListener) Addr() string { return l.ln.Addr().String() }
func (l *quicListener) Close() error { return l.ln.Close() }

// SelfSignedTLS returns a server TLS config with a throwaway ECDSA
// certificate for the quic transport.
func SelfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "ferry"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{quicALPN},
	}, nil
}
