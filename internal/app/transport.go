package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/signaling"
	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
	"github.com/1ureka/ferry/internal/webrtc"
)

// Dial opens the stream a sender or prober runs over.
func Dial(ctx context.Context, cfg *config.Config) (transport.Stream, error) {
	switch cfg.Transport {
	case config.SchemeTCP:
		stream, err := transport.DialTCP(ctx, cfg.Addr)
		if err != nil {
			return nil, err
		}
		markDSCP(cfg, stream)
		return stream, nil
	case config.SchemeWS:
		return transport.DialWS(ctx, cfg.Addr)
	case config.SchemeQUIC:
		return transport.DialQUIC(ctx, cfg.Addr, nil)
	case config.SchemeWebRTC:
		u, err := signalingURL(cfg.Addr, cfg.PIN)
		if err != nil {
			return nil, err
		}
		util.LogDebug("negotiating PeerConnection via %s", u)
		return webrtc.Dial(ctx, u, iceServers(cfg))
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Listen starts the listener a receiver or echo server accepts on.
func Listen(ctx context.Context, cfg *config.Config) (transport.Listener, error) {
	switch cfg.Transport {
	case config.SchemeTCP:
		return transport.ListenTCP(ctx, cfg.Addr)
	case config.SchemeWS:
		return transport.ListenWSStream(cfg.Addr)
	case config.SchemeQUIC:
		return transport.ListenQUIC(cfg.Addr, nil)
	case config.SchemeWebRTC:
		pin := cfg.PIN
		if pin == "" {
			pin = signaling.GeneratePIN(4)
		}
		ln, err := webrtc.Listen(cfg.Addr, pin, iceServers(cfg))
		if err != nil {
			return nil, err
		}
		pterm.DefaultBox.WithTitle("WebRTC Signaling Server").Println(
			fmt.Sprintf("URL : %s\nPIN : %s", ln.URL(), pin))
		return ln, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// markDSCP applies cfg.DSCP to a tcp stream. Failures are logged only.
func markDSCP(cfg *config.Config, stream transport.Stream) {
	if cfg.DSCP == 0 || cfg.Transport != config.SchemeTCP {
		return
	}
	if err := transport.SetDSCP(stream, cfg.DSCP); err != nil {
		util.LogWarning("failed to set dscp %d on %s: %v", cfg.DSCP, stream.RemoteAddr(), err)
		return
	}
	util.LogDebug("marked %s with dscp %d", stream.RemoteAddr(), cfg.DSCP)
}

func iceServers(cfg *config.Config) []string {
	if len(cfg.STUN) > 0 {
		return cfg.STUN
	}
	return webrtc.DefaultSTUNServers
}

// signalingURL turns a host:port or ws(s):// address into the signaling URL,
// adding the PIN when the address does not carry one.
func signalingURL(addr, pin string) (string, error) {
	raw := strings.TrimSpace(addr)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid signaling address: %s", addr)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid signaling address: %s (want ws:// or wss://)", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = signaling.Path
	}

	q := u.Query()
	if q.Get("pin") == "" {
		if pin == "" {
			return "", fmt.Errorf("webrtc needs a PIN: pass -pin or put ?pin= in the address")
		}
		q.Set("pin", pin)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
