package app

import (
	"context"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/probe"
	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
)

// RunProbe runs the echo benchmark against cfg.Addr and prints the report.
func RunProbe(ctx context.Context, cfg *config.Config) error {
	stream, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer stream.Close()

	util.LogInfo("probing %s with %d x %d byte round trips", stream.RemoteAddr(), cfg.Count, cfg.Size)

	report, err := probe.Probe{Count: cfg.Count, Size: cfg.Size}.Run(ctx, stream)
	if rerr := report.Render(); rerr != nil {
		util.LogWarning("failed to render report: %v", rerr)
	}
	return err
}

// RunEcho listens on cfg.Addr and echoes every prober back.
func RunEcho(ctx context.Context, cfg *config.Config) error {
	ln, err := Listen(ctx, cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	return ServeEcho(ctx, cfg, ln)
}

// ServeEcho accepts probers on ln one at a time and echoes up to cfg.Count
// messages of cfg.Size bytes each.
func ServeEcho(ctx context.Context, cfg *config.Config, ln transport.Listener) error {
	util.LogInfo("echoing on %s (%s)", ln.Addr(), cfg.Transport)

	for {
		stream, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if cfg.Transport == config.SchemeWebRTC && !cfg.Once {
				util.LogWarning("failed to establish peer connection: %v", err)
				continue
			}
			return err
		}
		markDSCP(cfg, stream)

		peer := stream.RemoteAddr()
		n, err := probe.Echo(ctx, stream, cfg.Count, cfg.Size)
		stream.Close()

		if err != nil && ctx.Err() == nil {
			LogFailure(err)
		} else {
			util.LogInfo("echoed %d messages for %s", n, peer)
		}

		if ctx.Err() != nil {
			return nil
		}
		if cfg.Once {
			return err
		}
	}
}
