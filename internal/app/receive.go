package app

import (
	"context"
	"errors"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/store"
	"github.com/1ureka/ferry/internal/transfer"
	"github.com/1ureka/ferry/internal/transport"
	"github.com/1ureka/ferry/internal/util"
)

// backupExt is appended to every persisted transfer.
const backupExt = ".bin"

// RunReceiver listens on cfg.Addr and stores every incoming transfer as the
// next backup version.
func RunReceiver(ctx context.Context, cfg *config.Config) error {
	ln, err := Listen(ctx, cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	return ServeReceiver(ctx, cfg, ln)
}

// ServeReceiver accepts senders on ln one at a time. A failed session is
// logged and the loop moves on, unless cfg.Once is set, in which case its
// error is returned. Cancelling ctx ends the loop without error.
func ServeReceiver(ctx context.Context, cfg *config.Config, ln transport.Listener) error {
	st := store.New(cfg.OutDir, cfg.Prefix, backupExt, nil)
	util.LogInfo("waiting for senders on %s (%s), storing into %s", ln.Addr(), cfg.Transport, cfg.OutDir)

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

		err = receiveOne(ctx, cfg, st, stream)
		if err != nil && ctx.Err() == nil {
			LogFailure(err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if cfg.Once {
			return err
		}
	}
}

// receiveOne runs one receiving session. The backup version is reserved only
// once the sender's size frame has arrived.
func receiveOne(ctx context.Context, cfg *config.Config, st *store.Store, stream transport.Stream) error {
	var s *transfer.Session
	s = transfer.New("", transfer.Options{
		ChunkSize: cfg.ChunkSize,
		IOTimeout: cfg.Timeout,
		Destination: func() (string, string, error) {
			path, version, err := st.Next()
			if err != nil {
				return "", "", err
			}
			util.LogSession(s.ID, s.Peer(), "receiving version %d into %s", version, path)
			return path, protocol.BackupStatus(version), nil
		},
	})
	if err := s.Bind(stream); err != nil {
		stream.Close()
		return err
	}
	defer s.Close()

	util.LogSessionDebug(s.ID, s.Peer(), "waiting for size frame")

	n, err := s.ReceiveFile(ctx)
	if errors.Is(err, protocol.ErrTruncated) {
		util.LogWarning("kept partial file %s (%s)", s.Path, util.FormatBytes(float64(n)))
	}
	if err != nil {
		return err
	}

	util.LogSuccess("stored %s (%s) from %s", s.Path, util.FormatBytes(float64(n)), s.Peer())
	return nil
}
