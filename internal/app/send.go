package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/qos"
	"github.com/1ureka/ferry/internal/transfer"
	"github.com/1ureka/ferry/internal/util"
)

// RunSender sends cfg.File to the receiver at cfg.Addr and prints the round
// trip report. The report is printed on failure too. With cfg.Watch set it
// keeps sending a new version every time the file changes.
func RunSender(ctx context.Context, cfg *config.Config) error {
	if cfg.Watch {
		return WatchAndSend(ctx, cfg, nil)
	}
	return sendOnce(ctx, cfg)
}

func sendOnce(ctx context.Context, cfg *config.Config) error {
	stream, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}

	rec := qos.NewRecorder()
	bar := startProgress(cfg.File)

	s := transfer.New(cfg.File, transfer.Options{
		ChunkSize: cfg.ChunkSize,
		IOTimeout: cfg.Timeout,
		Recorder:  rec,
		OnProgress: func(n int) {
			if bar != nil {
				bar.Add(n)
			}
		},
	})
	if err := s.Bind(stream); err != nil {
		stream.Close()
		return err
	}
	defer s.Close()

	util.LogSession(s.ID, s.Peer(), "sending %s over %s", cfg.File, cfg.Transport)

	status, err := s.SendFile(ctx)
	if bar != nil {
		bar.Stop()
	}

	if err == nil {
		util.LogSuccess("%s answered: %s", s.Peer(), status)
	}

	report := rec.Report()
	util.LogDebug("round trip report: %s", report)
	if rerr := report.Render(); rerr != nil {
		util.LogWarning("failed to render report: %v", rerr)
	}
	return err
}

// startProgress returns a progress bar sized to the file, or nil when the
// size is unknown or zero. Errors opening the file are left to the session.
func startProgress(path string) *pterm.ProgressbarPrinter {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return nil
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(info.Size())).
		WithTitle("Sending " + filepath.Base(path)).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return nil
	}
	return bar
}
