package util

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

// logger backs every Log* helper and writes to stderr.
var logger = pterm.DefaultLogger.
	WithTime(true).
	WithTimeFormat("02 Jan 15:04:05").
	WithMaxWidth(1000).
	WithWriter(os.Stderr)

func LogDebug(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...any) {
	logger.Info(fmt.Sprintf(format, args...))
}

// LogSuccess prints with pterm's success prefix instead of a log level.
func LogSuccess(format string, args ...any) {
	pterm.Success.Println(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...any) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...any) {
	logger.Error(fmt.Sprintf(format, args...))
}

// LogSession logs a session event with the session id and peer attached, e.g.
//
//	INFO  size frame sent
//	      ├ session: 3f2a9c1e
//	      └ peer: 127.0.0.1:53012
func LogSession(id, peer, format string, args ...any) {
	logger.Info(fmt.Sprintf(format, args...), sessionArgs(id, peer))
}

// LogSessionDebug is LogSession at debug level.
func LogSessionDebug(id, peer, format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), sessionArgs(id, peer))
}

func sessionArgs(id, peer string) []pterm.LoggerArgument {
	return logger.Args("session", ShortID(id), "peer", peer)
}

// EnableDebug makes LogDebug and LogSessionDebug visible.
func EnableDebug() {
	logger.Level = pterm.LogLevelDebug
}

// SetLogOutput redirects log lines to w and returns a func restoring the
// previous writer.
func SetLogOutput(w io.Writer) (restore func()) {
	prev := logger.Writer
	logger.Writer = w
	return func() { logger.Writer = prev }
}
