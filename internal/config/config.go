// Package config holds the CLI configuration types.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/1ureka/ferry/internal/protocol"
)

// Role represents what this process does on its stream.
type Role string

const (
	RoleSend    Role = "send"
	RoleReceive Role = "receive"
	RoleProbe   Role = "probe"
	RoleEcho    Role = "echo"
)

// Roles lists every valid role in prompt order.
var Roles = []Role{RoleSend, RoleReceive, RoleProbe, RoleEcho}

// Dials reports whether the role opens the connection. Receivers and echo
// servers listen.
func (r Role) Dials() bool { return r == RoleSend || r == RoleProbe }

// Scheme selects the stream transport.
type Scheme string

const (
	SchemeTCP    Scheme = "tcp"
	SchemeWS     Scheme = "ws"
	SchemeQUIC   Scheme = "quic"
	SchemeWebRTC Scheme = "webrtc"
)

// Schemes lists every supported transport.
var Schemes = []Scheme{SchemeTCP, SchemeWS, SchemeQUIC, SchemeWebRTC}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config stores every parameter of a run, gathered from defaults, the
// environment, flags and interactive prompts in that order of precedence.
type Config struct {
	Role      Role
	Transport Scheme
	Addr      string // listen address, or the address / signaling URL to dial

	File   string // send: source file
	Watch  bool   // send: resend whenever the file changes
	OutDir string // receive: destination directory
	Prefix string // receive: backup file prefix
	Once   bool   // receive / echo: stop after one session

	ChunkSize int
	Count     int // probe: round trips; echo: messages per session (0 = unlimited)
	Size      int // probe: payload bytes

	Timeout time.Duration // per read/write deadline, 0 disables
	DSCP    int           // tcp: DiffServ code point, 0 leaves the default

	PIN  string   // webrtc signaling PIN
	STUN []string // webrtc ICE servers

	Debug bool
}

// Default environment-free values.
const (
	DefaultAddr   = "127.0.0.1:12345"
	DefaultOutDir = "./received"
	DefaultPrefix = "backup"
	DefaultCount  = 1000
	DefaultSize   = 1024
)

// FromEnv returns the defaults overridden by FERRY_* environment variables.
// Values that fail to parse are ignored.
func FromEnv() *Config {
	c := &Config{
		Role:      Role(os.Getenv("FERRY_ROLE")),
		Transport: SchemeTCP,
		Addr:      DefaultAddr,
		File:      os.Getenv("FERRY_FILE"),
		OutDir:    DefaultOutDir,
		Prefix:    DefaultPrefix,
		ChunkSize: protocol.DefaultChunkSize,
		Count:     DefaultCount,
		Size:      DefaultSize,
		PIN:       os.Getenv("FERRY_PIN"),
	}

	if v := os.Getenv("FERRY_TRANSPORT"); v != "" {
		c.Transport = Scheme(strings.ToLower(v))
	}
	if v := os.Getenv("FERRY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("FERRY_OUT_DIR"); v != "" {
		c.OutDir = v
	}
	if v := os.Getenv("FERRY_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("FERRY_STUN"); v != "" {
		c.STUN = splitList(v)
	}

	envInt("FERRY_CHUNK", &c.ChunkSize)
	envInt("FERRY_COUNT", &c.Count)
	envInt("FERRY_SIZE", &c.Size)
	envInt("FERRY_DSCP", &c.DSCP)
	c.Watch, _ = strconv.ParseBool(os.Getenv("FERRY_WATCH"))

	if v := os.Getenv("FERRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}

	return c
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RegisterFlags binds c's fields to fs. Current values become the flag
// defaults, so call it on the result of FromEnv to let flags override env.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Func("role", "Role: send, receive, probe or echo (prompted when empty)", func(s string) error {
		c.Role = Role(strings.ToLower(s))
		return nil
	})
	fs.Func("transport", "Transport: tcp, ws, quic or webrtc (default "+string(c.Transport)+")", func(s string) error {
		c.Transport = Scheme(strings.ToLower(s))
		return nil
	})
	fs.StringVar(&c.Addr, "addr", c.Addr, "Address to listen on or dial; webrtc senders may pass the signaling URL")
	fs.StringVar(&c.File, "file", c.File, "File to send")
	fs.BoolVar(&c.Watch, "watch", c.Watch, "Keep running and resend the file whenever it changes (send)")
	fs.StringVar(&c.OutDir, "out", c.OutDir, "Directory received files are stored in")
	fs.StringVar(&c.Prefix, "prefix", c.Prefix, "File name prefix for received backups")
	fs.BoolVar(&c.Once, "once", c.Once, "Exit after the first session (receive, echo)")
	fs.IntVar(&c.ChunkSize, "chunk", c.ChunkSize, "Body chunk size in bytes")
	fs.IntVar(&c.Count, "count", c.Count, "Probe round trips, or echo messages per session (0 = unlimited)")
	fs.IntVar(&c.Size, "size", c.Size, "Probe payload size in bytes")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Per read/write deadline, e.g. 30s (0 disables)")
	fs.IntVar(&c.DSCP, "dscp", c.DSCP, "DiffServ code point for tcp packets, e.g. 46 for EF (0 leaves the default)")
	fs.StringVar(&c.PIN, "pin", c.PIN, "WebRTC signaling PIN (random when listening without one)")
	fs.Func("stun", "Comma-separated STUN server URLs for webrtc", func(s string) error {
		c.STUN = splitList(s)
		return nil
	})
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if !slices.Contains(Roles, c.Role) {
		bad("role %q must be one of send, receive, probe, echo", c.Role)
	}
	if !slices.Contains(Schemes, c.Transport) {
		bad("transport %q must be one of tcp, ws, quic, webrtc", c.Transport)
	}
	if c.Addr == "" {
		bad("address is required")
	}
	if c.Role == RoleSend && c.File == "" {
		bad("a file to send is required")
	}
	if c.Role == RoleReceive && c.OutDir == "" {
		bad("an output directory is required")
	}
	if c.ChunkSize <= 0 {
		bad("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Role == RoleProbe && c.Count <= 0 {
		bad("probe count must be positive, got %d", c.Count)
	}
	if c.Count < 0 {
		bad("count must not be negative, got %d", c.Count)
	}
	if c.Role == RoleProbe && c.Size <= 0 {
		bad("probe size must be positive, got %d", c.Size)
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		bad("dscp must be within 0-63, got %d", c.DSCP)
	}
	if c.DSCP != 0 && c.Transport != SchemeTCP {
		bad("dscp marking needs the tcp transport, not %s", c.Transport)
	}
	if c.Timeout < 0 {
		bad("timeout must not be negative, got %s", c.Timeout)
	}

	return errors.Join(errs...)
}
