package config_test

import (
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/1ureka/ferry/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"FERRY_ROLE", "FERRY_TRANSPORT", "FERRY_ADDR", "FERRY_FILE", "FERRY_OUT_DIR",
		"FERRY_PREFIX", "FERRY_CHUNK", "FERRY_COUNT", "FERRY_SIZE", "FERRY_TIMEOUT",
		"FERRY_PIN", "FERRY_STUN", "FERRY_DSCP", "FERRY_WATCH",
	} {
		t.Setenv(key, "")
	}

	c := config.FromEnv()
	if c.Role != "" || c.Transport != config.SchemeTCP {
		t.Errorf("role/transport = %q/%q", c.Role, c.Transport)
	}
	if c.Addr != config.DefaultAddr || c.OutDir != config.DefaultOutDir || c.Prefix != config.DefaultPrefix {
		t.Errorf("addr/out/prefix = %q/%q/%q", c.Addr, c.OutDir, c.Prefix)
	}
	if c.ChunkSize != 4096 || c.Count != 1000 || c.Size != 1024 || c.Timeout != 0 {
		t.Errorf("chunk/count/size/timeout = %d/%d/%d/%s", c.ChunkSize, c.Count, c.Size, c.Timeout)
	}
	if c.DSCP != 0 || c.Watch {
		t.Errorf("dscp/watch = %d/%v", c.DSCP, c.Watch)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FERRY_ROLE", "receive")
	t.Setenv("FERRY_TRANSPORT", "QUIC")
	t.Setenv("FERRY_ADDR", "0.0.0.0:9000")
	t.Setenv("FERRY_CHUNK", "8192")
	t.Setenv("FERRY_COUNT", "not-a-number")
	t.Setenv("FERRY_TIMEOUT", "3s")
	t.Setenv("FERRY_STUN", "stun:a:1, stun:b:2,")
	t.Setenv("FERRY_DSCP", "46")
	t.Setenv("FERRY_WATCH", "true")

	c := config.FromEnv()
	if c.Role != config.RoleReceive || c.Transport != config.SchemeQUIC {
		t.Errorf("role/transport = %q/%q", c.Role, c.Transport)
	}
	if c.Addr != "0.0.0.0:9000" || c.ChunkSize != 8192 {
		t.Errorf("addr/chunk = %q/%d", c.Addr, c.ChunkSize)
	}
	if c.Count != config.DefaultCount {
		t.Errorf("unparsable count should keep the default, got %d", c.Count)
	}
	if c.Timeout != 3*time.Second {
		t.Errorf("timeout = %s", c.Timeout)
	}
	if len(c.STUN) != 2 || c.STUN[1] != "stun:b:2" {
		t.Errorf("stun = %q", c.STUN)
	}
	if c.DSCP != 46 || !c.Watch {
		t.Errorf("dscp/watch = %d/%v", c.DSCP, c.Watch)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("FERRY_ADDR", "10.0.0.1:1")
	t.Setenv("FERRY_PREFIX", "env")

	c := config.FromEnv()
	fs := flag.NewFlagSet("ferry", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-role", "SEND", "-transport", "ws", "-file", "a.bin", "-timeout", "2s", "-watch"}); err != nil {
		t.Fatal(err)
	}

	if c.Role != config.RoleSend || c.Transport != config.SchemeWS || c.File != "a.bin" {
		t.Errorf("role/transport/file = %q/%q/%q", c.Role, c.Transport, c.File)
	}
	if c.Addr != "10.0.0.1:1" || c.Prefix != "env" {
		t.Errorf("env values lost: addr=%q prefix=%q", c.Addr, c.Prefix)
	}
	if c.Timeout != 2*time.Second || !c.Watch {
		t.Errorf("timeout/watch = %s/%v", c.Timeout, c.Watch)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		c := config.FromEnv()
		c.Role = config.RoleSend
		c.Transport = config.SchemeTCP
		c.File = "x"
		return c
	}

	testCases := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"valid sender", func(*config.Config) {}, true},
		{"receiver needs no file", func(c *config.Config) { c.Role = config.RoleReceive; c.File = "" }, true},
		{"echo unlimited", func(c *config.Config) { c.Role = config.RoleEcho; c.Count = 0 }, true},
		{"unknown role", func(c *config.Config) { c.Role = "upload" }, false},
		{"unknown transport", func(c *config.Config) { c.Transport = "udp" }, false},
		{"sender without file", func(c *config.Config) { c.File = "" }, false},
		{"empty address", func(c *config.Config) { c.Addr = "" }, false},
		{"zero chunk", func(c *config.Config) { c.ChunkSize = 0 }, false},
		{"probe without count", func(c *config.Config) { c.Role = config.RoleProbe; c.Count = 0 }, false},
		{"probe without size", func(c *config.Config) { c.Role = config.RoleProbe; c.Size = 0 }, false},
		{"negative timeout", func(c *config.Config) { c.Timeout = -time.Second }, false},
		{"expedited forwarding", func(c *config.Config) { c.DSCP = 46 }, true},
		{"dscp out of range", func(c *config.Config) { c.DSCP = 64 }, false},
		{"dscp over quic", func(c *config.Config) { c.DSCP = 10; c.Transport = config.SchemeQUIC }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRoleDials(t *testing.T) {
	want := map[config.Role]bool{
		config.RoleSend:    true,
		config.RoleProbe:   true,
		config.RoleReceive: false,
		config.RoleEcho:    false,
	}
	for role, dials := range want {
		if role.Dials() != dials {
			t.Errorf("%s.Dials() = %v", role, role.Dials())
		}
	}
}
