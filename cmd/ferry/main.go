// Command ferry moves one file over one stream connection (TCP, WebSocket,
// QUIC or a WebRTC DataChannel) using a length-prefixed frame, then reports
// round-trip latency and loss. It also runs a fixed-size echo benchmark.
//
// It can be launched interactively (no -role) or non-interactively via flags
// and FERRY_* environment variables; flags win over the environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/ferry/internal/app"
	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.FromEnv()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Ferry v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		runInteractive(cfg)
	}

	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			util.LogError("%s", line)
		}
		os.Exit(2)
	}

	util.StartStatsReporter(ctx, 10*time.Second)

	if err := app.Run(ctx, cfg); err != nil {
		app.LogFailure(err)
		os.Exit(1)
	}

	if ctx.Err() != nil {
		util.LogInfo("interrupted, shutting down")
	}
}

// ---------------------------------------------------------------------------
// Interactive mode
// ---------------------------------------------------------------------------

// runInteractive fills in the role and its required fields from prompts when
// no -role flag or FERRY_ROLE is provided.
func runInteractive(cfg *config.Config) {
	roleLabels := map[string]config.Role{
		"Send    - Send a file to a receiver":        config.RoleSend,
		"Receive - Store files sent to this machine": config.RoleReceive,
		"Probe   - Measure round trips to an echo":   config.RoleProbe,
		"Echo    - Answer probes from another ferry": config.RoleEcho,
	}
	options := make([]string, 0, len(roleLabels))
	for _, r := range config.Roles {
		for label, role := range roleLabels {
			if role == r {
				options = append(options, label)
			}
		}
	}

	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText("Select your role").
		Show()
	cfg.Role = roleLabels[choice]
	pterm.Println()

	schemes := make([]string, len(config.Schemes))
	for i, s := range config.Schemes {
		schemes[i] = string(s)
	}
	scheme, _ := pterm.DefaultInteractiveSelect.
		WithOptions(schemes).
		WithDefaultOption(string(cfg.Transport)).
		WithDefaultText("Select the transport").
		Show()
	cfg.Transport = config.Scheme(scheme)
	pterm.Println()

	if cfg.Role.Dials() {
		cfg.Addr = ask("Address to connect to", cfg.Addr)
	} else {
		cfg.Addr = ask("Address to listen on", cfg.Addr)
	}

	switch cfg.Role {
	case config.RoleSend:
		cfg.File = askFile()
		cfg.Watch, _ = pterm.DefaultInteractiveConfirm.
			WithDefaultText("Resend the file whenever it changes?").
			Show()
		pterm.Println()
	case config.RoleReceive:
		cfg.OutDir = ask("Directory to store received files in", cfg.OutDir)
	}
}

// ask prompts for a value, keeping def when the input is empty.
func ask(prompt, def string) string {
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, def)
	}
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(prompt).
		Show()
	pterm.Println()

	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return def
}

// askFile prompts for a readable regular file until one is entered.
func askFile() string {
	for {
		path := ask("File to send", "")
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path
		}
		util.LogWarning("not a readable file: %s", path)
		pterm.Println()
	}
}
