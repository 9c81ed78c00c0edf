// Package app contains the top-level orchestration for each role.
package app

import (
	"context"
	"fmt"

	"github.com/1ureka/ferry/internal/config"
	"github.com/1ureka/ferry/internal/protocol"
	"github.com/1ureka/ferry/internal/util"
)

// Run executes the role selected in cfg until it finishes or ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	switch cfg.Role {
	case config.RoleSend:
		return RunSender(ctx, cfg)
	case config.RoleReceive:
		return RunReceiver(ctx, cfg)
	case config.RoleProbe:
		return RunProbe(ctx, cfg)
	case config.RoleEcho:
		return RunEcho(ctx, cfg)
	default:
		return fmt.Errorf("%w: unknown role %q", config.ErrInvalid, cfg.Role)
	}
}

// LogFailure logs err with its failure kind when it has one.
func LogFailure(err error) {
	if kind := protocol.KindOf(err); kind != nil {
		util.LogError("transfer failed [%v]: %v", kind, err)
		return
	}
	util.LogError("%v", err)
}
