package commands

import (
	"context"
	"flag"

	"taskhub/internal/exitcode"
	"taskhub/internal/service"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct {
	pageFlags
}

func (c *DoneCmd) Name() string          { return "done" }
func (c *DoneCmd) Aliases() []string     { return nil }
func (c *DoneCmd) Synopsis() string      { return "Mark tasks done" }
func (c *DoneCmd) Usage() string         { return "taskhub done [page flags] <ref...>" }
func (c *DoneCmd) Requires() Requirement { return LoggedIn }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {
	c.pageFlags.register(fs)
}

func (c *DoneCmd) Run(ctx context.Context, env *Env, args []string) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return report(env.ErrOut, err)
	}

	ctrl := env.controller(nil)
	defer ctrl.Close()

	ids, err := resolveRefs(ctx, ctrl, &c.pageFlags, refs)
	if err != nil {
		return report(env.ErrOut, err)
	}

	done := service.StatusDone
	for _, id := range ids {
		if _, err := ctrl.Update(ctx, id, service.TaskPatch{Status: &done}); err != nil {
			return report(env.ErrOut, err)
		}
	}

	env.infof("ok\n")
	return exitcode.Success
}
