package commands

import (
	"context"
	"flag"

	"taskhub/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	pageFlags
}

func (c *RmCmd) Name() string          { return "rm" }
func (c *RmCmd) Aliases() []string     { return []string{"delete"} }
func (c *RmCmd) Synopsis() string      { return "Delete tasks" }
func (c *RmCmd) Usage() string         { return "taskhub rm [page flags] <ref...>" }
func (c *RmCmd) Requires() Requirement { return LoggedIn }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	c.pageFlags.register(fs)
}

func (c *RmCmd) Run(ctx context.Context, env *Env, args []string) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return report(env.ErrOut, err)
	}

	ctrl := env.controller(nil)
	defer ctrl.Close()

	// Resolve every ref before deleting so row numbers refer to the page as listed.
	ids, err := resolveRefs(ctx, ctrl, &c.pageFlags, refs)
	if err != nil {
		return report(env.ErrOut, err)
	}
	for _, id := range ids {
		if err := ctrl.Delete(ctx, id); err != nil {
			return report(env.ErrOut, err)
		}
	}

	env.infof("ok\n")
	return exitcode.Success
}
