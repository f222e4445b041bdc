package commands

import (
	"context"
	"flag"

	"taskhub/internal/exitcode"
	"taskhub/internal/output"
	"taskhub/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskhub` (no args) and `taskhub list [flags]`.
type ListCmd struct {
	pageFlags
}

func (c *ListCmd) Name() string          { return "list" }
func (c *ListCmd) Aliases() []string     { return []string{"ls"} }
func (c *ListCmd) Synopsis() string      { return "List tasks" }
func (c *ListCmd) Requires() Requirement { return LoggedIn }
func (c *ListCmd) Usage() string {
	return "taskhub list [--page <n>] [--search <text>] [--status all|todo|in_progress|done]"
}

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.pageFlags.register(fs)
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) > 0 {
		return report(env.ErrOut, &RefError{Msg: "unexpected argument: " + args[0]})
	}
	ctrl := env.controller(nil)
	defer ctrl.Close()
	if err := c.load(ctx, ctrl); err != nil {
		return report(env.ErrOut, err)
	}

	snap := ctrl.Snapshot()
	if snap.Search != "" || snap.Filter != service.StatusAll {
		output.FormatCriteria(env.Out, snap.Search, snap.Filter)
	}
	if len(snap.Tasks) == 0 {
		env.infof("no tasks found\n")
		return exitcode.Success
	}
	for i, task := range snap.Tasks {
		output.FormatTask(env.Out, i+1, task)
	}
	if !env.Config.Quiet {
		output.FormatPagination(env.Out, snap.Pagination)
	}
	return exitcode.Success
}
