package commands

import (
	"context"
	"flag"
	"fmt"

	"taskhub/internal/exitcode"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string          { return "logout" }
func (c *LogoutCmd) Aliases() []string     { return nil }
func (c *LogoutCmd) Synopsis() string      { return "End the session" }
func (c *LogoutCmd) Usage() string         { return "taskhub logout [common flags]" }
func (c *LogoutCmd) Requires() Requirement { return Backend }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, env *Env, args []string) int {
	if !env.Config.HasSession() {
		if !env.Config.Quiet {
			fmt.Fprintln(env.Out, "not logged in")
		}
		return exitcode.Success
	}

	if err := env.Session.Logout(ctx); err != nil {
		return report(env.ErrOut, err)
	}

	env.infof("ok\n")
	return exitcode.Success
}
