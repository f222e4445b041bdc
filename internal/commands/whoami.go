package commands

import (
	"context"
	"flag"

	"taskhub/internal/exitcode"
	"taskhub/internal/output"
	"taskhub/internal/service"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string          { return "whoami" }
func (c *WhoamiCmd) Aliases() []string     { return nil }
func (c *WhoamiCmd) Synopsis() string      { return "Print the logged-in user" }
func (c *WhoamiCmd) Usage() string         { return "taskhub whoami [common flags]" }
func (c *WhoamiCmd) Requires() Requirement { return LoggedIn }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string) int {
	user, ok := env.Session.User()
	if !ok {
		return report(env.ErrOut, service.ErrUnauthenticated)
	}
	output.FormatUser(env.Out, user)
	return exitcode.Success
}
