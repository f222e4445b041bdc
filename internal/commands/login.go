package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskhub/internal/exitcode"
	"taskhub/internal/output"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	password string
}

func (c *LoginCmd) Name() string          { return "login" }
func (c *LoginCmd) Aliases() []string     { return nil }
func (c *LoginCmd) Synopsis() string      { return "Sign in to the task server" }
func (c *LoginCmd) Usage() string         { return "taskhub login [common flags] --email <addr> [--password <pw>]" }
func (c *LoginCmd) Requires() Requirement { return Backend }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) > 0 {
		return report(env.ErrOut, &RefError{Msg: "unexpected argument: " + args[0]})
	}

	password := c.password
	if password == "" {
		var err error
		if password, err = readPassword(env.In); err != nil {
			fmt.Fprintf(env.ErrOut, "error: failed to read password: %v\n", err)
			return exitcode.UserError
		}
	}

	// The session cookie file lives in the config directory.
	if err := env.Config.EnsureDir(); err != nil {
		fmt.Fprintf(env.ErrOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}

	user, err := env.Session.Login(ctx, c.email, password)
	if err != nil {
		return report(env.ErrOut, err)
	}

	if !env.Config.Quiet {
		fmt.Fprint(env.Out, "logged in as ")
		output.FormatUser(env.Out, user)
	}
	return exitcode.Success
}

// readPassword reads one line from in. A nil reader yields an empty password.
func readPassword(in io.Reader) (string, error) {
	if in == nil {
		return "", nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
