// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"taskhub/internal/config"
	"taskhub/internal/service"
	"taskhub/internal/session"
	"taskhub/internal/tasklist"
)

// Requirement is what the dispatcher sets up before running a command.
type Requirement int

const (
	// Offline commands get neither a service nor a session (help, version).
	Offline Requirement = iota

	// Backend commands get a service and an empty session store (login, logout).
	Backend

	// LoggedIn commands additionally require the session to bootstrap to a user.
	LoggedIn
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// Requires reports what the command needs from the dispatcher.
	Requires() Requirement

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command with positional arguments left after flag
	// parsing. Returns exit code.
	Run(ctx context.Context, env *Env, args []string) int
}

// Env is everything a command runs against.
type Env struct {
	// Config is always provided.
	Config *config.Config

	// Service and Session are nil for Offline commands.
	Service service.Service
	Session *session.Store

	Log    logrus.FieldLogger
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// infof prints informational output unless --quiet.
func (e *Env) infof(format string, args ...any) {
	if !e.Config.Quiet {
		fmt.Fprintf(e.Out, format, args...)
	}
}

// controller creates a task list controller configured from Config.
func (e *Env) controller(onChange func(tasklist.Snapshot)) *tasklist.Controller {
	return tasklist.New(e.Service, tasklist.Options{
		PageSize: e.Config.PageSize,
		Debounce: e.Config.Debounce,
		OnChange: onChange,
		Logger:   e.Log,
	})
}
