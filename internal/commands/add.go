package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"taskhub/internal/exitcode"
	"taskhub/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	status      string
	priority    string
	due         string
}

func (c *AddCmd) Name() string          { return "add" }
func (c *AddCmd) Aliases() []string     { return []string{"create"} }
func (c *AddCmd) Synopsis() string      { return "Create a task" }
func (c *AddCmd) Requires() Requirement { return LoggedIn }
func (c *AddCmd) Usage() string {
	return "taskhub add [--desc <text>] [--status <s>] [--priority low|med|high] [--due <date>] <title...>"
}

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "desc", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string) int {
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(env.ErrOut, "error: title required")
		return exitcode.UserError
	}

	ctrl := env.controller(nil)
	defer ctrl.Close()

	task, err := ctrl.Create(ctx, service.CreateTaskRequest{
		Title:       title,
		Description: c.description,
		Status:      service.Status(strings.ToLower(c.status)),
		Priority:    service.Priority(strings.ToLower(c.priority)),
		DueDate:     c.due,
	})
	if err != nil {
		if task.ID == "" {
			return report(env.ErrOut, err)
		}
		// Created, but the follow-up reload failed.
		env.Log.WithError(err).Warn("task created but list reload failed")
	}

	env.infof("ok %s\n", task.ID)
	return exitcode.Success
}
