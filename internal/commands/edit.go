package commands

import (
	"context"
	"flag"
	"strings"

	"taskhub/internal/exitcode"
	"taskhub/internal/output"
	"taskhub/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// optString is a string flag that remembers whether it was given.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *optString) ptr() *string {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// EditCmd implements the edit command.
type EditCmd struct {
	pageFlags
	title       optString
	description optString
	status      optString
	priority    optString
	due         optString
}

func (c *EditCmd) Name() string          { return "edit" }
func (c *EditCmd) Aliases() []string     { return nil }
func (c *EditCmd) Synopsis() string      { return "Change fields of a task" }
func (c *EditCmd) Requires() Requirement { return LoggedIn }
func (c *EditCmd) Usage() string {
	return "taskhub edit [page flags] [--title <t>] [--desc <d>] [--set-status <s>] [--priority <p>] [--due <date>] <ref>"
}

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.pageFlags.register(fs)
	c.title, c.description, c.status, c.priority, c.due = optString{}, optString{}, optString{}, optString{}, optString{}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.description, "desc", "")
	fs.Var(&c.status, "set-status", "")
	fs.Var(&c.priority, "priority", "")
	fs.Var(&c.due, "due", "")
}

// patch builds the update from the flags that were given.
func (c *EditCmd) patch() service.TaskPatch {
	p := service.TaskPatch{
		Title:       c.title.ptr(),
		Description: c.description.ptr(),
		DueDate:     c.due.ptr(),
	}
	if s := c.status.ptr(); s != nil {
		v := service.Status(strings.ToLower(*s))
		p.Status = &v
	}
	if s := c.priority.ptr(); s != nil {
		v := service.Priority(strings.ToLower(*s))
		p.Priority = &v
	}
	return p
}

func (c *EditCmd) Run(ctx context.Context, env *Env, args []string) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return report(env.ErrOut, err)
	}
	patch := c.patch()
	if err := patch.Validate(); err != nil {
		return report(env.ErrOut, err)
	}

	ctrl := env.controller(nil)
	defer ctrl.Close()

	ids, err := resolveRefs(ctx, ctrl, &c.pageFlags, []TaskRef{ref})
	if err != nil {
		return report(env.ErrOut, err)
	}
	id := ids[0]

	ctrl.Edit(id)
	task, err := ctrl.Update(ctx, id, patch)
	if err != nil {
		return report(env.ErrOut, err)
	}

	if !env.Config.Quiet {
		output.FormatTaskDetail(env.Out, task)
	}
	return exitcode.Success
}
