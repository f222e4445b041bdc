package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskhub/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string          { return "help" }
func (c *HelpCmd) Aliases() []string     { return nil }
func (c *HelpCmd) Synopsis() string      { return "Print usage" }
func (c *HelpCmd) Usage() string         { return "taskhub help" }
func (c *HelpCmd) Requires() Requirement { return Offline }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string) int {
	fmt.Fprint(env.Out, helpText)
	fmt.Fprintln(env.Out)
	writeCommands(env.Out, DefaultRegistry)
	return exitcode.Success
}

// writeCommands lists every command with its aliases and synopsis.
func writeCommands(w io.Writer, r *Registry) {
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range r.All() {
		name := cmd.Name()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "  %-18s %s\n", name, cmd.Synopsis())
	}
}

const helpText = `Usage:
  taskhub                                            List the first page of tasks
  taskhub list [common flags] [page flags]           List one page of tasks
  taskhub add [common flags] [--desc <text>] [--status <s>] [--priority <p>] [--due <date>] <title...>
  taskhub create ...                                 Same as add
  taskhub edit [common flags] [page flags] [--title <t>] [--desc <d>] [--set-status <s>] [--priority <p>] [--due <date>] <ref>
  taskhub done [common flags] [page flags] <ref...>
  taskhub rm [common flags] [page flags] <ref...>
  taskhub browse [common flags]                      Interactive task list
  taskhub login [common flags] --email <addr> [--password <pw>]
  taskhub logout [common flags]
  taskhub whoami [common flags]
  taskhub help
  taskhub version

Page flags:
  --page <n>       Page the row numbers refer to (default 1)
  --search <text>  Search text in title and description
  --status <s>     all, todo, in_progress or done (default all)

Task references:
  <n>              Row number as shown by list
  id:<id>          Task id

Common flags:
  --config <dir>   Override config directory
  --api-url <url>  Override the task server URL
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
