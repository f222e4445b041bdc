package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"taskhub/internal/exitcode"
	"taskhub/internal/output"
	"taskhub/internal/service"
	"taskhub/internal/tasklist"
)

func init() {
	Register(&BrowseCmd{})
}

// BrowseCmd implements the interactive browse command. It reads one
// command per line and redraws the page on every change.
type BrowseCmd struct{}

func (c *BrowseCmd) Name() string          { return "browse" }
func (c *BrowseCmd) Aliases() []string     { return []string{"ui"} }
func (c *BrowseCmd) Synopsis() string      { return "Browse tasks interactively" }
func (c *BrowseCmd) Usage() string         { return "taskhub browse [common flags]" }
func (c *BrowseCmd) Requires() Requirement { return LoggedIn }

func (c *BrowseCmd) RegisterFlags(fs *flag.FlagSet) {}

const browseHelp = `commands:
  s [text]    search (empty clears)
  f <status>  filter: all, todo, in_progress, done
  n, p        next or previous page
  g <n>       go to page n
  r           reload
  d <ref>     mark task done
  x <ref>     delete task
  q           quit
`

// screen serializes output from the input loop and from debounced loads.
type screen struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	expired chan struct{}
}

func (s *screen) render(snap tasklist.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Err != nil {
		report(s.errOut, snap.Err)
		if errors.Is(snap.Err, service.ErrUnauthenticated) {
			select {
			case s.expired <- struct{}{}:
			default:
			}
		}
		return
	}
	fmt.Fprintln(s.out)
	output.FormatSnapshot(s.out, snap)
}

func (s *screen) printf(format string, args ...any) {
	s.mu.Lock()
	fmt.Fprintf(s.out, format, args...)
	s.mu.Unlock()
}

func (s *screen) fail(err error) {
	s.mu.Lock()
	report(s.errOut, err)
	s.mu.Unlock()
}

func (c *BrowseCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) > 0 {
		return report(env.ErrOut, &RefError{Msg: "unexpected argument: " + args[0]})
	}

	scr := &screen{out: env.Out, errOut: env.ErrOut, expired: make(chan struct{}, 1)}
	ctrl := env.controller(scr.render)
	defer ctrl.Close()

	in := env.In
	if in == nil {
		in = os.Stdin
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// Load failures are rendered by the controller.
	_ = ctrl.Load(ctx, 1, "", service.StatusAll)

	for {
		select {
		case <-ctx.Done():
			return exitcode.Success
		case <-scr.expired:
			if _, ok := env.Session.Bootstrap(ctx); !ok {
				return exitcode.AuthError
			}
		case line, ok := <-lines:
			if !ok {
				return exitcode.Success
			}
			quit, err := c.exec(ctx, ctrl, scr, line)
			if quit {
				return exitcode.Success
			}
			var operr *tasklist.OpError
			if err != nil && !errors.Is(err, tasklist.ErrSuperseded) && !errors.As(err, &operr) {
				scr.fail(err)
			}
		}
	}
}

// exec runs one input line. Controller failures are already rendered;
// the returned error is for failures raised before reaching it.
func (c *BrowseCmd) exec(ctx context.Context, ctrl *tasklist.Controller, scr *screen, line string) (bool, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	snap := ctrl.Snapshot()

	switch verb {
	case "":
		return false, nil
	case "q", "quit":
		return true, nil
	case "h", "?", "help":
		scr.printf("%s", browseHelp)
		return false, nil
	case "s":
		ctrl.SetSearch(rest)
		return false, nil
	case "f":
		filter, err := service.ParseStatusFilter(rest)
		if err != nil {
			return false, err
		}
		ctrl.SetFilter(filter)
		return false, nil
	case "n":
		if !snap.Pagination.HasNext {
			return false, &RefError{Msg: "already on the last page"}
		}
		return false, ctrl.GoToPage(ctx, snap.Page+1)
	case "p":
		if !snap.Pagination.HasPrev {
			return false, &RefError{Msg: "already on the first page"}
		}
		return false, ctrl.GoToPage(ctx, snap.Page-1)
	case "g":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return false, &RefError{Msg: "invalid page number: " + rest}
		}
		return false, ctrl.GoToPage(ctx, n)
	case "r":
		return false, ctrl.Reload(ctx)
	case "d", "x":
		id, err := rowID(snap.Tasks, rest)
		if err != nil {
			return false, err
		}
		if verb == "x" {
			return false, ctrl.Delete(ctx, id)
		}
		done := service.StatusDone
		_, err = ctrl.Update(ctx, id, service.TaskPatch{Status: &done})
		return false, err
	}
	return false, &RefError{Msg: "unknown command: " + verb + " (h for help)"}
}

// rowID resolves a reference against the rows currently shown.
func rowID(tasks []service.Task, s string) (string, error) {
	ref, err := ParseTaskRef(strings.Fields(s))
	if err != nil {
		return "", err
	}
	if ref.ID != "" {
		return ref.ID, nil
	}
	if ref.Row > len(tasks) {
		return "", &RefError{Msg: fmt.Sprintf("task number out of range: %d", ref.Row)}
	}
	return tasks[ref.Row-1].ID, nil
}
