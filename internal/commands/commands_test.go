package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhub/internal/commands"
	"taskhub/internal/config"
	"taskhub/internal/exitcode"
	"taskhub/internal/logging"
	"taskhub/internal/service"
	"taskhub/internal/session"
	"taskhub/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newEnv builds an Env backed by svc. The session is bootstrapped when svc
// is logged in.
func newEnv(t *testing.T, svc *testutil.FakeService, quiet bool) (*commands.Env, *syncBuffer, *syncBuffer) {
	t.Helper()

	out, errOut := &syncBuffer{}, &syncBuffer{}
	cfg := &config.Config{
		Dir:      t.TempDir(),
		Quiet:    quiet,
		PageSize: 10,
		Debounce: 20 * time.Millisecond,
	}
	env := &commands.Env{
		Config: cfg,
		Log:    logging.Discard(),
		Out:    out,
		ErrOut: errOut,
	}
	if svc != nil {
		env.Service = svc
		env.Session = session.New(svc, nil)
		env.Session.Bootstrap(context.Background())
	}
	return env, out, errOut
}

// runEnv parses argv with the command's flags and runs it against env.
func runEnv(t *testing.T, cmd commands.Command, env *commands.Env, argv ...string) int {
	t.Helper()

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd.Run(context.Background(), env, fs.Args())
}

// runCommand is a helper to run a command with FakeService.
func runCommand(t *testing.T, cmd commands.Command, svc *testutil.FakeService, quiet bool, argv ...string) (stdout, stderr string, code int) {
	t.Helper()

	env, out, errOut := newEnv(t, svc, quiet)
	code = runEnv(t, cmd, env, argv...)
	return out.String(), errOut.String(), code
}

// seeded returns a logged-in FakeService holding 25 tasks.
func seeded() *testutil.FakeService {
	svc := testutil.NewFakeService()
	svc.SeedTasks(25)
	svc.SetLoggedIn(true)
	return svc
}

func expectCode(t *testing.T, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, false)

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskhub 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, false)

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, want := range []string{"Usage:", "taskhub browse", "id:<id>", "--api-url", "Commands:", "rm (delete)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

// Tests for list command
func TestListCommand_FirstPage(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, seeded(), false)

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "" +
		"   1  todo         low   Task 1  (due 2025-01-01)\n" +
		"   2  in_progress  med   Task 2  (due 2025-01-02)\n" +
		"   3  done         high  Task 3  (due 2025-01-03)\n" +
		"   4  todo         low   Task 4  (due 2025-01-04)\n" +
		"   5  in_progress  med   Task 5  (due 2025-01-05)\n" +
		"   6  done         high  Task 6  (due 2025-01-06)\n" +
		"   7  todo         low   Task 7  (due 2025-01-07)\n" +
		"   8  in_progress  med   Task 8  (due 2025-01-08)\n" +
		"   9  done         high  Task 9  (due 2025-01-09)\n" +
		"  10  todo         low   Task 10  (due 2025-01-10)\n" +
		"page 1 of 3 (25 tasks)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_LastPage(t *testing.T) {
	svc := seeded()
	stdout, _, code := runCommand(t, &commands.ListCmd{}, svc, false, "--page", "3")

	expectCode(t, exitcode.Success, code)
	if !strings.HasPrefix(stdout, "   1  done         high  Task 21  (due 2025-01-21)\n") {
		t.Errorf("expected page 3 to start with Task 21 as row 1, got %q", stdout)
	}
	if !strings.HasSuffix(stdout, "   5  todo         low   Task 25  (due 2025-01-25)\npage 3 of 3 (25 tasks)\n") {
		t.Errorf("unexpected page 3 tail: %q", stdout)
	}
	if got := svc.LastListParams(); got.Page != 3 || got.Limit != 10 {
		t.Errorf("expected page 3 limit 10, got %+v", got)
	}
}

func TestListCommand_SearchAndStatus(t *testing.T) {
	svc := seeded()
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, svc, false, "--search", "task 1", "--status", "done")

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "" +
		"search: \"task 1\"  status: done\n" +
		"   1  done         high  Task 12  (due 2025-01-12)\n" +
		"   2  done         high  Task 15  (due 2025-01-15)\n" +
		"   3  done         high  Task 18  (due 2025-01-18)\n" +
		"page 1 of 1 (3 tasks)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if got := svc.LastListParams(); got.Search != "task 1" || got.Status != service.StatusDone {
		t.Errorf("unexpected list params: %+v", got)
	}
}

func TestListCommand_Quiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, seeded(), true, "--page", "3")

	expectCode(t, exitcode.Success, code)
	if strings.Contains(stdout, "page 3 of 3") {
		t.Errorf("quiet mode should suppress the footer, got %q", stdout)
	}
	if n := strings.Count(stdout, "\n"); n != 5 {
		t.Errorf("expected 5 rows, got %d lines", n)
	}
}

func TestListCommand_Empty(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SetLoggedIn(true)

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, svc, false)

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected %q, got %q", "no tasks found\n", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SetLoggedIn(true)

	stdout, _, code := runCommand(t, &commands.ListCmd{}, svc, true)

	expectCode(t, exitcode.Success, code)
	// Quiet mode should suppress "no tasks found"
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestListCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		listErr error
		code    int
		stderr  string
	}{
		{
			name:   "unknown status",
			args:   []string{"--status", "bogus"},
			code:   exitcode.UserError,
			stderr: "error: invalid status: unknown status \"bogus\"\n",
		},
		{
			name:   "zero page",
			args:   []string{"--page", "0"},
			code:   exitcode.UserError,
			stderr: "error: invalid page number: 0\n",
		},
		{
			name:   "extra argument",
			args:   []string{"work"},
			code:   exitcode.UserError,
			stderr: "error: unexpected argument: work\n",
		},
		{
			name:    "backend failure",
			listErr: errors.New("boom"),
			code:    exitcode.BackendError,
			stderr:  "error: fetch failed: boom\n",
		},
		{
			name:    "session ended",
			listErr: fmt.Errorf("%w: refresh failed", service.ErrUnauthenticated),
			code:    exitcode.AuthError,
			stderr:  "error: session ended (run: taskhub login)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := seeded()
			svc.ListTasksErr = tt.listErr

			stdout, stderr, code := runCommand(t, &commands.ListCmd{}, svc, false, tt.args...)

			expectCode(t, tt.code, code)
			if stdout != "" {
				t.Errorf("expected no stdout, got %q", stdout)
			}
			if stderr != tt.stderr {
				t.Errorf("expected stderr %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	svc := seeded()
	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, svc, false, "--priority", "HIGH", "--due", "2025-03-01", "Write", "docs")

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok 26\n" {
		t.Errorf("expected %q, got %q", "ok 26\n", stdout)
	}

	first := svc.Tasks()[0]
	if first.Title != "Write docs" || first.Priority != service.PriorityHigh || first.Status != service.StatusTodo {
		t.Errorf("unexpected created task: %+v", first)
	}
	if first.DueDate != "2025-03-01" {
		t.Errorf("expected due date to be kept, got %q", first.DueDate)
	}
	if svc.Calls("ListTasks") != 1 {
		t.Errorf("expected one reload after create, got %d", svc.Calls("ListTasks"))
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.AddCmd{}, seeded(), true, "Quiet task")

	expectCode(t, exitcode.Success, code)
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"no title", nil, "error: title required\n"},
		{"short title", []string{"ab"}, "error: create failed: invalid title: must be at least 3 characters\n"},
		{"bad priority", []string{"--priority", "urgent", "Real title"}, "error: create failed: invalid priority: unknown priority \"urgent\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := seeded()
			_, stderr, code := runCommand(t, &commands.AddCmd{}, svc, false, tt.args...)

			expectCode(t, exitcode.UserError, code)
			if stderr != tt.stderr {
				t.Errorf("expected stderr %q, got %q", tt.stderr, stderr)
			}
			if svc.Calls("CreateTask") != 0 {
				t.Error("rejected drafts should not reach the backend")
			}
		})
	}
}

// Tests for done command
func TestDoneCommand_Rows(t *testing.T) {
	svc := seeded()
	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, false, "1", "2")

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	tasks := svc.Tasks()
	for _, task := range tasks[:2] {
		if task.Status != service.StatusDone {
			t.Errorf("task %s: expected done, got %s", task.ID, task.Status)
		}
	}
	if svc.Calls("ListTasks") != 1 {
		t.Errorf("expected rows to be resolved with one list call, got %d", svc.Calls("ListTasks"))
	}
}

func TestDoneCommand_RowOnFilteredPage(t *testing.T) {
	svc := seeded()
	_, _, code := runCommand(t, &commands.DoneCmd{}, svc, false, "--status", "todo", "3")

	expectCode(t, exitcode.Success, code)
	// Todo tasks are 1, 4, 7, ...; row 3 is task 7.
	for _, task := range svc.Tasks() {
		switch task.ID {
		case "7":
			if task.Status != service.StatusDone {
				t.Errorf("expected task 7 done, got %s", task.Status)
			}
		default:
			if task.Status == service.StatusDone && task.UpdatedAt != testutil.SeedTime {
				t.Errorf("task %s should not be updated", task.ID)
			}
		}
	}
	if got := svc.LastListParams(); got.Status != service.StatusTodo {
		t.Errorf("expected rows resolved against the todo filter, got %+v", got)
	}
}

func TestDoneCommand_ID(t *testing.T) {
	svc := seeded()
	_, _, code := runCommand(t, &commands.DoneCmd{}, svc, false, "id:7")

	expectCode(t, exitcode.Success, code)
	if svc.Calls("ListTasks") != 0 {
		t.Error("id references should not list the page")
	}
	for _, task := range svc.Tasks() {
		if task.ID == "7" && task.Status != service.StatusDone {
			t.Errorf("expected task 7 done, got %s", task.Status)
		}
	}
}

func TestDoneCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no ref", nil, exitcode.UserError, "error: task reference required\n"},
		{"bad ref", []string{"a1"}, exitcode.UserError, "error: invalid task reference: a1\n"},
		{"row out of range", []string{"--page", "3", "6"}, exitcode.UserError, "error: task number out of range: 6\n"},
		{"unknown id", []string{"id:999"}, exitcode.UserError, "error: update failed: task not found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := seeded()
			stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, false, tt.args...)

			expectCode(t, tt.code, code)
			if stdout != "" {
				t.Errorf("expected no stdout, got %q", stdout)
			}
			if stderr != tt.stderr {
				t.Errorf("expected stderr %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

// Tests for rm command
func TestRmCommand_ResolvesBeforeDeleting(t *testing.T) {
	svc := seeded()
	stdout, _, code := runCommand(t, &commands.RmCmd{}, svc, false, "1", "2")

	expectCode(t, exitcode.Success, code)
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	tasks := svc.Tasks()
	if len(tasks) != 23 {
		t.Fatalf("expected 23 tasks left, got %d", len(tasks))
	}
	if tasks[0].ID != "3" {
		t.Errorf("expected tasks 1 and 2 deleted, first left is %s", tasks[0].ID)
	}
}

func TestRmCommand_BackendFailure(t *testing.T) {
	svc := seeded()
	svc.DeleteTaskErr = errors.New("502 bad gateway")

	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, false, "id:4")

	expectCode(t, exitcode.BackendError, code)
	if stderr != "error: delete failed: 502 bad gateway\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if len(svc.Tasks()) != 25 {
		t.Error("no task should be deleted")
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	svc := seeded()
	stdout, stderr, code := runCommand(t, &commands.EditCmd{}, svc, false,
		"--title", "  Renamed task ", "--set-status", "in_progress", "--desc", "", "1")

	expectCode(t, exitcode.Success, code)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "" +
		"id:       1\n" +
		"title:    Renamed task\n" +
		"status:   in_progress\n" +
		"priority: low\n" +
		"due:      2025-01-01\n" +
		"tags:     backend\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if got := svc.Tasks()[0].Description; got != "" {
		t.Errorf("expected --desc \"\" to clear the description, got %q", got)
	}
}

func TestEditCommand_NothingToUpdate(t *testing.T) {
	svc := seeded()
	_, stderr, code := runCommand(t, &commands.EditCmd{}, svc, false, "1")

	expectCode(t, exitcode.UserError, code)
	if stderr != "error: invalid patch: nothing to update\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.Calls("ListTasks") != 0 || svc.Calls("UpdateTask") != 0 {
		t.Error("an empty patch should not reach the backend")
	}
}

func TestEditCommand_OneRefOnly(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.EditCmd{}, seeded(), false, "--title", "New title", "1", "2")

	expectCode(t, exitcode.UserError, code)
	if stderr != "error: unexpected argument: 2\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for whoami command
func TestWhoamiCommand(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.WhoamiCmd{}, seeded(), false)

	expectCode(t, exitcode.Success, code)
	if stdout != "Test User <user@taskhub.dev>\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

// Tests for browse command
func TestBrowseCommand_Paging(t *testing.T) {
	env, out, errOut := newEnv(t, seeded(), false)
	env.In = strings.NewReader("n\ng 3\np\nq\n")

	code := runEnv(t, &commands.BrowseCmd{}, env)

	expectCode(t, exitcode.Success, code)
	if errOut.String() != "" {
		t.Errorf("expected no stderr, got %q", errOut.String())
	}
	stdout := out.String()
	var pages []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "page ") {
			pages = append(pages, line)
		}
	}
	want := []string{
		"page 1 of 3 (25 tasks)",
		"page 2 of 3 (25 tasks)",
		"page 3 of 3 (25 tasks)",
		"page 2 of 3 (25 tasks)",
	}
	if strings.Join(pages, "|") != strings.Join(want, "|") {
		t.Errorf("expected pages %v, got %v", want, pages)
	}
}

func TestBrowseCommand_DoneAndDelete(t *testing.T) {
	svc := seeded()
	env, out, _ := newEnv(t, svc, false)
	env.In = strings.NewReader("d 2\nx 1\nq\n")

	code := runEnv(t, &commands.BrowseCmd{}, env)

	expectCode(t, exitcode.Success, code)
	tasks := svc.Tasks()
	if len(tasks) != 24 || tasks[0].ID != "2" {
		t.Fatalf("expected task 1 deleted, got %d tasks starting at %s", len(tasks), tasks[0].ID)
	}
	if tasks[0].Status != service.StatusDone {
		t.Errorf("expected task 2 done, got %s", tasks[0].Status)
	}
	if !strings.Contains(out.String(), "page 1 of 3 (24 tasks)") {
		t.Errorf("expected the footer to count the deletion, got %q", out.String())
	}
}

func TestBrowseCommand_InputErrors(t *testing.T) {
	env, _, errOut := newEnv(t, seeded(), false)
	env.In = strings.NewReader("p\nzzz\nd 11\nf bogus\nq\n")

	code := runEnv(t, &commands.BrowseCmd{}, env)

	expectCode(t, exitcode.Success, code)
	expected := "" +
		"error: already on the first page\n" +
		"error: unknown command: zzz (h for help)\n" +
		"error: task number out of range: 11\n" +
		"error: invalid status: unknown status \"bogus\"\n"
	if errOut.String() != expected {
		t.Errorf("expected %q, got %q", expected, errOut.String())
	}
}

func TestBrowseCommand_DebouncedSearch(t *testing.T) {
	svc := seeded()
	env, out, _ := newEnv(t, svc, false)
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	env.In = pr

	done := make(chan int, 1)
	go func() { done <- runEnv(t, &commands.BrowseCmd{}, env) }()

	if _, err := io.WriteString(pw, "s Task 2\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "search results", func() bool {
		return strings.Contains(out.String(), "search: \"Task 2\"  status: all\n")
	})
	if _, err := io.WriteString(pw, "q\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case code := <-done:
		expectCode(t, exitcode.Success, code)
	case <-time.After(time.Second):
		t.Fatal("browse did not quit")
	}
	// Task 2 and Tasks 20 to 25.
	if !strings.Contains(out.String(), "page 1 of 1 (7 tasks)") {
		t.Errorf("unexpected output %q", out.String())
	}
	if got := svc.LastListParams(); got.Search != "Task 2" || got.Page != 1 {
		t.Errorf("unexpected list params: %+v", got)
	}
}

func TestBrowseCommand_SessionEnded(t *testing.T) {
	svc := seeded()
	env, _, errOut := newEnv(t, svc, false)
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	env.In = pr

	// The server dropped the session after bootstrap.
	svc.SetLoggedIn(false)
	svc.ListTasksErr = fmt.Errorf("%w: refresh failed", service.ErrUnauthenticated)

	code := runEnv(t, &commands.BrowseCmd{}, env)

	expectCode(t, exitcode.AuthError, code)
	if errOut.String() != "error: session ended (run: taskhub login)\n" {
		t.Errorf("unexpected stderr %q", errOut.String())
	}
}

// Tests for the registry
func TestRegistry(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.RmCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&commands.AddCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cmd, ok := r.Find("delete"); !ok || cmd.Name() != "rm" {
		t.Errorf("expected alias delete to find rm, got %v %v", cmd, ok)
	}
	if _, ok := r.Find("list"); ok {
		t.Error("list was never registered")
	}

	err := r.Register(&commands.RmCmd{})
	if err == nil {
		t.Fatal("expected an error for a duplicate command")
	}
	if err.Error() != `command rm: "rm" already registered by rm` {
		t.Errorf("unexpected error %q", err.Error())
	}

	all := r.All()
	if len(all) != 2 || all[0].Name() != "add" || all[1].Name() != "rm" {
		t.Errorf("expected [add rm], got %d commands", len(all))
	}
}
