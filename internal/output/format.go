// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskhub/internal/service"
	"taskhub/internal/tasklist"
)

// FormatTask formats a task row.
// Format: "{N:>4}  {STATUS:<11}  {PRIORITY:<4}  {TITLE}[  (due {DATE})]\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	line := fmt.Sprintf("%4d  %-11s  %-4s  %s", num, task.Status, task.Priority, normalizeTitle(task.Title))
	if due := formatDue(task.DueDate); due != "" {
		line += "  (due " + due + ")"
	}
	fmt.Fprintln(w, line)
}

// FormatTasks formats rows numbered from 1, or "no tasks found".
func FormatTasks(w io.Writer, tasks []service.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks found")
		return
	}
	for i, task := range tasks {
		FormatTask(w, i+1, task)
	}
}

// FormatPagination formats the page footer.
func FormatPagination(w io.Writer, p service.PaginationInfo) {
	pages := p.TotalPages
	if pages < 1 {
		pages = 1
	}
	noun := "tasks"
	if p.Total == 1 {
		noun = "task"
	}
	fmt.Fprintf(w, "page %d of %d (%d %s)\n", p.Page, pages, p.Total, noun)
}

// FormatCriteria formats the active search and filter.
func FormatCriteria(w io.Writer, search string, filter service.Status) {
	if filter == "" {
		filter = service.StatusAll
	}
	if s := strings.TrimSpace(search); s != "" {
		fmt.Fprintf(w, "search: %q  status: %s\n", s, filter)
		return
	}
	fmt.Fprintf(w, "status: %s\n", filter)
}

// FormatSnapshot formats a controller snapshot: criteria, rows and footer.
func FormatSnapshot(w io.Writer, s tasklist.Snapshot) {
	FormatCriteria(w, s.Search, s.Filter)
	FormatTasks(w, s.Tasks)
	FormatPagination(w, s.Pagination)
}

// FormatTaskDetail formats every field of a task, one per line.
func FormatTaskDetail(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "id:       %s\n", task.ID)
	fmt.Fprintf(w, "title:    %s\n", normalizeTitle(task.Title))
	fmt.Fprintf(w, "status:   %s\n", task.Status)
	fmt.Fprintf(w, "priority: %s\n", task.Priority)
	if due := formatDue(task.DueDate); due != "" {
		fmt.Fprintf(w, "due:      %s\n", due)
	}
	if len(task.Tags) > 0 {
		fmt.Fprintf(w, "tags:     %s\n", strings.Join(task.Tags, ", "))
	}
	if d := strings.TrimSpace(task.Description); d != "" {
		fmt.Fprintf(w, "\n%s\n", d)
	}
}

// FormatUser formats an identity as "Name <email>".
func FormatUser(w io.Writer, u service.User) {
	if strings.TrimSpace(u.Name) == "" {
		fmt.Fprintln(w, u.Email)
		return
	}
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
}

// formatDue shows timestamps as calendar dates.
func formatDue(s string) string {
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.DateOnly)
	}
	return s
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
