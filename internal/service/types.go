// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"

	// StatusAll is the filter value that matches every status.
	// It is never a valid task status.
	StatusAll Status = "all"
)

// Statuses lists the concrete task statuses in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is a concrete task status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatusFilter parses a filter value: "all" (or empty) or a concrete status.
func ParseStatusFilter(s string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	if v == "" || v == StatusAll {
		return StatusAll, nil
	}
	if !v.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return v, nil
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityMed  Priority = "med"
	PriorityHigh Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMed, PriorityHigh:
		return true
	}
	return false
}

// MinTitleLength is the shortest title the client accepts.
const MinTitleLength = 3

// Task represents a single task item as returned by the API.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	DueDate     string    `json:"dueDate,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Assignee    string    `json:"assignee,omitempty"`
}

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PaginationInfo describes one page of a filtered task listing.
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPaginationInfo derives the page counters from page, limit and total.
func NewPaginationInfo(page, limit, total int) PaginationInfo {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PaginationInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// TaskPage is one page of tasks plus its pagination metadata.
type TaskPage struct {
	Tasks      []Task         `json:"tasks"`
	Pagination PaginationInfo `json:"pagination"`
}

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// ListParams selects a page of tasks.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Status Status // StatusAll or empty means no filter
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"dueDate,omitempty"`
}

// Normalize fills defaults and validates the draft.
func (r CreateTaskRequest) Normalize() (CreateTaskRequest, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Status == "" {
		r.Status = StatusTodo
	}
	if r.Priority == "" {
		r.Priority = PriorityMed
	}
	if err := validateTitle(r.Title); err != nil {
		return r, err
	}
	if !r.Status.Valid() {
		return r, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}
	if !r.Priority.Valid() {
		return r, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", r.Priority)}
	}
	if err := validateDueDate(r.DueDate); err != nil {
		return r, err
	}
	return r, nil
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.DueDate == nil
}

// Validate checks every field that is set.
func (p TaskPatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "patch", Reason: "nothing to update"}
	}
	if p.Title != nil {
		if err := validateTitle(strings.TrimSpace(*p.Title)); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *p.Priority)}
	}
	if p.DueDate != nil {
		if err := validateDueDate(*p.DueDate); err != nil {
			return err
		}
	}
	return nil
}

func validateTitle(title string) error {
	if len([]rune(title)) < MinTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at least %d characters", MinTitleLength)}
	}
	return nil
}

// validateDueDate accepts an empty value, a calendar date or an RFC 3339 timestamp.
func validateDueDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	return &ValidationError{Field: "dueDate", Reason: fmt.Sprintf("not an ISO-8601 date: %q", s)}
}
