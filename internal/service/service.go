// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
	"fmt"
)

// Service defines the interface for task backend operations.
// All HTTP calls go through this interface; commands never talk to the
// transport directly.
type Service interface {
	// Login submits credentials. The session credential is kept by the
	// backend implementation (cookie store), never returned to the caller.
	Login(ctx context.Context, email, password string) error

	// Logout ends the server-side session.
	Logout(ctx context.Context) error

	// Me returns the identity bound to the current session.
	Me(ctx context.Context) (User, error)

	// ListTasks returns one page of tasks matching params, in server order.
	ListTasks(ctx context.Context, params ListParams) (TaskPage, error)

	// CreateTask creates a task and returns the server's canonical copy.
	CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error)

	// UpdateTask applies a partial update and returns the canonical task.
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error
}

var (
	// ErrNotFound is returned when the addressed task does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned when login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when the session ended and could not
	// be refreshed. Callers should send the user back to login.
	ErrUnauthenticated = errors.New("session ended")
)

// ValidationError is a client-side rejection raised before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
