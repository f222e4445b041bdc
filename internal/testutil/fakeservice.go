// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskhub/internal/service"
)

// Credentials accepted by the fakes.
const (
	TestEmail    = "user@taskhub.dev"
	TestPassword = "password"
)

// TestUser is the identity returned once logged in.
var TestUser = service.User{ID: "u1", Email: TestEmail, Name: "Test User"}

// SeedTime is the creation time of seeded tasks.
var SeedTime = time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	tasks    []service.Task
	nextID   int
	loggedIn bool
	lastList service.ListParams
	calls    map[string]int

	// Error injection for testing
	LoginErr      error
	LogoutErr     error
	MeErr         error
	ListTasksErr  error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error

	// ListHook runs at the start of ListTasks, before any lock is taken.
	// A non-nil error is returned to the caller. Tests use it to stall or
	// reorder list responses.
	ListHook func(ctx context.Context, params service.ListParams) error
}

// NewFakeService creates an empty, logged-out FakeService.
func NewFakeService() *FakeService {
	return &FakeService{nextID: 1, calls: make(map[string]int)}
}

// SeedTasks appends n generated tasks. Status and priority cycle through
// their values so filters have something to match.
func (f *FakeService) SeedTasks(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := service.Statuses
	priorities := []service.Priority{service.PriorityLow, service.PriorityMed, service.PriorityHigh}
	tags := []string{"backend", "cli"}
	for i := 0; i < n; i++ {
		id := f.nextID
		f.nextID++
		f.tasks = append(f.tasks, service.Task{
			ID:          fmt.Sprint(id),
			Title:       fmt.Sprintf("Task %d", id),
			Description: fmt.Sprintf("Description of task %d", id),
			Status:      statuses[i%len(statuses)],
			Priority:    priorities[i%len(priorities)],
			DueDate:     SeedTime.AddDate(0, 0, i).Format(time.DateOnly),
			Tags:        tags[:i%2+1],
			CreatedAt:   SeedTime,
			UpdatedAt:   SeedTime,
		})
	}
}

// AddTask appends a task as-is.
func (f *FakeService) AddTask(t service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
}

// Tasks returns a copy of every stored task in server order.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// SetLoggedIn sets the login state without calling Login.
func (f *FakeService) SetLoggedIn(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = v
}

// LoggedIn reports the login state.
func (f *FakeService) LoggedIn() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loggedIn
}

// Calls returns how many times the named method was called.
func (f *FakeService) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

// LastListParams returns the parameters of the most recent ListTasks call.
func (f *FakeService) LastListParams() service.ListParams {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastList
}

func (f *FakeService) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, email, password string) error {
	f.count("Login")
	if f.LoginErr != nil {
		return f.LoginErr
	}
	if email != TestEmail || password != TestPassword {
		return service.ErrInvalidCredentials
	}
	f.SetLoggedIn(true)
	return nil
}

// Logout implements service.Service.
func (f *FakeService) Logout(ctx context.Context) error {
	f.count("Logout")
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.SetLoggedIn(false)
	return nil
}

// Me implements service.Service.
func (f *FakeService) Me(ctx context.Context) (service.User, error) {
	f.count("Me")
	if f.MeErr != nil {
		return service.User{}, f.MeErr
	}
	if !f.LoggedIn() {
		return service.User{}, service.ErrUnauthenticated
	}
	return TestUser, nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, params service.ListParams) (service.TaskPage, error) {
	f.count("ListTasks")
	if f.ListHook != nil {
		if err := f.ListHook(ctx, params); err != nil {
			return service.TaskPage{}, err
		}
	}
	if f.ListTasksErr != nil {
		return service.TaskPage{}, f.ListTasksErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = params

	page, limit := params.Page, params.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = service.DefaultPageSize
	}

	search := strings.ToLower(strings.TrimSpace(params.Search))
	var matched []service.Task
	for _, t := range f.tasks {
		if params.Status != "" && params.Status != service.StatusAll && t.Status != params.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		matched = append(matched, t)
	}

	tasks := []service.Task{}
	start := (page - 1) * limit
	if start < len(matched) {
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		tasks = append(tasks, matched[start:end]...)
	}
	return service.TaskPage{
		Tasks:      tasks,
		Pagination: service.NewPaginationInfo(page, limit, len(matched)),
	}, nil
}

// CreateTask implements service.Service. New tasks are listed first.
func (f *FakeService) CreateTask(ctx context.Context, req service.CreateTaskRequest) (service.Task, error) {
	f.count("CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	now := time.Now().UTC()
	task := service.Task{
		ID:          fmt.Sprint(id),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks = append([]service.Task{task}, f.tasks...)
	return task, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	f.count("UpdateTask")
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		t := &f.tasks[i]
		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.DueDate != nil {
			t.DueDate = *patch.DueDate
		}
		t.UpdatedAt = time.Now().UTC()
		return *t, nil
	}
	return service.Task{}, service.ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	f.count("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return service.ErrNotFound
}
