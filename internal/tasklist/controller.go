// Package tasklist keeps one page of tasks in sync with the server.
//
// A Controller holds the materialized page plus the criteria that
// produced it. Loads replace the page wholesale; creates reload page 1;
// updates and deletes are applied locally from the server's answer.
// Every failure leaves the previous state in place and is recorded in a
// single last-error slot.
package tasklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskhub/internal/logging"
	"taskhub/internal/service"
)

// Op names a controller operation in errors.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// OpError is a failed controller operation.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// ErrSuperseded is returned by a load whose response arrived after a newer
// load was started. The response is discarded.
var ErrSuperseded = errors.New("load superseded by a newer one")

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Tasks      []service.Task
	Pagination service.PaginationInfo
	Search     string
	Filter     service.Status
	Page       int

	// Editing is the task open for editing, if any.
	Editing *service.Task

	// Err is the most recent failure, cleared when any operation starts.
	Err *OpError
}

// Options configures a Controller.
type Options struct {
	// PageSize is the limit sent with every load. Zero means service.DefaultPageSize.
	PageSize int

	// Debounce is the quiet period for SetSearch and SetFilter.
	Debounce time.Duration

	// OnChange, if set, receives a snapshot after every state change.
	// It is called without any lock held, possibly from a timer goroutine.
	OnChange func(Snapshot)

	Logger logrus.FieldLogger
}

// Controller is safe for concurrent use.
type Controller struct {
	svc      service.Service
	limit    int
	debounce *Debouncer
	onChange func(Snapshot)
	log      logrus.FieldLogger

	// ctx scopes debounced loads; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	tasks      []service.Task
	pagination service.PaginationInfo
	search     string
	filter     service.Status
	page       int
	editing    string
	lastErr    *OpError
	gen        uint64
}

// New creates a Controller with an empty page and no filter.
func New(svc service.Service, opts Options) *Controller {
	limit := opts.PageSize
	if limit <= 0 {
		limit = service.DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:      svc,
		limit:    limit,
		debounce: NewDebouncer(opts.Debounce),
		onChange: opts.OnChange,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		filter:   service.StatusAll,
		page:     1,
	}
}

// Close cancels any scheduled load.
func (c *Controller) Close() {
	c.debounce.Cancel()
	c.cancel()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Tasks:      append([]service.Task(nil), c.tasks...),
		Pagination: c.pagination,
		Search:     c.search,
		Filter:     c.filter,
		Page:       c.page,
		Err:        c.lastErr,
	}
	if i := c.indexLocked(c.editing); i >= 0 {
		t := c.tasks[i]
		s.Editing = &t
	}
	return s
}

// LastError returns the most recent failure, or nil.
func (c *Controller) LastError() *OpError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// unlockAndNotify releases mu and reports the new state.
func (c *Controller) unlockAndNotify() {
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *Controller) fail(op Op, err error) *OpError {
	c.mu.Lock()
	operr := &OpError{Op: op, Err: err}
	c.lastErr = operr
	c.unlockAndNotify()
	return operr
}

// begin clears the last error at the start of an operation.
func (c *Controller) begin() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// Load fetches one page matching search and filter and replaces the
// current page with it. Search and filter become the current criteria
// immediately; the page number only once the load succeeds. If a newer
// load starts before the response arrives, the response is discarded and
// ErrSuperseded is returned.
func (c *Controller) Load(ctx context.Context, page int, search string, filter service.Status) error {
	if page < 1 {
		return c.fail(OpFetch, &service.ValidationError{Field: "page", Reason: "must be at least 1"})
	}
	if filter == "" {
		filter = service.StatusAll
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.lastErr = nil
	c.search = search
	c.filter = filter
	c.mu.Unlock()

	result, err := c.svc.ListTasks(ctx, service.ListParams{
		Page:   page,
		Limit:  c.limit,
		Search: search,
		Status: filter,
	})

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.WithField("page", page).Debug("discarding superseded list response")
		return ErrSuperseded
	}
	if err != nil {
		operr := &OpError{Op: OpFetch, Err: err}
		c.lastErr = operr
		c.unlockAndNotify()
		return operr
	}
	c.tasks = append([]service.Task(nil), result.Tasks...)
	c.pagination = result.Pagination
	c.page = page
	if c.indexLocked(c.editing) < 0 {
		c.editing = ""
	}
	c.unlockAndNotify()
	return nil
}

// Reload loads the current page under the current criteria.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	page, search, filter := c.page, c.search, c.filter
	c.mu.Unlock()
	return c.Load(ctx, page, search, filter)
}

// GoToPage loads page under the current criteria without debouncing.
func (c *Controller) GoToPage(ctx context.Context, page int) error {
	c.mu.Lock()
	search, filter := c.search, c.filter
	c.mu.Unlock()
	return c.Load(ctx, page, search, filter)
}

// SetSearch changes the search text and schedules a debounced load of page 1.
func (c *Controller) SetSearch(search string) {
	c.mu.Lock()
	c.search = search
	c.mu.Unlock()
	c.schedule()
}

// SetFilter changes the status filter and schedules a debounced load of page 1.
func (c *Controller) SetFilter(filter service.Status) {
	if filter == "" {
		filter = service.StatusAll
	}
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
	c.schedule()
}

// LoadPending reports whether a debounced load is waiting to fire.
func (c *Controller) LoadPending() bool {
	return c.debounce.Pending()
}

func (c *Controller) schedule() {
	// Invalidate any load already in flight: its criteria are stale.
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	c.debounce.Schedule(func() {
		c.mu.Lock()
		search, filter := c.search, c.filter
		c.mu.Unlock()
		if err := c.Load(c.ctx, 1, search, filter); err != nil && !errors.Is(err, ErrSuperseded) {
			c.log.WithError(err).Debug("debounced load failed")
		}
	})
}

// Create validates and submits draft, then reloads page 1 under the
// current criteria. The created task is returned even if the reload fails;
// the reload error is returned alongside it.
func (c *Controller) Create(ctx context.Context, draft service.CreateTaskRequest) (service.Task, error) {
	c.begin()
	req, err := draft.Normalize()
	if err != nil {
		return service.Task{}, c.fail(OpCreate, err)
	}
	task, err := c.svc.CreateTask(ctx, req)
	if err != nil {
		return service.Task{}, c.fail(OpCreate, err)
	}

	c.mu.Lock()
	search, filter := c.search, c.filter
	c.mu.Unlock()
	return task, c.Load(ctx, 1, search, filter)
}

// Edit opens the task with id for editing. It reports false if the task
// is not on the current page.
func (c *Controller) Edit(id string) bool {
	c.mu.Lock()
	if c.indexLocked(id) < 0 {
		c.mu.Unlock()
		return false
	}
	c.editing = id
	c.unlockAndNotify()
	return true
}

// CancelEdit closes the task open for editing.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editing = ""
	c.unlockAndNotify()
}

// Update submits patch and splices the server's copy into the current page
// in place. Pagination is not touched. On success the task open for
// editing is closed.
func (c *Controller) Update(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	c.begin()
	if err := patch.Validate(); err != nil {
		return service.Task{}, c.fail(OpUpdate, err)
	}
	task, err := c.svc.UpdateTask(ctx, id, patch)
	if err != nil {
		return service.Task{}, c.fail(OpUpdate, err)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.tasks[i] = task
	}
	c.editing = ""
	c.unlockAndNotify()
	return task, nil
}

// Delete removes the task and, on success, drops it from the current page
// and decrements the pagination total. Page counts are corrected by the
// next load.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.begin()
	if err := c.svc.DeleteTask(ctx, id); err != nil {
		return c.fail(OpDelete, err)
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.tasks = append(c.tasks[:i:i], c.tasks[i+1:]...)
		if c.pagination.Total > 0 {
			c.pagination.Total--
		}
	}
	if c.editing == id {
		c.editing = ""
	}
	c.unlockAndNotify()
	return nil
}
