// Package taskhub implements the service.Service interface over the TaskHub REST API.
//
// Requests flow through three layers:
//
//	Coordinator (401: shared refresh, one replay)
//	  -> Backoff (429: fixed delay, replay)
//	    -> transport.Transport (resty, cookie jar, timeout)
//
// The refresh call itself skips the Coordinator.
package taskhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"taskhub/internal/config"
	"taskhub/internal/logging"
	"taskhub/internal/service"
	"taskhub/internal/transport"
)

const userAgent = "taskhub-cli"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryDelay time.Duration
	RateLimit  float64

	// SessionPath persists session cookies. Empty keeps them in memory.
	SessionPath string

	Logger logrus.FieldLogger
}

// Client implements service.Service using the TaskHub REST API.
type Client struct {
	api   transport.Doer
	auth  transport.Doer
	coord *Coordinator
	jar   *transport.FileJar
	log   logrus.FieldLogger
}

// New creates a client from the CLI configuration.
func New(cfg *config.Config, logger logrus.FieldLogger) (*Client, error) {
	return NewWithOptions(Options{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.Timeout,
		RetryDelay:  cfg.RetryDelay,
		RateLimit:   cfg.RateLimit,
		SessionPath: cfg.SessionPath(),
		Logger:      logger,
	})
}

// NewWithOptions creates a client with an HTTP transport.
func NewWithOptions(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	jar, err := transport.NewFileJar(opts.SessionPath, opts.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	t, err := transport.New(transport.Options{
		BaseURL:   opts.BaseURL,
		Timeout:   opts.Timeout,
		Jar:       jar,
		RateLimit: opts.RateLimit,
		UserAgent: userAgent,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	c := NewWithDoer(t, opts.RetryDelay, logger)
	c.jar = jar
	return c, nil
}

// NewWithDoer builds the retry layers over an arbitrary Doer (for testing).
func NewWithDoer(next transport.Doer, retryDelay time.Duration, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{log: logger}
	c.auth = NewBackoff(next, retryDelay, logger)
	c.coord = NewCoordinator(c.auth, c.refresh, logger)
	c.api = c.coord
	return c
}

// RefreshState reports whether a session refresh is in flight.
func (c *Client) RefreshState() State {
	return c.coord.State()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login implements service.Service.
func (c *Client) Login(ctx context.Context, email, password string) error {
	resp, err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	})
	if err != nil {
		if transport.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %w", service.ErrInvalidCredentials, err)
		}
		return err
	}
	if !gjson.GetBytes(resp.Body, "ok").Bool() {
		return fmt.Errorf("%w: server did not confirm login", service.ErrInvalidCredentials)
	}
	return nil
}

// Logout implements service.Service. Local cookies are dropped only after
// the server confirms, or when it no longer honors them.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.api.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/auth/logout"})
	if err != nil && !errors.Is(err, service.ErrUnauthenticated) {
		return err
	}
	if c.jar != nil {
		if cerr := c.jar.Clear(); cerr != nil {
			return fmt.Errorf("failed to remove session: %w", cerr)
		}
	}
	return err
}

// Me implements service.Service.
func (c *Client) Me(ctx context.Context) (service.User, error) {
	resp, err := c.api.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/auth/me"})
	if err != nil {
		return service.User{}, err
	}
	var user service.User
	if err := resp.Decode(&user); err != nil {
		return service.User{}, err
	}
	return user, nil
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context, params service.ListParams) (service.TaskPage, error) {
	resp, err := c.api.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/tasks",
		Query:  listQuery(params),
	})
	if err != nil {
		return service.TaskPage{}, err
	}

	// Some deployments answer with a bare array and no pagination.
	if gjson.ParseBytes(resp.Body).IsArray() {
		var tasks []service.Task
		if err := resp.Decode(&tasks); err != nil {
			return service.TaskPage{}, err
		}
		limit := params.Limit
		if len(tasks) > limit {
			limit = len(tasks)
		}
		return service.TaskPage{
			Tasks:      tasks,
			Pagination: service.NewPaginationInfo(1, limit, len(tasks)),
		}, nil
	}

	var page service.TaskPage
	if err := resp.Decode(&page); err != nil {
		return service.TaskPage{}, err
	}
	if page.Tasks == nil {
		page.Tasks = []service.Task{}
	}
	return page, nil
}

func listQuery(params service.ListParams) url.Values {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		q.Set("search", s)
	}
	if params.Status != "" && params.Status != service.StatusAll {
		q.Set("status", string(params.Status))
	}
	return q
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, req service.CreateTaskRequest) (service.Task, error) {
	resp, err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/tasks",
		Body:   req,
	})
	if err != nil {
		return service.Task{}, err
	}
	var task service.Task
	if err := resp.Decode(&task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// UpdateTask implements service.Service.
func (c *Client) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	resp, err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   taskPath(id),
		Body:   patch,
	})
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	var task service.Task
	if err := resp.Decode(&task); err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.api.Do(ctx, transport.Request{Method: http.MethodDelete, Path: taskPath(id)})
	return wrapError(err)
}

func (c *Client) refresh(ctx context.Context) error {
	_, err := c.auth.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/auth/refresh"})
	return err
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

// wrapError maps addressed-entity failures onto service sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if transport.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %w", service.ErrNotFound, err)
	}
	return err
}
