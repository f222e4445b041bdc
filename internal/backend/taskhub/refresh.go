package taskhub

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"taskhub/internal/logging"
	"taskhub/internal/service"
	"taskhub/internal/transport"
)

// State is the refresh coordinator's state.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// RefreshFunc re-authenticates the session.
type RefreshFunc func(ctx context.Context) error

// Coordinator recovers from expired sessions. When a request fails with
// 401 it triggers one shared refresh, waits for it to settle and replays the
// request once. At most one refresh runs at a time; every 401 observed while
// it is in flight, or for a request sent before it settled, is settled by
// that refresh's outcome.
type Coordinator struct {
	next    transport.Doer
	refresh RefreshFunc
	log     logrus.FieldLogger

	mu      sync.Mutex
	flight  *flight // nil while Idle
	settled uint64  // refreshes settled so far
	lastErr error   // outcome of the most recently settled refresh
}

// flight is one in-flight refresh and the requests queued behind it.
type flight struct {
	done    chan struct{}
	err     error
	waiters int
}

// NewCoordinator wraps next. refresh must not itself go through the
// coordinator.
func NewCoordinator(next transport.Doer, refresh RefreshFunc, logger logrus.FieldLogger) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Coordinator{next: next, refresh: refresh, log: logger}
}

// State reports whether a refresh is in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight != nil {
		return Refreshing
	}
	return Idle
}

// Pending returns the number of requests queued behind the in-flight refresh,
// not counting the one that started it.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight == nil {
		return 0
	}
	return c.flight.waiters
}

// Do implements transport.Doer.
func (c *Coordinator) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	c.mu.Lock()
	epoch := c.settled
	c.mu.Unlock()

	resp, err := c.next.Do(ctx, req)
	if !transport.IsStatus(err, http.StatusUnauthorized) {
		return resp, err
	}
	if req.Attempt > 0 {
		return nil, fmt.Errorf("%w: %w", service.ErrUnauthenticated, err)
	}

	if err := c.await(ctx, epoch); err != nil {
		return nil, err
	}
	return c.Do(ctx, req.Replay())
}

// await blocks until the refresh that settles a 401 observed at epoch is done.
func (c *Coordinator) await(ctx context.Context, epoch uint64) error {
	c.mu.Lock()
	f := c.flight
	switch {
	case f != nil:
		f.waiters++
	case c.settled != epoch:
		// A refresh settled while this request was on the wire.
		err := c.lastErr
		c.mu.Unlock()
		return err
	default:
		f = &flight{done: make(chan struct{})}
		c.flight = f
		go c.run(context.WithoutCancel(ctx), f)
	}
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context, f *flight) {
	c.log.Debug("session expired, refreshing")

	err := c.refresh(ctx)
	if err != nil {
		err = fmt.Errorf("%w: refresh failed: %w", service.ErrUnauthenticated, err)
	}

	c.mu.Lock()
	f.err = err
	c.flight = nil
	c.settled++
	c.lastErr = err
	waiters := f.waiters
	c.mu.Unlock()
	close(f.done)

	entry := c.log.WithField("waiters", waiters)
	if err != nil {
		entry.WithError(err).Debug("session refresh failed")
		return
	}
	entry.Debug("session refreshed")
}
