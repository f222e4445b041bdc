// Package transport issues HTTP requests against the task API.
//
// A Transport owns the base address, the timeout and the cookie jar that
// carries the session credential. Callers never see credentials: the jar
// attaches them to every request and stores whatever the server sets.
// Responses outside the 2xx range come back as *HTTPError.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"taskhub/internal/logging"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries a per-request correlation ID.
	RequestIDHeader = "X-Request-Id"
)

// Request describes one API call. It is a value: replaying a request
// means passing a modified copy, never mutating a shared one.
type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values

	// Attempt is the number of times this request was already replayed
	// after a session refresh.
	Attempt int
}

// Replay returns a copy of r marked as replayed once more.
func (r Request) Replay() Request {
	r.Attempt++
	return r
}

// Response is a successful (2xx) API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Doer executes a Request. Transport implements it, and so does every
// layer that wraps a Transport.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f(ctx, req).
func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Options configures a Transport.
type Options struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Jar stores session cookies. Nil means an in-memory jar.
	Jar http.CookieJar

	// RateLimit caps outgoing requests per second. Zero disables pacing.
	RateLimit float64

	// UserAgent is sent with every request when set.
	UserAgent string

	Logger logrus.FieldLogger
}

// Transport implements Doer on top of a resty client.
type Transport struct {
	client  *resty.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// New creates a Transport.
func New(opts Options) (*Transport, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(logger)
	if opts.Jar != nil {
		client.SetCookieJar(opts.Jar)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	t := &Transport{client: client, log: logger}
	if opts.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return t, nil
}

// Do executes req. Non-2xx responses fail with *HTTPError; failures without
// a response fail with *NetworkError or *TimeoutError.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, classify(req, err)
		}
	}

	requestID := uuid.NewString()
	r := t.client.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID)
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, req.Path)
	entry := t.log.WithFields(logrus.Fields{
		"method":     req.Method,
		"path":       req.Path,
		"request_id": requestID,
		"attempt":    req.Attempt,
		"duration":   time.Since(start).String(),
	})
	if err != nil {
		err = classify(req, err)
		entry.WithError(err).Debug("request failed")
		return nil, err
	}

	status := resp.StatusCode()
	entry.WithField("status", status).Debug("request completed")
	if status < 200 || status >= 300 {
		return nil, &HTTPError{
			Method: req.Method,
			Path:   req.Path,
			Status: status,
			Body:   resp.Body(),
		}
	}
	return &Response{
		Status: status,
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}
