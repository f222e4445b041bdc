package taskhub

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"taskhub/internal/logging"
	"taskhub/internal/transport"
)

// DefaultRetryDelay is how long Backoff waits before replaying a throttled request.
const DefaultRetryDelay = time.Second

// Backoff replays requests answered with 429 after a fixed delay.
// It does not count replays as attempts: the refresh coordinator's
// one-shot budget is independent of throttling. There is no cap on the
// number of replays; only ctx bounds the loop.
type Backoff struct {
	next  transport.Doer
	delay time.Duration
	log   logrus.FieldLogger
}

// NewBackoff wraps next. A non-positive delay means DefaultRetryDelay.
func NewBackoff(next transport.Doer, delay time.Duration, logger logrus.FieldLogger) *Backoff {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Backoff{next: next, delay: delay, log: logger}
}

// Do implements transport.Doer.
func (b *Backoff) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	for {
		resp, err := b.next.Do(ctx, req)
		if !transport.IsStatus(err, http.StatusTooManyRequests) {
			return resp, err
		}

		b.log.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
			"delay":  b.delay.String(),
		}).Debug("rate limited, retrying")

		timer := time.NewTimer(b.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
