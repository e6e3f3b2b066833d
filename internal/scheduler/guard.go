package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// DefaultPollTimeout bounds one collector call.
const DefaultPollTimeout = 25 * time.Second

// ErrPollTimeout is returned when a poll exceeds its budget. The poll is
// abandoned for this cycle and retried on the next one.
var ErrPollTimeout = errors.New("poll timed out")

// PollGuard runs collector calls on a single worker with a hard timeout. A call
// that overruns keeps the worker busy until it returns, so a hung source delays
// later polls instead of piling up goroutines.
type PollGuard struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewPollGuard(timeout time.Duration) *PollGuard {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &PollGuard{sem: semaphore.NewWeighted(1), timeout: timeout}
}

type pollOutcome struct {
	res *collector.PollResult
	err error
}

// Poll calls p for game within the guard's budget. Waiting for the worker counts
// against the budget.
func (g *PollGuard) Poll(ctx context.Context, p collector.LivePoller, game models.Game) (*collector.PollResult, error) {
	pctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(pctx, 1); err != nil {
		return nil, g.timeoutErr(ctx, err)
	}

	done := make(chan pollOutcome, 1)
	go func() {
		defer g.sem.Release(1)
		res, err := p.PollGame(pctx, game)
		done <- pollOutcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && pctx.Err() != nil {
			return nil, g.timeoutErr(ctx, pctx.Err())
		}
		return out.res, out.err
	case <-pctx.Done():
		return nil, g.timeoutErr(ctx, pctx.Err())
	}
}

func (g *PollGuard) timeoutErr(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrPollTimeout
	}
	return err
}
