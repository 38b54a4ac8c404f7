package upstream

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/rquest"
)

// SolveFunc turns a fetched task into a result. On task failure it returns
// both an error-status result carrying the task identity and the error; the
// result is still submitted so the upstream side sees the failure.
type SolveFunc func(ctx context.Context, task *rquest.Task) (rquest.Result, error)

// PollingService drives the worker loop: poll the task API, hand each task
// to the solver, and submit the result. Each network round-trip carries its
// own retry budget; a failed submission never re-runs the query.
type PollingService struct {
	client   *Client
	solve    SolveFunc
	interval time.Duration
	retry    Policy
	log      *zap.Logger

	// MaxPolls bounds the number of poll rounds before Run returns.
	// Zero means run until the context is cancelled.
	MaxPolls int
}

// NewPollingService wires a client and solver into a loop that sleeps
// interval between polls.
func NewPollingService(client *Client, solve SolveFunc, interval time.Duration, retry Policy, log *zap.Logger) *PollingService {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollingService{
		client:   client,
		solve:    solve,
		interval: interval,
		retry:    retry,
		log:      log,
	}
}

// Run polls until the context is cancelled or an authentication failure
// makes further polling pointless. Cancellation is a clean shutdown and
// returns ctx.Err().
func (s *PollingService) Run(ctx context.Context) error {
	s.log.Info("polling task api",
		zap.String("collection", s.client.Collection()),
		zap.Duration("interval", s.interval))

	for rounds := 0; s.MaxPolls == 0 || rounds < s.MaxPolls; rounds++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, err := s.pollOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthFailure) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("poll failed", zap.Error(err))
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if task == nil {
			s.log.Debug("no task queued")
			if err := s.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		s.log.Info("task received",
			zap.String("uuid", task.UUID()),
			zap.String("kind", string(task.Kind)))

		result, solveErr := s.solve(ctx, task)
		if solveErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("task failed, submitting error result",
				zap.String("uuid", task.UUID()), zap.Error(solveErr))
		}

		if err := s.submitOnce(ctx, result); err != nil {
			if errors.Is(err, ErrAuthFailure) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Retries exhausted. The result is dropped; the upstream
			// side will time the task out and may requeue it.
			s.log.Error("result dropped after submission retries",
				zap.String("uuid", result.UUID),
				zap.Error(err))
		} else {
			s.log.Info("result submitted",
				zap.String("uuid", result.UUID),
				zap.String("status", result.Status))
		}

		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *PollingService) pollOnce(ctx context.Context) (*rquest.Task, error) {
	var task *rquest.Task
	err := s.retry.Do(ctx, func() error {
		var err error
		task, err = s.client.Poll(ctx)
		if err != nil && !Retryable(err) {
			return Permanent(err)
		}
		return err
	})
	return task, unwrapPermanent(err)
}

func (s *PollingService) submitOnce(ctx context.Context, result rquest.Result) error {
	err := s.retry.Do(ctx, func() error {
		err := s.client.Submit(ctx, result)
		if err != nil && !Retryable(err) {
			return Permanent(err)
		}
		return err
	})
	return unwrapPermanent(err)
}

func (s *PollingService) sleep(ctx context.Context) error {
	select {
	case <-time.After(s.interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}
