// Package solver turns decoded query tasks into submitted results: it
// compiles the cohort, executes it, applies the obfuscation pipeline and
// assembles the wire result. Errors local to a task become error results,
// never panics or silent drops.
package solver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/cohort"
	"github.com/hutchstack/bunny-go/obfuscation"
	"github.com/hutchstack/bunny-go/query/compiler"
	"github.com/hutchstack/bunny-go/query/executor"
	"github.com/hutchstack/bunny-go/rquest"
)

// Solver processes one task at a time against a single backend.
type Solver struct {
	exec     *executor.Executor
	comp     *compiler.Compiler
	obfusc   obfuscation.Pipeline
	maxDepth int
	log      *zap.Logger
}

// New builds a solver around an executor; the compiler is derived from the
// executor's dialect.
func New(exec *executor.Executor, obfusc obfuscation.Pipeline, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{
		exec:   exec,
		comp:   compiler.New(exec.Dialect()),
		obfusc: obfusc,
		log:    log,
	}
}

// SetObfuscation swaps the privacy pipeline, used by config reload.
func (s *Solver) SetObfuscation(p obfuscation.Pipeline) { s.obfusc = p }

// Solve dispatches on the task kind. Any failure is reported as an error
// result carrying the task identity; the error is also returned for logging
// and loop accounting.
func (s *Solver) Solve(ctx context.Context, task *rquest.Task) (rquest.Result, error) {
	var (
		result rquest.Result
		err    error
	)
	switch task.Kind {
	case rquest.TaskDistribution:
		result, err = s.solveDistribution(ctx, task.Distribution)
	default:
		result, err = s.solveAvailability(ctx, task.Availability)
	}
	if err != nil {
		s.log.Error("task failed",
			zap.String("uuid", task.UUID()),
			zap.String("kind", string(task.Kind)),
			zap.Error(err))
		return rquest.NewErrorResult(task.UUID(), task.Collection(), err.Error()), err
	}
	return result, nil
}

func (s *Solver) solveAvailability(ctx context.Context, q *rquest.AvailabilityQuery) (rquest.Result, error) {
	def, err := cohort.Parse(q.Cohort)
	if err != nil {
		return rquest.Result{}, err
	}

	compiled, err := s.comp.CompileAvailability(def)
	if err != nil {
		return rquest.Result{}, err
	}
	s.log.Debug("compiled availability query",
		zap.String("uuid", q.UUID), zap.String("sql", compiled.SQL))

	raw, err := s.exec.Count(ctx, compiled)
	if err != nil {
		return rquest.Result{}, fmt.Errorf("availability query: %w", err)
	}

	count := s.obfusc.Apply(raw)
	s.log.Info("solved availability query", zap.String("uuid", q.UUID), zap.Int64("count", count))
	return rquest.NewResult(q.UUID, q.Collection, count, nil), nil
}
