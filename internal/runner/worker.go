// Package runner executes metrics. A worker runs one metric against one task
// and always reports exactly one result, whatever the metric does.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/task"
)

// Job is one (task, metric) unit of work.
type Job struct {
	Seq     int
	Task    task.Task
	Metric  *metric.Descriptor
	Env     *metric.Env
	Results chan<- result.Execution

	// Timeout applies when the descriptor does not set its own.
	Timeout time.Duration
}

type outcome struct {
	value    metric.Value
	err      error
	panicked bool
}

// Run evaluates the job's metric and sends its Execution on job.Results.
// Failures become a zero score tagged with the failure kind.
func Run(ctx context.Context, job *Job, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := job.Metric
	env := job.Env
	if env == nil {
		env = &metric.Env{}
	}

	timeout := d.Timeout
	if timeout == 0 {
		timeout = job.Timeout
	}
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	mlog := logger.With("metric", d.Name, "task", job.Task.Raw)
	mc := &metric.Context{
		Task:   job.Task,
		Args:   metric.MergeArgs(env.Args, d.Args),
		Env:    env,
		Logger: mlog,
	}

	exec := result.Execution{
		Seq:       job.Seq,
		Task:      job.Task.Raw,
		Metric:    d.Name,
		Weight:    d.Weight,
		StartedAt: time.Now(),
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				mlog.Debug("metric panic stack", "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("panic: %v", r), panicked: true}
			}
		}()
		if d.Metric == nil {
			done <- outcome{err: errors.New("metric has no implementation")}
			return
		}
		if err := runCtx.Err(); err != nil {
			done <- outcome{err: err}
			return
		}
		v, err := d.Metric.Evaluate(runCtx, mc)
		done <- outcome{value: v, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-runCtx.Done():
		o = outcome{err: runCtx.Err()}
	}
	exec.Latency = time.Since(exec.StartedAt)

	switch {
	case o.panicked:
		exec.Failure = result.FailurePanic
	case o.err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		exec.Failure = result.FailureTimeout
	case o.err != nil:
		exec.Failure = result.FailureMetric
	default:
		exec.Value = o.value
	}
	if exec.Failed() {
		exec.Value = metric.Scalar(0)
		exec.Err = o.err.Error()
		mlog.Warn("metric failed", "failure", string(exec.Failure), "error", o.err, "latency", exec.Latency)
	} else {
		mlog.Debug("metric done", "score", exec.Value.String(), "latency", exec.Latency)
	}

	job.Results <- exec
}
