// Package engine drives a scoring run: it loads the metrics once, fans every
// (task, metric) pair out to a bounded worker pool and folds the results
// into one aggregated score per task line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/signalnine/netscore/internal/aggregate"
	"github.com/signalnine/netscore/internal/loader"
	"github.com/signalnine/netscore/internal/logchan"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/runner"
	"github.com/signalnine/netscore/internal/task"
	"github.com/signalnine/netscore/internal/telemetry"
)

const (
	DefaultMetricTimeout = 30 * time.Second
	// drainGrace is added to the longest metric timeout to form the default idle drain timeout.
	drainGrace = 5 * time.Second
)

type Options struct {
	MetricsDir   string
	LogFile      string
	LogLevel     int
	LogMaxSizeMB int
	Workers      int
	Args         map[string]string
	Telemetry    *telemetry.Collector

	// MetricTimeout bounds a metric whose manifest sets no timeout.
	MetricTimeout time.Duration

	// DrainTimeout is how long the orchestrator waits without receiving any
	// result before giving up on the outstanding ones. Zero derives it from
	// the longest timeout among the selected metrics.
	DrainTimeout time.Duration

	// Only restricts the run to these metric names. A trailing "*" matches a prefix.
	Only []string
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Scores     []result.Score
	NetScore   float64
	Metrics    map[string]*metric.Descriptor
	LoadErrors []*loader.LoadError

	// LogErr is set when the log destination could not be written.
	LogErr error
}

type Engine struct {
	reg  *metric.Registry
	env  metric.Env
	opts Options
}

func New(reg *metric.Registry, env *metric.Env, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MetricTimeout <= 0 {
		opts.MetricTimeout = DefaultMetricTimeout
	}
	e := &Engine{reg: reg, opts: opts}
	if env != nil {
		e.env = *env
	}
	e.env.Args = metric.MergeArgs(e.env.Args, opts.Args)
	return e
}

// slot is one non-blank line of the task source.
type slot struct {
	line task.Line
	task task.Task
	err  error
}

// Run scores every line of tasksPath. It only fails when the task source
// cannot be read; metric and line level problems end up in the scores.
func (e *Engine) Run(ctx context.Context, tasksPath string) (*Report, error) {
	rep := &Report{RunID: result.NewRunID(), StartedAt: time.Now().UTC()}

	ch := logchan.Open(e.opts.LogFile, logchan.Options{MaxSizeMB: e.opts.LogMaxSizeMB, MaxBackups: 3})
	defer ch.Close()
	logger := logchan.NewLogger(ch, e.opts.LogLevel).With("run", rep.RunID)

	lines, err := task.ReadFile(tasksPath)
	if err != nil {
		logger.Error("cannot read task source", "path", tasksPath, "error", err)
		ch.Close()
		return nil, err
	}
	logger.Info("run started", "tasks", len(lines), "workers", e.opts.Workers)

	rep.Metrics, rep.LoadErrors = loader.Load(e.opts.MetricsDir, e.reg, logger)
	rep.Metrics = Select(rep.Metrics, e.opts.Only)

	slots := make([]slot, len(lines))
	for i, l := range lines {
		t, err := task.Parse(l.Text)
		slots[i] = slot{line: l, task: t, err: err}
		if err != nil {
			logger.Warn("malformed task line", "line", l.Number, "error", err)
		}
	}

	collected := e.execute(ctx, slots, rep.Metrics, logger)

	rep.Scores = make([]result.Score, len(slots))
	for i, s := range slots {
		var score result.Score
		if s.err != nil {
			score = aggregate.Empty(s.line.Text, rep.Metrics)
		} else {
			score = aggregate.Aggregate(s.task, rep.Metrics, collected[i])
		}
		score.Line = s.line.Number
		rep.Scores[i] = score
		if e.opts.Telemetry != nil {
			e.opts.Telemetry.TaskScored(score)
		}
	}
	rep.NetScore = aggregate.Summarize(rep.Scores)
	rep.Duration = time.Since(rep.StartedAt)

	logger.Info("run complete", "tasks", len(rep.Scores), "net_score", rep.NetScore, "duration", rep.Duration)
	ch.Close()
	rep.LogErr = ch.Err()
	return rep, nil
}

// execute runs every metric for every well-formed slot and returns the
// executions per slot index. A pair that never reports is recorded as a
// timeout failure.
func (e *Engine) execute(ctx context.Context, slots []slot, descs map[string]*metric.Descriptor, logger *slog.Logger) [][]result.Execution {
	names := metric.SortedNames(descs)
	got := make([]map[string]result.Execution, len(slots))
	expected := 0
	for i, s := range slots {
		got[i] = make(map[string]result.Execution, len(names))
		if s.err == nil {
			expected += len(names)
		}
	}

	// Buffered for every job so a worker that finishes after the drain gave
	// up never blocks.
	results := make(chan result.Execution, max(expected, 1))
	pool := runner.NewPool(e.opts.Workers)
	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i, s := range slots {
			if s.err != nil {
				continue
			}
			for _, name := range names {
				job := &runner.Job{
					Seq:     i,
					Task:    s.task,
					Metric:  descs[name],
					Env:     &e.env,
					Timeout: e.opts.MetricTimeout,
					Results: results,
				}
				if err := pool.GoContext(jobCtx, func() { runner.Run(jobCtx, job, logger) }); err != nil {
					return
				}
			}
		}
	}()

	drainStart := time.Now()
	received, complete := e.drain(ctx, results, got, expected, e.drainTimeout(descs), logger)
	if !complete {
		logger.Warn("gave up waiting for results", "received", received, "expected", expected)
		stopJobs()
	}
	<-submitted
	pool.Wait()

	out := make([][]result.Execution, len(slots))
	for i, s := range slots {
		if s.err != nil {
			continue
		}
		for _, name := range names {
			ex, ok := got[i][name]
			if !ok {
				d := descs[name]
				ex = result.Execution{
					Seq:     i,
					Task:    s.task.Raw,
					Metric:  name,
					Value:   metric.Scalar(0),
					Weight:  d.Weight,
					Latency: time.Since(drainStart),
					Failure: result.FailureTimeout,
					Err:     "no result before the drain timeout",
				}
				logger.Warn("metric never reported", "metric", name, "task", s.task.Raw)
				e.observe(ex)
			}
			out[i] = append(out[i], ex)
		}
	}
	return out
}

// drain collects results until every expected pair has arrived, the idle
// timeout fires or ctx ends. Duplicates for a pair are ignored.
func (e *Engine) drain(ctx context.Context, results <-chan result.Execution, got []map[string]result.Execution, expected int, timeout time.Duration, logger *slog.Logger) (int, bool) {
	received := 0
	idle := time.NewTimer(timeout)
	defer idle.Stop()

	for received < expected {
		select {
		case ex := <-results:
			if _, dup := got[ex.Seq][ex.Metric]; dup {
				logger.Debug("duplicate result ignored", "metric", ex.Metric, "task", ex.Task)
				continue
			}
			got[ex.Seq][ex.Metric] = ex
			received++
			e.observe(ex)
			idle.Reset(timeout)
		case <-idle.C:
			return received, false
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				logger.Warn("run context ended", "error", ctx.Err())
			}
			return received, false
		}
	}
	return received, true
}

// drainTimeout is the configured idle drain, or else the longest timeout any
// selected metric may run for plus a grace period.
func (e *Engine) drainTimeout(descs map[string]*metric.Descriptor) time.Duration {
	if e.opts.DrainTimeout > 0 {
		return e.opts.DrainTimeout
	}
	longest := time.Duration(0)
	for _, d := range descs {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = e.opts.MetricTimeout
		}
		longest = max(longest, timeout)
	}
	if longest == 0 {
		longest = e.opts.MetricTimeout
	}
	return longest + drainGrace
}

func (e *Engine) observe(ex result.Execution) {
	if e.opts.Telemetry != nil {
		e.opts.Telemetry.Observe(ex)
	}
}

// Select keeps the descriptors matching any pattern; no patterns keeps all.
func Select(descs map[string]*metric.Descriptor, patterns []string) map[string]*metric.Descriptor {
	if len(patterns) == 0 {
		return descs
	}
	out := make(map[string]*metric.Descriptor)
	for name, d := range descs {
		for _, p := range patterns {
			if matchName(name, p) {
				out[name] = d
				break
			}
		}
	}
	return out
}

func matchName(name, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return name == pattern
}

// Describe loads the metrics directory without running anything.
func Describe(dir string, reg *metric.Registry) (map[string]*metric.Descriptor, []*loader.LoadError) {
	return loader.Load(dir, reg, nil)
}

func (r *Report) String() string {
	return fmt.Sprintf("run %s: %d tasks, %d metrics, net score %.3f", r.RunID, len(r.Scores), len(r.Metrics), r.NetScore)
}
