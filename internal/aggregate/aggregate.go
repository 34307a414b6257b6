package aggregate

import (
	"time"

	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/task"
)

// Reduce folds a metric value into the single number used in the net score.
// Composite values contribute the mean of their sub-scores.
func Reduce(v metric.Value) float64 {
	switch v.Kind() {
	case metric.KindComposite:
		parts := v.Parts()
		if len(parts) == 0 {
			return 0
		}
		var sum float64
		for _, p := range parts {
			sum += p
		}
		return sum / float64(len(parts))
	default:
		return v.Float()
	}
}

// NetScore is the weight-normalised sum over every loaded metric. Metrics
// without an execution contribute 0 but keep their weight in the denominator.
func NetScore(descs map[string]*metric.Descriptor, execs map[string]result.Execution) float64 {
	var total, weighted float64
	for _, name := range metric.SortedNames(descs) {
		w := descs[name].Weight
		total += w
		if e, ok := execs[name]; ok {
			weighted += w * Reduce(e.Value)
		}
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Aggregate builds the record for one task from its executions.
func Aggregate(t task.Task, descs map[string]*metric.Descriptor, execs []result.Execution) result.Score {
	byName := make(map[string]result.Execution, len(execs))
	for _, e := range execs {
		byName[e.Metric] = e
	}

	s := result.Score{
		Task:      t.Raw,
		Category:  t.Kind,
		Scores:    make(map[string]metric.Value, len(descs)),
		Latencies: make(map[string]float64, len(descs)),
	}
	for name := range descs {
		e, ok := byName[name]
		if !ok {
			s.Scores[name] = metric.Scalar(0)
			s.Latencies[name] = 0
			continue
		}
		s.Scores[name] = e.Value
		s.Latencies[name] = e.Latency.Seconds()
		if e.Failed() {
			if s.Failures == nil {
				s.Failures = make(map[string]result.Failure)
			}
			s.Failures[name] = e.Failure
		}
	}
	s.NetScore = NetScore(descs, byName)
	s.NetScoreLatency = wallClock(execs).Seconds()
	return s
}

// Empty is the zero record for a task whose line could not be parsed.
func Empty(raw string, descs map[string]*metric.Descriptor) result.Score {
	s := result.Score{
		Task:      raw,
		Scores:    make(map[string]metric.Value, len(descs)),
		Latencies: make(map[string]float64, len(descs)),
		Failure:   result.FailureMalformed,
	}
	for name := range descs {
		s.Scores[name] = metric.Scalar(0)
		s.Latencies[name] = 0
	}
	return s
}

// wallClock spans the earliest start to the latest finish.
func wallClock(execs []result.Execution) time.Duration {
	var first, last time.Time
	for _, e := range execs {
		if e.StartedAt.IsZero() {
			continue
		}
		end := e.StartedAt.Add(e.Latency)
		if first.IsZero() || e.StartedAt.Before(first) {
			first = e.StartedAt
		}
		if end.After(last) {
			last = end
		}
	}
	if first.IsZero() {
		return 0
	}
	return last.Sub(first)
}

// Summarize is the run-level score: the mean task net score, 0 for no tasks.
func Summarize(scores []result.Score) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.NetScore
	}
	return sum / float64(len(scores))
}
