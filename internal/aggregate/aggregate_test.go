package aggregate_test

import (
	"math"
	"testing"
	"time"

	"github.com/signalnine/netscore/internal/aggregate"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/task"
	"github.com/stretchr/testify/assert"
)

func absf(f float64) float64 { return math.Abs(f) }

func descs(weights map[string]float64) map[string]*metric.Descriptor {
	out := make(map[string]*metric.Descriptor, len(weights))
	for name, w := range weights {
		out[name] = &metric.Descriptor{Name: name, Weight: w}
	}
	return out
}

func TestParseKeys(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"key1", []string{"key1"}},
		{"key1,key2,key3", []string{"key1", "key2", "key3"}},
		{" key1 , key2 ", []string{"key1", "key2"}},
		{"a,b,", []string{"a", "b", ""}},
		{",,,,", []string{"", "", "", "", ""}},
		{" , ", []string{"", ""}},
		{"a,,b", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregate.ParseKeys(tt.in))
		})
	}
}

func TestReduce(t *testing.T) {
	assert.Equal(t, 0.4, aggregate.Reduce(metric.Scalar(0.4)))
	assert.Equal(t, 0.5, aggregate.Reduce(metric.Composite(map[string]float64{"a": 0, "b": 1})))
	assert.Equal(t, 0.0, aggregate.Reduce(metric.Composite(nil)))
}

func TestNetScoreWeighted(t *testing.T) {
	d := descs(map[string]float64{"tests": 0.5, "lint": 0.2, "rubric": 0.3})
	execs := map[string]result.Execution{
		"tests":  {Metric: "tests", Value: metric.Scalar(0.9)},
		"lint":   {Metric: "lint", Value: metric.Scalar(0.8)},
		"rubric": {Metric: "rubric", Value: metric.Scalar(0.7)},
	}
	got := aggregate.NetScore(d, execs)
	if absf(got-0.82) > 0.001 {
		t.Errorf("got %f, want 0.82", got)
	}
}

func TestNetScoreMissingMetricKeepsWeight(t *testing.T) {
	d := descs(map[string]float64{"a": 0.5, "b": 0.5})
	execs := map[string]result.Execution{"a": {Metric: "a", Value: metric.Scalar(1)}}
	assert.InDelta(t, 0.5, aggregate.NetScore(d, execs), 1e-9)
}

func TestNetScoreZeroWeights(t *testing.T) {
	d := descs(map[string]float64{"a": 0})
	execs := map[string]result.Execution{"a": {Metric: "a", Value: metric.Scalar(1)}}
	assert.Equal(t, 0.0, aggregate.NetScore(d, execs))
	assert.Equal(t, 0.0, aggregate.NetScore(nil, nil))
}

func TestAggregate(t *testing.T) {
	d := descs(map[string]float64{"license": 0.5, "size_score": 0.25, "bus_factor": 0.25})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := task.Task{Raw: "https://github.com/a/b", Kind: task.KindCode}
	execs := []result.Execution{
		{Metric: "license", Value: metric.Scalar(1), Weight: 0.5, StartedAt: start, Latency: 2 * time.Second},
		{Metric: "size_score", Value: metric.Composite(map[string]float64{"pi": 0.5, "pc": 1}), Weight: 0.25,
			StartedAt: start.Add(time.Second), Latency: 3 * time.Second},
		{Metric: "bus_factor", Value: metric.Scalar(0), Weight: 0.25, Failure: result.FailureMetric,
			StartedAt: start, Latency: 500 * time.Millisecond},
	}

	s := aggregate.Aggregate(tk, d, execs)
	assert.Equal(t, tk.Raw, s.Task)
	assert.Equal(t, task.KindCode, s.Category)
	assert.InDelta(t, 0.5*1+0.25*0.75, s.NetScore, 1e-9)
	assert.InDelta(t, 4.0, s.NetScoreLatency, 1e-9)
	assert.Equal(t, 2.0, s.Latencies["license"])
	assert.Len(t, s.Scores, 3)
}

func TestAggregateAllFailed(t *testing.T) {
	d := descs(map[string]float64{"a": 0.5, "b": 0.5})
	execs := []result.Execution{
		{Metric: "a", Value: metric.Scalar(0), Failure: result.FailureMetric},
		{Metric: "b", Value: metric.Scalar(0), Failure: result.FailureTimeout},
	}
	s := aggregate.Aggregate(task.Task{Raw: "x"}, d, execs)
	assert.Equal(t, 0.0, s.NetScore)
	assert.Equal(t, 0.0, s.NetScoreLatency)
	assert.Equal(t, map[string]result.Failure{"a": result.FailureMetric, "b": result.FailureTimeout}, s.Failures)
}

func TestAggregateMissingExecution(t *testing.T) {
	d := descs(map[string]float64{"a": 1})
	s := aggregate.Aggregate(task.Task{Raw: "x"}, d, nil)
	assert.Equal(t, 0.0, s.NetScore)
	assert.Equal(t, 0.0, s.Scores["a"].Float())
}

func TestEmpty(t *testing.T) {
	s := aggregate.Empty("not-a-url", descs(map[string]float64{"a": 1}))
	assert.Equal(t, "not-a-url", s.Task)
	assert.Equal(t, 0.0, s.NetScore)
	assert.Equal(t, result.FailureMalformed, s.Failure)
	assert.Contains(t, s.Scores, "a")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, 0.0, aggregate.Summarize(nil))
	assert.InDelta(t, 0.5, aggregate.Summarize([]result.Score{{NetScore: 1}, {NetScore: 0}}), 1e-9)
}
