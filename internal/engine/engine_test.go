package engine_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalnine/netscore/internal/engine"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/task"
	"github.com/signalnine/netscore/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeURL    = "https://github.com/acme/widget"
	modelURL   = "https://huggingface.co/google/gemma-2b"
	datasetURL = "https://huggingface.co/datasets/stanfordnlp/imdb"
)

type fixture struct {
	reg        *metric.Registry
	metricsDir string
	dir        string
}

func newFixture(t *testing.T, weights map[string]float64) *fixture {
	t.Helper()
	f := &fixture{reg: metric.NewRegistry(), dir: t.TempDir()}
	f.metricsDir = filepath.Join(f.dir, "metrics")
	require.NoError(t, os.Mkdir(f.metricsDir, 0o755))
	for name, w := range weights {
		body := fmt.Sprintf("metric %q {\n  weight = %g\n}\n", name, w)
		require.NoError(t, os.WriteFile(filepath.Join(f.metricsDir, name+".hcl"), []byte(body), 0o644))
	}
	return f
}

func (f *fixture) register(name string, fn metric.Func) {
	f.reg.Register(name, fn)
}

func (f *fixture) tasks(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(f.dir, "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func (f *fixture) options() engine.Options {
	return engine.Options{
		MetricsDir:    f.metricsDir,
		LogFile:       filepath.Join(f.dir, "netscore.log"),
		LogLevel:      2,
		Workers:       4,
		MetricTimeout: 5 * time.Second,
	}
}

func constant(v float64) metric.Func {
	return func(context.Context, *metric.Context) (metric.Value, error) {
		return metric.Scalar(v), nil
	}
}

func standardFixture(t *testing.T) *fixture {
	f := newFixture(t, map[string]float64{"license": 0.5, "ramp_up_time": 0.25, "size_score": 0.25})
	f.register("license", constant(1))
	f.register("ramp_up_time", func(_ context.Context, mc *metric.Context) (metric.Value, error) {
		if mc.Task.Kind == task.KindCode {
			return metric.Scalar(0.5), nil
		}
		return metric.Scalar(1), nil
	})
	f.register("size_score", func(context.Context, *metric.Context) (metric.Value, error) {
		return metric.Composite(map[string]float64{"raspberry_pi": 0, "desktop_pc": 1}), nil
	})
	return f
}

func TestRunOneScorePerLine(t *testing.T) {
	f := standardFixture(t)
	path := f.tasks(t, codeURL, "", modelURL, "   ", datasetURL, modelURL)

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, rep.LogErr)
	require.Len(t, rep.Scores, 4)
	assert.Empty(t, rep.LoadErrors)
	assert.Len(t, rep.Metrics, 3)

	assert.Equal(t, []int{1, 3, 5, 6}, []int{rep.Scores[0].Line, rep.Scores[1].Line, rep.Scores[2].Line, rep.Scores[3].Line})
	assert.Equal(t, codeURL, rep.Scores[0].Task)
	assert.Equal(t, task.KindCode, rep.Scores[0].Category)
	assert.Equal(t, task.KindDataset, rep.Scores[2].Category)

	// 0.5*1 + 0.25*0.5 + 0.25*mean(0,1)
	assert.InDelta(t, 0.75, rep.Scores[0].NetScore, 1e-9)
	// 0.5*1 + 0.25*1 + 0.25*0.5
	assert.InDelta(t, 0.875, rep.Scores[1].NetScore, 1e-9)
	assert.Equal(t, rep.Scores[1].NetScore, rep.Scores[3].NetScore)
	assert.InDelta(t, (0.75+0.875*3)/4, rep.NetScore, 1e-9)

	size := rep.Scores[0].Scores["size_score"]
	assert.Equal(t, metric.KindComposite, size.Kind())
	for _, s := range rep.Scores {
		assert.Len(t, s.Latencies, 3)
		assert.GreaterOrEqual(t, s.NetScoreLatency, 0.0)
	}
}

func TestRunMalformedLine(t *testing.T) {
	f := standardFixture(t)
	path := f.tasks(t, "not a url", codeURL, "https://example.com/foo/bar")

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Scores, 3)

	for _, i := range []int{0, 2} {
		s := rep.Scores[i]
		assert.Equal(t, result.FailureMalformed, s.Failure)
		assert.Zero(t, s.NetScore)
		assert.Len(t, s.Scores, 3)
	}
	assert.Equal(t, "not a url", rep.Scores[0].Task)
	assert.Greater(t, rep.Scores[1].NetScore, 0.0)

	log, err := os.ReadFile(f.options().LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(log), "malformed task line")
}

func TestRunEmptyTaskFile(t *testing.T) {
	f := standardFixture(t)
	path := f.tasks(t)

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, rep.Scores)
	assert.Zero(t, rep.NetScore)
}

func TestRunNoMetrics(t *testing.T) {
	f := newFixture(t, nil)
	path := f.tasks(t, codeURL, modelURL)

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Scores, 2)
	for _, s := range rep.Scores {
		assert.Zero(t, s.NetScore)
		assert.Empty(t, s.Scores)
	}
}

func TestRunMissingTaskFile(t *testing.T) {
	f := standardFixture(t)
	_, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), filepath.Join(f.dir, "nope.txt"))
	assert.Error(t, err)
}

func TestRunFailingMetrics(t *testing.T) {
	f := newFixture(t, map[string]float64{"license": 0.5, "bus_factor": 0.3, "crashy": 0.2})
	f.register("license", constant(0.8))
	f.register("bus_factor", func(context.Context, *metric.Context) (metric.Value, error) {
		return metric.Value{}, errors.New("github api returned 502")
	})
	f.register("crashy", func(context.Context, *metric.Context) (metric.Value, error) {
		panic("index out of range")
	})
	path := f.tasks(t, codeURL)

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rep.Scores, 1)
	s := rep.Scores[0]
	assert.InDelta(t, 0.4, s.NetScore, 1e-9)
	assert.Zero(t, s.Scores["bus_factor"].Float())
	assert.Zero(t, s.Scores["crashy"].Float())
	assert.Equal(t, map[string]result.Failure{"bus_factor": result.FailureMetric, "crashy": result.FailurePanic}, s.Failures)

	log, err := os.ReadFile(f.options().LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(log), "github api returned 502")
	assert.Contains(t, string(log), "metric=bus_factor")
	assert.Contains(t, string(log), "metric=crashy")
}

func TestRunAllMetricsFail(t *testing.T) {
	f := newFixture(t, map[string]float64{"a": 1, "b": 1})
	boom := metric.Func(func(context.Context, *metric.Context) (metric.Value, error) {
		return metric.Value{}, errors.New("boom")
	})
	f.register("a", boom)
	f.register("b", boom)

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), f.tasks(t, codeURL, modelURL))
	require.NoError(t, err)
	require.Len(t, rep.Scores, 2)
	for _, s := range rep.Scores {
		assert.Zero(t, s.NetScore)
	}
}

func TestRunSkipsInvalidManifests(t *testing.T) {
	f := standardFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.metricsDir, "broken.hcl"), []byte("metric \"broken\" {"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.metricsDir, "unknown.hcl"), []byte("metric \"unknown\" {\n  weight = 1\n}\n"), 0o644))

	rep, err := engine.New(f.reg, nil, f.options()).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.Len(t, rep.LoadErrors, 2)
	assert.Len(t, rep.Metrics, 3)
	assert.InDelta(t, 0.75, rep.Scores[0].NetScore, 1e-9)
}

func TestRunIdempotent(t *testing.T) {
	f := standardFixture(t)
	path := f.tasks(t, codeURL, modelURL, "garbage", datasetURL)
	eng := engine.New(f.reg, nil, f.options())

	first, err := eng.Run(context.Background(), path)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, second.Scores, len(first.Scores))
	assert.NotEqual(t, first.RunID, second.RunID)
	for i := range first.Scores {
		a, b := first.Scores[i], second.Scores[i]
		assert.Equal(t, a.NetScore, b.NetScore)
		assert.Equal(t, a.Scores, b.Scores)
		assert.Equal(t, a.Task, b.Task)
		assert.Equal(t, a.Failure, b.Failure)
	}
}

func TestRunMetricTimeout(t *testing.T) {
	f := newFixture(t, map[string]float64{"fast": 0.5, "slow": 0.5})
	f.register("fast", constant(1))
	f.register("slow", func(ctx context.Context, _ *metric.Context) (metric.Value, error) {
		<-ctx.Done()
		return metric.Value{}, ctx.Err()
	})
	opts := f.options()
	opts.MetricTimeout = 50 * time.Millisecond

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rep.Scores[0].NetScore, 1e-9)
}

func TestRunDrainTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	f := newFixture(t, map[string]float64{"fast": 0.5, "stuck": 0.5})
	f.register("fast", constant(1))
	f.register("stuck", func(context.Context, *metric.Context) (metric.Value, error) {
		<-release
		return metric.Scalar(1), nil
	})
	opts := f.options()
	opts.MetricTimeout = time.Hour
	opts.DrainTimeout = 100 * time.Millisecond
	collector := telemetry.NewCollector()
	opts.Telemetry = collector

	start := time.Now()
	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.InDelta(t, 0.5, rep.Scores[0].NetScore, 1e-9)
	assert.Zero(t, rep.Scores[0].Scores["stuck"].Float())
	assert.Equal(t, 2, testutil.CollectAndCount(collector.Registry(), "netscore_metric_executions_total"))
}

func TestRunBoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	f := newFixture(t, map[string]float64{"a": 1, "b": 1, "c": 1})
	slow := metric.Func(func(context.Context, *metric.Context) (metric.Value, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return metric.Scalar(1), nil
	})
	f.register("a", slow)
	f.register("b", slow)
	f.register("c", slow)
	opts := f.options()
	opts.Workers = 2

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL, modelURL, datasetURL, codeURL))
	require.NoError(t, err)
	assert.Len(t, rep.Scores, 4)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunPassesArgs(t *testing.T) {
	f := newFixture(t, map[string]float64{"license": 1})
	var got atomic.Value
	f.register("license", func(_ context.Context, mc *metric.Context) (metric.Value, error) {
		got.Store(mc.Arg("allowed", ""))
		return metric.Scalar(1), nil
	})
	opts := f.options()
	opts.Args = map[string]string{"allowed": "mit"}

	_, err := engine.New(f.reg, &metric.Env{Args: map[string]string{"allowed": "gpl"}}, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.Equal(t, "mit", got.Load())
}

func TestRunTelemetry(t *testing.T) {
	f := standardFixture(t)
	opts := f.options()
	opts.Telemetry = telemetry.NewCollector()

	_, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL, modelURL, "junk"))
	require.NoError(t, err)
	assert.Equal(t, 3, testutil.CollectAndCount(opts.Telemetry.Registry(), "netscore_metric_executions_total"))
	assert.Equal(t, 3, testutil.CollectAndCount(opts.Telemetry.Registry(), "netscore_tasks_total"))
}

func TestRunLogFileUnavailable(t *testing.T) {
	f := standardFixture(t)
	opts := f.options()
	blocker := filepath.Join(f.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	opts.LogFile = filepath.Join(blocker, "netscore.log")

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.Len(t, rep.Scores, 1)
	assert.Error(t, rep.LogErr)
}

func TestSelect(t *testing.T) {
	descs := map[string]*metric.Descriptor{
		"license":      {Name: "license"},
		"size_score":   {Name: "size_score"},
		"size_extra":   {Name: "size_extra"},
		"ramp_up_time": {Name: "ramp_up_time"},
	}
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"no patterns keeps all", nil, []string{"license", "ramp_up_time", "size_extra", "size_score"}},
		{"exact", []string{"license"}, []string{"license"}},
		{"prefix", []string{"size_*"}, []string{"size_extra", "size_score"}},
		{"mixed", []string{"license", "ramp*"}, []string{"license", "ramp_up_time"}},
		{"no match", []string{"bus_factor"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, metric.SortedNames(engine.Select(descs, tt.patterns)))
		})
	}
}

func TestRunOnly(t *testing.T) {
	f := standardFixture(t)
	opts := f.options()
	opts.Only = []string{"license"}

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	assert.Len(t, rep.Metrics, 1)
	assert.Equal(t, 1.0, rep.Scores[0].NetScore)
}

func TestRunManifestTimeoutOutlastsMetricTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits past the drain grace period")
	}
	f := newFixture(t, map[string]float64{"fast": 0.5})
	body := "metric \"slow\" {\n  weight  = 0.5\n  timeout = \"20s\"\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.metricsDir, "slow.hcl"), []byte(body), 0o644))
	f.register("fast", constant(1))
	f.register("slow", func(ctx context.Context, _ *metric.Context) (metric.Value, error) {
		select {
		case <-time.After(5500 * time.Millisecond):
			return metric.Scalar(1), nil
		case <-ctx.Done():
			return metric.Value{}, ctx.Err()
		}
	})
	opts := f.options()
	opts.MetricTimeout = 100 * time.Millisecond

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL))
	require.NoError(t, err)
	s := rep.Scores[0]
	assert.Empty(t, s.Failures)
	assert.Equal(t, 1.0, s.Scores["slow"].Float())
	assert.InDelta(t, 1.0, s.NetScore, 1e-9)
}

func TestRunStartsNothingAfterDrainGivesUp(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	f := newFixture(t, map[string]float64{"blocked": 1})
	f.register("blocked", func(context.Context, *metric.Context) (metric.Value, error) {
		calls.Add(1)
		<-release
		return metric.Scalar(1), nil
	})
	opts := f.options()
	opts.Workers = 1
	opts.MetricTimeout = time.Hour
	opts.DrainTimeout = 100 * time.Millisecond

	rep, err := engine.New(f.reg, nil, opts).Run(context.Background(), f.tasks(t, codeURL, modelURL, datasetURL))
	require.NoError(t, err)
	atReturn := calls.Load()

	close(release)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), atReturn)
	assert.Equal(t, atReturn, calls.Load())
	require.Len(t, rep.Scores, 3)
	for _, s := range rep.Scores {
		assert.Equal(t, result.FailureTimeout, s.Failures["blocked"])
	}
}
