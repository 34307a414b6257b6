package result

import (
	"time"

	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/task"
)

type Failure string

const (
	FailureMetric    Failure = "metric_error"
	FailurePanic     Failure = "panic"
	FailureTimeout   Failure = "timeout"
	FailureMalformed Failure = "malformed_task"
)

// Execution is the outcome of running one metric against one task. Exactly
// one is produced per (task, metric) pair.
type Execution struct {
	Seq       int           `json:"-"`
	Task      string        `json:"task"`
	Metric    string        `json:"metric"`
	Value     metric.Value  `json:"score"`
	Latency   time.Duration `json:"latency"`
	Weight    float64       `json:"weight"`
	StartedAt time.Time     `json:"started_at"`
	Failure   Failure       `json:"failure,omitempty"`
	Err       string        `json:"error,omitempty"`
}

func (e *Execution) Failed() bool { return e.Failure != "" }

// Score is the aggregated record for one task. Latencies are in seconds.
type Score struct {
	Line            int                     `json:"line,omitempty"`
	Task            string                  `json:"name"`
	Category        task.Kind               `json:"category,omitempty"`
	NetScore        float64                 `json:"net_score"`
	NetScoreLatency float64                 `json:"net_score_latency"`
	Scores          map[string]metric.Value `json:"scores"`
	Latencies       map[string]float64      `json:"latencies"`
	Failure         Failure                 `json:"failure,omitempty"`

	// Failures tags the metrics whose score is a substituted zero.
	Failures map[string]Failure `json:"failures,omitempty"`
}

type MetricMeta struct {
	Name      string           `json:"name"`
	Weight    float64          `json:"weight"`
	Isolation metric.Isolation `json:"isolation"`
	Source    string           `json:"source"`
}

type RunMeta struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	DurationS  float64      `json:"duration_s"`
	TaskFile   string       `json:"task_file"`
	Tasks      int          `json:"tasks"`
	NetScore   float64      `json:"net_score"`
	Metrics    []MetricMeta `json:"metrics"`
	LoadErrors []string     `json:"load_errors,omitempty"`
}
