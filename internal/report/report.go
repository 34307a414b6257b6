package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/netscore/internal/aggregate"
	"github.com/signalnine/netscore/internal/result"
	"gopkg.in/yaml.v3"
)

type MetricSummary struct {
	Name         string  `json:"name" yaml:"name"`
	Weight       float64 `json:"weight" yaml:"weight"`
	Tasks        int     `json:"tasks" yaml:"tasks"`
	MeanScore    float64 `json:"mean_score" yaml:"mean_score"`
	Failures     int     `json:"failures" yaml:"failures"`
	MeanLatencyS float64 `json:"mean_latency_s" yaml:"mean_latency_s"`
	MaxLatencyS  float64 `json:"max_latency_s" yaml:"max_latency_s"`
}

type Summary struct {
	RunID     string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Tasks     int             `json:"tasks" yaml:"tasks"`
	Malformed int             `json:"malformed" yaml:"malformed"`
	NetScore  float64         `json:"net_score" yaml:"net_score"`
	Metrics   []MetricSummary `json:"metrics" yaml:"metrics"`
}

// Generate reads a stored run and writes a per-metric summary.
func Generate(runDir, format string, w io.Writer) error {
	scores, err := result.ReadScores(filepath.Join(runDir, result.ScoresFile))
	if err != nil {
		return err
	}
	meta, err := result.ReadRunMeta(filepath.Join(runDir, result.MetaFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	s := Summarize(scores, meta)
	switch format {
	case "markdown":
		return writeMarkdown(s, w)
	case "json":
		return writeJSON(s, w)
	case "yaml":
		return writeYAML(s, w)
	case "table", "":
		return writeTable(s, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Summarize folds task scores into one summary. meta may be nil.
func Summarize(scores []result.Score, meta *result.RunMeta) *Summary {
	type accum struct {
		count    int
		score    float64
		failures int
		latency  float64
		maxLat   float64
	}
	byMetric := map[string]*accum{}
	weights := map[string]float64{}
	s := &Summary{Tasks: len(scores), NetScore: aggregate.Summarize(scores)}
	if meta != nil {
		s.RunID = meta.ID
		for _, m := range meta.Metrics {
			weights[m.Name] = m.Weight
			byMetric[m.Name] = &accum{}
		}
	}

	for _, sc := range scores {
		if sc.Failure == result.FailureMalformed {
			s.Malformed++
			continue
		}
		for name, v := range sc.Scores {
			a, ok := byMetric[name]
			if !ok {
				a = &accum{}
				byMetric[name] = a
			}
			a.count++
			a.score += aggregate.Reduce(v)
			lat := sc.Latencies[name]
			a.latency += lat
			a.maxLat = math.Max(a.maxLat, lat)
			if _, failed := sc.Failures[name]; failed {
				a.failures++
			}
		}
	}

	for name, a := range byMetric {
		ms := MetricSummary{
			Name:        name,
			Weight:      weights[name],
			Tasks:       a.count,
			Failures:    a.failures,
			MaxLatencyS: a.maxLat,
		}
		if a.count > 0 {
			ms.MeanScore = a.score / float64(a.count)
			ms.MeanLatencyS = a.latency / float64(a.count)
		}
		s.Metrics = append(s.Metrics, ms)
	}
	sort.Slice(s.Metrics, func(i, j int) bool {
		return s.Metrics[i].Name < s.Metrics[j].Name
	})
	return s
}

func writeTable(s *Summary, w io.Writer) error {
	fmt.Fprintf(w, "Tasks: %d  Malformed: %d  Net score: %.3f\n\n", s.Tasks, s.Malformed, s.NetScore)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tWEIGHT\tTASKS\tMEAN SCORE\tFAILURES\tMEAN LATENCY\tMAX LATENCY")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, m := range s.Metrics {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%.3f\t%d\t%.3fs\t%.3fs\n",
			m.Name, m.Weight, m.Tasks, m.MeanScore, m.Failures, m.MeanLatencyS, m.MaxLatencyS)
	}
	return tw.Flush()
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintf(w, "**Tasks:** %d, **malformed:** %d, **net score:** %.3f\n\n", s.Tasks, s.Malformed, s.NetScore)
	fmt.Fprintln(w, "| Metric | Weight | Tasks | Mean Score | Failures | Mean Latency | Max Latency |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, m := range s.Metrics {
		fmt.Fprintf(w, "| %s | %.2f | %d | %.3f | %d | %.3fs | %.3fs |\n",
			m.Name, m.Weight, m.Tasks, m.MeanScore, m.Failures, m.MeanLatencyS, m.MaxLatencyS)
	}
	return nil
}

func writeJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func writeYAML(s *Summary, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding yaml report: %w", err)
	}
	return enc.Close()
}
