package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/netscore/internal/config"
	"github.com/signalnine/netscore/internal/engine"
	"github.com/signalnine/netscore/internal/gh"
	"github.com/signalnine/netscore/internal/gitops"
	"github.com/signalnine/netscore/internal/hf"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/result"
	"github.com/signalnine/netscore/internal/scorers"
	"github.com/signalnine/netscore/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	flagWorkers     int
	flagOutput      string
	flagMetricsFile string
	flagOnly        []string
	flagNoStore     bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run TASKS_FILE",
		Short: "Score every URL in a newline-delimited task file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScoring,
	}
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "max concurrent metric workers (overrides config)")
	cmd.Flags().StringVar(&flagOutput, "format", "ndjson", "output format (ndjson, table)")
	cmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().StringSliceVar(&flagOnly, "only", nil, "run only these metrics (name or prefix*)")
	cmd.Flags().BoolVar(&flagNoStore, "no-store", false, "do not write the run to the results directory")
	return cmd
}

func runScoring(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagOutput != "ndjson" && flagOutput != "table" {
		return fmt.Errorf("unknown format %q", flagOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, cleanup, err := buildEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	reg := metric.NewRegistry()
	scorers.Register(reg)
	collector := telemetry.NewCollector()

	eng := engine.New(reg, env, engine.Options{
		MetricsDir:    cfg.MetricsDir,
		LogFile:       cfg.LogFile,
		LogLevel:      cfg.LogLevel,
		LogMaxSizeMB:  cfg.LogMaxSizeMB,
		Workers:       cfg.Workers,
		MetricTimeout: cfg.MetricTimeout,
		DrainTimeout:  cfg.DrainTimeout,
		Args:          cfg.Args,
		Only:          flagOnly,
		Telemetry:     collector,
	})
	rep, err := eng.Run(ctx, args[0])
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, le := range rep.LoadErrors {
		fmt.Fprintf(stderr, "warning: %v\n", le)
	}
	if rep.LogErr != nil {
		fmt.Fprintf(stderr, "warning: log file unavailable: %v\n", rep.LogErr)
	}

	out := cmd.OutOrStdout()
	if flagOutput == "table" {
		err = writeScoreTable(out, rep.Scores)
	} else {
		err = writeNDJSON(out, rep.Scores)
	}
	if err != nil {
		return err
	}

	if !flagNoStore {
		runDir, err := storeRun(cfg.Results.Dir, args[0], rep)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Run directory: %s\n", runDir)
	}
	if flagMetricsFile != "" {
		if err := collector.WriteTextfile(flagMetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func buildEnv(ctx context.Context, cfg *config.Config) (*metric.Env, func(), error) {
	ghClient, err := gh.NewClient(ctx, gh.Token(cfg.GitHub.TokenEnv), cfg.GitHub.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	checkouts, err := gitops.NewCheckouts("")
	if err != nil {
		return nil, nil, err
	}
	var hfToken string
	if cfg.HuggingFace.TokenEnv != "" {
		hfToken = strings.TrimSpace(os.Getenv(cfg.HuggingFace.TokenEnv))
	}
	hfClient := hf.NewClient(cfg.HuggingFace.BaseURL, hfToken)
	env := &metric.Env{
		GitHub:      gh.NewCache(ghClient),
		HuggingFace: hf.NewCache(hfClient),
		Checkouts:   checkouts,
	}
	return env, func() { checkouts.Close() }, nil
}

func writeNDJSON(w io.Writer, scores []result.Score) error {
	enc := json.NewEncoder(w)
	for i := range scores {
		if err := enc.Encode(&scores[i]); err != nil {
			return fmt.Errorf("encoding %s: %w", scores[i].Task, err)
		}
	}
	return nil
}

func writeScoreTable(w io.Writer, scores []result.Score) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tNAME\tCATEGORY\tNET SCORE\tLATENCY\tFAILED")
	for _, s := range scores {
		category := string(s.Category)
		if s.Failure == result.FailureMalformed {
			category = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3fs\t%d\n",
			s.Line, s.Task, category, s.NetScore, s.NetScoreLatency, len(s.Failures))
	}
	return tw.Flush()
}

func storeRun(baseDir, tasksPath string, rep *engine.Report) (string, error) {
	runDir, err := result.CreateRunDir(baseDir, rep.RunID)
	if err != nil {
		return "", err
	}
	if err := result.WriteScores(runDir, rep.Scores); err != nil {
		return "", err
	}
	if err := result.WriteRunMeta(runDir, runMeta(tasksPath, rep)); err != nil {
		return "", err
	}
	return runDir, nil
}

func runMeta(tasksPath string, rep *engine.Report) *result.RunMeta {
	meta := &result.RunMeta{
		ID:        rep.RunID,
		StartedAt: rep.StartedAt,
		DurationS: rep.Duration.Seconds(),
		TaskFile:  tasksPath,
		Tasks:     len(rep.Scores),
		NetScore:  rep.NetScore,
	}
	for _, name := range metric.SortedNames(rep.Metrics) {
		d := rep.Metrics[name]
		meta.Metrics = append(meta.Metrics, result.MetricMeta{
			Name:      d.Name,
			Weight:    d.Weight,
			Isolation: d.Isolation,
			Source:    d.Source,
		})
	}
	for _, le := range rep.LoadErrors {
		meta.LoadErrors = append(meta.LoadErrors, le.Error())
	}
	return meta
}
