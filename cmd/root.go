package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/signalnine/netscore/internal/config"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "netscore.yaml"

var (
	cfgFile        string
	flagMetricsDir string
	flagLogFile    string
	flagLogLevel   int
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "netscore",
		Short:         "Score models, datasets and code repositories with pluggable metrics",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	root.PersistentFlags().StringVar(&flagMetricsDir, "metrics-dir", "", "directory of metric manifests (overrides config)")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "log destination (overrides LOG_FILE)")
	root.PersistentFlags().IntVar(&flagLogLevel, "log-level", -1, "0 silent, 1 info, 2 debug (overrides LOG_LEVEL)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}

// loadConfig layers the config file, the environment and the global flags.
// A missing default config file is not an error.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == defaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if flagMetricsDir != "" {
		cfg.MetricsDir = flagMetricsDir
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagLogLevel >= 0 {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}
