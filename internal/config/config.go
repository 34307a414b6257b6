package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MetricsDir    string            `yaml:"metrics_dir"`
	LogFile       string            `yaml:"log_file"`
	LogLevel      int               `yaml:"log_level"`
	LogMaxSizeMB  int               `yaml:"log_max_size_mb"`
	Workers       int               `yaml:"workers"`
	MetricTimeout time.Duration     `yaml:"metric_timeout"`
	DrainTimeout  time.Duration     `yaml:"drain_timeout"`
	Args          map[string]string `yaml:"args"`
	Results       Results           `yaml:"results"`
	GitHub        GitHub            `yaml:"github"`
	HuggingFace   HuggingFace       `yaml:"huggingface"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type GitHub struct {
	// TokenEnv names the variable holding the token. The OS keyring is
	// consulted when it is unset.
	TokenEnv string `yaml:"token_env"`
	BaseURL  string `yaml:"base_url"`
}

type HuggingFace struct {
	TokenEnv string `yaml:"token_env"`
	BaseURL  string `yaml:"base_url"`
}

func Default() *Config {
	return &Config{
		MetricsDir:    "metrics",
		Workers:       4,
		MetricTimeout: 30 * time.Second,
		Args:          map[string]string{},
		Results:       Results{Dir: "results"},
		GitHub:        GitHub{TokenEnv: "GITHUB_TOKEN"},
		HuggingFace:   HuggingFace{TokenEnv: "HF_TOKEN", BaseURL: "https://huggingface.co"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, validate(cfg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the config from LOG_FILE, LOG_LEVEL and NETSCORE_WORKERS.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		c.LogLevel = n
	}
	if v := getenv("NETSCORE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NETSCORE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return validate(c)
}

func validate(cfg *Config) error {
	if cfg.MetricsDir == "" {
		return fmt.Errorf("metrics_dir is required")
	}
	if cfg.LogLevel < 0 {
		return fmt.Errorf("log_level must be >= 0")
	}
	if cfg.LogMaxSizeMB < 0 {
		return fmt.Errorf("log_max_size_mb must be >= 0")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if cfg.MetricTimeout <= 0 {
		return fmt.Errorf("metric_timeout must be positive")
	}
	if cfg.DrainTimeout < 0 {
		return fmt.Errorf("drain_timeout must not be negative")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Args == nil {
		cfg.Args = map[string]string{}
	}
	return nil
}
