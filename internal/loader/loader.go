// Package loader discovers metric manifests in a directory and turns them
// into descriptors the engine can schedule.
//
// Each file <name>.hcl must declare a block metric "<name>". In-process
// metrics are resolved against the compiled registry; process and container
// metrics are bound to their isolated runners. A bad manifest is reported and
// skipped, never fatal.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/signalnine/netscore/internal/isolate"
	"github.com/signalnine/netscore/internal/metric"
)

const manifestExt = ".hcl"

// Load returns every valid metric found directly in dir. The map is never nil.
func Load(dir string, reg *metric.Registry, logger *slog.Logger) (map[string]*metric.Descriptor, []*LoadError) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	descs := make(map[string]*metric.Descriptor)

	paths, err := manifestPaths(dir)
	if err != nil {
		le := &LoadError{Path: dir, Kind: KindInvalid, Err: err}
		logger.Warn("cannot read metrics directory", "path", dir, "error", err)
		return descs, []*LoadError{le}
	}
	if len(paths) == 0 {
		logger.Warn("no metric manifests found", "path", dir)
		return descs, nil
	}

	parser := hclparse.NewParser()
	var errs []*LoadError
	for _, path := range paths {
		d, le := loadFile(parser, path, reg)
		if le != nil {
			logger.Warn("skipping metric", "path", le.Path, "metric", le.Name, "kind", string(le.Kind), "error", le.Err)
			errs = append(errs, le)
			continue
		}
		logger.Debug("loaded metric", "metric", d.Name, "weight", d.Weight, "isolation", string(d.Isolation))
		descs[d.Name] = d
	}

	logger.Info("metrics loaded", "count", len(descs), "skipped", len(errs))
	return descs, errs
}

func manifestPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading metrics directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != manifestExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func loadFile(parser *hclparse.Parser, path string, reg *metric.Registry) (*metric.Descriptor, *LoadError) {
	name := strings.TrimSuffix(filepath.Base(path), manifestExt)
	fail := func(kind ErrorKind, err error) *LoadError {
		return &LoadError{Path: path, Name: name, Kind: kind, Err: err}
	}

	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fail(KindSyntax, diags)
	}
	var root manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fail(KindSyntax, diags)
	}

	var m *manifest
	for _, candidate := range root.Metrics {
		if candidate.Name == name {
			m = candidate
			break
		}
	}
	if m == nil {
		return nil, fail(KindMissingMetric, fmt.Errorf("expected a metric %q block", name))
	}

	d, err := describe(m, path, reg)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, fail(KindInvalid, err)
	}
	return d, nil
}

func describe(m *manifest, path string, reg *metric.Registry) (*metric.Descriptor, error) {
	if m.Weight < 0 {
		return nil, fmt.Errorf("weight must be >= 0, got %g", m.Weight)
	}
	d := &metric.Descriptor{
		Name:      m.Name,
		Weight:    m.Weight,
		Isolation: metric.InProcess,
		Command:   m.Command,
		Source:    path,
	}
	if m.Isolation != nil {
		d.Isolation = metric.Isolation(*m.Isolation)
	}
	if m.Image != nil {
		d.Image = *m.Image
	}
	if m.Timeout != nil {
		timeout, err := time.ParseDuration(*m.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		d.Timeout = timeout
	}
	args, err := decodeArgs(m.Arguments)
	if err != nil {
		return nil, fmt.Errorf("decoding arguments: %w", err)
	}
	d.Args = args

	switch d.Isolation {
	case metric.InProcess:
		impl, ok := reg.Lookup(m.Name)
		if !ok {
			return nil, &LoadError{
				Path: path,
				Name: m.Name,
				Kind: KindNotRegistered,
				Err:  fmt.Errorf("no compiled metric named %q", m.Name),
			}
		}
		d.Metric = impl
	case metric.Process:
		if len(m.Command) == 0 || m.Command[0] == "" {
			return nil, errors.New("process metrics need a command")
		}
		d.Command = resolveCommand(m.Command, filepath.Dir(path))
		d.Metric = &isolate.Process{Command: d.Command, Dir: filepath.Dir(path)}
	case metric.Container:
		if d.Image == "" {
			return nil, errors.New("container metrics need an image")
		}
		c := &isolate.Container{Image: d.Image, Command: m.Command}
		if m.CPUs != nil {
			c.CPULimit = *m.CPUs
		}
		if m.MemoryMB != nil {
			c.MemoryLimit = *m.MemoryMB << 20
		}
		d.Metric = c
	default:
		return nil, fmt.Errorf("unknown isolation %q", d.Isolation)
	}
	return d, nil
}

// resolveCommand makes a relative executable path relative to the manifest.
func resolveCommand(cmd []string, dir string) []string {
	out := append([]string{}, cmd...)
	exe := out[0]
	if !filepath.IsAbs(exe) && strings.ContainsRune(exe, filepath.Separator) {
		out[0] = filepath.Join(dir, exe)
	}
	return out
}
