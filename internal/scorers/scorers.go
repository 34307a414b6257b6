// Package scorers holds the compiled metrics shipped with netscore. Each is
// registered under the name its manifest must use.
package scorers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/signalnine/netscore/internal/gh"
	"github.com/signalnine/netscore/internal/hf"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/task"
)

const (
	BusFactor      = "bus_factor"
	License        = "license"
	Size           = "size_score"
	RampUp         = "ramp_up_time"
	DatasetAndCode = "dataset_and_code_score"
	CodeQuality    = "code_quality"
)

var ErrNoSource = errors.New("data source not configured")

// Register adds every built-in metric to reg.
func Register(reg *metric.Registry) {
	reg.Register(BusFactor, metric.Func(busFactor))
	reg.Register(License, metric.Func(license))
	reg.Register(Size, metric.Func(sizeScore))
	reg.Register(RampUp, metric.Func(rampUp))
	reg.Register(DatasetAndCode, metric.Func(datasetAndCode))
	reg.Register(CodeQuality, metric.Func(codeQuality))
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func floatArg(mc *metric.Context, name string, def float64) (float64, error) {
	raw := mc.Arg(name, "")
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("argument %s: %q is not a finite number", name, raw)
	}
	return f, nil
}

func repo(ctx context.Context, mc *metric.Context) (*gh.Repo, error) {
	if mc.Env == nil || mc.Env.GitHub == nil {
		return nil, fmt.Errorf("github: %w", ErrNoSource)
	}
	return mc.Env.GitHub.Repo(ctx, mc.Task.Owner, mc.Task.Name)
}

func hub(mc *metric.Context) (hf.Source, error) {
	if mc.Env == nil || mc.Env.HuggingFace == nil {
		return nil, fmt.Errorf("huggingface: %w", ErrNoSource)
	}
	return mc.Env.HuggingFace, nil
}

// artifact is the provider-neutral view the scorers share.
type artifact struct {
	license     string
	sizeBytes   int64
	readmeBytes int64
	description string
	datasets    []string
	files       []string
}

func fetch(ctx context.Context, mc *metric.Context) (*artifact, error) {
	switch mc.Task.Kind {
	case task.KindCode:
		r, err := repo(ctx, mc)
		if err != nil {
			return nil, err
		}
		return &artifact{
			license:     r.License,
			sizeBytes:   int64(r.SizeKB) * 1024,
			readmeBytes: int64(r.ReadmeBytes),
			description: r.Description,
		}, nil
	case task.KindModel:
		src, err := hub(mc)
		if err != nil {
			return nil, err
		}
		m, err := src.Model(ctx, mc.Task.ID())
		if err != nil {
			return nil, err
		}
		size := m.UsedStorage
		if size == 0 {
			size = totalSize(m.Siblings)
		}
		return &artifact{
			license:     m.License(),
			sizeBytes:   size,
			readmeBytes: m.ReadmeBytes(),
			datasets:    m.CardData.Datasets,
			files:       filenames(m.Siblings),
		}, nil
	case task.KindDataset:
		src, err := hub(mc)
		if err != nil {
			return nil, err
		}
		d, err := src.Dataset(ctx, mc.Task.ID())
		if err != nil {
			return nil, err
		}
		return &artifact{
			license:     d.License(),
			sizeBytes:   totalSize(d.Siblings),
			readmeBytes: d.ReadmeBytes(),
			description: d.Description,
			files:       filenames(d.Siblings),
		}, nil
	}
	return nil, fmt.Errorf("unsupported task kind %q", mc.Task.Kind)
}

func totalSize(siblings []hf.Sibling) int64 {
	var n int64
	for _, s := range siblings {
		n += s.Size
	}
	return n
}

func filenames(siblings []hf.Sibling) []string {
	out := make([]string, 0, len(siblings))
	for _, s := range siblings {
		out = append(out, s.Filename)
	}
	return out
}
