// Package metric defines the scoring capability every metric implements and
// the read-only descriptors the engine schedules.
package metric

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/signalnine/netscore/internal/gh"
	"github.com/signalnine/netscore/internal/gitops"
	"github.com/signalnine/netscore/internal/hf"
	"github.com/signalnine/netscore/internal/task"
)

type Metric interface {
	Evaluate(ctx context.Context, mc *Context) (Value, error)
}

// Func adapts an ordinary function to the Metric interface.
type Func func(ctx context.Context, mc *Context) (Value, error)

func (f Func) Evaluate(ctx context.Context, mc *Context) (Value, error) {
	return f(ctx, mc)
}

type Isolation string

const (
	InProcess Isolation = "inprocess"
	Process   Isolation = "process"
	Container Isolation = "container"
)

// Descriptor is a loaded metric. It is built once per run and shared
// read-only by every worker; Args must not be modified after loading.
type Descriptor struct {
	Name      string
	Weight    float64
	Timeout   time.Duration
	Isolation Isolation
	Command   []string
	Image     string
	Args      map[string]string
	Source    string
	Metric    Metric
}

// Env holds the run-wide collaborators handed to every metric.
type Env struct {
	GitHub      gh.Source
	HuggingFace hf.Source
	Checkouts   gitops.Source
	Args        map[string]string
}

// Context is the per-invocation input of a metric.
type Context struct {
	Task   task.Task
	Args   map[string]string
	Env    *Env
	Logger *slog.Logger
}

// Arg returns the named argument or def when it is unset.
func (mc *Context) Arg(name, def string) string {
	if v, ok := mc.Args[name]; ok {
		return v
	}
	return def
}

// Log returns the invocation logger, or one that discards when unset.
func (mc *Context) Log() *slog.Logger {
	if mc.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return mc.Logger
}

// MergeArgs overlays the descriptor arguments on the run-level ones into a new map.
func MergeArgs(run, own map[string]string) map[string]string {
	out := make(map[string]string, len(run)+len(own))
	for k, v := range run {
		out[k] = v
	}
	for k, v := range own {
		out[k] = v
	}
	return out
}

// Registry maps metric names to their compiled implementations.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

func (r *Registry) Register(name string, m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[name]; exists {
		panic(fmt.Sprintf("metric %q already registered", name))
	}
	r.metrics[name] = m
}

func (r *Registry) Lookup(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedNames returns the keys of a descriptor set in a stable order.
func SortedNames(set map[string]*Descriptor) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
