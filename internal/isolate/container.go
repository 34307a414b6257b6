package isolate

import (
	"context"
	"fmt"
	"time"

	"github.com/signalnine/netscore/internal/docker"
	"github.com/signalnine/netscore/internal/metric"
)

// Container runs the metric in a throwaway Docker container.
type Container struct {
	Image       string
	Command     []string
	CPULimit    float64
	MemoryLimit int64

	// run is replaced in tests.
	run func(context.Context, *docker.RunOpts) (*docker.RunResult, error)
}

func (c *Container) Evaluate(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	opts := &docker.RunOpts{
		Image:       c.Image,
		Command:     append(append([]string{}, c.Command...), mc.Task.Raw),
		Env:         Env(mc),
		CPULimit:    c.CPULimit,
		MemoryLimit: c.MemoryLimit,
		OutputTail:  "200",
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = time.Until(deadline)
	}

	run := c.run
	if run == nil {
		run = docker.RunContainer
	}
	res, err := run(ctx, opts)
	if err != nil {
		return metric.Value{}, fmt.Errorf("container %s: %w", c.Image, err)
	}
	if res.TimedOut {
		return metric.Value{}, fmt.Errorf("container %s: %w", c.Image, context.DeadlineExceeded)
	}
	if res.ExitCode != 0 {
		return metric.Value{}, fmt.Errorf("container %s exited with code %d: %s", c.Image, res.ExitCode, tail(res.Output, 512))
	}

	v, err := metric.ParseValue(res.Output)
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading output of %s: %w", c.Image, err)
	}
	return v, nil
}
