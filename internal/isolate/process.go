package isolate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/signalnine/netscore/internal/metric"
)

// Process runs Command with the task appended as a child process.
type Process struct {
	Command []string
	Dir     string
}

func (p *Process) Evaluate(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	if len(p.Command) == 0 {
		return metric.Value{}, errors.New("process metric has no command")
	}
	args := append(append([]string{}, p.Command[1:]...), mc.Task.Raw)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), envPairs(Env(mc))...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return metric.Value{}, fmt.Errorf("running %s: %w", p.Command[0], ctx.Err())
		}
		if msg := tail(stderr.Bytes(), 512); msg != "" {
			return metric.Value{}, fmt.Errorf("running %s: %w: %s", p.Command[0], err, msg)
		}
		return metric.Value{}, fmt.Errorf("running %s: %w", p.Command[0], err)
	}
	if stderr.Len() > 0 {
		mc.Log().Debug("metric stderr", "task", mc.Task.Raw, "stderr", tail(stderr.Bytes(), 512))
	}

	v, err := metric.ParseValue(stdout.Bytes())
	if err != nil {
		return metric.Value{}, fmt.Errorf("reading output of %s: %w", p.Command[0], err)
	}
	return v, nil
}
