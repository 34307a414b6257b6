package scorers

import (
	"context"
	"time"

	"github.com/signalnine/netscore/internal/gh"
	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/task"
)

const defaultWindowDays = 30

// busFactorScore is 0 when nobody opened a pull request inside the window,
// otherwise 0.1 per distinct contributor, saturating at 10.
func busFactorScore(prs []gh.PullRequest, now time.Time, window time.Duration) float64 {
	cutoff := now.Add(-window)
	all := make(map[string]struct{})
	recent := make(map[string]struct{})
	for _, pr := range prs {
		if pr.Author == "" {
			continue
		}
		all[pr.Author] = struct{}{}
		if !pr.CreatedAt.Before(cutoff) {
			recent[pr.Author] = struct{}{}
		}
	}
	if len(recent) == 0 {
		return 0
	}
	return clamp01(0.1 * float64(len(all)))
}

func busFactor(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	if mc.Task.Kind != task.KindCode {
		mc.Log().Debug("bus factor needs a code repository", "kind", string(mc.Task.Kind))
		return metric.Scalar(0), nil
	}
	days, err := floatArg(mc, "window_days", defaultWindowDays)
	if err != nil {
		return metric.Value{}, err
	}
	r, err := repo(ctx, mc)
	if err != nil {
		return metric.Value{}, err
	}
	window := time.Duration(days * float64(24*time.Hour))
	score := busFactorScore(r.PullRequests, time.Now().UTC(), window)
	mc.Log().Debug("bus factor", "pull_requests", len(r.PullRequests), "score", score)
	return metric.Scalar(score), nil
}
