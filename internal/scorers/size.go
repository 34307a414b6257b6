package scorers

import (
	"context"
	"math"

	"github.com/signalnine/netscore/internal/metric"
)

const gib = 1 << 30

// platforms maps each deployment target to the artifact size, in bytes, at
// which it stops being usable.
var platforms = map[string]float64{
	"raspberry_pi": 1 * gib,
	"jetson_nano":  4 * gib,
	"desktop_pc":   16 * gib,
	"aws_server":   64 * gib,
}

func platformScores(size int64) map[string]float64 {
	out := make(map[string]float64, len(platforms))
	for name, limit := range platforms {
		out[name] = math.Round(clamp01(1-float64(size)/limit)*1000) / 1000
	}
	return out
}

func sizeScore(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	a, err := fetch(ctx, mc)
	if err != nil {
		return metric.Value{}, err
	}
	return metric.Composite(platformScores(a.sizeBytes)), nil
}
