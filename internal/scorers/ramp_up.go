package scorers

import (
	"context"

	"github.com/signalnine/netscore/internal/metric"
)

const defaultTargetBytes = 4096

// rampUp rewards documentation: a README of target_bytes or more scores 1.
func rampUp(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	target, err := floatArg(mc, "target_bytes", defaultTargetBytes)
	if err != nil {
		return metric.Value{}, err
	}
	a, err := fetch(ctx, mc)
	if err != nil {
		return metric.Value{}, err
	}
	if target <= 0 {
		if a.readmeBytes > 0 {
			return metric.Scalar(1), nil
		}
		return metric.Scalar(0), nil
	}
	return metric.Scalar(clamp01(float64(a.readmeBytes) / target)), nil
}
