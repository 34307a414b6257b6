package scorers

import (
	"context"
	"strings"

	"github.com/signalnine/netscore/internal/aggregate"
	"github.com/signalnine/netscore/internal/metric"
)

// defaultAllowed lists licences compatible with LGPL-2.1 redistribution.
const defaultAllowed = "mit,apache-2.0,bsd-2-clause,bsd-3-clause,lgpl-2.1,lgpl-3.0,isc,mpl-2.0,cc0-1.0,unlicense"

func license(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	a, err := fetch(ctx, mc)
	if err != nil {
		return metric.Value{}, err
	}
	id := strings.ToLower(strings.TrimSpace(a.license))
	if id == "" || id == "noassertion" {
		return metric.Scalar(0), nil
	}
	for _, allowed := range aggregate.ParseKeys(mc.Arg("allowed", defaultAllowed)) {
		if allowed != "" && strings.EqualFold(allowed, id) {
			return metric.Scalar(1), nil
		}
	}
	return metric.Scalar(0), nil
}
