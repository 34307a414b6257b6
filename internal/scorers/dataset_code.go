package scorers

import (
	"context"
	"path"
	"strings"

	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/task"
)

var codeExts = map[string]bool{".py": true, ".ipynb": true, ".sh": true, ".go": true, ".js": true}

func hasCode(files []string) bool {
	for _, f := range files {
		if codeExts[strings.ToLower(path.Ext(f))] {
			return true
		}
	}
	return false
}

// datasetAndCode gives half credit for documented training data and half for
// example code shipped alongside the artifact.
func datasetAndCode(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	a, err := fetch(ctx, mc)
	if err != nil {
		return metric.Value{}, err
	}
	var score float64
	switch mc.Task.Kind {
	case task.KindModel:
		if len(a.datasets) > 0 {
			score += 0.5
		}
		if hasCode(a.files) {
			score += 0.5
		}
	case task.KindDataset:
		if strings.TrimSpace(a.description) != "" || a.readmeBytes > 0 {
			score += 0.5
		}
		if hasCode(a.files) {
			score += 0.5
		}
	case task.KindCode:
		score = 0.5
		if a.readmeBytes > 0 {
			score += 0.5
		}
	}
	return metric.Scalar(score), nil
}
