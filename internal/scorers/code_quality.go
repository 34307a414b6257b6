package scorers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalnine/netscore/internal/metric"
	"github.com/signalnine/netscore/internal/task"
)

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".rs": true, ".c": true, ".cc": true, ".cpp": true, ".h": true, ".rb": true,
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "third_party": true,
}

type treeStats struct {
	files      int
	loc        int
	maxFileLOC int
	testFiles  int
}

func scanTree(root string) (*treeStats, error) {
	st := &treeStats{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if isTestFile(rel) {
			st.testFiles++
			return nil
		}
		loc := countLOC(path)
		st.files++
		st.loc += loc
		if loc > st.maxFileLOC {
			st.maxFileLOC = loc
		}
		return nil
	})
	return st, err
}

func isTestFile(rel string) bool {
	name := filepath.Base(rel)
	switch {
	case strings.HasSuffix(name, "_test.go"),
		strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py"),
		strings.HasSuffix(name, "_test.py"),
		strings.Contains(name, ".test."),
		strings.Contains(name, ".spec."):
		return true
	}
	for _, dir := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if dir == "tests" || dir == "test" || dir == "__tests__" {
			return true
		}
	}
	return false
}

// countLOC counts non-empty, non-comment lines in a file.
func countLOC(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	count := 0
	inBlock := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if inBlock {
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			inBlock = !strings.Contains(trimmed, "*/")
			continue
		}
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		count++
	}
	return count
}

// codeQualityScore rewards a tree split over several files, with no
// oversized file, that ships its own tests.
func codeQualityScore(st *treeStats) float64 {
	if st.files == 0 {
		return 0
	}
	score := 0.0
	switch {
	case st.files >= 3:
		score += 0.4
	case st.files == 2:
		score += 0.3
	default:
		score += 0.1
	}

	switch {
	case st.maxFileLOC <= 200:
		score += 0.3
	case st.maxFileLOC <= 500:
		score += 0.2
	case st.maxFileLOC <= 800:
		score += 0.1
	}

	switch {
	case st.testFiles >= 3:
		score += 0.3
	case st.testFiles >= 1:
		score += 0.2
	}
	return clamp01(score)
}

func cloneURL(t task.Task) string {
	return fmt.Sprintf("https://%s/%s.git", t.URL.Host, t.ID())
}

func codeQuality(ctx context.Context, mc *metric.Context) (metric.Value, error) {
	if mc.Task.Kind != task.KindCode {
		mc.Log().Debug("code quality needs a code repository", "kind", string(mc.Task.Kind))
		return metric.Scalar(0), nil
	}
	if mc.Env == nil || mc.Env.Checkouts == nil {
		return metric.Value{}, fmt.Errorf("checkouts: %w", ErrNoSource)
	}
	dir, err := mc.Env.Checkouts.Checkout(ctx, cloneURL(mc.Task))
	if err != nil {
		return metric.Value{}, err
	}
	st, err := scanTree(dir)
	if err != nil {
		return metric.Value{}, fmt.Errorf("scanning %s: %w", mc.Task.ID(), err)
	}
	score := codeQualityScore(st)
	mc.Log().Debug("code quality", "files", st.files, "loc", st.loc, "max_file_loc", st.maxFileLOC, "test_files", st.testFiles, "score", score)
	return metric.Scalar(score), nil
}
