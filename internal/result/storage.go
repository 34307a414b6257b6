package result

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	ScoresFile = "scores.ndjson"
	MetaFile   = "run.json"
)

func NewRunID() string {
	return uuid.NewString()
}

// CreateRunDir creates <base>/runs/<timestamp>-<short id> and points
// <base>/latest at it.
func CreateRunDir(baseDir, runID string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	runDir, err := filepath.Abs(filepath.Join(runsDir, stamp+"-"+short))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// WriteScores writes one JSON object per line, in the order given.
func WriteScores(runDir string, scores []Score) error {
	f, err := os.Create(filepath.Join(runDir, ScoresFile))
	if err != nil {
		return fmt.Errorf("creating scores file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range scores {
		if err := enc.Encode(&scores[i]); err != nil {
			return fmt.Errorf("encoding score for %s: %w", scores[i].Task, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing scores file: %w", err)
	}
	return nil
}

func ReadScores(path string) ([]Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	defer f.Close()

	var scores []Score
	dec := json.NewDecoder(f)
	for dec.More() {
		var s Score
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing scores: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, nil
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, MetaFile), data, 0o644)
}

func ReadRunMeta(path string) (*RunMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing run meta: %w", err)
	}
	return &meta, nil
}
