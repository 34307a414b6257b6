package task

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

type Kind string

const (
	KindModel   Kind = "model"
	KindDataset Kind = "dataset"
	KindCode    Kind = "code"
)

// ErrMalformed is returned for lines that are not a recognised artifact URL.
var ErrMalformed = errors.New("malformed task line")

type Task struct {
	Raw   string
	URL   *url.URL
	Kind  Kind
	Owner string
	Name  string
}

// ID is the namespaced identifier used by the hosting service, e.g. "owner/name".
func (t Task) ID() string {
	if t.Owner == "" {
		return t.Name
	}
	return t.Owner + "/" + t.Name
}

// Line is one non-blank line of a task source.
type Line struct {
	Number int
	Text   string
}

func Parse(line string) (Task, error) {
	raw := strings.TrimSpace(line)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Task{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	parts := splitPath(u.Path)

	t := Task{Raw: raw, URL: u}
	switch host {
	case "github.com":
		if len(parts) < 2 {
			return Task{}, fmt.Errorf("%w: github url needs owner and repository: %q", ErrMalformed, raw)
		}
		t.Kind = KindCode
		t.Owner, t.Name = parts[0], strings.TrimSuffix(parts[1], ".git")
	case "huggingface.co":
		if len(parts) > 0 && parts[0] == "datasets" {
			parts = parts[1:]
			t.Kind = KindDataset
		} else {
			t.Kind = KindModel
		}
		switch {
		case len(parts) == 0:
			return Task{}, fmt.Errorf("%w: huggingface url has no repository: %q", ErrMalformed, raw)
		case len(parts) == 1:
			t.Name = parts[0]
		default:
			t.Owner, t.Name = parts[0], parts[1]
		}
	default:
		return Task{}, fmt.Errorf("%w: unsupported host %q", ErrMalformed, u.Host)
	}
	return t, nil
}

// splitPath drops empty segments and everything from /tree/ or /blob/ onwards.
func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}
		if s == "tree" || s == "blob" || s == "resolve" {
			break
		}
		parts = append(parts, s)
	}
	return parts
}

// ReadFile returns the non-blank lines of a newline-delimited task source.
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close()

	var lines []Line
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		lines = append(lines, Line{Number: n, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return lines, nil
}
