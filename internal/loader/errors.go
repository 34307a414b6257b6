package loader

import "fmt"

type ErrorKind string

const (
	// KindSyntax: the manifest could not be parsed or decoded.
	KindSyntax ErrorKind = "syntax"
	// KindMissingMetric: the file has no metric block named after it.
	KindMissingMetric ErrorKind = "missing_metric"
	// KindNotRegistered: an in-process metric has no compiled implementation.
	KindNotRegistered ErrorKind = "not_registered"
	KindInvalid       ErrorKind = "invalid"
)

// LoadError describes a manifest that was skipped.
type LoadError struct {
	Path string
	Name string
	Kind ErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: metric %q: %s: %v", e.Path, e.Name, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
