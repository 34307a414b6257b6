// Package isolate runs metrics outside the engine's address space, either as
// a child process or inside a Docker container.
//
// Both kinds receive the task as their last argument and in the environment,
// and report their score as the last non-empty line of output: a number, or a
// JSON object of sub-scores.
package isolate

import (
	"sort"
	"strings"

	"github.com/signalnine/netscore/internal/metric"
)

const (
	EnvTask   = "NETSCORE_TASK"
	EnvKind   = "NETSCORE_KIND"
	ArgPrefix = "NETSCORE_ARG_"
)

// ArgEnvName converts an argument key into its environment variable name.
func ArgEnvName(key string) string {
	var b strings.Builder
	b.WriteString(ArgPrefix)
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Env builds the variables handed to an isolated metric.
func Env(mc *metric.Context) map[string]string {
	env := map[string]string{
		EnvTask: mc.Task.Raw,
		EnvKind: string(mc.Task.Kind),
	}
	for k, v := range mc.Args {
		env[ArgEnvName(k)] = v
	}
	return env
}

func envPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// tail keeps the last n bytes of b for error messages.
func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
