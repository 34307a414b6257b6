package aggregate

import "strings"

// ParseKeys splits a comma-separated list and trims each piece. Empty pieces
// are kept, so "a,b," yields three keys; only an input that is blank and has
// no comma yields none.
func ParseKeys(s string) []string {
	if strings.TrimSpace(s) == "" && !strings.Contains(s, ",") {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
