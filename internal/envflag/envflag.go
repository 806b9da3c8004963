// Package envflag parses the COPYKIT_* environment toggles.
package envflag

import (
	"os"
	"strings"
)

// Bool reports whether the named variable is set to a truthy value.
// Accepted spellings: "1", "true", "yes", "on" (case-insensitive).
func Bool(name string) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// List returns the comma-separated entries of the named variable with
// surrounding whitespace trimmed. Empty entries are dropped.
func List(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
