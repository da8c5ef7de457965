// Package env reads loose environment variables that sit outside the
// envconfig-managed Config, mostly platform-provided ones.
package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, or "".
func First(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// Get returns the value of key or fallback when it is blank.
func Get(key, fallback string) string {
	if v := First(key); v != "" {
		return v
	}
	return fallback
}
