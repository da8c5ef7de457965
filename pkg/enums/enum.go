// Package enums holds the closed string sets stored in the database and
// carried on the wire.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type label interface{ ~string }

func known[T label](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches value against set, ignoring surrounding space and case.
func parse[T label](kind string, set []T, value string) (T, error) {
	trimmed := strings.TrimSpace(value)
	if i := slices.IndexFunc(set, func(c T) bool { return strings.EqualFold(string(c), trimmed) }); i >= 0 {
		return set[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
