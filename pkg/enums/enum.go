// Package enums holds the closed string sets stored in the database and
// accepted over the API.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches raw exactly; no case folding or trimming.
func parse[T ~string](kind string, set []T, raw string) (T, error) {
	if v := T(raw); oneOf(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
