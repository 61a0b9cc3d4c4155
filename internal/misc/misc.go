package misc

import (
	"regexp"
	"strings"

	"golang.org/x/exp/constraints"
)

var ExtraSpaceRegex = regexp.MustCompile(`\s+`)

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func StringLimit(s string, n int) string {
	if n < 0 {
		return ""
	}
	if n <= 3 {
		return s[:Min(n, len(s))]
	}
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func BytesLimit(bs []byte, n int) []byte {
	if n < 0 {
		return nil
	}
	if n <= 3 {
		return bs[:Min(n, len(bs))]
	}
	if len(bs) > n {
		return append(bs[:n-3:n-3], "..."...)
	}
	return bs
}

// CleanString collapses runs of whitespace into one space and trims the ends.
func CleanString(s string) string {
	return strings.TrimSpace(ExtraSpaceRegex.ReplaceAllString(s, " "))
}

// NilIfEmpty returns nil for an empty string, used for optional stored fields.
func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
