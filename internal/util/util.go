// Package util provides small string helpers for host command arguments.
package util

import "strings"

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg unwraps an SQF string literal: when s is wrapped in double
// quotes, one pair is removed and escaped quotes are restored. Anything
// else, such as markup sent as a JSON string, is returned unchanged.
func CleanArg(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return FixEscapeQuotes(s[1 : len(s)-1])
}

// CleanArgs returns a copy of args with CleanArg applied to each. The input
// slice is left untouched.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, v := range args {
		out[i] = CleanArg(v)
	}
	return out
}
