// Package guess implements answer matching for frame guesses.
//
// Matching is exact equality of normalized forms: no fuzzy tolerance, no
// partial credit. "Matrix" does not match "The Matrix".
package guess

import "strings"

// Normalize trims the string, collapses internal whitespace runs to a
// single space, and lowercases the result.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Matches reports whether a submitted answer equals the correct answer
// after normalization. Pure; safe to call from anywhere.
func Matches(submitted, correct string) bool {
	return Normalize(submitted) == Normalize(correct)
}
