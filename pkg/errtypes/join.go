package errtypes

import "strings"

type joinErrors []error

// Join aggregates several errors into one, for a caller that attempts a
// handful of best-effort cleanup steps and wants to report every failure
// rather than only the first (see the chunk engine's upload rollback).
func Join(err ...error) error {
	return joinErrors(err)
}

// Error returns a comma-separated concatenation of every joined error.
func (e joinErrors) Error() string {
	var b strings.Builder
	for i, err := range e {
		b.WriteString(err.Error())
		if i != len(e)-1 {
			b.WriteString(", ")
		}
	}
	return b.String()
}
