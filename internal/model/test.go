// Package model defines the data structures for pollution analysis.
package model

// TestID identifies a single test using the executor's node-ID syntax,
// for example "tests/test_app.py::test_login". IDs are opaque; equality
// is exact string equality, and ordering is meaningful only as the order
// in which the suite discovered or ran the tests.
type TestID string

// Strings converts a list of test identifiers to plain strings, in order.
func Strings(ids []TestID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
