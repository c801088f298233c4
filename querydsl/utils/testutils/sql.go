package testutils

import (
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
)

// AssertSQL compares statements ignoring surrounding whitespace and reports
// a character diff on mismatch.
func AssertSQL(t testing.TB, expected, actual string) bool {
	t.Helper()
	expected = strings.TrimSpace(expected)
	actual = strings.TrimSpace(actual)
	if expected == actual {
		return true
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(expected, actual, false)
	return assert.Fail(t, "SQL mismatch",
		"expected: %s\nactual:   %s\ndiff:     %s", expected, actual, dmp.DiffPrettyText(diffs))
}
