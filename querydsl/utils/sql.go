package utils

import "regexp"

var autoincrementInsertRe = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s.+\sRETURNING\s+[\w."]+\s*;?\s*$`)

// IsAutoincrementInsertQuery reports whether query is an INSERT that returns
// exactly one generated column.
func IsAutoincrementInsertQuery(query string) bool {
	return autoincrementInsertRe.MatchString(query)
}
