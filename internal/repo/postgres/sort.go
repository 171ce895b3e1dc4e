package postgres

import "strings"

// orderByClause maps a client supplied sort option to a safe ORDER BY
// fragment. Field names are whitelisted per listing; a leading "-" flips
// the direction. Anything unrecognized falls back to ascending name so a
// bad query parameter can never reach the SQL text. The created_at/id
// tail keeps the ordering stable across rows that tie on the sort field.
func orderByClause(sort string, allowed map[string]string, alias string) string {
	dir := "ASC"

	s := strings.TrimSpace(sort)

	if strings.HasPrefix(s, "-") {
		dir = "DESC"
		s = s[1:]
	}

	col, ok := allowed[s]

	if !ok {
		col = allowed["name"]
		dir = "ASC"
	}

	return col + " " + dir + ", " + alias + ".created_at ASC, " + alias + ".id ASC"
}
