package engine

import "strings"

// matchFilter evaluates a service property filter against registration
// properties. The supported grammar is the equality subset of LDAP filters:
//
//	(key=value)
//	(&(key=value)(key2=value2)...)
//
// An empty filter matches everything. A filter outside this grammar matches
// nothing.
func matchFilter(filter string, props map[string]string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	if !strings.HasPrefix(filter, "(") || !strings.HasSuffix(filter, ")") {
		return false
	}

	inner := filter[1 : len(filter)-1]
	if strings.HasPrefix(inner, "&") {
		for _, clause := range splitClauses(inner[1:]) {
			if !matchFilter(clause, props) {
				return false
			}
		}
		return true
	}

	key, value, found := strings.Cut(inner, "=")
	if !found || strings.ContainsAny(inner, "()") {
		return false
	}
	return props[strings.TrimSpace(key)] == strings.TrimSpace(value)
}

// splitClauses splits "(a=b)(c=d)" into its parenthesized clauses.
func splitClauses(s string) []string {
	var clauses []string
	depth, start := 0, -1
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				clauses = append(clauses, s[start:i+1])
				start = -1
			}
		}
	}
	return clauses
}
