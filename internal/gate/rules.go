package gate

import "strings"

// Rules is a set of path prefixes. A prefix matches itself and anything
// below it on a segment boundary: "/admin" matches "/admin" and
// "/admin/users" but not "/administrator". "*" matches every path.
type Rules []string

// Wildcard matches every path.
const Wildcard = "*"

// NewRules normalizes prefixes, dropping blanks and trailing slashes.
func NewRules(prefixes ...string) Rules {
	out := make(Rules, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "/" && p != Wildcard {
			p = strings.TrimRight(p, "/")
		}
		out = append(out, p)
	}
	return out
}

// Match reports whether path falls under any prefix.
func (r Rules) Match(path string) bool {
	for _, p := range r {
		if matchPrefix(p, path) {
			return true
		}
	}
	return false
}

func matchPrefix(prefix, path string) bool {
	if prefix == Wildcard || prefix == "/" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
