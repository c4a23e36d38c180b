package permission

import "strings"

// Wildcard grants every permission.
const Wildcard = "*"

// Match reports whether granted covers required.
func Match(granted, required string) bool {
	if granted == "" || required == "" {
		return false
	}
	if granted == Wildcard || granted == required {
		return true
	}
	prefix, ok := strings.CutSuffix(granted, ":*")
	if !ok {
		return false
	}
	resource, _, found := strings.Cut(required, ":")
	return found && resource == prefix
}

// Set is a collection of granted permission strings.
type Set []string

// Allows reports whether any entry of s covers required.
func (s Set) Allows(required string) bool {
	for _, g := range s {
		if Match(g, required) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether s covers every entry of required.
func (s Set) AllowsAll(required ...string) bool {
	for _, r := range required {
		if !s.Allows(r) {
			return false
		}
	}
	return true
}

// HasAnyRole reports whether held intersects required. An empty required
// set is satisfied by anyone.
func HasAnyRole(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(held) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(held))
	for _, h := range held {
		have[h] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}
