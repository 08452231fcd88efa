package router

import "strings"

// Match reports whether a routing key matches a topic-exchange pattern.
//
// Semantics follow the AMQP topic exchange: keys and patterns are split
// on dots, "*" matches exactly one segment, and "#" matches zero or more
// segments. A pattern without wildcards matches only by literal
// equality.
func Match(pattern, routingKey string) bool {
	if pattern == routingKey {
		return true
	}
	return matchSegments(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchSegments(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			// "#" swallows any number of segments, including none.
			// Try every possible split for the remaining pattern.
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchSegments(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
		}
		pattern = pattern[1:]
		key = key[1:]
	}
	return len(key) == 0
}
