package ratelimit

import "strings"

// healthPath is never limited
const healthPath = "/health"

// MatchEndpoint returns the configuration whose route pattern matches the
// request, or nil. Patterns use the router's syntax: "{name}" matches one
// non-empty segment and a trailing "*" matches one or more segments. Literal
// patterns are preferred over parameterised ones.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == healthPath && method == "GET" {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	bestScore := -1
	segments := splitPath(path)
	for i := range configs {
		config := &configs[i]
		if config.Method != method {
			continue
		}
		score, ok := matchPattern(splitPath(config.Path), segments)
		if ok && score > bestScore {
			best, bestScore = config, score
		}
	}
	return best
}

// matchPattern reports whether segments satisfy pattern and scores the match
// by the number of literal segments it used
func matchPattern(pattern, segments []string) (int, bool) {
	score := 0
	for i, p := range pattern {
		if p == "*" && i == len(pattern)-1 {
			return score, len(segments) > i
		}
		if i >= len(segments) {
			return 0, false
		}
		switch {
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			if segments[i] == "" {
				return 0, false
			}
		case p == segments[i]:
			score++
		default:
			return 0, false
		}
	}
	return score, len(pattern) == len(segments)
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
