package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Route pattern, e.g. /api/accounts/{username}/*
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Verification runs call the AI backend and GitHub
		{Path: "/api/verify-skills", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/api/verify-skills/stream", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Account summaries fan out to GitHub
		{Path: "/api/accounts/{username}/*", Method: "GET", Limit: 120, Window: time.Hour, Burst: 20},

		{Path: "/api/cache/clear", Method: "POST", Limit: 10, Window: time.Minute, Burst: 2},

		// Integrity checks recompute a hash per request
		{Path: "/api/verifications/{id}/integrity", Method: "GET", Limit: 300, Window: time.Hour, Burst: 30},

		// Record reads use the default limit; health is unlimited
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a set.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
