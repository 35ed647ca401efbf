package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, config *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	config.CleanupInterval = 0
	l := NewLimiter(config)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiter_AllowsBurstThenDenies(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for i := range 10 {
		allowed, info := l.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := l.Allow("127.0.0.1", "/test", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	// 10 per minute refills one token every 6s
	assert.Equal(t, 6*time.Second, info.RetryAfter)
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for range 10 {
		l.Allow("c", "/test", "GET")
	}
	allowed, _ := l.Allow("c", "/test", "GET")
	require.False(t, allowed)

	clock.Advance(6 * time.Second)
	allowed, _ = l.Allow("c", "/test", "GET")
	assert.True(t, allowed)

	allowed, _ = l.Allow("c", "/test", "GET")
	assert.False(t, allowed)
}

func TestLimiter_ResetTime(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for range 5 {
		l.Allow("c", "/test", "GET")
	}
	_, info := l.Allow("c", "/test", "GET")

	assert.Equal(t, 4, info.Remaining)
	assert.Equal(t, clock.Now().Add(36*time.Second), info.ResetTime)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})

	allowed, _ := l.Allow("a", "/test", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a", "/test", "GET")
	assert.False(t, allowed)

	allowed, _ = l.Allow("b", "/test", "GET")
	assert.True(t, allowed)
}

func TestLimiter_EndpointPatternSharesBucket(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/api/accounts/{username}/*", Method: "GET", Limit: 2, Window: time.Minute, Burst: 2},
		},
	})

	allowed, info := l.Allow("c", "/api/accounts/alice/languages", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 2, info.Limit)
	allowed, _ = l.Allow("c", "/api/accounts/bob/summary", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/api/accounts/carol/technologies", "GET")
	assert.False(t, allowed)

	// other endpoints keep the default
	allowed, _ = l.Allow("c", "/api/verifications/1", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false})

	for range 100 {
		allowed, _ := l.Allow("c", "/test", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})

	for range 5 {
		allowed, _ := l.Allow("10.0.0.1", "/test", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.2", "/test", "GET")
	assert.False(t, allowed)
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})

	for range 10 {
		allowed, info := l.Allow("c", "/health", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	config := &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour}
	l, clock := newTestLimiter(t, config)

	l.Allow("old", "/test", "GET")
	clock.Advance(2 * time.Hour)
	l.Allow("new", "/test", "GET")

	l.evictIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "new:GET:/test")
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := l.Allow("c", "/test", "GET")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		name   string
		path   string
		method string
		want   string
	}{
		{"exact", "/api/verify-skills", "POST", "/api/verify-skills"},
		{"stream", "/api/verify-skills/stream", "POST", "/api/verify-skills/stream"},
		{"parameter and wildcard", "/api/accounts/alice/summary", "GET", "/api/accounts/{username}/*"},
		{"wildcard needs a segment", "/api/accounts/alice", "GET", ""},
		{"parameter", "/api/verifications/7/integrity", "GET", "/api/verifications/{id}/integrity"},
		{"trailing slash", "/api/verify-skills/", "POST", "/api/verify-skills"},
		{"method mismatch", "/api/verify-skills", "GET", ""},
		{"unmatched", "/api/verifications/1", "GET", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Path)
		})
	}

	// literal segments beat parameters
	specific := []EndpointConfig{
		{Path: "/api/accounts/{username}/summary", Method: "GET", Limit: 1},
		{Path: "/api/accounts/alice/summary", Method: "GET", Limit: 2},
	}
	got := MatchEndpoint("/api/accounts/alice/summary", "GET", specific)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Limit)

	health := MatchEndpoint("/health", "GET", configs)
	require.NotNil(t, health)
	assert.Zero(t, health.Limit)
}

func TestParseIPList(t *testing.T) {
	assert.Equal(t, map[string]bool{"1.1.1.1": true, "2.2.2.2": true}, ParseIPList(" 1.1.1.1, ,2.2.2.2"))
	assert.Empty(t, ParseIPList(""))
}
