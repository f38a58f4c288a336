package httpx

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)
	rl := newMemoryRateLimiter(func() time.Time { return now })
	defer rl.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.True(t, d.allowed)
		assert.Equal(t, i, d.count)
	}
	assert.False(t, rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute).allowed)
	assert.True(t, rl.Allow(ctx, "ip:5.6.7.8", 3, time.Minute).allowed, "keys are independent")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute).allowed, "a new window starts")

	now = now.Add(2 * time.Minute)
	rl.cleanup(now)
	rl.mu.Lock()
	assert.Empty(t, rl.entries)
	rl.mu.Unlock()
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRedisRateLimiterFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	defer rl.Close()
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "user:1", 2, time.Minute).allowed)
	assert.True(t, rl.Allow(ctx, "user:1", 2, time.Minute).allowed)
	d := rl.Allow(ctx, "user:1", 2, time.Minute)
	assert.False(t, d.allowed)
	assert.Equal(t, 3, d.count)

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, rl.Allow(ctx, "user:1", 2, time.Minute).allowed)
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRedisRateLimiterFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	defer rl.Close()
	mr.Close()

	assert.True(t, rl.Allow(context.Background(), "user:1", 1, time.Minute).allowed)
}

func TestClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := &Router{}
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, "198.51.100.7", r.clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "198.51.100.7", r.clientIP(req))
	assert.Equal(t, "ip:198.51.100.7", r.rateLimitKeyIP(req))
	assert.Equal(t, "ip", rateMetricKey("ip:198.51.100.7"))
}

func TestClientIPHonorsForwardedForFromTrustedProxy(t *testing.T) {
	r := &Router{proxies: parseTrustedProxies(nil, []string{"10.0.0.0/8", "192.0.2.1", "bogus"})}
	require.Len(t, r.proxies, 2)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", r.clientIP(req), "no header falls back to the peer")

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", r.clientIP(req))

	// A client supplied hop left of the real one is not believed.
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.9, 192.0.2.1")
	assert.Equal(t, "203.0.113.9", r.clientIP(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "10.1.2.3", r.clientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "2001:db8::1", r.clientIP(req))
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, bad := range []string{"", "abc", "Basic abc", "Bearer"} {
		_, err := bearerToken(bad)
		assert.Error(t, err, bad)
	}
}

func TestPathID(t *testing.T) {
	id, ok := pathID("/users/42", "/users/")
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = pathID("/users/", "/users/")
	assert.False(t, ok)
	_, ok = pathID("/users/42/extra", "/users/")
	assert.False(t, ok)
}
