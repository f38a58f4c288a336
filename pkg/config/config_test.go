package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "45")
	assert.Equal(t, 45*time.Second, GetDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, GetDuration("TEST_DURATION", time.Minute))

	assert.Equal(t, time.Hour, GetDuration("TEST_DURATION_UNSET", time.Hour))
}

func TestGetIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT", "twelve")
	assert.Equal(t, 7, GetInt("TEST_INT", 7))
}

func TestLoadAPIConfigAppliesFileBeneathEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vending.yaml")
	body := "API_ADDR: \":9090\"\nREDIS_DB: 3\nSESSION_TTL: 5m\nJWT_SECRET: from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	// t.Setenv restores these on cleanup; LoadFile exports into the process env.
	t.Setenv("API_ADDR", "")
	os.Unsetenv("API_ADDR")
	t.Setenv("REDIS_DB", "")
	os.Unsetenv("REDIS_DB")
	t.Setenv("SESSION_TTL", "")
	os.Unsetenv("SESSION_TTL")

	cfg := LoadAPIConfig()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a , ,http://b"))
	assert.Empty(t, splitList(""))
}

func TestLoadAPIConfigTrustedProxies(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TRUSTED_PROXIES", "")
	assert.Empty(t, LoadAPIConfig().TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, LoadAPIConfig().TrustedProxies)
}
