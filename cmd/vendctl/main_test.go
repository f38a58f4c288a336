package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoins(t *testing.T) {
	coins, err := parseCoins([]string{"100", "50,20", " 5 "})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50, 20, 5}, coins)

	_, err = parseCoins([]string{"ten"})
	assert.Error(t, err)

	_, err = parseCoins(nil)
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultAPIBase, cfg.APIBaseURL)
	assert.Empty(t, cfg.AccessToken)

	cfg.AccessToken = "token"
	require.NoError(t, saveConfig(cfg))

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "token", loaded.AccessToken)

	_, _, token, err := authedClient()
	require.NoError(t, err)
	assert.Equal(t, "token", token)
}

func TestPickBasePrefersFlag(t *testing.T) {
	cfg := cliConfig{APIBaseURL: "http://saved"}
	assert.Equal(t, "http://saved", pickBase("", cfg))
	assert.Equal(t, "http://flag", pickBase(" http://flag ", cfg))
}
