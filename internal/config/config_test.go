package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 60000, cfg.Extract.MaxChars)
	assert.Equal(t, 100, cfg.Extract.MinChars)
	assert.Equal(t, 10, cfg.Policy.MaxRelated)
	assert.Equal(t, 20, cfg.Policy.MaxDefinitions)
	assert.Contains(t, cfg.Policy.PlaceholderDomains, "example.com")
	assert.Equal(t, "vertexaisearch.cloud.google.com", cfg.Policy.RedirectHostSuffix)
	assert.Empty(t, cfg.Cache.RedisAddr)
	assert.Empty(t, cfg.Related.Feeds)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEEPDIVE_SERVER_ADDR", ":9999")
	t.Setenv("DEEPDIVE_RATE_LIMIT_MAX_REQUESTS", "3")
	t.Setenv("DEEPDIVE_UPSTREAM_API_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "secret", cfg.Upstream.APIKey)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
