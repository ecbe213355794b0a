package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	a := cfg.GetAnalyzer()
	assert.Equal(t, "rules", a.Strategy)
	assert.Equal(t, 8, a.Concurrency)
	assert.Equal(t, 0.05, a.ForbiddenWordsThreshold)
	assert.Equal(t, 0.6, a.UppercaseRatio)
	assert.Equal(t, 3.5, a.ScoreCutoff)

	dns, err := cfg.GetDNS()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, dns.Timeout)
	assert.Equal(t, 16, dns.MaxInFlight)
	assert.Empty(t, dns.Servers)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cache.Type)
	assert.Equal(t, 24*time.Hour, cache.TTL)
	assert.Equal(t, time.Hour, cache.CleanupFrequency)

	server := cfg.GetServer()
	assert.Equal(t, "X-Spam-Verdict", server.Headers.Verdict)
	assert.Equal(t, 10026, server.Postfix.Port)
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "forever")

	_, err := NewFromViper(v).GetCache()
	assert.Error(t, err)
}

func TestUnmarshalKeyKeepsUnsetFields(t *testing.T) {
	type weights struct {
		HasSPF float64 `mapstructure:"has_spf"`
		Script float64 `mapstructure:"script"`
	}

	v := NewEmptyViper()
	cfg := NewFromViper(v)

	w := weights{HasSPF: 2, Script: 3}
	require.NoError(t, cfg.UnmarshalKey("analyzer.weights", &w))
	assert.Equal(t, weights{HasSPF: 2, Script: 3}, w)

	v.Set("analyzer.weights.script", 5)
	require.NoError(t, cfg.UnmarshalKey("analyzer.weights", &w))
	assert.Equal(t, weights{HasSPF: 2, Script: 5}, w)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analyzer:
  strategy: score
  weights:
    script: 4.5
dns:
  servers: ["192.0.2.53:53"]
cache:
  type: sqlite
`), 0o644))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "score", cfg.GetAnalyzer().Strategy)
	assert.Equal(t, 8, cfg.GetAnalyzer().Concurrency)
	assert.Equal(t, 4.5, cfg.GetFloat64("analyzer.weights.script"))

	dns, err := cfg.GetDNS()
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.53:53"}, dns.Servers)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SPAM_ANALYZER_CACHE_TYPE", "redis")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  type: sqlite\n"), 0o644))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "redis", cache.Type)
}
