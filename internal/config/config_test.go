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

	httpCfg := cfg.GetHTTP()
	assert.Equal(t, "0.0.0.0:8000", httpCfg.Address)
	assert.Equal(t, []string{"*"}, httpCfg.AllowedOrigins)
	assert.Equal(t, int64(5*1024*1024), httpCfg.MaxUploadBytes)

	smtpCfg, err := cfg.GetSMTP()
	require.NoError(t, err)
	assert.False(t, smtpCfg.Enabled)
	assert.Equal(t, 10*time.Second, smtpCfg.AnalysisTimeout)
	assert.Equal(t, "X-Phishing-Verdict", smtpCfg.Headers.Verdict)
	assert.Equal(t, 10026, smtpCfg.PostfixPort)

	cacheCfg, err := cfg.GetCache()
	require.NoError(t, err)
	assert.False(t, cacheCfg.Enabled)
	assert.Equal(t, "memory", cacheCfg.Type)
	assert.Equal(t, 24*time.Hour, cacheCfg.TTL)
	assert.Equal(t, time.Hour, cacheCfg.CleanupFrequency)

	analysis := cfg.GetAnalysis()
	assert.Empty(t, analysis.RulesetPath)
	assert.Empty(t, analysis.TrustedSenderDomains)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detector.yaml")
	contents := `
server:
  http:
    address: 127.0.0.1:9000
    allowed_origins: ["https://app.example.com"]
analysis:
  trusted_sender_domains: [example.com, bank.example]
cache:
  enabled: true
  type: sqlite
  ttl: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetHTTP().Address)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.GetHTTP().AllowedOrigins)
	assert.Equal(t, []string{"example.com", "bank.example"}, cfg.GetAnalysis().TrustedSenderDomains)

	cacheCfg, err := cfg.GetCache()
	require.NoError(t, err)
	assert.True(t, cacheCfg.Enabled)
	assert.Equal(t, "sqlite", cacheCfg.Type)
	assert.Equal(t, 30*time.Minute, cacheCfg.TTL)
	// Untouched keys keep their defaults
	assert.Equal(t, "info", cfg.GetString("logging.level"))
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PHISH_DETECTOR_CACHE_ENABLED", "true")
	t.Setenv("PHISH_DETECTOR_ANALYSIS_TRUSTED_SENDER_DOMAINS", "example.com, example.org")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.GetBool("cache.enabled"))
	assert.Equal(t, []string{"example.com", "example.org"}, cfg.GetAnalysis().TrustedSenderDomains)
	assert.Equal(t, "debug", cfg.GetString("logging.level"))
}

func TestInvalidDuration(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("cache.ttl", "soon")

	_, err := cfg.GetCache()
	assert.ErrorContains(t, err, "cache.ttl")
}
