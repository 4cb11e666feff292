package xmanager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
)

const sampleYAML = `
caches:
  users:
    read_through: false
    statistics: true
    management: true
    expiry:
      policy: accessed
      ttl: 10m
    store:
      type: lru
      size: 100
    load_all_workers: 2
    load_all_queue: 8
  sessions:
    expiry:
      policy: created
      ttl: 30s
`

func TestParseConfig_YAML(t *testing.T) {
	fc, err := ParseConfig([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	users, ok := fc.Cache("users")
	require.True(t, ok)
	assert.True(t, users.StatisticsEnabled)
	assert.True(t, users.ManagementEnabled)
	assert.Equal(t, ExpiryConfig{Policy: "accessed", TTL: 10 * time.Minute}, users.Expiry)
	assert.Equal(t, StoreConfig{Type: "lru", Size: 100}, users.Store)
	assert.Len(t, users.Options(), 1)

	sessions, ok := fc.Cache("sessions")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, sessions.Expiry.TTL)
	assert.Empty(t, sessions.Options())

	_, ok = fc.Cache("missing")
	assert.False(t, ok)
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{"caches": {"users": {"statistics": true, "expiry": {"policy": "touched", "ttl": "1h"}}}}`
	fc, err := ParseConfig([]byte(data), FormatJSON)
	require.NoError(t, err)
	users, _ := fc.Cache("users")
	assert.Equal(t, time.Hour, users.Expiry.TTL)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("x"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseConfig([]byte("caches: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = ParseConfig([]byte("caches:\n  a:\n    expiry:\n      policy: sometimes\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrParseFailed)
	assert.ErrorIs(t, err, xexpiry.ErrUnknownPolicy)

	_, err = ParseConfig([]byte("caches:\n  a:\n    sweep: every now and then\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidSweep)

	fc, err := ParseConfig(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, fc.Caches)
}

func TestLoadConfig(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = LoadConfig("config.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	path := filepath.Join(t.TempDir(), "cache.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	fc, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, fc.Caches, 2)
}

func TestApply(t *testing.T) {
	cfg := xcache.Config[string, int]{ReadThrough: true, StatisticsEnabled: false}
	require.NoError(t, Apply(CacheConfig{
		StatisticsEnabled: true,
		Expiry:            ExpiryConfig{Policy: "created", TTL: time.Minute},
	}, &cfg))

	assert.False(t, cfg.ReadThrough)
	assert.True(t, cfg.StatisticsEnabled)
	d := xexpiry.For(cfg.ExpiryPolicy, xexpiry.EventCreation)
	assert.Equal(t, time.Minute, d.TTL())

	err := Apply(CacheConfig{Expiry: ExpiryConfig{Policy: "nope"}}, &cfg)
	assert.ErrorIs(t, err, ErrParseFailed)
}
