package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderealworks/meridian/internal/config"
	"github.com/siderealworks/meridian/pkg/api"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, config.DefaultMaxConcurrentSteps, cfg.MaxConcurrentSteps)
	assert.Equal(t, api.BackoffTypeExponential, cfg.Retry.BackoffType)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("MAX_CONCURRENT_STEPS", "2")
	t.Setenv("STEP_TIMEOUT", "5000")
	t.Setenv("POLL_INTERVAL", "100")
	t.Setenv("RETRY_INITIAL_BACKOFF", "250")
	t.Setenv("RETRY_MAX_BACKOFF", "4000")
	t.Setenv("RETRY_BACKOFF_TYPE", "linear")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HISTORY_REDIS_ADDR", "localhost:6379")
	t.Setenv("HISTORY_REDIS_PREFIX", "obs")
	t.Setenv("HISTORY_REDIS_DB", "2")
	t.Setenv("ARCHIVE_BUCKET_URL", "mem://")

	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 2, cfg.MaxConcurrentSteps)
	assert.Equal(t, int64(5000), cfg.StepTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, int64(250), cfg.Retry.InitBackoff)
	assert.Equal(t, int64(4000), cfg.Retry.MaxBackoff)
	assert.Equal(t, api.BackoffTypeLinear, cfg.Retry.BackoffType)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.History.Addr)
	assert.Equal(t, "obs", cfg.History.Prefix)
	assert.Equal(t, 2, cfg.History.DB)
	assert.Equal(t, "mem://", cfg.ArchiveBucketURL)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")
	cfg := config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromEnvRejectsOutOfRange(t *testing.T) {
	t.Setenv("API_PORT", "70000")
	cfg := config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())

	t.Setenv("API_PORT", "8080")
	t.Setenv("MAX_CONCURRENT_STEPS", "-1")
	cfg = config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"bad port", func(c *config.Config) {
			c.APIPort = 0
		}, config.ErrInvalidAPIPort},
		{"bad concurrency", func(c *config.Config) {
			c.MaxConcurrentSteps = 0
		}, config.ErrInvalidConcurrency},
		{"bad poll interval", func(c *config.Config) {
			c.PollInterval = 0
		}, config.ErrInvalidPollInterval},
		{"bad step timeout", func(c *config.Config) {
			c.StepTimeout = 0
		}, config.ErrInvalidStepTimeout},
		{"bad init backoff", func(c *config.Config) {
			c.Retry.InitBackoff = 0
		}, config.ErrInvalidInitBackoff},
		{"max below init", func(c *config.Config) {
			c.Retry.InitBackoff = 100
			c.Retry.MaxBackoff = 50
		}, config.ErrMaxBackoffTooSmall},
		{"bad backoff type", func(c *config.Config) {
			c.Retry.BackoffType = "random"
		}, config.ErrInvalidBackoffType},
		{"bad history bound", func(c *config.Config) {
			c.History.MaxList = 0
		}, config.ErrInvalidHistoryMaxList},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}
