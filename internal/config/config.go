package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/siderealworks/meridian/pkg/api"
)

type (
	// Config holds configuration settings for the orchestrator
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Workflow Engine
		MaxConcurrentSteps int
		PollInterval       time.Duration
		StepTimeout        int64
		Retry              api.RetryPolicy

		// History & Archiving
		History          HistoryConfig
		ArchiveBucketURL string

		ShutdownTimeout time.Duration
	}

	// HistoryConfig holds Redis settings for the terminal-record store.
	// An empty Addr disables history entirely
	HistoryConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
		MaxList  int64
	}
)

const (
	DefaultAPIHost = "0.0.0.0"
	DefaultAPIPort = 8080
	MaxTCPPort     = 65535

	DefaultMaxConcurrentSteps = 8
	DefaultPollInterval       = 250 * time.Millisecond
	DefaultStepTimeout        = 30 * api.Second
	DefaultShutdownTimeout    = 10 * time.Second

	DefaultRetryInitBackoff = 500
	DefaultRetryMaxBackoff  = 30_000
	DefaultRetryBackoffType = api.BackoffTypeExponential

	DefaultHistoryPrefix  = "meridian"
	DefaultHistoryMaxList = 1000
	DefaultRedisDB        = 0

	MaxConcurrentStepsLimit = 1024
	MaxStepTimeout          = 24 * api.Hour
	MaxRetryInitBackoff     = api.Hour
	MaxRetryMaxBackoff      = 24 * api.Hour
	MaxHistoryList          = 1_000_000
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrInvalidConcurrency    = errors.New("max concurrent steps must be positive")
	ErrInvalidPollInterval   = errors.New("poll interval must be positive")
	ErrInvalidStepTimeout    = errors.New("step timeout must be positive")
	ErrInvalidInitBackoff    = errors.New("retry initial backoff must be positive")
	ErrInvalidMaxBackoff     = errors.New("retry max backoff must be positive")
	ErrMaxBackoffTooSmall    = errors.New("retry max backoff must be >= initial backoff")
	ErrInvalidBackoffType    = errors.New("invalid retry backoff type")
	ErrInvalidHistoryMaxList = errors.New("history list bound must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// engine, retry behavior, and stores
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:            DefaultAPIHost,
		APIPort:            DefaultAPIPort,
		LogLevel:           "info",
		MaxConcurrentSteps: DefaultMaxConcurrentSteps,
		PollInterval:       DefaultPollInterval,
		StepTimeout:        DefaultStepTimeout,
		Retry: api.RetryPolicy{
			BackoffType: DefaultRetryBackoffType,
			InitBackoff: DefaultRetryInitBackoff,
			MaxBackoff:  DefaultRetryMaxBackoff,
		},
		History: HistoryConfig{
			Prefix:  DefaultHistoryPrefix,
			DB:      DefaultRedisDB,
			MaxList: DefaultHistoryMaxList,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any value cannot be parsed or is out of range
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if backoffType := os.Getenv("RETRY_BACKOFF_TYPE"); backoffType != "" {
		c.Retry.BackoffType = backoffType
	}
	if bucketURL := os.Getenv("ARCHIVE_BUCKET_URL"); bucketURL != "" {
		c.ArchiveBucketURL = bucketURL
	}
	c.loadHistoryFromEnv()

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_CONCURRENT_STEPS", &c.MaxConcurrentSteps,
		0, MaxConcurrentStepsLimit,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STEP_TIMEOUT", &c.StepTimeout, 0, MaxStepTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_INITIAL_BACKOFF", &c.Retry.InitBackoff,
		0, MaxRetryInitBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff, 0, MaxRetryMaxBackoff,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"HISTORY_MAX_LIST", &c.History.MaxList, 0, MaxHistoryList,
	); err != nil {
		return err
	}

	var pollMs int64
	if err := loadEnvInt(
		"POLL_INTERVAL", &pollMs, 0, api.Hour,
	); err != nil {
		return err
	}
	if pollMs > 0 {
		c.PollInterval = time.Duration(pollMs) * time.Millisecond
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.MaxConcurrentSteps <= 0 {
		return ErrInvalidConcurrency
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}
	if c.Retry.InitBackoff <= 0 {
		return ErrInvalidInitBackoff
	}
	if c.Retry.MaxBackoff <= 0 {
		return ErrInvalidMaxBackoff
	}
	if c.Retry.MaxBackoff < c.Retry.InitBackoff {
		return ErrMaxBackoffTooSmall
	}
	if c.Retry.BackoffType != api.BackoffTypeFixed &&
		c.Retry.BackoffType != api.BackoffTypeLinear &&
		c.Retry.BackoffType != api.BackoffTypeExponential {
		return fmt.Errorf("%w: %s",
			ErrInvalidBackoffType, c.Retry.BackoffType)
	}
	if c.History.MaxList <= 0 {
		return ErrInvalidHistoryMaxList
	}
	return nil
}

func (c *Config) loadHistoryFromEnv() {
	if addr := os.Getenv("HISTORY_REDIS_ADDR"); addr != "" {
		c.History.Addr = addr
	}
	if password := os.Getenv("HISTORY_REDIS_PASSWORD"); password != "" {
		c.History.Password = password
	}
	if prefix := os.Getenv("HISTORY_REDIS_PREFIX"); prefix != "" {
		c.History.Prefix = prefix
	}
	if dbStr := os.Getenv("HISTORY_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.History.DB = db
		}
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
