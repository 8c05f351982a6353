package runner

import (
	"time"

	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
)

// Config tunes the runner. Retention is how long a finished job stays
// answerable by Status.
type Config struct {
	Concurrency int
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
	Retention   time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency: envutil.Int("JOB_CONCURRENCY", 4),
		MaxAttempts: envutil.Int("JOB_MAX_ATTEMPTS", 3),
		RetryBase:   envutil.Duration("JOB_RETRY_BASE", 2*time.Second),
		RetryMax:    envutil.Duration("JOB_RETRY_MAX", 2*time.Minute),
		Retention:   envutil.Duration("JOB_RETENTION", time.Hour),
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	return c
}

// retryDelay is base*2^(attempt-1), capped.
func (c Config) retryDelay(attempt int) time.Duration {
	d := c.RetryBase
	for i := 1; i < attempt && d < c.RetryMax; i++ {
		d *= 2
	}
	if d > c.RetryMax {
		d = c.RetryMax
	}
	return d
}
