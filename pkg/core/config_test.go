package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, DefaultAPIURL, config.APIURL)
	assert.Nil(t, config.Credentials)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.RetryWaitMin)
	assert.Equal(t, time.Second, config.RetryWaitMax)
	assert.Equal(t, 1200, config.RateLimitRequests)
	assert.Equal(t, time.Minute, config.RateLimitPeriod)
	assert.True(t, config.CircuitBreakerEnabled)
	assert.Equal(t, 5, config.CircuitBreakerFailThreshold)
	assert.Equal(t, 2, config.CircuitBreakerSuccessThreshold)
	assert.Equal(t, 30*time.Second, config.CircuitBreakerTimeout)
	assert.True(t, config.CreateMarketBuyOrderRequiresPrice)
	assert.Equal(t, "info", config.LogLevel)
	require.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing_api_url",
			mutate:  func(c *Config) { c.APIURL = "" },
			wantErr: true,
			errMsg:  "APIURL",
		},
		{
			name:    "malformed_api_url",
			mutate:  func(c *Config) { c.APIURL = "not a url" },
			wantErr: true,
			errMsg:  "APIURL",
		},
		{
			name:    "zero_timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: true,
			errMsg:  "Timeout",
		},
		{
			name:    "negative_max_retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: true,
			errMsg:  "MaxRetries",
		},
		{
			name:    "negative_rate_limit_requests",
			mutate:  func(c *Config) { c.RateLimitRequests = -1 },
			wantErr: true,
			errMsg:  "RateLimitRequests",
		},
		{
			name: "rate_limit_without_period",
			mutate: func(c *Config) {
				c.RateLimitRequests = 100
				c.RateLimitPeriod = 0
			},
			wantErr: true,
			errMsg:  "RateLimitPeriod",
		},
		{
			name: "throttling_disabled",
			mutate: func(c *Config) {
				c.RateLimitRequests = 0
				c.RateLimitPeriod = 0
			},
		},
		{
			name: "retry_wait_inverted",
			mutate: func(c *Config) {
				c.RetryWaitMin = 2 * time.Second
				c.RetryWaitMax = time.Second
			},
			wantErr: true,
			errMsg:  "RetryWaitMax",
		},
		{
			name:    "breaker_without_threshold",
			mutate:  func(c *Config) { c.CircuitBreakerFailThreshold = 0 },
			wantErr: true,
			errMsg:  "CircuitBreakerFailThreshold",
		},
		{
			name:    "breaker_without_timeout",
			mutate:  func(c *Config) { c.CircuitBreakerTimeout = 0 },
			wantErr: true,
			errMsg:  "CircuitBreakerTimeout",
		},
		{
			name: "breaker_disabled",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = false
				c.CircuitBreakerFailThreshold = 0
				c.CircuitBreakerTimeout = 0
			},
		},
		{
			name:    "unknown_log_level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
			errMsg:  "LogLevel",
		},
		{
			name:   "empty_log_level",
			mutate: func(c *Config) { c.LogLevel = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentials_Complete(t *testing.T) {
	var nilCreds *Credentials
	assert.False(t, nilCreds.Complete())
	assert.False(t, (&Credentials{APIKey: "key"}).Complete())
	assert.False(t, (&Credentials{SecretKey: "secret"}).Complete())
	assert.True(t, (&Credentials{APIKey: "key", SecretKey: "secret"}).Complete())
}

func TestConfig_WithCredentials(t *testing.T) {
	config := DefaultConfig()
	creds := &Credentials{
		APIKey:    "test-key",
		SecretKey: "test-secret",
	}

	result := config.WithCredentials(creds)

	assert.Equal(t, config, result)
	assert.Equal(t, creds, config.Credentials)
}

func TestConfig_WithAPIURL(t *testing.T) {
	config := DefaultConfig()
	result := config.WithAPIURL("http://127.0.0.1:8080/api")

	assert.Equal(t, config, result)
	assert.Equal(t, "http://127.0.0.1:8080/api", config.APIURL)
}

func TestConfig_WithTimeout(t *testing.T) {
	config := DefaultConfig()
	result := config.WithTimeout(30 * time.Second)

	assert.Equal(t, config, result)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestConfig_WithRateLimit(t *testing.T) {
	config := DefaultConfig()
	result := config.WithRateLimit(100, 10*time.Second)

	assert.Equal(t, config, result)
	assert.Equal(t, 100, config.RateLimitRequests)
	assert.Equal(t, 10*time.Second, config.RateLimitPeriod)
}

func TestConfig_WithMarketBuyPricing(t *testing.T) {
	config := DefaultConfig().WithMarketBuyPricing(false)

	assert.False(t, config.CreateMarketBuyOrderRequiresPrice)
}

func TestConfig_WithCircuitBreaker(t *testing.T) {
	config := DefaultConfig().WithoutCircuitBreaker()
	assert.False(t, config.CircuitBreakerEnabled)

	result := config.WithCircuitBreaker(3, 1, time.Second)
	assert.Equal(t, config, result)
	assert.True(t, config.CircuitBreakerEnabled)
	assert.Equal(t, 3, config.CircuitBreakerFailThreshold)
	assert.Equal(t, 1, config.CircuitBreakerSuccessThreshold)
	assert.Equal(t, time.Second, config.CircuitBreakerTimeout)
	require.NoError(t, config.Validate())
}
