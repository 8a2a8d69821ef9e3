package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultAPIURL is the root of the venue's REST API; public and private
// endpoints live under versioned sub-paths.
const DefaultAPIURL = "https://kkex.com/api"

// Credentials holds API authentication credentials for the venue.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key"`
	// SecretKey is the shared secret appended to the signature payload.
	SecretKey string `json:"secret_key"`
}

// Complete reports whether both the key and the secret are set.
func (c *Credentials) Complete() bool {
	return c != nil && c.APIKey != "" && c.SecretKey != ""
}

// Config contains all configuration options for a connector instance.
type Config struct {
	// APIURL is the REST root; "/v1" serves public and "/v2" private endpoints.
	APIURL      string       `json:"api_url" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout      time.Duration `json:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" validate:"min=0"`

	// RateLimitRequests of zero disables client-side throttling.
	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=0"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=0"`

	// The circuit breaker opens after CircuitBreakerFailThreshold consecutive
	// transport or server failures and rejects calls until CircuitBreakerTimeout
	// has passed.
	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" validate:"min=0"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" validate:"min=0"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" validate:"min=0"`

	// CreateMarketBuyOrderRequiresPrice controls market buys. The venue expects
	// the quote amount to spend in the "price" field. When true, callers pass
	// the base amount plus a price and the connector sends amount*price; when
	// false, the caller's amount is already the quote cost and is sent as is.
	CreateMarketBuyOrderRequiresPrice bool `json:"create_market_buy_order_requires_price"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with defaults:
// 10s timeout, 3 retries, 100ms-1s retry wait, 1200 req/min throttle,
// a circuit breaker opening after 5 failures for 30s, market buys priced
// by the connector.
func DefaultConfig() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		RateLimitRequests: 1200,
		RateLimitPeriod:   time.Minute,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		CreateMarketBuyOrderRequiresPrice: true,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RateLimitPeriod must be positive when RateLimitRequests is set")
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		return errors.New("RetryWaitMax must not be lower than RetryWaitMin")
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithAPIURL overrides the REST root and returns the config for chaining.
func (c *Config) WithAPIURL(url string) *Config {
	c.APIURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the throttling parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCircuitBreaker enables the breaker with the given thresholds and returns the config for chaining.
func (c *Config) WithCircuitBreaker(failThreshold, successThreshold int, timeout time.Duration) *Config {
	c.CircuitBreakerEnabled = true
	c.CircuitBreakerFailThreshold = failThreshold
	c.CircuitBreakerSuccessThreshold = successThreshold
	c.CircuitBreakerTimeout = timeout
	return c
}

// WithoutCircuitBreaker disables the breaker and returns the config for chaining.
func (c *Config) WithoutCircuitBreaker() *Config {
	c.CircuitBreakerEnabled = false
	return c
}

// WithMarketBuyPricing sets CreateMarketBuyOrderRequiresPrice and returns the config for chaining.
func (c *Config) WithMarketBuyPricing(requiresPrice bool) *Config {
	c.CreateMarketBuyOrderRequiresPrice = requiresPrice
	return c
}
