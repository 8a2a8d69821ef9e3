package http

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"kkexlink/pkg/core"
)

// RequestIDHeader carries the per-request id that ties request and response log lines together.
const RequestIDHeader = "X-Request-Id"

type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	// BaseURL is optional; requests built from core.Request carry absolute URLs.
	BaseURL      string            `validate:"omitempty,url"`
	Timeout      time.Duration     `validate:"min=1ms"`
	MaxRetries   int               `validate:"min=0"`
	RetryWaitMin time.Duration     `validate:"min=0"`
	RetryWaitMax time.Duration     `validate:"min=0"`
	Headers      map[string]string `validate:"omitempty"`
}

// Response is the raw outcome of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// IsError reports whether the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

type ClientOption func(*Client)

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	if config.BaseURL != "" {
		client.SetBaseURL(config.BaseURL)
	}
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(config.MaxRetries)
	client.SetRetryWaitTime(config.RetryWaitMin)
	client.SetRetryMaxWaitTime(config.RetryWaitMax)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.SetHeader(RequestIDHeader, uuid.NewString())
		}
		c.logger.Debug().
			Str("request_id", req.Header.Get(RequestIDHeader)).
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		c.logger.Debug().
			Str("request_id", resp.Request.Header.Get(RequestIDHeader)).
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Do sends req and returns the raw response. Non-2xx statuses are not errors
// at this layer; only failures to complete the exchange are.
func (c *Client) Do(ctx context.Context, req *core.Request) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	id := uuid.NewString()
	r := c.client.R().SetContext(ctx).SetHeader(RequestIDHeader, id)

	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	if len(req.Query) > 0 {
		query := make(map[string]string, len(req.Query))
		for k, v := range req.Query {
			query[k] = core.FormatParam(v)
		}
		r.SetQueryParams(query)
	}

	if req.Body != nil {
		r.SetBody(req.Body)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch req.Method {
	case "GET":
		resp, err = r.Get(req.URL())
	case "POST":
		resp, err = r.Post(req.URL())
	case "DELETE":
		resp, err = r.Delete(req.URL())
	default:
		return nil, fmt.Errorf("unsupported method: %s", req.Method)
	}
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Bytes(),
		RequestID:  id,
	}, nil
}
