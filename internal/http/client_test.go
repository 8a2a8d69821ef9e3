package http

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kkexlink/pkg/core"
)

func testConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		MaxRetries:   0,
		RetryWaitMin: 10 * time.Millisecond,
		RetryWaitMax: 50 * time.Millisecond,
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{Timeout: 0})
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "::bad", Timeout: time.Second})
	assert.Error(t, err)
}

func TestClient_DoGet(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/v1/ticker", r.URL.Path)
		assert.Equal(t, "ENUBTC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"date":1}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig())
	require.NoError(t, err)
	defer c.Close()

	req := core.NewRequest("GET", srv.URL+"/v1", "/ticker").
		SetQuery("symbol", "ENUBTC").
		SetQuery("size", 5)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, resp.IsError())
	assert.JSONEq(t, `{"date":1}`, string(resp.Body))
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_DoPostForm(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "api_key=k&sign=S&nonce=1", string(body))
		w.WriteHeader(nethttp.StatusBadRequest)
		_, _ = w.Write([]byte(`{"result":false}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig())
	require.NoError(t, err)
	defer c.Close()

	req := core.NewRequest("POST", srv.URL+"/v2", "/userinfo").
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("api_key=k&sign=S&nonce=1")

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.True(t, resp.IsError())
}

func TestClient_DoUnsupportedMethod(t *testing.T) {
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Do(context.Background(), core.NewRequest("PATCH", "http://127.0.0.1", "/x"))
	assert.Error(t, err)
}

func TestClient_Closed(t *testing.T) {
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Do(context.Background(), core.NewRequest("GET", "http://127.0.0.1", "/x"))
	assert.ErrorIs(t, err, core.ErrClientClosed)
}
