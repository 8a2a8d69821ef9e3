package kkex

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"kkexlink/internal/circuitbreaker"
	httpClient "kkexlink/internal/http"
	"kkexlink/internal/keyring"
	"kkexlink/internal/ratelimit"
	"kkexlink/pkg/core"
	"kkexlink/pkg/exchange"
)

var _ exchange.Exchange = (*KKEXExchange)(nil)

// Timeframes maps canonical candle widths to the venue's kline types.
var Timeframes = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1hour",
	"8h":  "12hour",
	"1d":  "day",
	"1w":  "1week",
}

const (
	defaultTimeframe       = "1m"
	defaultOHLCVLimit      = 5
	defaultOHLCVWindow     = time.Minute
	defaultOrderPageLength = 20
	defaultOrderWindow     = time.Hour

	orderHistoryOpen   = 0
	orderHistoryClosed = 1
)

// KKEXExchange is the KKEX connector. It is safe for concurrent use.
type KKEXExchange struct {
	config      *core.Config
	protocol    *Protocol
	normalizer  *Normalizer
	httpClient  *httpClient.Client
	rateLimiter *ratelimit.RateLimiter
	breaker     *circuitbreaker.Breaker
	keyRing     *keyring.KeyRing
	logger      zerolog.Logger
	now         func() time.Time

	catalog atomic.Pointer[Catalog]
	loads   singleflight.Group
}

// Option is a functional option for configuring the KKEXExchange.
type Option func(*Options)

// Options holds configuration options for the KKEXExchange.
type Options struct {
	KeyRing            *keyring.KeyRing
	Logger             zerolog.Logger
	CurrencyNormalizer core.CurrencyNormalizer
	Clock              func() time.Time
}

// WithKeyRing supplies credentials through a key ring instead of Config.Credentials.
func WithKeyRing(kr *keyring.KeyRing) Option {
	return func(o *Options) {
		o.KeyRing = kr
	}
}

// WithLogger returns an option that sets the logger for the exchange.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithCurrencyNormalizer replaces the default mapping of venue currency codes.
func WithCurrencyNormalizer(fn core.CurrencyNormalizer) Option {
	return func(o *Options) {
		o.CurrencyNormalizer = fn
	}
}

// WithClock replaces the time source used for nonces and default time windows.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// New creates a connector from config. A nil config means core.DefaultConfig().
func New(config *core.Config, opts ...Option) (*KKEXExchange, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, core.NewExchangeError(exchangeName, core.ErrorTypeValidation, 0, "invalid config: "+err.Error()).
			WithCode(core.ErrCodeInvalidConfig).
			WithCause(err)
	}

	options := &Options{
		Logger:             zerolog.Nop(),
		CurrencyNormalizer: core.CommonCurrencyCode,
		Clock:              time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger.With().Str("exchange", exchangeName).Logger()
	if config.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			logger = logger.Level(lvl)
		}
	}

	client, err := httpClient.NewClient(&httpClient.Config{
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
	}, httpClient.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	kr := options.KeyRing
	if kr == nil {
		kr = keyring.FromCredentials(config.Credentials,
			keyring.WithClock(options.Clock),
			keyring.WithLogger(logger))
	}

	var breaker *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		}, circuitbreaker.WithClock(options.Clock), circuitbreaker.WithLogger(logger))
	}

	return &KKEXExchange{
		config:      config,
		protocol:    NewProtocol(config.APIURL),
		normalizer:  NewNormalizer(options.CurrencyNormalizer, logger),
		httpClient:  client,
		rateLimiter: ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod),
		breaker:     breaker,
		keyRing:     kr,
		logger:      logger,
		now:         options.Clock,
	}, nil
}

// Name returns the exchange identifier "kkex".
func (e *KKEXExchange) Name() string {
	return exchangeName
}

func (e *KKEXExchange) Version() string {
	return e.protocol.Version()
}

// Close releases the HTTP client. Further calls fail with a network error.
func (e *KKEXExchange) Close() error {
	return e.httpClient.Close()
}

// Metrics is a point-in-time view of the connector's request guards.
type Metrics struct {
	RateLimit      ratelimit.MetricsSnapshot
	CircuitBreaker circuitbreaker.MetricsSnapshot
}

// Metrics snapshots the throttle and circuit breaker counters. Disabled
// guards report zero values.
func (e *KKEXExchange) Metrics() Metrics {
	return Metrics{
		RateLimit:      e.rateLimiter.Metrics(),
		CircuitBreaker: e.breaker.Metrics(),
	}
}

// LoadMarkets returns the market catalog, building it on first use or when
// reload is set. Concurrent callers share a single in-flight build and
// readers only ever observe a complete snapshot. The shared build is detached
// from any one caller's cancellation; each caller still stops waiting when
// its own ctx is done.
func (e *KKEXExchange) LoadMarkets(ctx context.Context, reload bool) (*Catalog, error) {
	if !reload {
		if c := e.catalog.Load(); c != nil {
			return c, nil
		}
	}

	ch := e.loads.DoChan("markets", func() (any, error) {
		if !reload {
			if c := e.catalog.Load(); c != nil {
				return c, nil
			}
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.catalogTimeout())
		defer cancel()

		c, err := e.buildCatalog(buildCtx)
		if err != nil {
			return nil, err
		}
		e.catalog.Store(c)
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	case <-ctx.Done():
		return nil, transportError(ctx.Err())
	}
}

// catalogTimeout bounds a detached catalog build: two requests, each with
// its full retry allowance.
func (e *KKEXExchange) catalogTimeout() time.Duration {
	attempts := time.Duration(e.config.MaxRetries + 1)
	return 2 * attempts * (e.config.Timeout + e.config.RetryWaitMax)
}

func (e *KKEXExchange) buildCatalog(ctx context.Context) (*Catalog, error) {
	var tickers tickersResponse
	if err := e.fetch(ctx, core.OpGetTickers, nil, &tickers); err != nil {
		return nil, fmt.Errorf("fetch ticker listing: %w", err)
	}

	var products productsResponse
	if err := e.fetch(ctx, core.OpGetProducts, nil, &products); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	c, err := BuildCatalog(tickers.Tickers, products.Products, e.normalizer.normalize)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("markets", c.Len()).
		Int("products", len(products.Products)).
		Msg("market catalog built")
	return c, nil
}

// FetchMarkets returns every market of the catalog, loading it if needed.
func (e *KKEXExchange) FetchMarkets(ctx context.Context) ([]core.Market, error) {
	c, err := e.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}
	return c.Markets(), nil
}

// FetchTicker retrieves the current ticker for the specified symbol.
func (e *KKEXExchange) FetchTicker(ctx context.Context, symbol string, opts ...exchange.Option) (*core.Ticker, error) {
	options := exchange.ApplyOptions(opts...)

	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var resp tickerResponse
	if err := e.fetch(ctx, core.OpGetTicker, withParams(core.Params{"symbol": m.ID}, options.Params), &resp); err != nil {
		return nil, err
	}
	if resp.Ticker == nil {
		return nil, core.NewDataContractError(exchangeName, "ticker response for %s has no ticker", m.ID)
	}

	return e.normalizer.NormalizeTicker(withEnvelope(resp.Ticker, "date", resp.Date), m)
}

// FetchTickers retrieves tickers keyed by symbol, optionally restricted to symbols.
func (e *KKEXExchange) FetchTickers(ctx context.Context, symbols []string, opts ...exchange.Option) (map[string]core.Ticker, error) {
	options := exchange.ApplyOptions(opts...)

	c, err := e.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}

	var resp tickersResponse
	if err := e.fetch(ctx, core.OpGetTickers, withParams(nil, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeTickers(&resp, c, symbols)
}

// FetchOrderBook retrieves a depth snapshot. WithLimit sets the venue's size parameter.
func (e *KKEXExchange) FetchOrderBook(ctx context.Context, symbol string, opts ...exchange.Option) (*core.OrderBook, error) {
	options := exchange.ApplyOptions(opts...)

	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	params := core.Params{"symbol": m.ID}
	if options.Limit > 0 {
		params["size"] = options.Limit
	}

	var resp depthResponse
	if err := e.fetch(ctx, core.OpGetOrderBook, withParams(params, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeOrderBook(&resp, m)
}

// FetchTrades retrieves recent public trades, oldest first.
func (e *KKEXExchange) FetchTrades(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Trade, error) {
	options := exchange.ApplyOptions(opts...)

	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var resp []map[string]any
	if err := e.fetch(ctx, core.OpGetTrades, withParams(core.Params{"symbol": m.ID}, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeTrades(resp, m, options.Since, options.Limit)
}

// FetchOHLCV retrieves candles. Without options it asks for the last minute
// of 1m candles, at most five.
func (e *KKEXExchange) FetchOHLCV(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.OHLCV, error) {
	options := exchange.ApplyOptions(opts...)

	timeframe := options.Timeframe
	if timeframe == "" {
		timeframe = defaultTimeframe
	}
	kind, ok := Timeframes[timeframe]
	if !ok {
		return nil, core.NewValidationError(exchangeName, "unsupported timeframe %q", timeframe)
	}

	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	limit := options.Limit
	if limit <= 0 {
		limit = defaultOHLCVLimit
	}
	since := options.Since
	if since <= 0 {
		since = e.now().Add(-defaultOHLCVWindow).UnixMilli()
	}

	params := core.Params{
		"symbol": m.ID,
		"type":   kind,
		"since":  since,
		"size":   limit,
	}

	var resp [][]any
	if err := e.fetch(ctx, core.OpGetKlines, withParams(params, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeOHLCV(resp, since, limit)
}

// FetchBalance retrieves free, used and total funds per currency.
func (e *KKEXExchange) FetchBalance(ctx context.Context, opts ...exchange.Option) (*core.Balances, error) {
	options := exchange.ApplyOptions(opts...)

	var resp userInfoResponse
	if err := e.fetch(ctx, core.OpGetBalance, withParams(nil, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeBalance(&resp)
}

// CreateOrder places a limit or market order and returns it as open.
//
// Limit orders send amount truncated and price rounded to the market precision.
// Market buys send the quote cost in the price field: amount*price when
// Config.CreateMarketBuyOrderRequiresPrice is set, otherwise amount as given.
// Market sells send amount.
func (e *KKEXExchange) CreateOrder(ctx context.Context, req *exchange.OrderRequest, opts ...exchange.Option) (*core.Order, error) {
	options := exchange.ApplyOptions(opts...)

	if req == nil {
		return nil, core.NewValidationError(exchangeName, "order request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, core.NewValidationError(exchangeName, "invalid order: %v", err)
	}

	m, err := e.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	params, err := e.orderParams(m, req)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := e.fetch(ctx, core.OpPlaceOrder, withParams(params, options.Params), &resp); err != nil {
		return nil, err
	}

	idValue, ok := resp["order_id"]
	if !ok {
		return nil, core.NewDataContractError(exchangeName, "order response has no order_id")
	}
	id, err := parseOrderID(idValue)
	if err != nil {
		return nil, err
	}

	return &core.Order{
		ID:     id,
		Symbol: m.Symbol,
		Side:   req.Side,
		Type:   req.Type,
		Status: core.StatusOpen,
		Price:  req.Price,
		Amount: req.Amount,
		Info:   resp,
	}, nil
}

func (e *KKEXExchange) orderParams(m *core.Market, req *exchange.OrderRequest) (core.Params, error) {
	params := core.Params{"symbol": m.ID}

	if req.Type == core.TypeLimit {
		amount, err := formatAmount(m, req.Amount)
		if err != nil {
			return nil, err
		}
		price, err := formatPrice(m, req.Price)
		if err != nil {
			return nil, err
		}
		params["amount"] = amount
		params["price"] = price
		params["type"] = string(req.Side)
		return params, nil
	}

	params["type"] = string(req.Side) + "_market"

	if req.Side == core.SideSell {
		amount, err := formatAmount(m, req.Amount)
		if err != nil {
			return nil, err
		}
		params["amount"] = amount
		return params, nil
	}

	cost := req.Amount
	if e.config.CreateMarketBuyOrderRequiresPrice {
		if req.Price == nil {
			return nil, core.NewExchangeError(exchangeName, core.ErrorTypeInvalidOrder, 0,
				"market buy needs a price to compute cost = amount * price; "+
					"disable CreateMarketBuyOrderRequiresPrice to pass the cost as amount").
				WithCode(core.ErrCodeInvalidOrder)
		}
		var err error
		if cost, err = core.MulOpt(req.Amount, req.Price); err != nil {
			return nil, fmt.Errorf("market buy cost: %w", err)
		}
	}
	price, err := formatAmount(m, cost)
	if err != nil {
		return nil, err
	}
	params["price"] = price
	return params, nil
}

// CancelOrder cancels an order. The venue returns no order payload, so the
// result carries the id, symbol and canceled status with the raw response as Info.
func (e *KKEXExchange) CancelOrder(ctx context.Context, id, symbol string, opts ...exchange.Option) (*core.Order, error) {
	options := exchange.ApplyOptions(opts...)

	orderID, err := requireOrderID(id)
	if err != nil {
		return nil, err
	}
	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	params := core.Params{"order_id": id, "symbol": m.ID}
	if err := e.fetch(ctx, core.OpCancelOrder, withParams(params, options.Params), &resp); err != nil {
		return nil, err
	}

	return &core.Order{
		ID:     orderID,
		Symbol: m.Symbol,
		Status: core.StatusCanceled,
		Info:   resp,
	}, nil
}

// FetchOrder retrieves one order. A rejected lookup is reported as not found.
func (e *KKEXExchange) FetchOrder(ctx context.Context, id, symbol string, opts ...exchange.Option) (*core.Order, error) {
	options := exchange.ApplyOptions(opts...)

	if _, err := requireOrderID(id); err != nil {
		return nil, err
	}
	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Order map[string]any `json:"order"`
	}
	params := core.Params{"order_id": id, "symbol": m.ID}
	if err := e.fetch(ctx, core.OpGetOrder, withParams(params, options.Params), &resp); err != nil {
		var exErr *core.ExchangeError
		if errors.As(err, &exErr) && exErr.Type == core.ErrorTypeNotFound && exErr.StatusCode < 400 {
			return nil, core.NewNotFoundError(exchangeName, "order %s not found", id).WithCause(err)
		}
		return nil, err
	}
	if resp.Order == nil {
		return nil, core.NewDataContractError(exchangeName, "order response for %s has no order", id)
	}

	return e.normalizer.NormalizeOrder(resp.Order, m)
}

// FetchOpenOrders lists open orders. Defaults: page of 20, created within the last hour.
func (e *KKEXExchange) FetchOpenOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.fetchOrders(ctx, symbol, orderHistoryOpen, opts...)
}

// FetchClosedOrders lists closed orders with the same defaults as FetchOpenOrders.
func (e *KKEXExchange) FetchClosedOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.fetchOrders(ctx, symbol, orderHistoryClosed, opts...)
}

func (e *KKEXExchange) fetchOrders(ctx context.Context, symbol string, status int, opts ...exchange.Option) ([]core.Order, error) {
	options := exchange.ApplyOptions(opts...)

	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	limit := options.Limit
	if limit <= 0 {
		limit = defaultOrderPageLength
	}
	since := options.Since
	if since <= 0 {
		since = e.now().Add(-defaultOrderWindow).UnixMilli()
	}

	params := core.Params{
		"symbol":      m.ID,
		"status":      status,
		"page_length": limit,
	}

	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	if err := e.fetch(ctx, core.OpGetOrderHistory, withParams(params, options.Params), &resp); err != nil {
		return nil, err
	}

	return e.normalizer.NormalizeOrders(resp.Orders, m, since, limit)
}

// market resolves a canonical symbol, loading the catalog if needed.
func (e *KKEXExchange) market(ctx context.Context, symbol string) (*core.Market, error) {
	if symbol == "" {
		return nil, core.NewValidationError(exchangeName, "symbol is required")
	}
	c, err := e.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}
	m, ok := c.Market(symbol)
	if !ok {
		return nil, core.NewValidationError(exchangeName, "unknown symbol %s", symbol).
			WithCode(core.ErrCodeInvalidSymbol)
	}
	return &m, nil
}

func (e *KKEXExchange) fetch(ctx context.Context, op core.Operation, params core.Params, out any) error {
	body, err := e.call(ctx, op, params)
	if err != nil {
		return err
	}
	if err := jsonAPI.Unmarshal(body, out); err != nil {
		return core.NewDataContractError(exchangeName, "decode %s response: %v", op, err)
	}
	return nil
}

// call runs one request through the circuit breaker, throttling, signing,
// transport and the venue's result check, returning the raw body.
func (e *KKEXExchange) call(ctx context.Context, op core.Operation, params core.Params) ([]byte, error) {
	req, err := e.protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, err
	}

	if req.Private && e.keyRing == nil {
		return nil, core.NewAuthenticationError(exchangeName, core.ErrNoCredentials)
	}

	if err := e.breaker.Allow(); err != nil {
		return nil, core.NewTransportError(exchangeName, err)
	}
	body, err := e.send(ctx, op, req)
	e.breaker.Record(!breakerFailure(err))
	return body, err
}

func (e *KKEXExchange) send(ctx context.Context, op core.Operation, req *core.Request) ([]byte, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, transportError(err)
	}

	var keyID string
	if req.Private {
		lease, err := e.keyRing.Acquire()
		if err != nil {
			return nil, core.NewAuthenticationError(exchangeName, err).WithCode(core.ErrCodeNoAPIKey)
		}
		keyID = lease.KeyID
		if err := e.protocol.SignRequest(req, lease.Credentials, lease.Nonce); err != nil {
			return nil, err
		}
	}

	resp, err := e.httpClient.Do(ctx, req)
	if err != nil {
		err = transportError(err)
		if req.Private {
			e.keyRing.OnError(keyID, err)
		}
		return nil, err
	}

	if err := e.protocol.CheckResponse(op, resp.StatusCode, resp.Body); err != nil {
		e.logger.Debug().
			Str("request_id", resp.RequestID).
			Str("op", op.String()).
			Err(err).
			Msg("request rejected")
		if req.Private && resp.IsError() {
			e.keyRing.OnError(keyID, err)
		}
		return nil, err
	}

	return resp.Body, nil
}

// breakerFailure reports whether err says the venue itself is unhealthy.
// Rejections of a particular request and caller cancellations do not count.
func breakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var exErr *core.ExchangeError
	if !errors.As(err, &exErr) {
		return false
	}
	switch exErr.Type {
	case core.ErrorTypeNetwork, core.ErrorTypeTimeout, core.ErrorTypeServerError, core.ErrorTypeRateLimit:
		return true
	}
	return false
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewExchangeError(exchangeName, core.ErrorTypeTimeout, 0, "request timed out").
			WithCode(core.ErrCodeTimeout).
			WithCause(err)
	}
	if errors.Is(err, core.ErrClientClosed) {
		return core.NewTransportError(exchangeName, err).WithCode(core.ErrCodeClientClosed)
	}
	return core.NewTransportError(exchangeName, err)
}

// withParams overlays caller-supplied parameters on computed ones.
func withParams(base, extra core.Params) core.Params {
	if len(extra) == 0 {
		return base
	}
	out := make(core.Params, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

func requireOrderID(id string) (int64, error) {
	if id == "" {
		return 0, core.NewValidationError(exchangeName, "order id is required")
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, core.NewValidationError(exchangeName, "order id %q is not numeric", id)
	}
	return n, nil
}

func formatAmount(m *core.Market, v *apd.Decimal) (string, error) {
	if m.Precision == nil {
		return v.Text('f'), nil
	}
	return core.AmountToPrecision(v, m.Precision.Amount)
}

func formatPrice(m *core.Market, v *apd.Decimal) (string, error) {
	if m.Precision == nil {
		return v.Text('f'), nil
	}
	return core.PriceToPrecision(v, m.Precision.Price)
}
