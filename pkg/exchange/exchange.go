package exchange

import (
	"context"

	"kkexlink/pkg/core"
)

// Exchange defines the venue-agnostic surface of a connector.
// Every call returns canonical records or a *core.ExchangeError describing
// why it failed; numbers the venue does not report are nil, never zero.
type Exchange interface {
	Name() string
	Version() string

	FetchMarkets(ctx context.Context) ([]core.Market, error)
	FetchTicker(ctx context.Context, symbol string, opts ...Option) (*core.Ticker, error)
	// FetchTickers returns tickers keyed by symbol. An empty symbols list means all markets.
	FetchTickers(ctx context.Context, symbols []string, opts ...Option) (map[string]core.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, opts ...Option) (*core.OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error)
	FetchOHLCV(ctx context.Context, symbol string, opts ...Option) ([]core.OHLCV, error)

	FetchBalance(ctx context.Context, opts ...Option) (*core.Balances, error)

	CreateOrder(ctx context.Context, req *OrderRequest, opts ...Option) (*core.Order, error)
	CancelOrder(ctx context.Context, id, symbol string, opts ...Option) (*core.Order, error)
	FetchOrder(ctx context.Context, id, symbol string, opts ...Option) (*core.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	FetchClosedOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
}
