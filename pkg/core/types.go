package core

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order or trade ("buy" or "sell").
type OrderSide string

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = "buy"
	// SideSell indicates an order to sell an asset.
	SideSell OrderSide = "sell"
)

// String returns the side as reported to callers.
func (s OrderSide) String() string {
	return string(s)
}

// ParseOrderSide accepts both uppercase and lowercase renderings.
// Unrecognized values are returned lowercased rather than rejected.
func ParseOrderSide(s string) OrderSide {
	return OrderSide(strings.ToLower(strings.TrimSpace(s)))
}

// OrderType represents how an order executes.
type OrderType string

// Order type constants define how an order is executed.
const (
	// TypeMarket executes immediately at the best available price.
	TypeMarket OrderType = "market"
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = "limit"
)

// String returns the order type as reported to callers.
func (t OrderType) String() string {
	return string(t)
}

// OrderStatus is the canonical lifecycle state of an order.
// Venue codes without a canonical mapping are carried through verbatim,
// so the set of values is open-ended.
type OrderStatus string

// Canonical order states.
const (
	// StatusOpen indicates the order rests on the book, possibly partially filled.
	StatusOpen OrderStatus = "open"
	// StatusClosed indicates the order has been completely filled.
	StatusClosed OrderStatus = "closed"
	// StatusCanceled indicates the order was canceled before completion.
	StatusCanceled OrderStatus = "canceled"
)

// String returns the status as reported to callers.
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// IsCanonical reports whether the status is one of the three canonical states.
func (s OrderStatus) IsCanonical() bool {
	return s == StatusOpen || s == StatusClosed || s == StatusCanceled
}

// Precision holds the number of decimal places accepted for prices and amounts.
type Precision struct {
	Price  int `json:"price"`
	Amount int `json:"amount"`
}

// MinMax is a closed interval; either bound may be unknown.
type MinMax struct {
	Min *apd.Decimal `json:"min"`
	Max *apd.Decimal `json:"max"`
}

// Limits describes the order bounds of a market.
type Limits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// Market describes one tradable pair of the venue.
// Markets are built once per catalog load and never modified afterwards.
type Market struct {
	// ID is the venue-native pair symbol (e.g., "ENUBTC").
	ID string `json:"id"`
	// Symbol is the canonical "BASE/QUOTE" symbol; empty when the pair has no product metadata.
	Symbol string `json:"symbol"`
	// Base is the canonical base currency code.
	Base string `json:"base"`
	// Quote is the canonical quote currency code.
	Quote string `json:"quote"`
	// BaseID is the venue-native base currency code.
	BaseID string `json:"base_id"`
	// QuoteID is the venue-native quote currency code.
	QuoteID string `json:"quote_id"`
	// Precision is nil when no product metadata matched the pair.
	Precision *Precision `json:"precision,omitempty"`
	// Limits is nil when no product metadata matched the pair.
	Limits *Limits `json:"limits,omitempty"`
	// Active reports whether the pair is listed with product metadata.
	Active bool `json:"active"`
	// Info is the raw product entry the market was built from.
	Info map[string]any `json:"info,omitempty"`
}

// Ticker represents a 24-hour market data snapshot for a trading pair.
// Fields the venue does not report are nil, never zero.
type Ticker struct {
	Symbol        string         `json:"symbol"`
	Timestamp     *int64         `json:"timestamp,omitempty"`
	High          *apd.Decimal   `json:"high"`
	Low           *apd.Decimal   `json:"low"`
	Bid           *apd.Decimal   `json:"bid"`
	BidVolume     *apd.Decimal   `json:"bid_volume"`
	Ask           *apd.Decimal   `json:"ask"`
	AskVolume     *apd.Decimal   `json:"ask_volume"`
	VWAP          *apd.Decimal   `json:"vwap"`
	Open          *apd.Decimal   `json:"open"`
	Close         *apd.Decimal   `json:"close"`
	Last          *apd.Decimal   `json:"last"`
	PreviousClose *apd.Decimal   `json:"previous_close"`
	Change        *apd.Decimal   `json:"change"`
	Percentage    *apd.Decimal   `json:"percentage"`
	Average       *apd.Decimal   `json:"average"`
	BaseVolume    *apd.Decimal   `json:"base_volume"`
	QuoteVolume   *apd.Decimal   `json:"quote_volume"`
	Info          map[string]any `json:"info,omitempty"`
}

// Fee is a trading fee charged in some currency.
type Fee struct {
	Cost     *apd.Decimal `json:"cost"`
	Currency string       `json:"currency"`
}

// Trade represents a single public execution.
type Trade struct {
	ID        string         `json:"id"`
	Order     *string        `json:"order,omitempty"`
	Symbol    string         `json:"symbol"`
	Timestamp *int64         `json:"timestamp,omitempty"`
	Type      OrderType      `json:"type"`
	Side      OrderSide      `json:"side"`
	Price     *apd.Decimal   `json:"price"`
	Amount    *apd.Decimal   `json:"amount"`
	Fee       *Fee           `json:"fee,omitempty"`
	Info      map[string]any `json:"info,omitempty"`
}

// Order represents an exchange order with all its details.
// Remaining and Cost are derived and nil whenever an operand is unknown.
type Order struct {
	ID                 int64          `json:"id"`
	Symbol             string         `json:"symbol"`
	Side               OrderSide      `json:"side"`
	Type               OrderType      `json:"type"`
	Status             OrderStatus    `json:"status"`
	Price              *apd.Decimal   `json:"price"`
	Average            *apd.Decimal   `json:"average"`
	Amount             *apd.Decimal   `json:"amount"`
	Filled             *apd.Decimal   `json:"filled"`
	Remaining          *apd.Decimal   `json:"remaining"`
	Cost               *apd.Decimal   `json:"cost"`
	Timestamp          *int64         `json:"timestamp,omitempty"`
	LastTradeTimestamp *int64         `json:"last_trade_timestamp,omitempty"`
	Fee                *Fee           `json:"fee,omitempty"`
	Info               map[string]any `json:"info,omitempty"`
}

// Balance is the holding of a single currency.
type Balance struct {
	Free  *apd.Decimal `json:"free"`
	Used  *apd.Decimal `json:"used"`
	Total *apd.Decimal `json:"total"`
}

// Balances is the account holding per canonical currency code.
type Balances struct {
	Currencies map[string]Balance `json:"currencies"`
	Info       map[string]any     `json:"info,omitempty"`
}

// OHLCV represents one candlestick row.
type OHLCV struct {
	Timestamp int64        `json:"timestamp"`
	Open      *apd.Decimal `json:"open"`
	High      *apd.Decimal `json:"high"`
	Low       *apd.Decimal `json:"low"`
	Close     *apd.Decimal `json:"close"`
	Volume    *apd.Decimal `json:"volume"`
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	Price  apd.Decimal `json:"price"`
	Amount apd.Decimal `json:"amount"`
}

// OrderBook is a one-shot snapshot of the book for a trading pair.
// Bids are sorted by price descending, asks by price ascending.
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp *int64           `json:"timestamp,omitempty"`
}
