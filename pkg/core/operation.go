package core

// Operation represents a type of action that can be performed on the venue.
type Operation int

// Operation constants define all supported venue operations.
const (
	// OpGetProducts retrieves product metadata (asset codes, scales, limits).
	OpGetProducts Operation = iota
	// OpGetTickers retrieves the ticker listing of every listed pair.
	OpGetTickers
	// OpGetTicker retrieves current market ticker data for a symbol.
	OpGetTicker
	// OpGetOrderBook retrieves the current order book depth.
	OpGetOrderBook
	// OpGetTrades retrieves recent trades for a symbol.
	OpGetTrades
	// OpGetKlines retrieves candlestick/OHLCV data.
	OpGetKlines
	// OpGetBalance retrieves account balance information.
	OpGetBalance
	// OpPlaceOrder submits a new order to the venue.
	OpPlaceOrder
	// OpCancelOrder cancels an existing order.
	OpCancelOrder
	// OpGetOrder retrieves details of a specific order.
	OpGetOrder
	// OpGetOrderHistory retrieves open or closed orders.
	OpGetOrderHistory
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return [...]string{
		"GET_PRODUCTS",
		"GET_TICKERS",
		"GET_TICKER",
		"GET_ORDER_BOOK",
		"GET_TRADES",
		"GET_KLINES",
		"GET_BALANCE",
		"PLACE_ORDER",
		"CANCEL_ORDER",
		"GET_ORDER",
		"GET_ORDER_HISTORY",
	}[o]
}

// Private reports whether the operation mutates or reads account state and must be signed.
func (o Operation) Private() bool {
	switch o {
	case OpGetBalance, OpPlaceOrder, OpCancelOrder, OpGetOrder, OpGetOrderHistory:
		return true
	}
	return false
}
