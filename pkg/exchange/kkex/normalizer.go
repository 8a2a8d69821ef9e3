package kkex

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"kkexlink/pkg/core"
)

type tickerResponse struct {
	Date   any            `json:"date"`
	Ticker map[string]any `json:"ticker"`
}

type tickersResponse struct {
	Date    any             `json:"date"`
	Tickers []TickerListing `json:"tickers"`
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type depthResponse struct {
	Bids [][]any `json:"bids"`
	Asks [][]any `json:"asks"`
}

type userInfoResponse struct {
	Info map[string]any `json:"info"`
}

// Normalizer converts venue payloads into canonical records.
type Normalizer struct {
	normalize core.CurrencyNormalizer
	logger    zerolog.Logger
}

func NewNormalizer(normalize core.CurrencyNormalizer, logger zerolog.Logger) *Normalizer {
	return &Normalizer{normalize: normalize, logger: logger}
}

// NormalizeTicker converts one ticker payload. The venue reports its
// timestamp in seconds under "date".
func (n *Normalizer) NormalizeTicker(raw map[string]any, market *core.Market) (*core.Ticker, error) {
	ts, err := int64Field(raw, "date")
	if err != nil {
		return nil, core.NewDataContractError(exchangeName, "ticker date: %v", err)
	}
	if ts != nil {
		ms := *ts * 1000
		ts = &ms
	}

	t := &core.Ticker{Timestamp: ts, Info: raw}
	if market != nil {
		t.Symbol = market.Symbol
	}

	for key, dst := range map[string]**apd.Decimal{
		"high": &t.High,
		"low":  &t.Low,
		"buy":  &t.Bid,
		"sell": &t.Ask,
		"last": &t.Last,
		"vol":  &t.BaseVolume,
	} {
		if *dst, err = decimalField(raw, key); err != nil {
			return nil, core.NewDataContractError(exchangeName, "ticker %s: %v", key, err)
		}
	}
	t.Close = t.Last

	return t, nil
}

// NormalizeTickers converts the bulk listing into tickers keyed by symbol.
// Entries whose pair id is not in the catalog are skipped. A non-empty
// symbols list restricts the result.
func (n *Normalizer) NormalizeTickers(resp *tickersResponse, catalog *Catalog, symbols []string) (map[string]core.Ticker, error) {
	out := make(map[string]core.Ticker, len(resp.Tickers))
	for _, l := range resp.Tickers {
		market, ok := catalog.MarketByID(l.PairID)
		if !ok || market.Symbol == "" {
			n.logger.Debug().Str("pair", l.PairID).Msg("skipping ticker for unknown market")
			continue
		}
		if len(symbols) > 0 && !slices.Contains(symbols, market.Symbol) {
			continue
		}

		raw := withEnvelope(l.Ticker, "date", resp.Date)
		t, err := n.NormalizeTicker(raw, &market)
		if err != nil {
			return nil, err
		}
		out[market.Symbol] = *t
	}
	return out, nil
}

// NormalizeTrade converts one public trade. Its timestamp is already in milliseconds.
func (n *Normalizer) NormalizeTrade(raw map[string]any, market *core.Market) (core.Trade, error) {
	ts, err := int64Field(raw, "date_ms")
	if err != nil {
		return core.Trade{}, core.NewDataContractError(exchangeName, "trade date_ms: %v", err)
	}
	price, err := decimalField(raw, "price")
	if err != nil {
		return core.Trade{}, core.NewDataContractError(exchangeName, "trade price: %v", err)
	}
	amount, err := decimalField(raw, "amount")
	if err != nil {
		return core.Trade{}, core.NewDataContractError(exchangeName, "trade amount: %v", err)
	}

	return core.Trade{
		ID:        stringField(raw, "tid"),
		Symbol:    market.Symbol,
		Timestamp: ts,
		Type:      core.TypeLimit,
		Side:      core.ParseOrderSide(stringField(raw, "type")),
		Price:     price,
		Amount:    amount,
		Info:      raw,
	}, nil
}

// NormalizeTrades converts a trade list, orders it by time and applies since/limit.
func (n *Normalizer) NormalizeTrades(raw []map[string]any, market *core.Market, since int64, limit int) ([]core.Trade, error) {
	trades := make([]core.Trade, 0, len(raw))
	for _, r := range raw {
		t, err := n.NormalizeTrade(r, market)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	slices.SortStableFunc(trades, func(a, b core.Trade) int {
		return compareStamps(a.Timestamp, b.Timestamp)
	})
	return core.FilterBySinceLimit(trades, func(t *core.Trade) *int64 { return t.Timestamp }, since, limit), nil
}

// NormalizeOHLCV converts kline rows of [timestamp, open, high, low, close, volume].
func (n *Normalizer) NormalizeOHLCV(rows [][]any, since int64, limit int) ([]core.OHLCV, error) {
	out := make([]core.OHLCV, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, core.NewDataContractError(exchangeName, "kline row %d has %d fields", i, len(row))
		}
		ts, err := int64Value(row[0])
		if err != nil || ts == nil {
			return nil, core.NewDataContractError(exchangeName, "kline row %d timestamp: %v", i, row[0])
		}
		c := core.OHLCV{Timestamp: *ts}
		for j, dst := range []**apd.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			if *dst, err = core.DecimalFromAny(row[j+1]); err != nil {
				return nil, core.NewDataContractError(exchangeName, "kline row %d field %d: %v", i, j+1, err)
			}
		}
		out = append(out, c)
	}
	return core.FilterBySinceLimit(out, func(c *core.OHLCV) *int64 { return &c.Timestamp }, since, limit), nil
}

// NormalizeOrderBook converts a depth snapshot. Bids are sorted by price
// descending and asks ascending regardless of the order the venue used.
func (n *Normalizer) NormalizeOrderBook(resp *depthResponse, market *core.Market) (*core.OrderBook, error) {
	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return nil, core.NewDataContractError(exchangeName, "bids: %v", err)
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return nil, core.NewDataContractError(exchangeName, "asks: %v", err)
	}

	slices.SortStableFunc(bids, func(a, b core.OrderBookLevel) int { return b.Price.Cmp(&a.Price) })
	slices.SortStableFunc(asks, func(a, b core.OrderBookLevel) int { return a.Price.Cmp(&b.Price) })

	return &core.OrderBook{
		Symbol: market.Symbol,
		Bids:   bids,
		Asks:   asks,
	}, nil
}

func parseLevels(rows [][]any) ([]core.OrderBookLevel, error) {
	levels := make([]core.OrderBookLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("level %d has %d fields", i, len(row))
		}
		price, err := core.DecimalFromAny(row[0])
		if err != nil || price == nil {
			return nil, fmt.Errorf("level %d price: %v", i, row[0])
		}
		amount, err := core.DecimalFromAny(row[1])
		if err != nil || amount == nil {
			return nil, fmt.Errorf("level %d amount: %v", i, row[1])
		}
		levels = append(levels, core.OrderBookLevel{Price: *price, Amount: *amount})
	}
	return levels, nil
}

// NormalizeBalance converts the account payload. Free funds live under
// info.funds.free and reserved funds under info.funds.freezed.
func (n *Normalizer) NormalizeBalance(resp *userInfoResponse) (*core.Balances, error) {
	funds, _ := resp.Info["funds"].(map[string]any)
	if funds == nil {
		return nil, core.NewDataContractError(exchangeName, "balance response has no funds")
	}
	free, _ := funds["free"].(map[string]any)
	freezed, _ := funds["freezed"].(map[string]any)

	out := &core.Balances{
		Currencies: make(map[string]core.Balance, len(free)),
		Info:       resp.Info,
	}
	for code, v := range free {
		f, err := core.DecimalFromAny(v)
		if err != nil {
			return nil, core.NewDataContractError(exchangeName, "free %s: %v", code, err)
		}
		u, err := core.DecimalFromAny(freezed[code])
		if err != nil {
			return nil, core.NewDataContractError(exchangeName, "freezed %s: %v", code, err)
		}
		total, err := core.AddOpt(f, u)
		if err != nil {
			return nil, core.NewDataContractError(exchangeName, "total %s: %v", code, err)
		}
		out.Currencies[core.CanonicalCurrency(code, n.normalize)] = core.Balance{Free: f, Used: u, Total: total}
	}
	return out, nil
}

// withEnvelope returns a copy of payload with the envelope field merged in.
// The envelope wins when both carry the key.
func withEnvelope(payload map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	if value != nil {
		out[key] = value
	}
	return out
}

func compareStamps(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func decimalField(m map[string]any, key string) (*apd.Decimal, error) {
	return core.DecimalFromAny(m[key])
}

func int64Field(m map[string]any, key string) (*int64, error) {
	return int64Value(m[key])
}

func int64Value(v any) (*int64, error) {
	var (
		n   int64
		err error
	)
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		n, err = val.Int64()
		if err != nil {
			var f float64
			if f, err = val.Float64(); err == nil {
				n = int64(f)
			}
		}
	case string:
		if val == "" {
			return nil, nil
		}
		n, err = strconv.ParseInt(val, 10, 64)
	case float64:
		n = int64(val)
	case int64:
		n = val
	case int:
		n = int64(val)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}
