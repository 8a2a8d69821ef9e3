package kkex

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"kkexlink/pkg/core"
)

// TickerListing is one entry of the bulk ticker listing. On the wire each
// entry is an object with a single key, the venue pair id.
type TickerListing struct {
	PairID string
	Ticker map[string]any
}

func (l *TickerListing) UnmarshalJSON(data []byte) error {
	var m map[string]map[string]any
	if err := jsonAPI.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode ticker listing: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("ticker listing must have exactly one pair, got %d", len(m))
	}
	for id, t := range m {
		l.PairID = id
		l.Ticker = t
	}
	return nil
}

// Product is one entry of the product metadata listing.
type Product struct {
	MarkAsset    string
	BaseAsset    string
	PriceScale   string
	MinBidSize   *apd.Decimal
	MaxBidSize   *apd.Decimal
	MinAskSize   *apd.Decimal
	MaxAskSize   *apd.Decimal
	MinPrice     *apd.Decimal
	MaxPrice     *apd.Decimal
	MinBidAmount *apd.Decimal
	MaxBidAmount *apd.Decimal
	Raw          map[string]any
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}

	p.Raw = raw
	p.MarkAsset = stringField(raw, "mark_asset")
	p.BaseAsset = stringField(raw, "base_asset")
	p.PriceScale = stringField(raw, "price_scale")

	for key, dst := range map[string]**apd.Decimal{
		"min_bid_size":   &p.MinBidSize,
		"max_bid_size":   &p.MaxBidSize,
		"min_ask_size":   &p.MinAskSize,
		"max_ask_size":   &p.MaxAskSize,
		"min_price":      &p.MinPrice,
		"max_price":      &p.MaxPrice,
		"min_bid_amount": &p.MinBidAmount,
		"max_bid_amount": &p.MaxBidAmount,
	} {
		d, err := core.DecimalFromAny(raw[key])
		if err != nil {
			return fmt.Errorf("product %s%s %s: %w", p.MarkAsset, p.BaseAsset, key, err)
		}
		*dst = d
	}
	return nil
}

// PairID is the venue pair id the product describes.
func (p *Product) PairID() string {
	return p.MarkAsset + p.BaseAsset
}

// Catalog is an immutable snapshot of the venue's markets.
// Returned Market values share their Info maps with the snapshot; treat them as read-only.
type Catalog struct {
	markets  []core.Market
	bySymbol map[string]int
	byID     map[string]int
}

// BuildCatalog joins the ticker listing with product metadata. Every listed
// pair yields one Market; the first product whose mark and base assets
// concatenate to the pair id supplies its currencies, precision and limits.
// Pairs without product metadata are kept, inactive, with an empty symbol and
// are reachable by id only.
func BuildCatalog(listings []TickerListing, products []Product, normalize core.CurrencyNormalizer) (*Catalog, error) {
	c := &Catalog{
		markets:  make([]core.Market, 0, len(listings)),
		bySymbol: make(map[string]int, len(listings)),
		byID:     make(map[string]int, len(listings)),
	}

	for _, l := range listings {
		if _, dup := c.byID[l.PairID]; dup {
			continue
		}

		m := core.Market{ID: l.PairID, Info: l.Ticker}
		if p := findProduct(products, l.PairID); p != nil {
			if err := applyProduct(&m, p, normalize); err != nil {
				return nil, core.NewDataContractError(exchangeName, "market %s: %v", l.PairID, err)
			}
		}

		idx := len(c.markets)
		c.markets = append(c.markets, m)
		c.byID[m.ID] = idx
		if m.Symbol == "" {
			continue
		}
		if _, taken := c.bySymbol[m.Symbol]; !taken {
			c.bySymbol[m.Symbol] = idx
		}
	}

	return c, nil
}

func findProduct(products []Product, pairID string) *Product {
	for i := range products {
		if products[i].PairID() == pairID {
			return &products[i]
		}
	}
	return nil
}

func applyProduct(m *core.Market, p *Product, normalize core.CurrencyNormalizer) error {
	digits, err := ScaleDigits(p.PriceScale)
	if err != nil {
		return err
	}

	m.BaseID = p.MarkAsset
	m.QuoteID = p.BaseAsset
	m.Base = core.CanonicalCurrency(p.MarkAsset, normalize)
	m.Quote = core.CanonicalCurrency(p.BaseAsset, normalize)
	m.Symbol = m.Base + "/" + m.Quote
	m.Precision = &core.Precision{Price: digits, Amount: digits}
	m.Limits = &core.Limits{
		Amount: core.MinMax{
			Min: core.MaxOpt(p.MinBidSize, p.MinAskSize),
			Max: core.MinOpt(p.MaxBidSize, p.MaxAskSize),
		},
		Price: core.MinMax{Min: p.MinPrice, Max: p.MaxPrice},
		Cost:  core.MinMax{Min: p.MinBidAmount, Max: p.MaxBidAmount},
	}
	m.Active = true
	m.Info = p.Raw
	return nil
}

var reciprocalContext = apd.BaseContext.WithPrecision(34)

// ScaleDigits derives decimal places from a price-scale factor: the length of
// its integer rendering minus one, so "100000000" gives 8. A fractional factor
// is read as its reciprocal first, so "0.00000001" also gives 8 and "0.01" gives 2.
// Only integer factors follow the length-minus-one rule literally; applied to
// "0.01" it would yield 3.
func ScaleDigits(scale string) (int, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(scale))
	if err != nil {
		return 0, fmt.Errorf("price scale %q: %w", scale, err)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("price scale %q must be positive", scale)
	}

	if d.Cmp(apd.New(1, 0)) < 0 {
		var r apd.Decimal
		if _, err := reciprocalContext.Quo(&r, apd.New(1, 0), d); err != nil {
			return 0, fmt.Errorf("price scale %q: %w", scale, err)
		}
		d = &r
	}

	var whole apd.Decimal
	if _, err := reciprocalContext.RoundToIntegralValue(&whole, d); err != nil {
		return 0, fmt.Errorf("price scale %q: %w", scale, err)
	}
	return len(whole.Text('f')) - 1, nil
}

// Markets returns a copy of every market in listing order.
func (c *Catalog) Markets() []core.Market {
	out := make([]core.Market, len(c.markets))
	copy(out, c.markets)
	return out
}

// Market looks a market up by canonical symbol.
func (c *Catalog) Market(symbol string) (core.Market, bool) {
	idx, ok := c.bySymbol[symbol]
	if !ok {
		return core.Market{}, false
	}
	return c.markets[idx], true
}

// MarketByID looks a market up by venue pair id.
func (c *Catalog) MarketByID(id string) (core.Market, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return core.Market{}, false
	}
	return c.markets[idx], true
}

func (c *Catalog) Len() int {
	return len(c.markets)
}

func stringField(m map[string]any, key string) string {
	return stringValue(m[key])
}
