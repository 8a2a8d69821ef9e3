package exchange

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"kkexlink/pkg/core"
)

// OrderRequest contains the parameters required to place a new order.
//
// For market buys Amount is the base quantity when the connector prices the
// order itself, or the quote cost to spend otherwise; see
// core.Config.CreateMarketBuyOrderRequiresPrice.
type OrderRequest struct {
	Symbol string         `validate:"required"`
	Side   core.OrderSide `validate:"oneof=buy sell"`
	Type   core.OrderType `validate:"oneof=market limit"`
	Amount *apd.Decimal   `validate:"required"`
	Price  *apd.Decimal
}

var validate = validator.New()

// Validate checks that the request is complete enough to be sent.
func (r *OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	if r.Type == core.TypeLimit && (r.Price == nil || r.Price.Sign() <= 0) {
		return errors.New("price must be positive for limit orders")
	}
	if r.Price != nil && r.Price.Sign() < 0 {
		return errors.New("price must not be negative")
	}
	return nil
}

// OrderBuilder provides a fluent interface for constructing order requests.
// The first parse error sticks and is reported by Build.
//
// Example:
//
//	req, err := exchange.NewOrderBuilder("ENU/BTC").
//	    Buy().
//	    Limit().
//	    Price("0.00000150").
//	    Amount("1000").
//	    Build()
type OrderBuilder struct {
	req *OrderRequest
	err error
}

func NewOrderBuilder(symbol string) *OrderBuilder {
	return &OrderBuilder{
		req: &OrderRequest{
			Symbol: symbol,
			Type:   core.TypeLimit,
		},
	}
}

func (b *OrderBuilder) Side(side core.OrderSide) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Side = side
	return b
}

func (b *OrderBuilder) Buy() *OrderBuilder {
	return b.Side(core.SideBuy)
}

func (b *OrderBuilder) Sell() *OrderBuilder {
	return b.Side(core.SideSell)
}

func (b *OrderBuilder) Type(orderType core.OrderType) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Type = orderType
	return b
}

func (b *OrderBuilder) Market() *OrderBuilder {
	return b.Type(core.TypeMarket)
}

func (b *OrderBuilder) Limit() *OrderBuilder {
	return b.Type(core.TypeLimit)
}

// Price sets the order price from a string representation.
func (b *OrderBuilder) Price(price string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	d, _, err := apd.NewFromString(price)
	if err != nil {
		b.err = fmt.Errorf("parse price: %w", err)
		return b
	}
	b.req.Price = d
	return b
}

func (b *OrderBuilder) PriceDecimal(price *apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Price = price
	return b
}

// Amount sets the order amount from a string representation.
func (b *OrderBuilder) Amount(amount string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	d, _, err := apd.NewFromString(amount)
	if err != nil {
		b.err = fmt.Errorf("parse amount: %w", err)
		return b
	}
	b.req.Amount = d
	return b
}

func (b *OrderBuilder) AmountDecimal(amount *apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Amount = amount
	return b
}

// Build validates and returns the constructed request.
func (b *OrderBuilder) Build() (*OrderRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.req.Validate(); err != nil {
		return nil, err
	}
	return b.req, nil
}
