package kkex

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"kkexlink/pkg/core"
)

var orderStatuses = map[string]core.OrderStatus{
	"-1": core.StatusCanceled,
	"0":  core.StatusOpen,
	"1":  core.StatusOpen,
	"2":  core.StatusClosed,
	"3":  core.StatusOpen,
	"4":  core.StatusCanceled,
}

// MapOrderStatus maps a venue status code to its canonical state.
// Unknown codes are returned unchanged.
func MapOrderStatus(code string) core.OrderStatus {
	if s, ok := orderStatuses[code]; ok {
		return s
	}
	return core.OrderStatus(code)
}

type orderAttr int

const (
	attrID orderAttr = iota
	attrSide
	attrStatus
	attrPrice
	attrAmount
	attrFilled
	attrAverage
	attrTimestamp
)

// orderFields lists, per attribute, the payload keys that may carry it in
// priority order. Different endpoints name the same field differently.
var orderFields = map[orderAttr][]string{
	attrID:        {"order_id", "id"},
	attrSide:      {"side", "type"},
	attrStatus:    {"status"},
	attrPrice:     {"price"},
	attrAmount:    {"amount"},
	attrFilled:    {"deal_amount"},
	attrAverage:   {"price_avg", "avg_price"},
	attrTimestamp: {"create_date"},
}

// probe returns the value of the first candidate key present in raw.
// A key holding null counts as absent except for the id, whose presence
// alone decides which field is authoritative.
func probe(raw map[string]any, attr orderAttr) (any, bool) {
	for _, key := range orderFields[attr] {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if v == nil && attr != attrID {
			continue
		}
		return v, true
	}
	return nil, false
}

// NormalizeOrder converts an order payload. remaining and cost are derived
// only when their operands are known; a missing operand leaves them nil.
func (n *Normalizer) NormalizeOrder(raw map[string]any, market *core.Market) (*core.Order, error) {
	idValue, ok := probe(raw, attrID)
	if !ok {
		return nil, core.NewDataContractError(exchangeName, "order has no id")
	}
	id, err := parseOrderID(idValue)
	if err != nil {
		return nil, err
	}

	o := &core.Order{
		ID:   id,
		Type: core.TypeLimit,
		Info: raw,
	}
	if market != nil {
		o.Symbol = market.Symbol
	}

	if v, ok := probe(raw, attrSide); ok {
		o.Side, o.Type = parseSide(stringValue(v))
	}
	if v, ok := probe(raw, attrStatus); ok {
		o.Status = MapOrderStatus(stringValue(v))
	}

	for attr, dst := range map[orderAttr]**apd.Decimal{
		attrPrice:   &o.Price,
		attrAmount:  &o.Amount,
		attrFilled:  &o.Filled,
		attrAverage: &o.Average,
	} {
		v, _ := probe(raw, attr)
		if *dst, err = core.DecimalFromAny(v); err != nil {
			return nil, core.NewDataContractError(exchangeName, "order %d %s: %v", id, orderFields[attr][0], err)
		}
	}

	if v, ok := probe(raw, attrTimestamp); ok {
		if o.Timestamp, err = int64Value(v); err != nil {
			return nil, core.NewDataContractError(exchangeName, "order %d create_date: %v", id, err)
		}
	}

	if o.Remaining, err = core.SubOpt(o.Amount, o.Filled); err != nil {
		return nil, core.NewDataContractError(exchangeName, "order %d remaining: %v", id, err)
	}
	if o.Cost, err = core.MulOpt(o.Average, o.Filled); err != nil {
		return nil, core.NewDataContractError(exchangeName, "order %d cost: %v", id, err)
	}

	return o, nil
}

// NormalizeOrders converts an order list and applies since/limit.
func (n *Normalizer) NormalizeOrders(raw []map[string]any, market *core.Market, since int64, limit int) ([]core.Order, error) {
	orders := make([]core.Order, 0, len(raw))
	for _, r := range raw {
		o, err := n.NormalizeOrder(r, market)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return core.FilterBySinceLimit(orders, func(o *core.Order) *int64 { return o.Timestamp }, since, limit), nil
}

func parseOrderID(v any) (int64, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	case float64:
		if val == float64(int64(val)) {
			return int64(val), nil
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	default:
		return 0, core.NewDataContractError(exchangeName, "order id has type %T", v)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, core.NewDataContractError(exchangeName, "order id %q is not numeric", s)
	}
	return id, nil
}

// parseSide splits venue sides such as "buy_market" into side and order type.
func parseSide(s string) (core.OrderSide, core.OrderType) {
	side := core.ParseOrderSide(s)
	if base, ok := strings.CutSuffix(string(side), "_market"); ok {
		return core.OrderSide(base), core.TypeMarket
	}
	return side, core.TypeLimit
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return core.FormatParam(val)
	}
}
