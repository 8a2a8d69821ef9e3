package kkex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kkexlink/pkg/core"
)

func TestMapOrderStatus(t *testing.T) {
	tests := []struct {
		code string
		want core.OrderStatus
	}{
		{"-1", core.StatusCanceled},
		{"0", core.StatusOpen},
		{"1", core.StatusOpen},
		{"2", core.StatusClosed},
		{"3", core.StatusOpen},
		{"4", core.StatusCanceled},
		{"9", core.OrderStatus("9")},
		{"", core.OrderStatus("")},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, MapOrderStatus(tt.code))
		})
	}
}

func TestNormalizeOrder_DerivedFields(t *testing.T) {
	raw := decodeMap(t, `{"order_id":"42","status":"2","amount":"10","deal_amount":"6","price":"100","price_avg":"99"}`)

	o, err := testNormalizer().NormalizeOrder(raw, enuBTC(t))
	require.NoError(t, err)

	assert.Equal(t, int64(42), o.ID)
	assert.Equal(t, core.StatusClosed, o.Status)
	assert.Equal(t, "ENU/BTC", o.Symbol)
	assert.Equal(t, core.TypeLimit, o.Type)
	assertDecimal(t, "10", o.Amount)
	assertDecimal(t, "6", o.Filled)
	assertDecimal(t, "4", o.Remaining)
	assertDecimal(t, "100", o.Price)
	assertDecimal(t, "99", o.Average)
	assertDecimal(t, "594", o.Cost)
	assert.Nil(t, o.Fee)
	assert.Nil(t, o.LastTradeTimestamp)
}

func TestNormalizeOrder_UndefinedOperands(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantRemaining bool
		wantCost      bool
	}{
		{"no_amount", `{"id":1,"deal_amount":"6","avg_price":"99"}`, false, true},
		{"no_filled", `{"id":1,"amount":"10","price_avg":"99"}`, false, false},
		{"no_average", `{"id":1,"amount":"10","deal_amount":"6"}`, true, false},
		{"null_amount", `{"id":1,"amount":null,"deal_amount":"6"}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := testNormalizer().NormalizeOrder(decodeMap(t, tt.raw), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemaining, o.Remaining != nil)
			assert.Equal(t, tt.wantCost, o.Cost != nil)
		})
	}
}

func TestNormalizeOrder_Probes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantID   int64
		wantSide core.OrderSide
		wantType core.OrderType
		wantAvg  string
	}{
		{
			name:     "order_id_preferred_over_id",
			raw:      `{"order_id":"7","id":"8","side":"buy"}`,
			wantID:   7,
			wantSide: core.SideBuy,
			wantType: core.TypeLimit,
		},
		{
			name:     "id_fallback_numeric",
			raw:      `{"id":8,"type":"sell"}`,
			wantID:   8,
			wantSide: core.SideSell,
			wantType: core.TypeLimit,
		},
		{
			name:     "side_preferred_over_type",
			raw:      `{"id":1,"side":"sell","type":"buy"}`,
			wantID:   1,
			wantSide: core.SideSell,
			wantType: core.TypeLimit,
		},
		{
			name:     "market_suffix",
			raw:      `{"id":1,"type":"buy_market"}`,
			wantID:   1,
			wantSide: core.SideBuy,
			wantType: core.TypeMarket,
		},
		{
			name:     "price_avg_over_avg_price",
			raw:      `{"id":1,"avg_price":"1","price_avg":"2"}`,
			wantID:   1,
			wantType: core.TypeLimit,
			wantAvg:  "2",
		},
		{
			name:     "avg_price_fallback",
			raw:      `{"id":1,"avg_price":"1"}`,
			wantID:   1,
			wantType: core.TypeLimit,
			wantAvg:  "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := testNormalizer().NormalizeOrder(decodeMap(t, tt.raw), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, o.ID)
			assert.Equal(t, tt.wantSide, o.Side)
			assert.Equal(t, tt.wantType, o.Type)
			if tt.wantAvg != "" {
				assertDecimal(t, tt.wantAvg, o.Average)
			}
		})
	}
}

func TestNormalizeOrder_StatusAndTimestamp(t *testing.T) {
	o, err := testNormalizer().NormalizeOrder(decodeMap(t, `{"id":1,"status":-1,"create_date":1540000000000}`), nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCanceled, o.Status)
	require.NotNil(t, o.Timestamp)
	assert.Equal(t, int64(1540000000000), *o.Timestamp)

	o, err = testNormalizer().NormalizeOrder(decodeMap(t, `{"id":1,"status":9}`), nil)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatus("9"), o.Status)
}

func TestNormalizeOrder_InvalidID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing", `{"status":"0"}`},
		{"non_numeric", `{"order_id":"abc"}`},
		{"null", `{"order_id":null,"id":"5"}`},
		{"fractional", `{"id":1.5}`},
		{"object", `{"id":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testNormalizer().NormalizeOrder(decodeMap(t, tt.raw), nil)
			assert.True(t, core.IsDataContractError(err), "got %v", err)
		})
	}
}

func TestNormalizeOrders_SinceLimit(t *testing.T) {
	var raw []map[string]any
	require.NoError(t, jsonAPI.Unmarshal([]byte(`[
		{"id":1,"create_date":1000},
		{"id":2,"create_date":2000},
		{"id":3,"create_date":3000}
	]`), &raw))

	orders, err := testNormalizer().NormalizeOrders(raw, nil, 2000, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
}
