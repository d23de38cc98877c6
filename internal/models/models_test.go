package models

import (
	"encoding/json"
	"testing"
	"time"

	"fulfillment-service/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{in: "", want: VariantNone},
		{in: "regular", want: VariantRegular},
		{in: "EGG", want: VariantRegular},
		{in: " Eggless ", want: VariantEggless},
		{in: "vegan", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVariant(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusConfirmed, StatusOutForDelivery, true},
		{StatusConfirmed, StatusDelivered, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusOutForDelivery, StatusConfirmed, false},
		{StatusOutForDelivery, StatusCancelled, false},
		{StatusDelivered, StatusDelivered, true},
		{StatusDelivered, StatusOutForDelivery, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseStatusIgnoresCase(t *testing.T) {
	s, err := ParseStatus("out for delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, s)

	_, err = ParseStatus("Pending")
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
}

func TestCartFindLineNullSafeWeight(t *testing.T) {
	w := decimal.NewNullDecimal(decimal.RequireFromString("1.5"))
	c := Cart{Lines: []CartLine{
		{ID: 1, ItemID: 10, Variant: VariantEggless, Weight: w},
		{ID: 2, ItemID: 10, Variant: VariantEggless},
	}}

	i, ok := c.FindLine(10, VariantEggless, decimal.NewNullDecimal(decimal.RequireFromString("1.50")))
	require.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = c.FindLine(10, VariantEggless, decimal.NullDecimal{})
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = c.FindLine(10, VariantRegular, decimal.NullDecimal{})
	assert.False(t, ok)

	l, ok := c.Detach(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), l.ID)
	assert.Len(t, c.Lines, 1)
	assert.Equal(t, int64(2), c.Lines[0].ID)
}

func TestItemBasePrice(t *testing.T) {
	it := Item{
		Price: decimal.NewFromInt(800),
		WeightPrices: map[string]decimal.Decimal{
			"1":   decimal.NewFromInt(1500),
			"1.5": decimal.NewFromInt(2000),
		},
	}
	assert.True(t, it.BasePrice(decimal.NewNullDecimal(decimal.RequireFromString("1.5"))).Equal(decimal.NewFromInt(2000)))
	assert.True(t, it.BasePrice(decimal.NewNullDecimal(decimal.NewFromInt(3))).Equal(decimal.NewFromInt(800)))
	assert.True(t, it.BasePrice(decimal.NullDecimal{}).Equal(decimal.NewFromInt(800)))
}

func TestValidPrice(t *testing.T) {
	assert.True(t, ValidPrice(decimal.RequireFromString("1500")))
	assert.True(t, ValidPrice(decimal.RequireFromString("1499.50")))
	assert.True(t, ValidPrice(decimal.Zero))
	assert.False(t, ValidPrice(decimal.RequireFromString("1499.999")))
	assert.False(t, ValidPrice(decimal.RequireFromString("-1")))
}

func TestNewHistoryCopiesLines(t *testing.T) {
	id := int64(3)
	o := Order{
		ID: 9, CustomerID: 2, CustomerName: "Asha", Status: StatusDelivered,
		CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Total:     decimal.NewFromInt(4000),
		Payment:   Payment{PaymentID: "pay_1"},
		Lines: []OrderLine{{
			ID: 1, ItemID: &id, ItemName: "Truffle", Quantity: 2,
			Price: decimal.NewFromInt(2000), Variant: VariantEggless,
			Weight: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
		}},
	}
	h := NewHistory(o, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, int64(9), h.SourceOrderID)
	assert.Equal(t, "pay_1", h.PaymentID)
	require.Len(t, h.Lines, 1)
	assert.Equal(t, o.Lines[0].ItemName, h.Lines[0].ItemName)
	assert.True(t, o.Lines[0].Price.Equal(h.Lines[0].Price))
	assert.NotSame(t, o.Lines[0].ItemID, h.Lines[0].ItemID)
	assert.Equal(t, id, *h.Lines[0].ItemID)
}

func TestCouponWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Coupon{ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour)}
	assert.True(t, c.InWindow(now))
	assert.False(t, c.InWindow(now.Add(2*time.Hour)))
	assert.True(t, Coupon{}.InWindow(now))
}

func TestVariantDecodesStorefrontSpellings(t *testing.T) {
	var line struct {
		Variant Variant `json:"variant"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"variant":"egg"}`), &line))
	assert.Equal(t, VariantRegular, line.Variant)
	require.NoError(t, json.Unmarshal([]byte(`{"variant":"Eggless"}`), &line))
	assert.Equal(t, VariantEggless, line.Variant)
	require.NoError(t, json.Unmarshal([]byte(`{"variant":null}`), &line))
	assert.Error(t, json.Unmarshal([]byte(`{"variant":"vegan"}`), &line))
}
