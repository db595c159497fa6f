package orders

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = map[string]Product{
	"p1": {ID: "p1", SKU: "SERUM-30", Name: "Vitamin C Serum", ImageURL: "https://cdn/p1.jpg", PriceCents: 1000},
	"p2": {ID: "p2", SKU: "MASK-01", Name: "Clay Mask", PriceCents: 550},
}

func TestPriceLines(t *testing.T) {
	v := "v-50ml"
	items, subtotal, err := PriceLines([]ItemInput{
		{ProductID: "p1", Qty: 2},
		{ProductID: "p2", VariantID: &v, Qty: 1},
	}, testCatalog)
	require.NoError(t, err)

	assert.Equal(t, int64(2550), subtotal)
	require.Len(t, items, 2)
	assert.Equal(t, "Vitamin C Serum", items[0].Name)
	assert.Equal(t, "https://cdn/p1.jpg", items[0].ImageURL)
	assert.Equal(t, int64(1000), items[0].PriceCents)
	assert.Equal(t, int64(2000), items[0].LineCents())
	assert.Equal(t, &v, items[1].VariantID)
}

func TestPriceLines_Rejects(t *testing.T) {
	_, _, err := PriceLines(nil, testCatalog)
	assert.ErrorIs(t, err, ErrInvalidItems)

	_, _, err = PriceLines([]ItemInput{{ProductID: "p1", Qty: 0}}, testCatalog)
	assert.ErrorIs(t, err, ErrInvalidItems)

	_, _, err = PriceLines([]ItemInput{{ProductID: "p1", Qty: -3}}, testCatalog)
	assert.ErrorIs(t, err, ErrInvalidItems)

	_, _, err = PriceLines([]ItemInput{{ProductID: "p1", Qty: 1 << 60}}, testCatalog)
	assert.ErrorIs(t, err, ErrInvalidItems)

	_, _, err = PriceLines([]ItemInput{{ProductID: "p1", Qty: MaxQty + 1}}, testCatalog)
	assert.ErrorIs(t, err, ErrInvalidItems)

	// each line fits, the sum does not
	pricey := map[string]Product{"lux": {ID: "lux", Name: "Gold Cream", PriceCents: math.MaxInt64 / 4}}
	_, _, err = PriceLines([]ItemInput{{ProductID: "lux", Qty: 3}, {ProductID: "lux", Qty: 2}}, pricey)
	assert.ErrorIs(t, err, ErrInvalidItems)

	// one bad line rejects the whole cart
	_, _, err = PriceLines([]ItemInput{{ProductID: "p1", Qty: 1}, {ProductID: "nope", Qty: 1}}, testCatalog)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestNormalizeCurrency(t *testing.T) {
	c, err := NormalizeCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", c)

	for _, bad := range []string{"", "EU", "EURO", "E1R"} {
		_, err := NormalizeCurrency(bad)
		assert.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}

func TestOrderBalanced(t *testing.T) {
	o := Order{ItemsCents: 2000, ShippingCents: 500, TaxCents: 100, DiscountCents: 300, TotalCents: 2300}
	assert.True(t, o.Balanced())
	o.TotalCents = 2000
	assert.False(t, o.Balanced())
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "20.00", FormatCents(2000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "1234.50", FormatCents(123450))
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventOrderPaid, "order-api", "o1", OrderPaidPayload{OrderID: "o1", TotalCents: 2000})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.JSONEq(t, `{"order_id":"o1","payment_id":"","total_cents":2000}`, string(env.Payload))
}
