package services_test

import (
	"testing"

	"checkout-service/models"
	"checkout-service/services"

	"github.com/stretchr/testify/assert"
)

var inrPolicy = models.ShippingPolicy{Currency: "INR", FreeShippingThreshold: 20000, FlatShippingFee: 1500}

func cartOf(lines ...models.CartLine) *models.CartSnapshot {
	return &models.CartSnapshot{UserID: "user-1", Items: lines}
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		cart     *models.CartSnapshot
		subtotal int64
		fee      int64
	}{
		{
			name:     "below threshold pays flat fee",
			cart:     cartOf(models.CartLine{ProductID: 1, Price: 5000, Quantity: 2}),
			subtotal: 10000,
			fee:      1500,
		},
		{
			name:     "exactly at threshold pays flat fee",
			cart:     cartOf(models.CartLine{ProductID: 1, Price: 10000, Quantity: 2}),
			subtotal: 20000,
			fee:      1500,
		},
		{
			name: "above threshold ships free",
			cart: cartOf(
				models.CartLine{ProductID: 1, Price: 10000, Quantity: 2},
				models.CartLine{ProductID: 2, Price: 1, Quantity: 1},
			),
			subtotal: 20001,
			fee:      0,
		},
		{
			name:     "empty cart still reports the fee",
			cart:     cartOf(),
			subtotal: 0,
			fee:      1500,
		},
		{
			name:     "nil cart",
			cart:     nil,
			subtotal: 0,
			fee:      1500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.CalculateTotals(tt.cart, inrPolicy)

			assert.Equal(t, tt.subtotal, got.Subtotal)
			assert.Equal(t, tt.fee, got.ShippingFee)
			assert.Equal(t, tt.subtotal+tt.fee, got.Total)
			assert.Equal(t, "INR", got.Currency)
			assert.Equal(t, int64(20000), got.FreeShippingThreshold)
		})
	}
}

func TestCalculateTotals_SameLineDifferentVariants(t *testing.T) {
	cart := cartOf(
		models.CartLine{ProductID: 7, Price: 2500, Quantity: 1, Size: "M", Color: "black"},
		models.CartLine{ProductID: 7, Price: 2500, Quantity: 3, Size: "L", Color: "black"},
	)

	got := services.CalculateTotals(cart, inrPolicy)

	assert.Equal(t, int64(10000), got.Subtotal)
	assert.Equal(t, int64(11500), got.Total)
}
