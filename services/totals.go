package services

import "checkout-service/models"

// CalculateTotals derives the order totals from a cart snapshot. Shipping is
// free only when the subtotal is strictly above the threshold.
func CalculateTotals(cart *models.CartSnapshot, policy models.ShippingPolicy) models.OrderTotals {
	subtotal := cart.Total()

	fee := policy.FlatShippingFee
	if subtotal > policy.FreeShippingThreshold {
		fee = 0
	}

	return models.OrderTotals{
		Subtotal:              subtotal,
		ShippingFee:           fee,
		Total:                 subtotal + fee,
		Currency:              policy.Currency,
		FreeShippingThreshold: policy.FreeShippingThreshold,
	}
}
