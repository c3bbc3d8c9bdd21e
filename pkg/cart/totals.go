package cart

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Breakdown is the full pricing computation for a cart.
//
// Cart.Shipping reports the raw charge while Total is built from
// EffectiveShipping, so a FREESHIP cart shows shipping 15, discount 15 and a
// total without shipping.
type Breakdown struct {
	Cart

	ProductDiscount   decimal.Decimal `json:"productDiscount"`
	ShippingDiscount  decimal.Decimal `json:"shippingDiscount"`
	EffectiveShipping decimal.Decimal `json:"effectiveShipping"`
	TaxableAmount     decimal.Decimal `json:"taxableAmount"`
}

// Calculate derives every total from items and the active promo.
func Calculate(items []LineItem, promo *PromoCode) Breakdown {
	itemCount := 0
	subtotal := decimal.Zero
	for _, item := range items {
		itemCount += item.Quantity
		subtotal = subtotal.Add(item.LineTotal())
	}

	shipping := decimal.Zero
	if len(items) > 0 && subtotal.LessThan(ShippingThreshold) {
		shipping = ShippingRate
	}

	productDiscount := decimal.Zero
	shippingDiscount := decimal.Zero
	if promo != nil {
		switch {
		case promo.Type == PromoPercentage:
			productDiscount = subtotal.Mul(promo.Discount).Div(hundred)
		case promo.Type == PromoFixed && promo.Code != FreeShipCode:
			productDiscount = promo.Discount
		}
		if promo.Code == FreeShipCode {
			shippingDiscount = ShippingRate
		}
	}

	taxable := decimal.Max(decimal.Zero, subtotal.Sub(productDiscount))
	tax := taxable.Mul(TaxRate)
	effectiveShipping := decimal.Max(decimal.Zero, shipping.Sub(shippingDiscount))
	total := subtotal.Add(effectiveShipping).Add(tax).Sub(productDiscount)

	return Breakdown{
		Cart: Cart{
			Items:     items,
			ItemCount: itemCount,
			Subtotal:  subtotal,
			Shipping:  shipping,
			Tax:       tax,
			Total:     total,
			Discount:  productDiscount.Add(shippingDiscount),
			PromoCode: promo,
			IsEmpty:   len(items) == 0,
		},
		ProductDiscount:   productDiscount,
		ShippingDiscount:  shippingDiscount,
		EffectiveShipping: effectiveShipping,
		TaxableAmount:     taxable,
	}
}
