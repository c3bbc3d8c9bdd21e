package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PromoType selects how a promo code discounts the cart.
type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
	PromoFreeShip   PromoType = "freeship"
)

// FreeShipCode is the reserved code that waives the shipping rate.
const FreeShipCode = "FREESHIP"

// PromoCode is a named discount rule.
type PromoCode struct {
	Code     string          `json:"code"`
	Type     PromoType       `json:"type"`
	Discount decimal.Decimal `json:"discount"`
	// MinOrderAmount gates the code on subtotal; zero means no minimum.
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
}

var promoCatalog = map[string]PromoCode{
	"BUTTERFLY10": {
		Code:           "BUTTERFLY10",
		Type:           PromoPercentage,
		Discount:       decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(50),
	},
	"FLAT20": {
		Code:           "FLAT20",
		Type:           PromoFixed,
		Discount:       decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(100),
	},
	FreeShipCode: {
		Code:     FreeShipCode,
		Type:     PromoFreeShip,
		Discount: ShippingRate,
	},
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LookupPromo finds a code in the catalog after normalizing it.
func LookupPromo(code string) (PromoCode, bool) {
	promo, ok := promoCatalog[NormalizeCode(code)]
	return promo, ok
}

// Eligible reports whether subtotal meets the code's minimum.
func (p PromoCode) Eligible(subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(p.MinOrderAmount)
}
