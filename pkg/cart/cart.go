// Package cart implements the storefront cart: line items, a single promo
// code, derived totals and persisted mutations.
package cart

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pricing constants.
var (
	ShippingThreshold = decimal.NewFromInt(200)
	ShippingRate      = decimal.NewFromInt(15)
	TaxRate           = decimal.RequireFromString("0.15")
)

var (
	// ErrInvalidItem is returned when an add request lacks a product id,
	// a title or a positive price.
	ErrInvalidItem = errors.New("cart: invalid item")

	// ErrInvalidItemID is returned when an item id is empty.
	ErrInvalidItemID = errors.New("cart: invalid item id")

	// ErrInvalidCartID is returned for malformed cart identifiers.
	ErrInvalidCartID = errors.New("cart: invalid cart id")
)

// Variant is an optional sub-selection such as a color or shade.
// A nil and an empty variant are equal.
type Variant map[string]string

// Equal reports whether both variants hold the same keys and values.
func (v Variant) Equal(other Variant) bool {
	return maps.Equal(v, other)
}

// LineItem is one row of the cart.
type LineItem struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	ProductTitle string          `json:"productTitle"`
	ProductImage string          `json:"productImage,omitempty"`
	Variant      Variant         `json:"variant,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// LineTotal returns price × quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) valid() bool {
	return li.ID != "" && li.ProductID != "" && li.Quantity >= 1 && li.Price.IsPositive()
}

// AddItem describes a product being added to the cart.
// A Quantity below 1 is treated as 1.
type AddItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity,omitempty"`
	Variant   Variant         `json:"variant,omitempty"`
}

func (a AddItem) validate() error {
	if a.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidItem)
	}
	if a.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if !a.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive (got %s)", ErrInvalidItem, a.Price)
	}
	return nil
}

// Cart is the derived view of a cart's state.
type Cart struct {
	Items     []LineItem      `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	// Shipping is the shipping charge before any FREESHIP discount.
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Discount  decimal.Decimal `json:"discount"`
	PromoCode *PromoCode      `json:"promoCode,omitempty"`
	IsEmpty   bool            `json:"isEmpty"`
}

// newItemID returns <productID>-<unix millis>-<random suffix>.
func newItemID(productID string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", productID, now.UnixMilli(), uuid.NewString()[:8])
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.Variant != nil {
			out[i].Variant = maps.Clone(item.Variant)
		}
	}
	return out
}
