package cart

import (
	"encoding/json"

	"github.com/Sternrassler/storefront-edge/pkg/kv"
)

// Storage key suffixes. Keys are <prefix><suffix> with prefix cart:<id>:.
const (
	ItemsKey       = "cart_items"
	PromoKey       = "cart_promo_code"
	LegacyItemsKey = "cart"
)

// Version 0 is the un-enveloped layout written by the browser storefront;
// its field names already match LineItem and PromoCode.
func identity(data json.RawMessage) (json.RawMessage, error) { return data, nil }

var itemsSchema = kv.Schema[[]LineItem]{
	Name:        ItemsKey,
	Version:     1,
	LegacyNames: []string{LegacyItemsKey},
	Migrations:  map[int]kv.Migration{0: identity},
}

var promoSchema = kv.Schema[*PromoCode]{
	Name:       PromoKey,
	Version:    1,
	Migrations: map[int]kv.Migration{0: identity},
}

// KeyPrefix returns the storage prefix for a cart.
func KeyPrefix(cartID string) string {
	return "cart:" + cartID + ":"
}
