package cart

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(price string, qty int) LineItem {
	return LineItem{ID: "i-" + price, ProductID: "p-" + price, ProductTitle: "t", Price: d(price), Quantity: qty}
}

func promo(code string) *PromoCode {
	p, ok := LookupPromo(code)
	if !ok {
		panic("unknown promo " + code)
	}
	return &p
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}

func TestCalculate_ShippingThreshold(t *testing.T) {
	tests := []struct {
		name         string
		items        []LineItem
		wantShipping string
	}{
		{"exactly threshold", []LineItem{item("200", 1)}, "0"},
		{"just below threshold", []LineItem{item("199.99", 1)}, "15"},
		{"above threshold via quantity", []LineItem{item("70", 3)}, "0"},
		{"empty cart", nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(tt.items, nil)
			assertDecimal(t, "Shipping", b.Shipping, tt.wantShipping)
		})
	}
}

func TestCalculate_NoPromo(t *testing.T) {
	b := Calculate([]LineItem{item("40", 2), item("20", 1)}, nil)

	if b.ItemCount != 3 {
		t.Errorf("ItemCount = %d, want 3", b.ItemCount)
	}
	assertDecimal(t, "Subtotal", b.Subtotal, "100")
	assertDecimal(t, "Tax", b.Tax, "15")
	assertDecimal(t, "Shipping", b.Shipping, "15")
	assertDecimal(t, "Discount", b.Discount, "0")
	assertDecimal(t, "Total", b.Total, "130")
	if b.IsEmpty {
		t.Error("IsEmpty = true for non-empty cart")
	}
}

func TestCalculate_EmptyCart(t *testing.T) {
	b := Calculate(nil, nil)

	if !b.IsEmpty {
		t.Error("IsEmpty = false for empty cart")
	}
	if b.ItemCount != 0 {
		t.Errorf("ItemCount = %d, want 0", b.ItemCount)
	}
	assertDecimal(t, "Total", b.Total, "0")
}

func TestCalculate_Percentage(t *testing.T) {
	b := Calculate([]LineItem{item("100", 1)}, promo("BUTTERFLY10"))

	assertDecimal(t, "ProductDiscount", b.ProductDiscount, "10")
	assertDecimal(t, "TaxableAmount", b.TaxableAmount, "90")
	assertDecimal(t, "Tax", b.Tax, "13.5")
	assertDecimal(t, "Discount", b.Discount, "10")
	// 100 + 15 + 13.5 - 10
	assertDecimal(t, "Total", b.Total, "118.5")
}

func TestCalculate_Fixed(t *testing.T) {
	b := Calculate([]LineItem{item("100", 1)}, promo("FLAT20"))

	assertDecimal(t, "ProductDiscount", b.ProductDiscount, "20")
	assertDecimal(t, "Tax", b.Tax, "12")
	assertDecimal(t, "Discount", b.Discount, "20")
	// 100 + 15 + 12 - 20
	assertDecimal(t, "Total", b.Total, "107")
}

func TestCalculate_FreeShip(t *testing.T) {
	b := Calculate([]LineItem{item("50", 1)}, promo("FREESHIP"))

	assertDecimal(t, "Shipping", b.Shipping, "15")
	assertDecimal(t, "EffectiveShipping", b.EffectiveShipping, "0")
	assertDecimal(t, "ShippingDiscount", b.ShippingDiscount, "15")
	assertDecimal(t, "ProductDiscount", b.ProductDiscount, "0")
	assertDecimal(t, "Discount", b.Discount, "15")
	assertDecimal(t, "Tax", b.Tax, "7.5")
	// 50 + 0 + 7.5 - 0
	assertDecimal(t, "Total", b.Total, "57.5")
}

// FREESHIP over the threshold still reports a 15 discount even though no
// shipping was charged; the total is unaffected.
func TestCalculate_FreeShipAboveThreshold(t *testing.T) {
	b := Calculate([]LineItem{item("250", 1)}, promo("FREESHIP"))

	assertDecimal(t, "Shipping", b.Shipping, "0")
	assertDecimal(t, "EffectiveShipping", b.EffectiveShipping, "0")
	assertDecimal(t, "Discount", b.Discount, "15")
	assertDecimal(t, "Total", b.Total, "287.5")
}

func TestCalculate_FixedCodedAsFreeShip(t *testing.T) {
	p := &PromoCode{Code: FreeShipCode, Type: PromoFixed, Discount: d("15")}
	b := Calculate([]LineItem{item("50", 1)}, p)

	assertDecimal(t, "ProductDiscount", b.ProductDiscount, "0")
	assertDecimal(t, "Discount", b.Discount, "15")
}

func TestCalculate_TaxableClampedAtZero(t *testing.T) {
	p := &PromoCode{Code: "HUGE", Type: PromoFixed, Discount: d("500")}
	b := Calculate([]LineItem{item("100", 1)}, p)

	assertDecimal(t, "TaxableAmount", b.TaxableAmount, "0")
	assertDecimal(t, "Tax", b.Tax, "0")
}

func TestLookupPromo(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"BUTTERFLY10", "BUTTERFLY10", true},
		{"  butterfly10 ", "BUTTERFLY10", true},
		{"flat20", "FLAT20", true},
		{"FreeShip", "FREESHIP", true},
		{"SUMMER50", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := LookupPromo(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("LookupPromo(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.Code != tt.want {
				t.Errorf("LookupPromo(%q) code = %q, want %q", tt.input, got.Code, tt.want)
			}
		})
	}
}
