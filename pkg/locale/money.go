package locale

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// DefaultCurrency is used when no currency is configured.
var DefaultCurrency = currency.MustParseISO("SAR")

// ParseCurrency parses an ISO 4217 code such as "SAR".
func ParseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("parse currency %q: %w", code, err)
	}
	return unit, nil
}

// FormatMoney renders amount in unit for tag, rounded to the currency's
// standard scale and prefixed with its localized symbol.
func FormatMoney(tag language.Tag, unit currency.Unit, amount decimal.Decimal) string {
	scale, _ := currency.Standard.Rounding(unit)
	rounded := amount.Round(int32(scale))
	return Printer(tag).Sprint(currency.Symbol(unit.Amount(rounded.InexactFloat64())))
}

// Totals holds display strings for a cart's money fields.
type Totals struct {
	Direction string `json:"direction"`
	Lang      string `json:"lang"`
	ItemCount string `json:"itemCount"`
	Subtotal  string `json:"subtotal"`
	Shipping  string `json:"shipping"`
	Tax       string `json:"tax"`
	Discount  string `json:"discount"`
	Total     string `json:"total"`
	Labels    Labels `json:"labels"`
}

// Labels are the translated captions for Totals.
type Labels struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
	Empty    string `json:"empty"`
}

// Amounts are the raw values formatted by FormatTotals.
type Amounts struct {
	ItemCount int
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Tax       decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
}

// FormatTotals localizes a set of cart amounts. Zero shipping on a non-empty
// cart is shown as the "free" label.
func FormatTotals(tag language.Tag, unit currency.Unit, a Amounts) Totals {
	p := Printer(tag)
	t := Totals{
		Direction: Direction(tag),
		Lang:      tag.String(),
		ItemCount: p.Sprintf(MsgItemCount, a.ItemCount),
		Subtotal:  FormatMoney(tag, unit, a.Subtotal),
		Shipping:  FormatMoney(tag, unit, a.Shipping),
		Tax:       FormatMoney(tag, unit, a.Tax),
		Discount:  FormatMoney(tag, unit, a.Discount),
		Total:     FormatMoney(tag, unit, a.Total),
		Labels: Labels{
			Subtotal: p.Sprintf(MsgSubtotal),
			Shipping: p.Sprintf(MsgShipping),
			Tax:      p.Sprintf(MsgTax),
			Discount: p.Sprintf(MsgDiscount),
			Total:    p.Sprintf(MsgTotal),
			Empty:    p.Sprintf(MsgEmpty),
		},
	}
	if a.ItemCount > 0 && a.Shipping.IsZero() {
		t.Shipping = p.Sprintf(MsgFreeShipping)
	}
	return t
}
