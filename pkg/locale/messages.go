package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys for cart labels.
const (
	MsgSubtotal     = "cart.subtotal"
	MsgShipping     = "cart.shipping"
	MsgFreeShipping = "cart.shipping_free"
	MsgTax          = "cart.tax"
	MsgDiscount     = "cart.discount"
	MsgTotal        = "cart.total"
	MsgItemCount    = "cart.item_count"
	MsgEmpty        = "cart.empty"
)

func init() {
	en := language.English
	message.SetString(en, MsgSubtotal, "Subtotal")
	message.SetString(en, MsgShipping, "Shipping")
	message.SetString(en, MsgFreeShipping, "Free")
	message.SetString(en, MsgTax, "Tax (15%%)")
	message.SetString(en, MsgDiscount, "Discount")
	message.SetString(en, MsgTotal, "Total")
	message.SetString(en, MsgItemCount, "%d items")
	message.SetString(en, MsgEmpty, "Your cart is empty")

	ar := language.Arabic
	message.SetString(ar, MsgSubtotal, "المجموع الفرعي")
	message.SetString(ar, MsgShipping, "الشحن")
	message.SetString(ar, MsgFreeShipping, "مجاني")
	message.SetString(ar, MsgTax, "الضريبة (15%%)")
	message.SetString(ar, MsgDiscount, "الخصم")
	message.SetString(ar, MsgTotal, "الإجمالي")
	message.SetString(ar, MsgItemCount, "%d منتجات")
	message.SetString(ar, MsgEmpty, "سلة التسوق فارغة")
}
