package cart

import "github.com/Pritech-Vior/PritechVior-sub000/internal/money"

// DefaultVATBasisPoints is the 18% VAT applied at checkout.
const DefaultVATBasisPoints = 1800

type SummaryOptions struct {
	Shipping       money.Amount
	VATBasisPoints int64
}

// DefaultSummaryOptions is free shipping with 18% VAT.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{VATBasisPoints: DefaultVATBasisPoints}
}

// Summary holds checkout totals. Tax applies to the subtotal only.
type Summary struct {
	Subtotal money.Amount `json:"subtotal"`
	Shipping money.Amount `json:"shipping_cost"`
	Tax      money.Amount `json:"tax"`
	Total    money.Amount `json:"total"`
}

func Summarize(lines Cart, opts SummaryOptions) Summary {
	subtotal := lines.Total()
	tax := subtotal.Percent(opts.VATBasisPoints)
	return Summary{
		Subtotal: subtotal,
		Shipping: opts.Shipping,
		Tax:      tax,
		Total:    subtotal + opts.Shipping + tax,
	}
}
