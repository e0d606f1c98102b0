// Package gst computes invoice line amounts and header totals under the Indian
// goods-and-services tax split: CGST+SGST within a state, IGST across states.
package gst

import (
	"github.com/shopspring/decimal"

	"pharmaledger/backend/internal/domain"
)

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
)

// ValidRate reports whether rate is one of the notified GST slabs.
func ValidRate(rate int) bool {
	switch rate {
	case 0, 5, 12, 18, 28:
		return true
	}
	return false
}

type LineInput struct {
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	GSTRate         int
	Interstate      bool
}

type LineAmounts struct {
	Base           decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	CGSTAmount     decimal.Decimal
	SGSTAmount     decimal.Decimal
	IGSTAmount     decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ComputeLine prices one line. Every figure is rounded to paise.
func ComputeLine(in LineInput) LineAmounts {
	base := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
	discount := base.Mul(in.DiscountPercent).Div(hundred).Round(2)
	taxable := base.Sub(discount)
	rate := decimal.NewFromInt(int64(in.GSTRate))

	out := LineAmounts{
		Base:           base,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		CGSTAmount:     decimal.Zero,
		SGSTAmount:     decimal.Zero,
		IGSTAmount:     decimal.Zero,
	}
	if in.Interstate {
		out.IGSTAmount = taxable.Mul(rate).Div(hundred).Round(2)
	} else {
		half := taxable.Mul(rate).Div(twoHundred).Round(2)
		out.CGSTAmount = half
		out.SGSTAmount = half
	}
	out.TotalAmount = taxable.Add(out.CGSTAmount).Add(out.SGSTAmount).Add(out.IGSTAmount)
	return out
}

// Apply copies computed amounts onto an invoice line.
func (a LineAmounts) Apply(item *domain.LineItem) {
	item.DiscountAmount = a.DiscountAmount
	item.TaxableAmount = a.TaxableAmount
	item.CGSTAmount = a.CGSTAmount
	item.SGSTAmount = a.SGSTAmount
	item.IGSTAmount = a.IGSTAmount
	item.TotalAmount = a.TotalAmount
}

// Summarize accumulates line amounts into header totals. The grand total is
// rounded to the whole rupee and RoundOff carries the difference.
func Summarize(lines []LineAmounts, freight decimal.Decimal, other decimal.Decimal) domain.InvoiceTotals {
	totals := domain.InvoiceTotals{
		Subtotal:       decimal.Zero,
		TotalDiscount:  decimal.Zero,
		TaxableAmount:  decimal.Zero,
		TotalCGST:      decimal.Zero,
		TotalSGST:      decimal.Zero,
		TotalIGST:      decimal.Zero,
		FreightCharges: freight.Round(2),
		OtherCharges:   other.Round(2),
	}
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(line.Base)
		totals.TotalDiscount = totals.TotalDiscount.Add(line.DiscountAmount)
		totals.TaxableAmount = totals.TaxableAmount.Add(line.TaxableAmount)
		totals.TotalCGST = totals.TotalCGST.Add(line.CGSTAmount)
		totals.TotalSGST = totals.TotalSGST.Add(line.SGSTAmount)
		totals.TotalIGST = totals.TotalIGST.Add(line.IGSTAmount)
	}
	totals.TotalGST = totals.TotalCGST.Add(totals.TotalSGST).Add(totals.TotalIGST)

	unrounded := totals.TaxableAmount.Add(totals.TotalGST).Add(totals.FreightCharges).Add(totals.OtherCharges)
	totals.GrandTotal = unrounded.Round(0)
	totals.RoundOff = totals.GrandTotal.Sub(unrounded)
	return totals
}

// Unrounded is the pre-rounding invoice amount.
func Unrounded(t domain.InvoiceTotals) decimal.Decimal {
	return t.GrandTotal.Sub(t.RoundOff)
}

// Settle derives balance and payment status from what has been paid so far.
func Settle(grandTotal decimal.Decimal, paid decimal.Decimal) domain.InvoicePayment {
	status := domain.PaymentStatusUnpaid
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(grandTotal):
		status = domain.PaymentStatusPaid
	case paid.IsPositive():
		status = domain.PaymentStatusPartial
	case !grandTotal.IsPositive():
		status = domain.PaymentStatusPaid
	}
	return domain.InvoicePayment{
		PaidAmount:    paid,
		BalanceAmount: grandTotal.Sub(paid),
		PaymentStatus: status,
	}
}
