package services

import (
	"fmt"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/shopspring/decimal"
)

// Totals are the derived financial fields of an invoice.
type Totals struct {
	Subtotal    float64
	TaxAmount   float64
	TotalAmount float64
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// subtotalOf sums the caller-supplied item totals; quantity and unit price are not re-multiplied.
// Item totals must be whole cents so the stored subtotal is their exact sum.
func subtotalOf(items []models.InvoiceItem) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, item := range items {
		total := decimal.NewFromFloat(item.Total)
		if !isCents(total) {
			return decimal.Zero, NewValidationError(fmt.Sprintf("items[%d].total", i), "must have at most 2 decimal places")
		}
		sum = sum.Add(total)
	}
	return sum, nil
}

// computeTotals applies total = subtotal + subtotal*tax_rate - discount, with tax rounded to cents.
func computeTotals(subtotal decimal.Decimal, taxRate, discount float64) (Totals, error) {
	discountAmount := decimal.NewFromFloat(discount)
	if !isCents(discountAmount) {
		return Totals{}, NewValidationError("discount_amount", "must have at most 2 decimal places")
	}
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Round(2)
	total := subtotal.Add(tax).Sub(discountAmount)
	if total.IsNegative() {
		return Totals{}, NewValidationError("discount_amount", "must not exceed subtotal plus tax")
	}
	return Totals{
		Subtotal:    subtotal.InexactFloat64(),
		TaxAmount:   tax.InexactFloat64(),
		TotalAmount: total.InexactFloat64(),
	}, nil
}

// ComputeTotals derives an invoice's totals from its items.
func ComputeTotals(items []models.InvoiceItem, taxRate, discount float64) (Totals, error) {
	subtotal, err := subtotalOf(items)
	if err != nil {
		return Totals{}, err
	}
	return computeTotals(subtotal, taxRate, discount)
}

func sumAmounts(payments []models.Payment, status models.PaymentStatus) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p.Status == status {
			sum = sum.Add(decimal.NewFromFloat(p.Amount))
		}
	}
	return sum
}
