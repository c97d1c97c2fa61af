package utils

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/Origin-Inc/e-invoicing-backend/models"
)

// RenderInvoicePDF lays out an invoice with its line items, totals and payment history on an A4 page.
func RenderInvoicePDF(view models.InvoiceView, payments []models.Payment) ([]byte, error) {
	inv := view.Invoice

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(190, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, inv.InvoiceNumber, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Bill To", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Name: %s", inv.ClientName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Issued: %s", inv.IssueDate.Format("02-Jan-2006")), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Email: %s", inv.ClientEmail), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Due: %s", inv.DueDate.Format("02-Jan-2006")), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(90, 7, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Total", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		desc := item.Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		pdf.CellFormat(90, 6, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%g", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", item.Total), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	totals := []struct {
		label  string
		amount float64
	}{
		{"Subtotal", inv.Subtotal},
		{fmt.Sprintf("Tax (%.2f%%)", inv.TaxRate*100), inv.TaxAmount},
		{"Discount", -inv.DiscountAmount},
		{"Total", inv.TotalAmount},
		{"Paid", view.AmountPaid},
	}
	pdf.SetFont("Arial", "", 11)
	for _, t := range totals {
		pdf.CellFormat(150, 7, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.2f", t.amount), "1", 1, "R", false, 0, "")
	}

	if view.AmountDue > 0 {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 14)
	balanceText := fmt.Sprintf("Amount Due: %.2f", view.AmountDue)
	if view.AmountDue <= 0 {
		balanceText = "PAID IN FULL"
	}
	pdf.CellFormat(190, 10, balanceText, "1", 1, "C", true, 0, "")

	if len(payments) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(190, 8, "Payments", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(200, 200, 200)
		pdf.CellFormat(40, 7, "Date", "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, "Method", "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, "Status", "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, "Amount", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, p := range payments {
			pdf.CellFormat(40, 6, p.PaymentDate.Format("02-Jan-2006"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, p.PaymentMethod, "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, string(p.Status), "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", p.Amount), "1", 1, "R", false, 0, "")
		}
	}

	if inv.Terms != "" || inv.Notes != "" {
		pdf.Ln(5)
		pdf.SetFont("Arial", "", 9)
		if inv.Terms != "" {
			pdf.MultiCell(190, 5, "Terms: "+inv.Terms, "", "L", false)
		}
		if inv.Notes != "" {
			pdf.MultiCell(190, 5, "Notes: "+inv.Notes, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}
