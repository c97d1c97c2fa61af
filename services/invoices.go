package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Origin-Inc/e-invoicing-backend/metrics"
	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// numberAttempts bounds the retries when a concurrent creation takes the same invoice number.
const numberAttempts = 5

type InvoiceInput struct {
	ClientID       string               `json:"client_id" validate:"required"`
	IssueDate      time.Time            `json:"issue_date" validate:"required"`
	DueDate        time.Time            `json:"due_date" validate:"required"`
	Status         models.InvoiceStatus `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Items          []models.InvoiceItem `json:"items" validate:"required,min=1,dive"`
	TaxRate        float64              `json:"tax_rate" validate:"gte=0,lte=1"`
	DiscountAmount float64              `json:"discount_amount" validate:"gte=0"`
	Notes          string               `json:"notes" validate:"max=1000"`
	Terms          string               `json:"terms" validate:"max=1000"`
}

// InvoicePatch holds the fields of a partial update; nil fields are left untouched.
type InvoicePatch struct {
	ClientID       *string               `json:"client_id" validate:"omitempty,min=1"`
	IssueDate      *time.Time            `json:"issue_date"`
	DueDate        *time.Time            `json:"due_date"`
	Status         *models.InvoiceStatus `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Items          []models.InvoiceItem  `json:"items" validate:"omitempty,min=1,dive"`
	TaxRate        *float64              `json:"tax_rate" validate:"omitempty,gte=0,lte=1"`
	DiscountAmount *float64              `json:"discount_amount" validate:"omitempty,gte=0"`
	Notes          *string               `json:"notes" validate:"omitempty,max=1000"`
	Terms          *string               `json:"terms" validate:"omitempty,max=1000"`
	PdfURL         *string               `json:"pdf_url"`
	AttachmentURLs []string              `json:"attachment_urls"`
}

func (p InvoicePatch) fields() map[string]any {
	fields := map[string]any{}
	setString(fields, "client_id", p.ClientID)
	if p.IssueDate != nil {
		fields["issue_date"] = p.IssueDate.UTC()
	}
	if p.DueDate != nil {
		fields["due_date"] = p.DueDate.UTC()
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Items != nil {
		fields["items"] = datatypes.NewJSONSlice(p.Items)
	}
	if p.TaxRate != nil {
		fields["tax_rate"] = *p.TaxRate
	}
	if p.DiscountAmount != nil {
		fields["discount_amount"] = *p.DiscountAmount
	}
	setString(fields, "notes", p.Notes)
	setString(fields, "terms", p.Terms)
	setString(fields, "pdf_url", p.PdfURL)
	if p.AttachmentURLs != nil {
		fields["attachment_urls"] = datatypes.NewJSONSlice(p.AttachmentURLs)
	}
	return fields
}

// touchesTotals reports whether the patch changes an input of the total formula.
func (p InvoicePatch) touchesTotals() bool {
	return p.Items != nil || p.TaxRate != nil || p.DiscountAmount != nil
}

// CreateInvoice computes the invoice's totals, numbers it and snapshots the client's name and email.
func (s *LedgerService) CreateInvoice(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	client, err := s.GetClient(ctx, in.ClientID)
	if err != nil {
		if IsNotFound(err) {
			s.log.Error().Str("client_id", in.ClientID).Msg("Client not found")
		}
		return nil, err
	}

	totals, err := ComputeTotals(in.Items, in.TaxRate, in.DiscountAmount)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.InvoiceStatusDraft
	}

	count, err := s.records.Count(ctx, tableInvoices, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Error counting invoices")
		return nil, storeError("count invoices", err)
	}

	for attempt := 0; attempt < numberAttempts; attempt++ {
		invoice := &models.Invoice{
			InvoiceNumber:  fmt.Sprintf("INV-%06d", count+1+int64(attempt)),
			ClientID:       client.ID,
			ClientName:     client.Name,
			ClientEmail:    client.Email,
			IssueDate:      in.IssueDate.UTC(),
			DueDate:        in.DueDate.UTC(),
			Status:         status,
			Subtotal:       totals.Subtotal,
			TaxRate:        in.TaxRate,
			TaxAmount:      totals.TaxAmount,
			DiscountAmount: in.DiscountAmount,
			TotalAmount:    totals.TotalAmount,
			Items:          datatypes.NewJSONSlice(in.Items),
			Notes:          in.Notes,
			Terms:          in.Terms,
			AttachmentURLs: datatypes.NewJSONSlice([]string{}),
		}

		err = s.records.Insert(ctx, tableInvoices, invoice)
		if err == nil {
			metrics.InvoicesCreatedTotal.Inc()
			return invoice, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		s.log.Warn().Str("invoice_number", invoice.InvoiceNumber).Msg("Invoice number taken, retrying")
	}

	s.log.Error().Err(err).Str("client_id", in.ClientID).Msg("Error creating invoice")
	return nil, storeError("create invoice", err)
}

// GetInvoice returns the invoice with the amount paid by completed payments and the amount still due.
// Partial payment is reported as pending, the same as no payment.
func (s *LedgerService) GetInvoice(ctx context.Context, id string) (*models.InvoiceView, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	q := store.Query{Filters: []store.Filter{store.Eq("invoice_id", id)}}
	if _, err := s.records.Select(ctx, tablePayments, q, &payments); err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error loading invoice payments")
		return nil, storeError("get invoice payments", err)
	}

	return invoiceView(invoice, sumAmounts(payments, models.PaymentStatusCompleted)), nil
}

func invoiceView(invoice *models.Invoice, paid decimal.Decimal) *models.InvoiceView {
	total := decimal.NewFromFloat(invoice.TotalAmount)
	due := total.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}

	status := models.PaymentStatusPending
	if paid.GreaterThanOrEqual(total) {
		status = models.PaymentStatusCompleted
	}

	return &models.InvoiceView{
		Invoice:       *invoice,
		PaymentStatus: status,
		AmountPaid:    paid.InexactFloat64(),
		AmountDue:     due.InexactFloat64(),
	}
}

func (s *LedgerService) findInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	var invoices []models.Invoice
	if err := s.first(ctx, tableInvoices, id, &invoices); err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error getting invoice")
		return nil, storeError("get invoice", err)
	}
	if len(invoices) == 0 {
		return nil, notFound("invoice", id)
	}
	return &invoices[0], nil
}

// ListInvoices pages through invoices, newest first, optionally filtered by client and status.
func (s *LedgerService) ListInvoices(ctx context.Context, skip, limit int, clientID string, status models.InvoiceStatus) (models.Page[models.Invoice], error) {
	if err := validatePaging(skip, limit); err != nil {
		return models.Page[models.Invoice]{}, err
	}
	if status != "" {
		if err := validate.Var(status, "oneof=draft sent paid overdue cancelled"); err != nil {
			return models.Page[models.Invoice]{}, NewValidationError("status", "must be one of [draft sent paid overdue cancelled]")
		}
	}

	q := store.Query{OrderBy: "created_at", Desc: true, Offset: skip, Limit: limit, Count: true}
	if clientID != "" {
		q.Filters = append(q.Filters, store.Eq("client_id", clientID))
	}
	if status != "" {
		q.Filters = append(q.Filters, store.Eq("status", status))
	}

	var invoices []models.Invoice
	total, err := s.records.Select(ctx, tableInvoices, q, &invoices)
	if err != nil {
		s.log.Error().Err(err).Msg("Error getting invoices")
		return models.Page[models.Invoice]{}, storeError("list invoices", err)
	}
	return models.NewPage(invoices, total, skip, limit), nil
}

// UpdateInvoice applies the non-nil fields of patch. When items, tax rate or discount change,
// subtotal, tax and total are recomputed, taking the stored value of any input the patch omits.
// An empty patch returns the stored invoice unchanged.
func (s *LedgerService) UpdateInvoice(ctx context.Context, id string, patch InvoicePatch) (*models.Invoice, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	fields := patch.fields()
	if len(fields) == 0 {
		return s.findInvoice(ctx, id)
	}

	if patch.touchesTotals() {
		current, err := s.findInvoice(ctx, id)
		if err != nil {
			return nil, err
		}

		subtotal := decimal.NewFromFloat(current.Subtotal)
		if patch.Items != nil {
			if subtotal, err = subtotalOf(patch.Items); err != nil {
				return nil, err
			}
		}
		taxRate := current.TaxRate
		if patch.TaxRate != nil {
			taxRate = *patch.TaxRate
		}
		discount := current.DiscountAmount
		if patch.DiscountAmount != nil {
			discount = *patch.DiscountAmount
		}

		totals, err := computeTotals(subtotal, taxRate, discount)
		if err != nil {
			return nil, err
		}
		fields["subtotal"] = totals.Subtotal
		fields["tax_rate"] = taxRate
		fields["tax_amount"] = totals.TaxAmount
		fields["total_amount"] = totals.TotalAmount
	}
	fields["updated_at"] = s.now()

	n, err := s.records.Update(ctx, tableInvoices, fields, byID(id))
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error updating invoice")
		return nil, storeError("update invoice", err)
	}
	if n == 0 {
		return nil, notFound("invoice", id)
	}
	return s.findInvoice(ctx, id)
}

// DeleteInvoice removes the invoice row outright. The store rejects it while payments reference the invoice.
func (s *LedgerService) DeleteInvoice(ctx context.Context, id string) (bool, error) {
	n, err := s.records.Delete(ctx, tableInvoices, byID(id), &models.Invoice{})
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error deleting invoice")
		return false, storeError("delete invoice", err)
	}
	return n > 0, nil
}
