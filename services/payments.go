package services

import (
	"context"
	"errors"
	"time"

	"github.com/Origin-Inc/e-invoicing-backend/metrics"
	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/Origin-Inc/e-invoicing-backend/utils"
	"github.com/shopspring/decimal"
)

type PaymentInput struct {
	InvoiceID     string               `json:"invoice_id" validate:"required"`
	Amount        float64              `json:"amount" validate:"gt=0"`
	PaymentDate   time.Time            `json:"payment_date" validate:"required"`
	PaymentMethod string               `json:"payment_method" validate:"required,max=50"`
	Status        models.PaymentStatus `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	TransactionID string               `json:"transaction_id" validate:"max=100"`
	Notes         string               `json:"notes" validate:"max=1000"`
}

// PaymentPatch holds the fields of a partial update; nil fields are left untouched.
type PaymentPatch struct {
	Amount        *float64              `json:"amount" validate:"omitempty,gt=0"`
	PaymentDate   *time.Time            `json:"payment_date"`
	PaymentMethod *string               `json:"payment_method" validate:"omitempty,min=1,max=50"`
	Status        *models.PaymentStatus `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	TransactionID *string               `json:"transaction_id" validate:"omitempty,max=100"`
	Notes         *string               `json:"notes" validate:"omitempty,max=1000"`
}

func (p PaymentPatch) fields() map[string]any {
	fields := map[string]any{}
	if p.Amount != nil {
		fields["amount"] = *p.Amount
	}
	if p.PaymentDate != nil {
		fields["payment_date"] = p.PaymentDate.UTC()
	}
	setString(fields, "payment_method", p.PaymentMethod)
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	setString(fields, "transaction_id", p.TransactionID)
	setString(fields, "notes", p.Notes)
	return fields
}

// CreatePayment records a payment against an existing invoice and marks the invoice paid
// once completed payments cover its total.
func (s *LedgerService) CreatePayment(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if _, err := s.findInvoice(ctx, in.InvoiceID); err != nil {
		if IsNotFound(err) {
			s.log.Error().Str("invoice_id", in.InvoiceID).Msg("Invoice not found")
		}
		return nil, err
	}

	if err := s.verifyPayment(ctx, in.PaymentMethod, in.TransactionID); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.PaymentStatusPending
	}

	payment := &models.Payment{
		InvoiceID:     in.InvoiceID,
		Amount:        in.Amount,
		PaymentDate:   in.PaymentDate.UTC(),
		PaymentMethod: in.PaymentMethod,
		Status:        status,
		TransactionID: in.TransactionID,
		Notes:         in.Notes,
	}
	if err := s.records.Insert(ctx, tablePayments, payment); err != nil {
		s.log.Error().Err(err).Str("invoice_id", in.InvoiceID).Msg("Error creating payment")
		return nil, storeError("create payment", err)
	}
	metrics.PaymentsRecordedTotal.WithLabelValues(string(payment.Status)).Inc()

	s.reconcileInvoice(ctx, in.InvoiceID)
	return payment, nil
}

func (s *LedgerService) verifyPayment(ctx context.Context, method, transactionID string) error {
	if s.verifier == nil {
		return nil
	}
	err := s.verifier.VerifyPayment(ctx, method, transactionID)
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Str("payment_method", method).Str("transaction_id", transactionID).Msg("Payment verification failed")
	if errors.Is(err, utils.ErrPaymentNotVerified) {
		return NewValidationError("transaction_id", err.Error())
	}
	return storeError("verify payment", err)
}

func (s *LedgerService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var payments []models.Payment
	if err := s.first(ctx, tablePayments, id, &payments); err != nil {
		s.log.Error().Err(err).Str("payment_id", id).Msg("Error getting payment")
		return nil, storeError("get payment", err)
	}
	if len(payments) == 0 {
		return nil, notFound("payment", id)
	}
	return &payments[0], nil
}

// ListPayments pages through payments, newest first, optionally filtered by invoice and status.
func (s *LedgerService) ListPayments(ctx context.Context, skip, limit int, invoiceID string, status models.PaymentStatus) (models.Page[models.Payment], error) {
	if err := validatePaging(skip, limit); err != nil {
		return models.Page[models.Payment]{}, err
	}
	if status != "" {
		if err := validate.Var(status, "oneof=pending completed failed refunded"); err != nil {
			return models.Page[models.Payment]{}, NewValidationError("status", "must be one of [pending completed failed refunded]")
		}
	}

	q := store.Query{OrderBy: "created_at", Desc: true, Offset: skip, Limit: limit, Count: true}
	if invoiceID != "" {
		q.Filters = append(q.Filters, store.Eq("invoice_id", invoiceID))
	}
	if status != "" {
		q.Filters = append(q.Filters, store.Eq("status", status))
	}

	var payments []models.Payment
	total, err := s.records.Select(ctx, tablePayments, q, &payments)
	if err != nil {
		s.log.Error().Err(err).Msg("Error getting payments")
		return models.Page[models.Payment]{}, storeError("list payments", err)
	}
	return models.NewPage(payments, total, skip, limit), nil
}

// UpdatePayment applies the non-nil fields of patch. A change of status or amount re-runs the
// paid-status check on the payment's invoice.
func (s *LedgerService) UpdatePayment(ctx context.Context, id string, patch PaymentPatch) (*models.Payment, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	fields := patch.fields()
	if len(fields) == 0 {
		return s.GetPayment(ctx, id)
	}
	fields["updated_at"] = s.now()

	n, err := s.records.Update(ctx, tablePayments, fields, byID(id))
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", id).Msg("Error updating payment")
		return nil, storeError("update payment", err)
	}
	if n == 0 {
		return nil, notFound("payment", id)
	}

	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil || patch.Amount != nil {
		s.reconcileInvoice(ctx, payment.InvoiceID)
	}
	return payment, nil
}

// DeletePayment removes the payment. An invoice already marked paid stays paid.
func (s *LedgerService) DeletePayment(ctx context.Context, id string) (bool, error) {
	n, err := s.records.Delete(ctx, tablePayments, byID(id), &models.Payment{})
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", id).Msg("Error deleting payment")
		return false, storeError("delete payment", err)
	}
	return n > 0, nil
}

// calculateTotalPayments sums the completed payments of an invoice. A read failure is logged
// and counted as zero so that recording the payment itself still succeeds.
func (s *LedgerService) calculateTotalPayments(ctx context.Context, invoiceID string) decimal.Decimal {
	var payments []models.Payment
	q := store.Query{Filters: []store.Filter{
		store.Eq("invoice_id", invoiceID),
		store.Eq("status", models.PaymentStatusCompleted),
	}}
	if _, err := s.records.Select(ctx, tablePayments, q, &payments); err != nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("Error calculating total payments")
		return decimal.Zero
	}
	return sumAmounts(payments, models.PaymentStatusCompleted)
}

// reconcileInvoice promotes the invoice to paid when completed payments cover its total.
// The promotion is a single conditional update evaluated by the store, so two payments
// landing together cannot both observe a stale sum. Failures are logged, not returned.
func (s *LedgerService) reconcileInvoice(ctx context.Context, invoiceID string) {
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("Error loading invoice for reconciliation")
		return
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return
	}

	paid := s.calculateTotalPayments(ctx, invoiceID)
	if paid.LessThan(decimal.NewFromFloat(invoice.TotalAmount)) {
		return
	}

	n, err := s.records.Update(ctx, tableInvoices, map[string]any{
		"status":     models.InvoiceStatusPaid,
		"updated_at": s.now(),
	}, []store.Filter{
		store.Eq("id", invoiceID),
		store.Lte("total_amount", store.Sum{
			Table:  tablePayments,
			Column: "amount",
			Filters: []store.Filter{
				store.Eq("invoice_id", invoiceID),
				store.Eq("status", models.PaymentStatusCompleted),
			},
		}),
	})
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("Error marking invoice paid")
		return
	}
	if n > 0 {
		metrics.InvoicesMarkedPaidTotal.Inc()
		s.log.Info().Str("invoice_id", invoiceID).Str("amount_paid", paid.StringFixed(2)).Msg("Invoice marked paid")
	}
}
