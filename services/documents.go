package services

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/Origin-Inc/e-invoicing-backend/utils"
)

// GenerateInvoicePDF renders the invoice, uploads it to the invoices bucket and records its URL.
func (s *LedgerService) GenerateInvoicePDF(ctx context.Context, id string) (*models.Invoice, error) {
	if s.files == nil {
		return nil, fmt.Errorf("object storage: %w", ErrUnavailable)
	}

	view, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	q := store.Query{Filters: []store.Filter{store.Eq("invoice_id", id)}, OrderBy: "payment_date"}
	if _, err := s.records.Select(ctx, tablePayments, q, &payments); err != nil {
		return nil, storeError("get invoice payments", err)
	}

	data, err := utils.RenderInvoicePDF(*view, payments)
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error rendering invoice PDF")
		return nil, err
	}

	key := fmt.Sprintf("%s/%s.pdf", view.ClientID, view.InvoiceNumber)
	obj, err := s.files.Upload(ctx, storage.BucketInvoices, key, data, "application/pdf")
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error uploading invoice PDF")
		return nil, storeError("upload invoice pdf", err)
	}

	url := obj.PublicURL
	return s.UpdateInvoice(ctx, id, InvoicePatch{PdfURL: &url})
}

// AttachFile uploads a receipt or supporting document and appends its URL to the invoice.
func (s *LedgerService) AttachFile(ctx context.Context, id, filename string, body []byte, contentType string) (*models.Invoice, error) {
	if s.files == nil {
		return nil, fmt.Errorf("object storage: %w", ErrUnavailable)
	}
	if len(body) == 0 {
		return nil, NewValidationError("file", "must not be empty")
	}

	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s-%s", id, uuid.NewString(), path.Base(filename))
	obj, err := s.files.Upload(ctx, storage.BucketReceipts, key, body, contentType)
	if err != nil {
		s.log.Error().Err(err).Str("invoice_id", id).Msg("Error uploading attachment")
		return nil, storeError("upload attachment", err)
	}

	urls := append([]string{}, invoice.AttachmentURLs...)
	urls = append(urls, obj.PublicURL)
	n, err := s.records.Update(ctx, tableInvoices, map[string]any{
		"attachment_urls": datatypes.NewJSONSlice(urls),
		"updated_at":      s.now(),
	}, byID(id))
	if err != nil {
		return nil, storeError("update invoice attachments", err)
	}
	if n == 0 {
		return nil, notFound("invoice", id)
	}
	return s.findInvoice(ctx, id)
}
