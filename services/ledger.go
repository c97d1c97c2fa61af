package services

import (
	"context"
	"time"

	"github.com/Origin-Inc/e-invoicing-backend/logger"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/Origin-Inc/e-invoicing-backend/utils"
	"github.com/rs/zerolog"
)

const (
	tableClients  = "clients"
	tableInvoices = "invoices"
	tablePayments = "payments"
)

// FileStore is the part of object storage the ledger uploads documents through.
type FileStore interface {
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error)
}

// LedgerService owns the financial rules for clients, invoices and payments.
// It holds no shared state of its own; every read and write goes to the record store.
type LedgerService struct {
	records  store.RecordStore
	files    FileStore
	verifier utils.PaymentVerifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewLedgerService wires the service to its collaborators. files and verifier may be nil,
// which disables document uploads and payment-rail verification respectively.
func NewLedgerService(records store.RecordStore, files FileStore, verifier utils.PaymentVerifier) *LedgerService {
	return &LedgerService{
		records:  records,
		files:    files,
		verifier: verifier,
		log:      logger.WithComponent("ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func byID(id string) []store.Filter {
	return []store.Filter{store.Eq("id", id)}
}

// first loads the single row of table with the given id into dest, a pointer to a slice.
func (s *LedgerService) first(ctx context.Context, table, id string, dest any) error {
	_, err := s.records.Select(ctx, table, store.Query{Filters: byID(id), Limit: 1}, dest)
	return err
}
