package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
)

type mockFileStore struct {
	UploadFunc func(ctx context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error)
}

func (m *mockFileStore) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error) {
	return m.UploadFunc(ctx, bucket, key, body, contentType)
}

type mockVerifier struct {
	VerifyPaymentFunc func(ctx context.Context, method, transactionID string) error
}

func (m *mockVerifier) VerifyPayment(ctx context.Context, method, transactionID string) error {
	return m.VerifyPaymentFunc(ctx, method, transactionID)
}

// flakyStore fails selected operations of an otherwise working store.
type flakyStore struct {
	store.RecordStore
	failSelect map[string]bool
	failInsert map[string]error
}

func (f *flakyStore) Select(ctx context.Context, table string, q store.Query, dest any) (int64, error) {
	if f.failSelect[table] {
		return 0, errors.New("connection reset by peer")
	}
	return f.RecordStore.Select(ctx, table, q, dest)
}

func (f *flakyStore) Insert(ctx context.Context, table string, row any) error {
	if err := f.failInsert[table]; err != nil {
		return err
	}
	return f.RecordStore.Insert(ctx, table, row)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Client{}, &models.Invoice{}, &models.Payment{}))
	return db
}

func setupTestService(t *testing.T) (*LedgerService, *gorm.DB) {
	db := setupTestDB(t)
	return NewLedgerService(store.NewGormStore(db), nil, nil), db
}

var testIssueDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func createTestClient(t *testing.T, s *LedgerService, email string) *models.Client {
	client, err := s.CreateClient(context.Background(), ClientInput{Name: "Acme", Email: email})
	require.NoError(t, err)
	return client
}

func testInvoiceInput(clientID string) InvoiceInput {
	return InvoiceInput{
		ClientID:  clientID,
		IssueDate: testIssueDate,
		DueDate:   testIssueDate.AddDate(0, 0, 30),
		Items: []models.InvoiceItem{
			{Description: "A", Quantity: 1, UnitPrice: 100, Total: 100},
			{Description: "B", Quantity: 2, UnitPrice: 25, Total: 50},
		},
		TaxRate:        0.1,
		DiscountAmount: 10,
	}
}

func createTestInvoice(t *testing.T, s *LedgerService, clientID string) *models.Invoice {
	invoice, err := s.CreateInvoice(context.Background(), testInvoiceInput(clientID))
	require.NoError(t, err)
	return invoice
}
