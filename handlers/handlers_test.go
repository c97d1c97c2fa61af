package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/services"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
)

type MockFileStore struct {
	UploadFunc func(ctx context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error)
}

func (m *MockFileStore) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error) {
	return m.UploadFunc(ctx, bucket, key, body, contentType)
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

func setupTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	records := store.NewGormStore(setupTestDB(t))
	files := &MockFileStore{
		UploadFunc: func(_ context.Context, bucket, key string, _ []byte, _ string) (storage.Object, error) {
			return storage.Object{Bucket: bucket, Key: key, PublicURL: "https://files.example.com/" + key}, nil
		},
	}
	return NewRouter(RouterDeps{
		Ledger: services.NewLedgerService(records, files, nil),
		Health: NewHealthHandler(records.Ping, nil, nil),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createClient(t *testing.T, router *gin.Engine, email string) models.Client {
	w := doJSON(t, router, "POST", "/api/v1/clients", gin.H{"name": "Acme", "email": email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Client](t, w)
}

func createInvoice(t *testing.T, router *gin.Engine, clientID string) models.Invoice {
	w := doJSON(t, router, "POST", "/api/v1/invoices", gin.H{
		"client_id":  clientID,
		"issue_date": "2024-01-01T00:00:00Z",
		"due_date":   "2024-01-31T00:00:00Z",
		"items": []gin.H{
			{"description": "A", "quantity": 1, "unit_price": 100, "total": 100},
			{"description": "B", "quantity": 2, "unit_price": 25, "total": 50},
		},
		"tax_rate":        0.1,
		"discount_amount": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Invoice](t, w)
}

func TestInvoiceLifecycle(t *testing.T) {
	router := setupTestRouter(t)
	client := createClient(t, router, "a@x.com")
	invoice := createInvoice(t, router, client.ID)

	assert.Equal(t, "INV-000001", invoice.InvoiceNumber)
	assert.Equal(t, 150.0, invoice.Subtotal)
	assert.Equal(t, 15.0, invoice.TaxAmount)
	assert.Equal(t, 155.0, invoice.TotalAmount)

	w := doJSON(t, router, "POST", "/api/v1/payments", gin.H{
		"invoice_id":     invoice.ID,
		"amount":         155,
		"payment_date":   "2024-01-10T00:00:00Z",
		"payment_method": "bank_transfer",
		"status":         "completed",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, "GET", "/api/v1/invoices/"+invoice.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[models.InvoiceView](t, w)
	assert.Equal(t, models.InvoiceStatusPaid, view.Status)
	assert.Equal(t, models.PaymentStatusCompleted, view.PaymentStatus)
	assert.Equal(t, 0.0, view.AmountDue)

	w = doJSON(t, router, "PATCH", "/api/v1/invoices/"+invoice.ID, gin.H{
		"items": []gin.H{{"description": "C", "quantity": 1, "unit_price": 200, "total": 200}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Invoice](t, w)
	assert.Equal(t, 20.0, updated.TaxAmount)
	assert.Equal(t, 210.0, updated.TotalAmount)

	w = doJSON(t, router, "GET", "/api/v1/clients/"+client.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	clientView := decode[models.ClientView](t, w)
	assert.Equal(t, int64(1), clientView.TotalInvoices)
}

func TestClientEndpoints(t *testing.T) {
	router := setupTestRouter(t)
	client := createClient(t, router, "a@x.com")
	createClient(t, router, "b@x.com")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		contains string
	}{
		{"Invalid email", "POST", "/api/v1/clients", gin.H{"name": "X", "email": "bad"}, http.StatusBadRequest, `"field":"email"`},
		{"Duplicate email", "POST", "/api/v1/clients", gin.H{"name": "X", "email": "a@x.com"}, http.StatusConflict, "already exists"},
		{"Malformed JSON", "POST", "/api/v1/clients", "{", http.StatusBadRequest, "error"},
		{"Unknown client", "GET", "/api/v1/clients/missing", nil, http.StatusNotFound, "not found"},
		{"Patch", "PATCH", "/api/v1/clients/" + client.ID, gin.H{"city": "Berlin"}, http.StatusOK, "Berlin"},
		{"Bad paging", "GET", "/api/v1/clients?limit=0", nil, http.StatusBadRequest, `"field":"limit"`},
		{"Non numeric skip", "GET", "/api/v1/clients?skip=abc", nil, http.StatusBadRequest, `"field":"skip"`},
		{"Delete", "DELETE", "/api/v1/clients/" + client.ID, nil, http.StatusOK, "deleted"},
		{"Delete unknown", "DELETE", "/api/v1/clients/missing", nil, http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if raw, ok := tt.body.(string); ok {
				w = httptest.NewRecorder()
				req, _ := http.NewRequest(tt.method, tt.path, bytes.NewBufferString(raw))
				req.Header.Set("Content-Type", "application/json")
				router.ServeHTTP(w, req)
			} else {
				w = doJSON(t, router, tt.method, tt.path, tt.body)
			}
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	t.Run("Soft deleted client hidden by default", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/clients", nil)
		page := decode[models.Page[models.Client]](t, w)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, 100, page.PerPage)

		w = doJSON(t, router, "GET", "/api/v1/clients?active_only=false", nil)
		page = decode[models.Page[models.Client]](t, w)
		assert.Equal(t, int64(2), page.Total)
	})
}

func TestInvoiceAndPaymentErrors(t *testing.T) {
	router := setupTestRouter(t)
	client := createClient(t, router, "a@x.com")
	invoice := createInvoice(t, router, client.ID)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{"Invoice for unknown client", "POST", "/api/v1/invoices", gin.H{
			"client_id": "missing", "issue_date": "2024-01-01T00:00:00Z", "due_date": "2024-01-31T00:00:00Z",
			"items": []gin.H{{"description": "A", "quantity": 1, "unit_price": 1, "total": 1}},
		}, http.StatusNotFound},
		{"Invoice without items", "POST", "/api/v1/invoices", gin.H{
			"client_id": client.ID, "issue_date": "2024-01-01T00:00:00Z", "due_date": "2024-01-31T00:00:00Z", "items": []gin.H{},
		}, http.StatusBadRequest},
		{"Bad status filter", "GET", "/api/v1/invoices?status=archived", nil, http.StatusBadRequest},
		{"Payment for unknown invoice", "POST", "/api/v1/payments", gin.H{
			"invoice_id": "missing", "amount": 10, "payment_date": "2024-01-10T00:00:00Z", "payment_method": "cash",
		}, http.StatusNotFound},
		{"Zero payment", "POST", "/api/v1/payments", gin.H{
			"invoice_id": invoice.ID, "amount": 0, "payment_date": "2024-01-10T00:00:00Z", "payment_method": "cash",
		}, http.StatusBadRequest},
		{"Unknown payment", "GET", "/api/v1/payments/missing", nil, http.StatusNotFound},
		{"Delete unknown payment", "DELETE", "/api/v1/payments/missing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	t.Run("List payments by invoice and status", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/payments", gin.H{
			"invoice_id": invoice.ID, "amount": 10, "payment_date": "2024-01-10T00:00:00Z", "payment_method": "cash",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		payment := decode[models.Payment](t, w)
		assert.Equal(t, models.PaymentStatusPending, payment.Status)

		w = doJSON(t, router, "GET", "/api/v1/payments?invoice_id="+invoice.ID, nil)
		page := decode[models.Page[models.Payment]](t, w)
		assert.Equal(t, int64(1), page.Total)

		w = doJSON(t, router, "POST", "/api/v1/payments", gin.H{
			"invoice_id": invoice.ID, "amount": 5, "payment_date": "2024-01-11T00:00:00Z", "payment_method": "card",
			"status": "failed",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		failed := decode[models.Payment](t, w)

		w = doJSON(t, router, "GET", "/api/v1/payments?status=failed", nil)
		page = decode[models.Page[models.Payment]](t, w)
		require.Len(t, page.Items, 1)
		assert.Equal(t, failed.ID, page.Items[0].ID)

		w = doJSON(t, router, "GET", "/api/v1/payments?invoice_id="+invoice.ID+"&status=pending", nil)
		page = decode[models.Page[models.Payment]](t, w)
		require.Len(t, page.Items, 1)
		assert.Equal(t, payment.ID, page.Items[0].ID)

		w = doJSON(t, router, "GET", "/api/v1/payments?status=settled", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, router, "DELETE", "/api/v1/payments/"+failed.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "PATCH", "/api/v1/payments/"+payment.ID, gin.H{"notes": "cheque"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "DELETE", "/api/v1/invoices/"+invoice.ID, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		w = doJSON(t, router, "DELETE", "/api/v1/payments/"+payment.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "DELETE", "/api/v1/invoices/"+invoice.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestInvoiceDocuments(t *testing.T) {
	router := setupTestRouter(t)
	client := createClient(t, router, "a@x.com")
	invoice := createInvoice(t, router, client.ID)

	w := doJSON(t, router, "POST", "/api/v1/invoices/"+invoice.ID+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://files.example.com/"+client.ID+"/INV-000001.pdf", decode[models.Invoice](t, w).PdfURL)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "receipt.txt")
	require.NoError(t, err)
	part.Write([]byte("paid in cash"))
	require.NoError(t, mw.Close())

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/invoices/"+invoice.ID+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[models.Invoice](t, w).AttachmentURLs, 1)

	w = doJSON(t, router, "POST", "/api/v1/invoices/"+invoice.ID+"/attachments", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentsUnavailableWithoutStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	records := store.NewGormStore(setupTestDB(t))
	router := NewRouter(RouterDeps{
		Ledger: services.NewLedgerService(records, nil, nil),
		Health: NewHealthHandler(records.Ping, nil, nil),
	})
	client := createClient(t, router, "a@x.com")
	invoice := createInvoice(t, router, client.ID)

	w := doJSON(t, router, "POST", "/api/v1/invoices/"+invoice.ID+"/pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Healthy", func(t *testing.T) {
		router := setupTestRouter(t)
		w := doJSON(t, router, "GET", "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "healthy", body["record_store"].(map[string]any)["status"])
		assert.Equal(t, "not_configured", body["object_storage"].(map[string]any)["status"])
	})

	t.Run("Storage down", func(t *testing.T) {
		router := NewRouter(RouterDeps{
			Health: NewHealthHandler(
				func(context.Context) error { return nil },
				func(context.Context) error { return errors.New("connection refused") },
				nil,
			),
		})
		w := doJSON(t, router, "GET", "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestRootAndMetrics(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, "GET", "/v1/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "API is running")

	w = doJSON(t, router, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 30 * time.Second, nil
}

func TestRateLimitScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	records := store.NewGormStore(setupTestDB(t))
	router := NewRouter(RouterDeps{
		Ledger:  services.NewLedgerService(records, nil, nil),
		Health:  NewHealthHandler(records.Ping, nil, nil),
		Limiter: denyAll{},
	})

	w := doJSON(t, router, "GET", "/api/v1/clients", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	w = doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
