package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
)

func TestGenerateInvoicePDF(t *testing.T) {
	db := setupTestDB(t)
	var uploaded []string
	files := &mockFileStore{
		UploadFunc: func(_ context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error) {
			assert.Equal(t, storage.BucketInvoices, bucket)
			assert.Equal(t, "application/pdf", contentType)
			assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
			uploaded = append(uploaded, key)
			return storage.Object{Bucket: bucket, Key: key, PublicURL: "https://files.example.com/" + key}, nil
		},
	}
	s := NewLedgerService(store.NewGormStore(db), files, nil)
	ctx := context.Background()
	client := createTestClient(t, s, "a@x.com")
	invoice := createTestInvoice(t, s, client.ID)

	updated, err := s.GenerateInvoicePDF(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.Equal(t, client.ID+"/INV-000001.pdf", uploaded[0])
	assert.Equal(t, "https://files.example.com/"+uploaded[0], updated.PdfURL)
	assert.Equal(t, invoice.TotalAmount, updated.TotalAmount)

	_, err = s.GenerateInvoicePDF(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestAttachFile(t *testing.T) {
	db := setupTestDB(t)
	fail := false
	files := &mockFileStore{
		UploadFunc: func(_ context.Context, bucket, key string, body []byte, contentType string) (storage.Object, error) {
			if fail {
				return storage.Object{}, errors.New("bucket unreachable")
			}
			assert.Equal(t, storage.BucketReceipts, bucket)
			return storage.Object{Bucket: bucket, Key: key, PublicURL: "https://files.example.com/" + key}, nil
		},
	}
	s := NewLedgerService(store.NewGormStore(db), files, nil)
	ctx := context.Background()
	client := createTestClient(t, s, "a@x.com")
	invoice := createTestInvoice(t, s, client.ID)

	first, err := s.AttachFile(ctx, invoice.ID, "receipt.png", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	require.Len(t, first.AttachmentURLs, 1)
	assert.True(t, strings.HasSuffix(first.AttachmentURLs[0], "-receipt.png"))
	assert.True(t, strings.HasPrefix(first.AttachmentURLs[0], "https://files.example.com/"+invoice.ID+"/"))

	second, err := s.AttachFile(ctx, invoice.ID, "../../etc/contract.pdf", []byte("%PDF"), "")
	require.NoError(t, err)
	require.Len(t, second.AttachmentURLs, 2)
	assert.True(t, strings.HasSuffix(second.AttachmentURLs[1], "-contract.pdf"))

	_, err = s.AttachFile(ctx, invoice.ID, "empty.txt", nil, "")
	assert.True(t, IsValidation(err))

	_, err = s.AttachFile(ctx, "missing", "a.txt", []byte("x"), "")
	assert.True(t, IsNotFound(err))

	fail = true
	_, err = s.AttachFile(ctx, invoice.ID, "a.txt", []byte("x"), "")
	assert.True(t, IsStoreError(err))
}

func TestDocumentsWithoutStorage(t *testing.T) {
	s, _ := setupTestService(t)
	_, err := s.GenerateInvoicePDF(context.Background(), "any")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.AttachFile(context.Background(), "any", "a.txt", []byte("x"), "")
	assert.ErrorIs(t, err, ErrUnavailable)
}
