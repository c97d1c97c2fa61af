package services

import (
	"context"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/shopspring/decimal"
)

type ClientInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zip_code" validate:"max=20"`
	Country string `json:"country" validate:"max=100"`
	TaxID   string `json:"tax_id" validate:"max=50"`
}

// ClientPatch holds the fields of a partial update; nil fields are left untouched.
type ClientPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	City     *string `json:"city" validate:"omitempty,max=100"`
	State    *string `json:"state" validate:"omitempty,max=100"`
	ZipCode  *string `json:"zip_code" validate:"omitempty,max=20"`
	Country  *string `json:"country" validate:"omitempty,max=100"`
	TaxID    *string `json:"tax_id" validate:"omitempty,max=50"`
	IsActive *bool   `json:"is_active"`
}

func (p ClientPatch) fields() map[string]any {
	fields := map[string]any{}
	setString(fields, "name", p.Name)
	setString(fields, "email", p.Email)
	setString(fields, "phone", p.Phone)
	setString(fields, "address", p.Address)
	setString(fields, "city", p.City)
	setString(fields, "state", p.State)
	setString(fields, "zip_code", p.ZipCode)
	setString(fields, "country", p.Country)
	setString(fields, "tax_id", p.TaxID)
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	return fields
}

func setString(fields map[string]any, column string, v *string) {
	if v != nil {
		fields[column] = *v
	}
}

func (s *LedgerService) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	client := &models.Client{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Address:  in.Address,
		City:     in.City,
		State:    in.State,
		ZipCode:  in.ZipCode,
		Country:  in.Country,
		TaxID:    in.TaxID,
		IsActive: true,
	}
	if err := s.records.Insert(ctx, tableClients, client); err != nil {
		s.log.Error().Err(err).Str("email", in.Email).Msg("Error creating client")
		return nil, storeError("create client", err)
	}
	return client, nil
}

// GetClient returns the client with its invoice count and the amount due on sent or overdue invoices.
func (s *LedgerService) GetClient(ctx context.Context, id string) (*models.ClientView, error) {
	client, err := s.findClient(ctx, id)
	if err != nil {
		return nil, err
	}

	var invoices []models.Invoice
	q := store.Query{Filters: []store.Filter{store.Eq("client_id", id)}}
	if _, err := s.records.Select(ctx, tableInvoices, q, &invoices); err != nil {
		s.log.Error().Err(err).Str("client_id", id).Msg("Error loading client invoices")
		return nil, storeError("get client invoices", err)
	}

	due := decimal.Zero
	for _, inv := range invoices {
		if inv.Status.Outstanding() {
			due = due.Add(decimal.NewFromFloat(inv.TotalAmount))
		}
	}

	return &models.ClientView{
		Client:         *client,
		TotalInvoices:  int64(len(invoices)),
		TotalAmountDue: due.InexactFloat64(),
	}, nil
}

func (s *LedgerService) findClient(ctx context.Context, id string) (*models.Client, error) {
	var clients []models.Client
	if err := s.first(ctx, tableClients, id, &clients); err != nil {
		s.log.Error().Err(err).Str("client_id", id).Msg("Error getting client")
		return nil, storeError("get client", err)
	}
	if len(clients) == 0 {
		return nil, notFound("client", id)
	}
	return &clients[0], nil
}

// ListClients pages through clients, newest first.
func (s *LedgerService) ListClients(ctx context.Context, skip, limit int, activeOnly bool) (models.Page[models.Client], error) {
	if err := validatePaging(skip, limit); err != nil {
		return models.Page[models.Client]{}, err
	}

	q := store.Query{OrderBy: "created_at", Desc: true, Offset: skip, Limit: limit, Count: true}
	if activeOnly {
		q.Filters = append(q.Filters, store.Eq("is_active", true))
	}

	var clients []models.Client
	total, err := s.records.Select(ctx, tableClients, q, &clients)
	if err != nil {
		s.log.Error().Err(err).Msg("Error getting clients")
		return models.Page[models.Client]{}, storeError("list clients", err)
	}
	return models.NewPage(clients, total, skip, limit), nil
}

// UpdateClient applies the non-nil fields of patch. An empty patch returns the stored client unchanged.
func (s *LedgerService) UpdateClient(ctx context.Context, id string, patch ClientPatch) (*models.Client, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	fields := patch.fields()
	if len(fields) == 0 {
		return s.findClient(ctx, id)
	}
	fields["updated_at"] = s.now()

	n, err := s.records.Update(ctx, tableClients, fields, byID(id))
	if err != nil {
		s.log.Error().Err(err).Str("client_id", id).Msg("Error updating client")
		return nil, storeError("update client", err)
	}
	if n == 0 {
		return nil, notFound("client", id)
	}
	return s.findClient(ctx, id)
}

// DeleteClient soft-deletes the client; its invoices and payments are left as they are.
func (s *LedgerService) DeleteClient(ctx context.Context, id string) (bool, error) {
	n, err := s.records.Update(ctx, tableClients, map[string]any{
		"is_active":  false,
		"updated_at": s.now(),
	}, byID(id))
	if err != nil {
		s.log.Error().Err(err).Str("client_id", id).Msg("Error deleting client")
		return false, storeError("delete client", err)
	}
	return n > 0, nil
}
