package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Outstanding reports whether the invoice counts toward a client's amount due.
func (s InvoiceStatus) Outstanding() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusOverdue
}

type InvoiceItem struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Total       float64 `json:"total" validate:"gte=0"`
}

type Invoice struct {
	ID            string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	InvoiceNumber string        `gorm:"uniqueIndex;size:50;not null" json:"invoice_number"`
	ClientID      string        `gorm:"type:varchar(36);index;not null" json:"client_id"`
	Client        *Client       `gorm:"foreignKey:ClientID" json:"-"`
	ClientName    string        `gorm:"size:255" json:"client_name"`  // snapshot taken at creation
	ClientEmail   string        `gorm:"size:255" json:"client_email"` // snapshot taken at creation
	IssueDate     time.Time     `gorm:"not null" json:"issue_date"`
	DueDate       time.Time     `gorm:"not null" json:"due_date"`
	Status        InvoiceStatus `gorm:"size:20;default:'draft';index" json:"status"`

	Subtotal       float64 `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate        float64 `gorm:"type:decimal(5,4);default:0" json:"tax_rate"`
	TaxAmount      float64 `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	DiscountAmount float64 `gorm:"type:decimal(12,2);default:0" json:"discount_amount"`
	TotalAmount    float64 `gorm:"type:decimal(12,2);not null" json:"total_amount"`

	Items          datatypes.JSONSlice[InvoiceItem] `gorm:"not null" json:"items"`
	Notes          string                           `gorm:"type:text" json:"notes"`
	Terms          string                           `gorm:"type:text" json:"terms"`
	PdfURL         string                           `gorm:"type:text" json:"pdf_url"`
	AttachmentURLs datatypes.JSONSlice[string]      `json:"attachment_urls"`
}

// TableName overrides the table name
func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// InvoiceView is an invoice enriched with payment aggregates.
type InvoiceView struct {
	Invoice
	PaymentStatus PaymentStatus `json:"payment_status"`
	AmountPaid    float64       `json:"amount_paid"`
	AmountDue     float64       `json:"amount_due"`
}
