package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID            string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	InvoiceID     string        `gorm:"type:varchar(36);index;not null" json:"invoice_id"`
	Invoice       *Invoice      `gorm:"foreignKey:InvoiceID" json:"-"`
	Amount        float64       `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate   time.Time     `gorm:"not null" json:"payment_date"`
	PaymentMethod string        `gorm:"size:50;not null" json:"payment_method"` // bank_transfer, card, cash, stellar
	Status        PaymentStatus `gorm:"size:20;default:'pending';index" json:"status"`
	TransactionID string        `gorm:"size:100" json:"transaction_id"`
	Notes         string        `gorm:"type:text" json:"notes"`
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
