package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"size:100" json:"city"`
	State     string    `gorm:"size:100" json:"state"`
	ZipCode   string    `gorm:"size:20" json:"zip_code"`
	Country   string    `gorm:"size:100" json:"country"`
	TaxID     string    `gorm:"size:50" json:"tax_id"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"` // false once soft-deleted
}

// TableName overrides the table name
func (Client) TableName() string {
	return "clients"
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ClientView is a client enriched with response-only aggregates.
type ClientView struct {
	Client
	TotalInvoices  int64   `json:"total_invoices"`
	TotalAmountDue float64 `json:"total_amount_due"`
}
