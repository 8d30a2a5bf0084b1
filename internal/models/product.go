package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
type Product struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProductInput is a validated create/update payload.
type ProductInput struct {
	Name  string
	Price decimal.Decimal
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// HasPrevious reports whether a page exists before this one.
func (p ProductPage) HasPrevious() bool { return p.Page > 1 }

// HasNext reports whether a page exists after this one.
func (p ProductPage) HasNext() bool { return p.Page < p.TotalPages }
