package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Product represents a row in the "products" table.
// Fields map 1-to-1 with columns; ID is assigned by the database on insert.
type Product struct {
	ID    int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name  string          `json:"name" gorm:"not null"`
	Price decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
}

// TableName pins the GORM table name to the one created by the migrations.
func (Product) TableName() string { return "products" }

// Equal reports whether two products carry the same id, name and price.
// Prices are compared by value, so 1.5 and 1.50 are equal.
func (p Product) Equal(o Product) bool {
	return p.ID == o.ID && p.Name == o.Name && p.Price.Equal(o.Price)
}

// CreateProductParams holds the fields required to create a new product.
// The id is deliberately absent: the database assigns it.
type CreateProductParams struct {
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// PriceScale is the number of fractional digits the products table stores.
const PriceScale = 2

var (
	ErrEmptyName     = errors.New("models: product name must not be empty")
	ErrNegativePrice = errors.New("models: product price must not be negative")
	ErrPriceScale    = errors.New("models: product price has more than 2 decimal places")
)

// Validate checks the write-side conventions. Reads never validate.
func (p CreateProductParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	// NUMERIC(12,2) would round anything finer on insert.
	if !p.Price.Equal(p.Price.Truncate(PriceScale)) {
		return ErrPriceScale
	}
	return nil
}
