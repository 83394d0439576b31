package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue product as seen by the cart.
// QuantityInStock is nil when stock is not tracked for the product.
type Product struct {
	ID              string          `json:"id" db:"product_id"`
	Name            string          `json:"name" db:"name"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Image           *string         `json:"image,omitempty" db:"image"`
	QuantityInStock *int            `json:"quantityInStock,omitempty" db:"quantity_in_stock"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// Customer is the read-only view of the customer directory used by checkout.
type Customer struct {
	ID       string `json:"id" db:"customer_id"`
	FullName string `json:"fullName" db:"full_name"`
	Address  string `json:"address" db:"address"`
}
