package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checked_out"
)

// Cart is a customer's mutable collection of lines prior to purchase.
type Cart struct {
	ID         uuid.UUID       `json:"id" db:"cart_id"`
	CustomerID string          `json:"customerId" db:"customer_id"`
	Status     CartStatus      `json:"status" db:"cart_status"`
	TotalPrice decimal.Decimal `json:"totalPrice" db:"total_price"`
	Lines      []CartLine      `json:"lines"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// OpenLines returns the lines that have not been folded into an order.
func (c *Cart) OpenLines() []CartLine {
	open := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		if !l.IsCheckedOut {
			open = append(open, l)
		}
	}
	return open
}

// CartLine snapshots product data at add time. Color and Image may be nil.
type CartLine struct {
	ID           uuid.UUID       `json:"id" db:"cart_detail_id"`
	CartID       uuid.UUID       `json:"cartId" db:"cart_id"`
	ProductID    string          `json:"productId" db:"product_id"`
	ProductName  string          `json:"productName" db:"product_name"`
	UnitPrice    decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	TotalPrice   decimal.Decimal `json:"totalPrice" db:"total_price"`
	Size         string          `json:"size" db:"size"`
	Color        *string         `json:"color,omitempty" db:"color"`
	Image        *string         `json:"image,omitempty" db:"image"`
	IsCheckedOut bool            `json:"isCheckedOut" db:"is_checked_out"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// SameVariant reports whether the line holds the given product variant.
// A nil color only matches a nil color.
func (l *CartLine) SameVariant(productID, size string, color *string) bool {
	if l.ProductID != productID || l.Size != size {
		return false
	}
	if l.Color == nil || color == nil {
		return l.Color == nil && color == nil
	}
	return *l.Color == *color
}

// LineTotal returns unitPrice × quantity at currency precision.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// AddLineRequest is the payload for adding a product to a customer's cart.
type AddLineRequest struct {
	CustomerID string  `json:"customerId"`
	ProductID  string  `json:"productId"`
	Quantity   int     `json:"quantity"`
	Size       string  `json:"size"`
	Color      *string `json:"color,omitempty"`
	Image      *string `json:"image,omitempty"`
}

// UpdateLineRequest is the payload for changing a line's quantity.
type UpdateLineRequest struct {
	Quantity int `json:"quantity"`
}
