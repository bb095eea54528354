// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPrice is the exclusive upper bound the decimal(12,2) price column holds.
var MaxPrice = decimal.New(1, 10)

type Product struct {
	BaseModel
	VendorID    uuid.UUID       `json:"vendorId" gorm:"type:uuid;not null;index"`
	Name        string          `json:"name" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
}

// Order is an append-only log entry written together with a stock decrement.
type Order struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ProductID      uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	BuyerID        string    `json:"buyerId" gorm:"size:255;not null;index"`
	Quantity       int       `json:"quantity" gorm:"not null"`
	RemainingStock int       `json:"remainingStock" gorm:"not null"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StockRelease records a compensation for an order. OrderID is the primary
// key so an order can be released at most once.
type StockRelease struct {
	OrderID   uuid.UUID `json:"orderId" gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}
