package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is one SKU line on an order.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:ix_order_items_order"`
	SKU       string    `gorm:"column:sku;not null;index:ix_order_items_sku"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
