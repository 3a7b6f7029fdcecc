package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/warebase/warehouse-backend/pkg/enums"
)

// Order is the fulfillment read model reconciliation compares stock against.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}
