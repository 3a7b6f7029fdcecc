package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/warebase/warehouse-backend/pkg/enums"
)

// InventoryTransaction records an immutable stock movement against a SKU.
// Quantity is signed: positive for stock entering the committed pool,
// negative for stock leaving it.
type InventoryTransaction struct {
	ID             uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	TransactionRef string                         `gorm:"column:transaction_ref;not null;uniqueIndex:ux_inventory_transactions_ref"`
	SKU            string                         `gorm:"column:sku;not null;index:ix_inventory_transactions_sku"`
	BinLocation    string                         `gorm:"column:bin_location;not null"`
	Type           enums.InventoryTransactionType `gorm:"column:type;type:inventory_transaction_type_enum;not null"`
	Quantity       int                            `gorm:"column:quantity;not null"`
	OrderID        *uuid.UUID                     `gorm:"column:order_id;type:uuid;index:ix_inventory_transactions_order"`
	UserID         *uuid.UUID                     `gorm:"column:user_id;type:uuid"`
	Reason         *string                        `gorm:"column:reason"`
	CreatedAt      time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}
