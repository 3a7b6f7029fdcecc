package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryUnit tracks on-hand and reserved counts for a SKU at one bin location.
type InventoryUnit struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string    `gorm:"column:sku;not null;uniqueIndex:ux_inventory_units_sku_bin"`
	BinLocation  string    `gorm:"column:bin_location;not null;uniqueIndex:ux_inventory_units_sku_bin"`
	Quantity     int       `gorm:"column:quantity;not null;default:0"`
	Reserved     int       `gorm:"column:reserved;not null;default:0"`
	MinThreshold int       `gorm:"column:min_threshold;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the quantity not yet committed to reservations.
func (u InventoryUnit) Available() int {
	return u.Quantity - u.Reserved
}

// BelowThreshold reports whether on-hand stock dropped to or under the reorder floor.
func (u InventoryUnit) BelowThreshold() bool {
	return u.Quantity <= u.MinThreshold
}

func (InventoryUnit) TableName() string {
	return "inventory_units"
}
