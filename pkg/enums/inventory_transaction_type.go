package enums

import "fmt"

// InventoryTransactionType maps to the inventory_transaction_type_enum enum in Postgres.
type InventoryTransactionType string

const (
	InventoryTransactionReservation  InventoryTransactionType = "reservation"
	InventoryTransactionCancellation InventoryTransactionType = "cancellation"
	InventoryTransactionDeduction    InventoryTransactionType = "deduction"
	InventoryTransactionAdjustment   InventoryTransactionType = "adjustment"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionReservation,
	InventoryTransactionCancellation,
	InventoryTransactionDeduction,
	InventoryTransactionAdjustment,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}

// RefPrefix returns the short code used when building transaction references.
func (t InventoryTransactionType) RefPrefix() string {
	switch t {
	case InventoryTransactionReservation:
		return "RES"
	case InventoryTransactionCancellation:
		return "CAN"
	case InventoryTransactionDeduction:
		return "DED"
	case InventoryTransactionAdjustment:
		return "ADJ"
	}
	return "TXN"
}
