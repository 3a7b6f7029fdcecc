package enums

import "fmt"

// WarehouseRole maps to the warehouse_role_enum enum in Postgres.
type WarehouseRole string

const (
	WarehouseRoleOperator   WarehouseRole = "operator"
	WarehouseRoleSupervisor WarehouseRole = "supervisor"
	WarehouseRoleAdmin      WarehouseRole = "admin"
)

var validWarehouseRoles = []WarehouseRole{
	WarehouseRoleOperator,
	WarehouseRoleSupervisor,
	WarehouseRoleAdmin,
}

// IsValid reports whether the value matches the canonical role enum.
func (r WarehouseRole) IsValid() bool {
	for _, candidate := range validWarehouseRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanAdjust reports whether holders of this role may post manual adjustments.
func (r WarehouseRole) CanAdjust() bool {
	return r == WarehouseRoleSupervisor || r == WarehouseRoleAdmin
}

// ParseWarehouseRole converts raw input into WarehouseRole.
func ParseWarehouseRole(value string) (WarehouseRole, error) {
	for _, candidate := range validWarehouseRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid warehouse role %q", value)
}
