package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/warebase/warehouse-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.WarehouseRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to warehouse staff.
type AccessTokenClaims struct {
	UserID uuid.UUID           `json:"user_id"`
	Role   enums.WarehouseRole `json:"role"`
	jwt.RegisteredClaims
}
