package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims are the claims carried by access tokens.
type JWTClaims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated caller.
type UserContext struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           Role
}

func (u UserContext) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}
