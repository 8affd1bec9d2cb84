package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/nomadcore/triphail/pkg/uuid"
)

// CustomClaims is the shape of bearer tokens issued by the upstream identity
// provider. This service only validates incoming tokens; it never issues them.
type CustomClaims struct {
	ID    uuid.UUID `json:"ID"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
	jwt.RegisteredClaims
}
