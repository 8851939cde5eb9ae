package domain

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims issued by this service.
// Access токены несут id/username/email, refresh токены - только id
// (Username и Email остаются пустыми).
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}
