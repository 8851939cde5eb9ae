package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account in the system.
// PasswordHash and RefreshToken are never serialized into responses.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"fullName"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	AvatarURL     string    `db:"avatar_url" json:"avatar"`
	CoverImageURL string    `db:"cover_image_url" json:"coverImage"`
	// RefreshToken хранит текущий refresh токен пользователя.
	// nil означает, что активной сессии нет (logout).
	RefreshToken *string   `db:"refresh_token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
