package interfaces

import (
	"context"

	"tube-server/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data persistence (PostgreSQL).
type UserRepository interface {
	// CreateUser inserts a new user into the database.
	// Returns models.ErrUserAlreadyExists / models.ErrEmailAlreadyExists on
	// unique constraint violations.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by their ID.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetUserByUsername retrieves a user by their username.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByEmail retrieves a user by their email address.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateAccountFields обновляет отображаемое имя и email пользователя.
	// Возвращает models.ErrUserNotFound, если строка не найдена, и
	// models.ErrEmailAlreadyExists при конфликте email.
	UpdateAccountFields(ctx context.Context, userID uuid.UUID, fullName, email string) error

	// UpdateRefreshToken sets (or clears, when token is nil) the refresh token
	// stored on the user record. A single atomic UPDATE: the rest of the record
	// is not re-validated or re-hashed.
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error

	// UpdatePasswordHash обновляет хеш пароля пользователя.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newPasswordHash string) error

	// UpdateAvatarURL replaces the avatar URL.
	// Returns models.ErrUserNotFound if no row was updated.
	UpdateAvatarURL(ctx context.Context, userID uuid.UUID, url string) error

	// UpdateCoverImageURL replaces the cover image URL.
	// Returns models.ErrUserNotFound if no row was updated.
	UpdateCoverImageURL(ctx context.Context, userID uuid.UUID, url string) error
}
