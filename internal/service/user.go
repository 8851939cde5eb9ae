package service

import (
	"context"

	"tube-server/internal/domain"
	"tube-server/internal/models"

	"github.com/google/uuid"
)

// RegisterInput carries the registration form fields plus the local paths of
// the already-saved multipart files (avatar is required, cover is optional).
type RegisterInput struct {
	FullName       string
	Username       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput carries the login credentials. Либо Username, либо Email
// обязателен.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// UserService defines the session lifecycle operations: registration,
// authentication, token issuance/rotation, logout and profile updates.
type UserService interface {
	// Register creates a new user and returns the persisted record re-read
	// from the repository (password hash and refresh token excluded from
	// serialization).
	Register(ctx context.Context, in RegisterInput) (*models.User, error)

	// Login authenticates a user by username or email, issues a fresh token
	// pair and persists the refresh token on the user record.
	Login(ctx context.Context, in LoginInput) (*models.User, *models.TokenDetails, error)

	// Logout clears the refresh token stored for the user.
	Logout(ctx context.Context, userID uuid.UUID) error

	// Refresh rotates the token pair: the presented refresh token must match
	// the one currently stored on the user record exactly.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)

	// ChangePassword verifies the old password and sets a new one.
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmPassword string) error

	// GetUser returns the user record by ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// UpdateAccount updates the display name and email of the user.
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error)

	// UpdateAvatar uploads a new avatar and replaces the stored URL.
	UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)

	// UpdateCoverImage uploads a new cover image and replaces the stored URL.
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)

	// VerifyAccessToken parses and validates an access token string.
	VerifyAccessToken(ctx context.Context, tokenString string) (*domain.Claims, error)
}
