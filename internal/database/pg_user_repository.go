package database

import (
	"context"
	"errors"
	"fmt"

	"tube-server/internal/interfaces"
	"tube-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgUserRepository implements UserRepository
var _ interfaces.UserRepository = (*pgUserRepository)(nil)

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

type pgUserRepository struct {
	db     DBTX
	logger *zap.Logger
}

// DBTX is the subset of pgxpool.Pool used by the repositories.
// Позволяет подменять пул в тестах.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPgUserRepository creates a new PostgreSQL-backed UserRepository.
func NewPgUserRepository(db DBTX, logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.AvatarURL, &user.CoverImageURL, &user.RefreshToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a new user into the database.
func (r *pgUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at, updated_at`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("username", user.Username), zap.String("email", user.Email))
	err := r.db.QueryRow(ctx, query,
		user.Username, user.Email, user.FullName, user.PasswordHash,
		user.AvatarURL, user.CoverImageURL,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// Check for unique constraint violation (duplicate username or email)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // 23505 is unique_violation
			logFields := []zap.Field{zap.String("username", user.Username), zap.String("email", user.Email)}
			var returnErr error
			if pgErr.ConstraintName == "users_email_key" {
				r.logger.Warn("Attempted to create duplicate user by email", logFields...)
				returnErr = models.ErrEmailAlreadyExists
			} else {
				r.logger.Warn("Attempted to create duplicate user by username", append(logFields, zap.String("constraint", pgErr.ConstraintName))...)
				returnErr = models.ErrUserAlreadyExists
			}
			return returnErr
		}
		r.logger.Error("Failed to create user in postgres", zap.Error(err), zap.String("username", user.Username), zap.String("email", user.Email))
		return fmt.Errorf("failed to create user in postgres: %w", err)
	}
	r.logger.Info("User created successfully", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *pgUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("id", id.String()))
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found by ID", zap.String("id", id.String()))
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by id from postgres", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get user by id from postgres: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username.
func (r *pgUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("username", username))
	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found by username", zap.String("username", username))
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by username from postgres", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user by username from postgres: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email.
func (r *pgUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("email", email))
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found by email", zap.String("email", email))
			// Важно: возвращаем ErrUserNotFound, а не специфичную для email
			// ошибку, чтобы вызывающий код обрабатывал отсутствие единообразно.
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by email from postgres", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email from postgres: %w", err)
	}
	return user, nil
}

// UpdateAccountFields обновляет полное имя и email пользователя.
func (r *pgUserRepository) UpdateAccountFields(ctx context.Context, userID uuid.UUID, fullName, email string) error {
	query := `UPDATE users SET full_name = $1, email = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", userID.String()))

	cmdTag, err := r.db.Exec(ctx, query, fullName, email, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_email_key" {
			r.logger.Warn("Attempted to update user with duplicate email", zap.String("userID", userID.String()), zap.String("email", email))
			return models.ErrEmailAlreadyExists
		}
		r.logger.Error("Failed to update account fields in postgres", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to update account fields: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to update non-existent user", zap.String("userID", userID.String()))
		return models.ErrUserNotFound
	}

	r.logger.Info("Account fields updated successfully", zap.String("userID", userID.String()))
	return nil
}

// UpdateRefreshToken sets or clears the refresh token stored on the user row.
func (r *pgUserRepository) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error {
	query := `UPDATE users SET refresh_token = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", userID.String()), zap.Bool("clearing", token == nil))

	cmdTag, err := r.db.Exec(ctx, query, token, userID)
	if err != nil {
		r.logger.Error("Failed to update refresh token in postgres", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to update refresh token for non-existent user", zap.String("userID", userID.String()))
		return models.ErrUserNotFound
	}

	return nil
}

// UpdatePasswordHash обновляет хеш пароля пользователя.
func (r *pgUserRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", userID.String()))

	cmdTag, err := r.db.Exec(ctx, query, newPasswordHash, userID)
	if err != nil {
		r.logger.Error("Failed to update user password hash in postgres", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to update password hash for non-existent user", zap.String("userID", userID.String()))
		return models.ErrUserNotFound
	}

	r.logger.Info("User password hash updated successfully", zap.String("userID", userID.String()))
	return nil
}

// UpdateAvatarURL replaces the avatar URL of a user.
func (r *pgUserRepository) UpdateAvatarURL(ctx context.Context, userID uuid.UUID, url string) error {
	return r.updateMediaURL(ctx, userID, "avatar_url", url)
}

// UpdateCoverImageURL replaces the cover image URL of a user.
func (r *pgUserRepository) UpdateCoverImageURL(ctx context.Context, userID uuid.UUID, url string) error {
	return r.updateMediaURL(ctx, userID, "cover_image_url", url)
}

func (r *pgUserRepository) updateMediaURL(ctx context.Context, userID uuid.UUID, column, url string) error {
	// column всегда одно из двух известных имен, не пользовательский ввод.
	query := fmt.Sprintf(`UPDATE users SET %s = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, column)
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", userID.String()))

	cmdTag, err := r.db.Exec(ctx, query, url, userID)
	if err != nil {
		r.logger.Error("Failed to update media URL in postgres", zap.Error(err), zap.String("userID", userID.String()), zap.String("column", column))
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to update media URL for non-existent user", zap.String("userID", userID.String()), zap.String("column", column))
		return models.ErrUserNotFound
	}

	r.logger.Info("Media URL updated successfully", zap.String("userID", userID.String()), zap.String("column", column))
	return nil
}
