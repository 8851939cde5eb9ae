package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"tube-server/internal/config"
	"tube-server/internal/domain"
	"tube-server/internal/interfaces"
	"tube-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Compile-time check to ensure userServiceImpl implements UserService
var _ UserService = (*userServiceImpl)(nil)

const tokenIssuer = "tube-server"

// userServiceImpl implements the UserService interface.
type userServiceImpl struct {
	userRepo   interfaces.UserRepository
	mediaStore interfaces.MediaStore
	cleanupPub interfaces.CleanupPublisher
	cfg        *config.Config
	logger     *zap.Logger
}

// NewUserService creates a new instance of userServiceImpl.
func NewUserService(userRepo interfaces.UserRepository, mediaStore interfaces.MediaStore, cleanupPub interfaces.CleanupPublisher, cfg *config.Config, logger *zap.Logger) UserService {
	return &userServiceImpl{
		userRepo:   userRepo,
		mediaStore: mediaStore,
		cleanupPub: cleanupPub,
		cfg:        cfg,
		logger:     logger.Named("UserService"),
	}
}

// Register creates a new user.
func (s *userServiceImpl) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	// Нормализуем входные данные: email и username к нижнему регистру,
	// все текстовые поля без окружающих пробелов.
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	logFields := []zap.Field{zap.String("username", in.Username), zap.String("email", in.Email)}
	s.logger.Info("Registering new user", logFields...)

	var missing []string
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		s.logger.Warn("Registration attempt with empty required fields", append(logFields, zap.Strings("fields", missing))...)
		return nil, models.NewValidationError("all fields are required", missing...)
	}

	// Валидация формата email (простая)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		s.logger.Warn("Registration attempt with invalid email format", append(logFields, zap.Error(err))...)
		return nil, models.NewValidationError("invalid email format", "email")
	}

	// Проверка существования пользователя по username
	existingUser, err := s.userRepo.GetUserByUsername(ctx, in.Username)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing username during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing username: %w", err)
	}
	if existingUser != nil {
		s.logger.Warn("Registration attempt for existing username", logFields...)
		return nil, models.ErrUserAlreadyExists
	}

	// Проверка существования пользователя по email
	existingUser, err = s.userRepo.GetUserByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing email during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing email: %w", err)
	}
	if existingUser != nil {
		s.logger.Warn("Registration attempt for existing email", logFields...)
		return nil, models.ErrEmailAlreadyExists
	}

	// Аватар проверяется после конфликтов: занятый username важнее
	// отсутствующего файла.
	if in.AvatarPath == "" {
		s.logger.Warn("Registration attempt without avatar file", logFields...)
		return nil, models.NewValidationError("avatar file is required", "avatar")
	}

	avatarURL, err := s.mediaStore.Upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Error("Failed to upload avatar during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("avatar upload: %w", err)
	}
	if avatarURL == "" {
		s.logger.Error("Avatar upload returned empty URL", logFields...)
		return nil, fmt.Errorf("avatar upload returned no URL: %w", models.ErrUploadFailed)
	}

	// Обложка опциональна: ошибка загрузки не фатальна, сохраняем "".
	coverImageURL := ""
	if in.CoverImagePath != "" {
		coverImageURL, err = s.mediaStore.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.Warn("Cover image upload failed, continuing without it", append(logFields, zap.Error(err))...)
			coverImageURL = ""
		}
	}

	// Используем перец перед хешированием
	hashedPassword, err := hashPassword(in.Password, s.cfg.PasswordPepper)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hashedPassword,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		// Ошибки уникальности уже обработаны репозиторием
		if !errors.Is(err, models.ErrUserAlreadyExists) && !errors.Is(err, models.ErrEmailAlreadyExists) {
			s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		}
		return nil, err
	}

	// Перечитываем созданную запись; хеш пароля и refresh токен не
	// сериализуются наружу.
	createdUser, err := s.userRepo.GetUserByID(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to re-read created user", append(logFields, zap.Error(err))...)
		// Не пробрасываем ErrUserNotFound: регистрация прошла, это
		// внутренняя несогласованность, а не 404.
		return nil, fmt.Errorf("something went wrong while registering the user: %v: %w", err, models.ErrInternalServer)
	}

	s.logger.Info("User registered successfully", zap.String("userID", createdUser.ID.String()), zap.String("username", createdUser.Username))
	return createdUser, nil
}

// Login authenticates a user and returns the user plus a fresh token pair.
func (s *userServiceImpl) Login(ctx context.Context, in LoginInput) (*models.User, *models.TokenDetails, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Username == "" && in.Email == "" {
		s.logger.Warn("Login attempt without username or email")
		return nil, nil, models.NewValidationError("username or email is required", "username", "email")
	}

	var user *models.User
	var err error
	if in.Username != "" {
		user, err = s.userRepo.GetUserByUsername(ctx, in.Username)
	} else {
		user, err = s.userRepo.GetUserByEmail(ctx, in.Email)
	}
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Login failed: user not found", zap.String("username", in.Username), zap.String("email", in.Email))
			return nil, nil, models.ErrUserNotFound
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Используем перец при проверке
	if !checkPasswordHash(in.Password, user.PasswordHash, s.cfg.PasswordPepper) {
		s.logger.Warn("Login failed: invalid password", zap.String("userID", user.ID.String()))
		return nil, nil, models.ErrInvalidCredentials
	}

	td, err := s.createTokenPair(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to create tokens during login", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	user.RefreshToken = &td.RefreshToken
	s.logger.Info("User logged in successfully", zap.String("userID", user.ID.String()))
	return user, td, nil
}

// Logout clears the refresh token stored for the user.
func (s *userServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	log := s.logger.With(zap.String("userID", userID.String()))
	log.Debug("Attempting to logout user by clearing refresh token")

	if err := s.userRepo.UpdateRefreshToken(ctx, userID, nil); err != nil {
		log.Error("Failed to clear refresh token during logout", zap.Error(err))
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	log.Info("User logged out successfully")
	return nil
}

// Refresh issues a new token pair based on a valid refresh token.
// Предъявленный токен валиден только если он в точности равен текущему
// сохраненному - ротация перезаписывает сохраненное значение, делая
// каждый refresh токен одноразовым.
func (s *userServiceImpl) Refresh(ctx context.Context, refreshTokenString string) (*models.TokenDetails, error) {
	s.logger.Info("Token refresh attempt") // Не логируем сам токен

	claims, err := s.parseToken(refreshTokenString, s.cfg.RefreshTokenSecret)
	if err != nil {
		// Ошибка уже сведена к ErrTokenExpired/ErrTokenMalformed/ErrTokenInvalid
		return nil, err
	}

	log := s.logger.With(zap.String("userID", claims.UserID.String()))
	log.Debug("Refresh token parsed successfully")

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("Refresh attempt for non-existent user")
			return nil, models.ErrTokenInvalid
		}
		log.Error("Error fetching user during token refresh", zap.Error(err))
		return nil, fmt.Errorf("error fetching user for refresh: %w", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshTokenString {
		// Токен устарел (уже ротирован) или сессия завершена через logout.
		log.Warn("Refresh attempt with stale or revoked token")
		return nil, models.ErrTokenInvalid
	}

	newTd, err := s.createTokenPair(ctx, claims.UserID)
	if err != nil {
		log.Error("Failed to create new tokens during refresh", zap.Error(err))
		return nil, fmt.Errorf("failed to create new tokens during refresh: %w", err)
	}

	log.Info("Token refreshed successfully")
	return newTd, nil
}

// ChangePassword verifies the old password and persists a new hash.
func (s *userServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmPassword string) error {
	log := s.logger.With(zap.String("userID", userID.String()))
	log.Info("Attempting to change user password")

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to get user for password change", zap.Error(err))
		return err
	}

	// Сравнение старого пароля выполняется до любых коротких путей, но
	// несовпадение new/confirm имеет приоритет в ответе.
	oldPasswordOK := checkPasswordHash(oldPassword, user.PasswordHash, s.cfg.PasswordPepper)

	if newPassword != confirmPassword {
		log.Warn("Password change failed: confirmation mismatch")
		return models.NewValidationError("new password and confirmation do not match", "newPassword", "confirmPassword")
	}

	if !oldPasswordOK {
		log.Warn("Password change failed: old password incorrect")
		return models.ErrInvalidCredentials
	}

	newHash, err := hashPassword(newPassword, s.cfg.PasswordPepper)
	if err != nil {
		log.Error("Failed to hash new password", zap.Error(err))
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}

	log.Info("User password changed successfully")
	return nil
}

// GetUser returns the user record by ID.
func (s *userServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// UpdateAccount updates the display name and email of the user.
func (s *userServiceImpl) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error) {
	log := s.logger.With(zap.String("userID", userID.String()))

	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	var missing []string
	if fullName == "" {
		missing = append(missing, "fullName")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		log.Warn("Account update with empty required fields", zap.Strings("fields", missing))
		return nil, models.NewValidationError("all fields are required", missing...)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		log.Warn("Account update with invalid email format", zap.Error(err))
		return nil, models.NewValidationError("invalid email format", "email")
	}

	if err := s.userRepo.UpdateAccountFields(ctx, userID, fullName, email); err != nil {
		return nil, err
	}

	log.Info("Account details updated successfully")
	return s.userRepo.GetUserByID(ctx, userID)
}

// UpdateAvatar uploads a new avatar and replaces the stored URL.
func (s *userServiceImpl) UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	return s.updateMedia(ctx, userID, localPath, "avatar")
}

// UpdateCoverImage uploads a new cover image and replaces the stored URL.
func (s *userServiceImpl) UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	return s.updateMedia(ctx, userID, localPath, "cover_image")
}

func (s *userServiceImpl) updateMedia(ctx context.Context, userID uuid.UUID, localPath, kind string) (*models.User, error) {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("kind", kind))

	if localPath == "" {
		log.Warn("Media update without file")
		return nil, models.NewValidationError("file is required", kind)
	}

	current, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to get user for media update", zap.Error(err))
		return nil, err
	}

	url, err := s.mediaStore.Upload(ctx, localPath)
	if err != nil {
		log.Error("Media upload failed", zap.Error(err))
		return nil, fmt.Errorf("media upload: %w", err)
	}
	if url == "" {
		log.Error("Media upload returned empty URL")
		return nil, fmt.Errorf("media upload returned no URL: %w", models.ErrUploadFailed)
	}

	oldURL := current.AvatarURL
	if kind == "cover_image" {
		oldURL = current.CoverImageURL
	}

	if kind == "avatar" {
		err = s.userRepo.UpdateAvatarURL(ctx, userID, url)
	} else {
		err = s.userRepo.UpdateCoverImageURL(ctx, userID, url)
	}
	if err != nil {
		log.Error("Failed to persist media URL", zap.Error(err))
		return nil, err
	}

	// Старый объект больше не нужен - отдаем его воркеру на удаление.
	// Ошибка публикации не фатальна для запроса.
	if oldURL != "" && s.cleanupPub != nil {
		event := models.MediaCleanupEvent{
			UserID:     userID.String(),
			URL:        oldURL,
			Kind:       kind,
			ReplacedAt: time.Now().UTC(),
		}
		if pubErr := s.cleanupPub.PublishMediaCleanup(ctx, event); pubErr != nil {
			log.Error("Non-critical: failed to publish media cleanup event", zap.Error(pubErr), zap.String("oldURL", oldURL))
		}
	}

	log.Info("Media updated successfully", zap.String("url", url))
	return s.userRepo.GetUserByID(ctx, userID)
}

// VerifyAccessToken parses and validates an access token string.
func (s *userServiceImpl) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.Claims, error) {
	s.logger.Debug("Verifying access token") // Не логируем сам токен
	return s.parseToken(tokenString, s.cfg.AccessTokenSecret)
}

// --- Helper Functions ---

// applyPepper applies HMAC-SHA256 using the pepper as the key.
func applyPepper(password, pepper string) []byte {
	h := hmac.New(sha256.New, []byte(pepper))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// hashPassword generates a bcrypt hash of the password after applying the pepper.
func hashPassword(password, pepper string) (string, error) {
	pepperedPassword := applyPepper(password, pepper)
	bytes, err := bcrypt.GenerateFromPassword(pepperedPassword, bcrypt.DefaultCost)
	return string(bytes), err
}

// checkPasswordHash compares a plain text password (after applying pepper) with a stored hash.
func checkPasswordHash(password, hash, pepper string) bool {
	pepperedPassword := applyPepper(password, pepper)
	err := bcrypt.CompareHashAndPassword([]byte(hash), pepperedPassword)
	return err == nil
}

// parseToken verifies a token signature against the given secret and maps
// jwt errors onto the service error taxonomy (все три варианта - 401).
func (s *userServiceImpl) parseToken(tokenString, secret string) (*domain.Claims, error) {
	if tokenString == "" {
		return nil, models.ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.logger.Warn("Token verification failed: expired")
			return nil, models.ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			s.logger.Warn("Token verification failed: malformed")
			return nil, models.ErrTokenMalformed
		}
		s.logger.Error("Failed to parse token", zap.Error(err))
		return nil, models.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || !token.Valid {
		s.logger.Warn("Token verification failed (invalid claims type or signature)")
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

// createTokenPair generates a new access/refresh token pair for a user and
// persists the refresh token on the user record. Сохранение - одиночный
// UPDATE без повторной валидации записи (пароль не перехешируется).
func (s *userServiceImpl) createTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenDetails, error) {
	s.logger.Debug("Creating new token pair", zap.String("userID", userID.String()))
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get user by ID during token creation", zap.String("userID", userID.String()), zap.Error(err))
		// Вызывающие пути уже проверили существование пользователя,
		// поэтому сюда попадает только внутренняя несогласованность.
		return nil, fmt.Errorf("failed to get user for token creation: %v: %w", err, models.ErrInternalServer)
	}

	now := time.Now()
	td := &models.TokenDetails{}
	td.AtExpires = now.Add(s.cfg.AccessTokenTTL).Unix()
	td.RtExpires = now.Add(s.cfg.RefreshTokenTTL).Unix()

	// Access token несет id/username/email
	acClaims := &domain.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Unix(td.AtExpires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	acToken := jwt.NewWithClaims(jwt.SigningMethodHS256, acClaims)
	td.AccessToken, err = acToken.SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	// Refresh token несет только id
	rtClaims := &domain.Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Unix(td.RtExpires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	rtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, rtClaims)
	td.RefreshToken, err = rtToken.SignedString([]byte(s.cfg.RefreshTokenSecret))
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	// Ротация: перезаписываем сохраненный refresh токен (last-write-wins).
	if err := s.userRepo.UpdateRefreshToken(ctx, userID, &td.RefreshToken); err != nil {
		s.logger.Error("Failed to persist refresh token", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return td, nil
}
