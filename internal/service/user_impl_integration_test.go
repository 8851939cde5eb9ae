package service_test // Используем _test пакет для изоляции

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tube-server/internal/config"
	"tube-server/internal/database"
	"tube-server/internal/interfaces"
	"tube-server/internal/migrations"
	"tube-server/internal/models"
	"tube-server/internal/service"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Драйвер для PostgreSQL
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	// Докер клиент для проверки доступности
	"github.com/docker/docker/client"
)

// stubMediaStore выдает детерминированные URL без обращения к S3.
type stubMediaStore struct {
	counter int
}

var _ interfaces.MediaStore = (*stubMediaStore)(nil)

func (m *stubMediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	m.counter++
	return fmt.Sprintf("https://cdn.test.local/media/%d", m.counter), nil
}

// stubCleanupPublisher собирает события вместо отправки в RabbitMQ.
type stubCleanupPublisher struct {
	events []models.MediaCleanupEvent
}

var _ interfaces.CleanupPublisher = (*stubCleanupPublisher)(nil)

func (p *stubCleanupPublisher) PublishMediaCleanup(ctx context.Context, event models.MediaCleanupEvent) error {
	p.events = append(p.events, event)
	return nil
}

// IntegrationTestSuite содержит состояние для интеграционных тестов
type IntegrationTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pgPool      *pgxpool.Pool
	config      *config.Config
	userRepo    interfaces.UserRepository
	mediaStore  *stubMediaStore
	cleanupPub  *stubCleanupPublisher
	userService service.UserService
	logger      *zap.Logger
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")
	s.logger.Info("Setting up integration test suite...")

	// Запускаем контейнер PostgreSQL
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")
	s.logger.Info("PostgreSQL container started")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")
	s.logger.Info("Connected to test PostgreSQL")

	// Применяем миграции из вшитой FS
	err = s.runMigrations(pgConnStr)
	require.NoError(s.T(), err, "Failed to run migrations")
	s.logger.Info("Database migrations applied")

	s.config = &config.Config{
		Env:                "test",
		LogLevel:           "debug",
		DBSSLMode:          "disable",
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		PasswordPepper:     "test-pepper",
		AccessTokenTTL:     5 * time.Minute,
		RefreshTokenTTL:    10 * time.Minute,
	}
	s.logger.Info("Test configuration created")

	s.userRepo = database.NewPgUserRepository(s.pgPool, s.logger)
	s.mediaStore = &stubMediaStore{}
	s.cleanupPub = &stubCleanupPublisher{}
	s.userService = service.NewUserService(s.userRepo, s.mediaStore, s.cleanupPub, s.config, s.logger)
	s.logger.Info("UserService initialized for tests")

	s.logger.Info("Test suite setup complete.")
}

// TearDownSuite выполняется один раз после всех тестов в наборе
func (s *IntegrationTestSuite) TearDownSuite() {
	s.logger.Info("Tearing down integration test suite...")
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
	s.logger.Info("Test suite teardown complete.")
}

// Перед каждым тестом очищаем таблицу пользователей
func (s *IntegrationTestSuite) SetupTest() {
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE users CASCADE")
	require.NoError(s.T(), err, "Failed to truncate users table")
	s.cleanupPub.events = nil
}

// runMigrations применяет миграции к тестовой БД
func (s *IntegrationTestSuite) runMigrations(dbURL string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance with iofs: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// TestIntegrationTestSuite запускает набор тестов
func TestIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	// Проверяем доступность Docker перед запуском
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(IntegrationTestSuite))
}

// --- Сами Тестовые Функции ---

func (s *IntegrationTestSuite) register(username, email string) *models.User {
	s.T().Helper()
	user, err := s.userService.Register(s.ctx, service.RegisterInput{
		FullName:   "Integration User",
		Username:   username,
		Email:      email,
		Password:   "password123",
		AvatarPath: "/tmp/avatar.png",
	})
	require.NoError(s.T(), err)
	return user
}

func (s *IntegrationTestSuite) TestRegisterAndLogin_Success() {
	t := s.T()

	created := s.register("intuser1", "intuser1@example.com")
	require.NotEqual(t, "", created.ID.String())
	require.NotEmpty(t, created.AvatarURL)

	user, tokens, err := s.userService.Login(s.ctx, service.LoginInput{
		Username: "intuser1",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	// Refresh токен реально сохранен в Postgres
	stored, err := s.userRepo.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	require.Equal(t, tokens.RefreshToken, *stored.RefreshToken)
}

func (s *IntegrationTestSuite) TestRegister_DuplicateUsernameConflict() {
	t := s.T()

	s.register("intuser2", "intuser2@example.com")

	_, err := s.userService.Register(s.ctx, service.RegisterInput{
		FullName:   "Another User",
		Username:   "intuser2",
		Email:      "another@example.com",
		Password:   "password123",
		AvatarPath: "/tmp/avatar.png",
	})
	require.ErrorIs(t, err, models.ErrUserAlreadyExists)
}

func (s *IntegrationTestSuite) TestRefresh_RotationPersistedInPostgres() {
	t := s.T()

	s.register("intuser3", "intuser3@example.com")
	user, tokens, err := s.userService.Login(s.ctx, service.LoginInput{
		Username: "intuser3",
		Password: "password123",
	})
	require.NoError(t, err)

	newTokens, err := s.userService.Refresh(s.ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, tokens.RefreshToken, newTokens.RefreshToken)

	// Старый токен отклоняется, в БД лежит новый
	_, err = s.userService.Refresh(s.ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, models.ErrTokenInvalid)

	stored, err := s.userRepo.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	require.Equal(t, newTokens.RefreshToken, *stored.RefreshToken)
}

func (s *IntegrationTestSuite) TestLogout_ClearsTokenInPostgres() {
	t := s.T()

	s.register("intuser4", "intuser4@example.com")
	user, tokens, err := s.userService.Login(s.ctx, service.LoginInput{
		Username: "intuser4",
		Password: "password123",
	})
	require.NoError(t, err)

	require.NoError(t, s.userService.Logout(s.ctx, user.ID))

	stored, err := s.userRepo.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, stored.RefreshToken)

	_, err = s.userService.Refresh(s.ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, models.ErrTokenInvalid)
}

func (s *IntegrationTestSuite) TestUpdateAccount_DuplicateEmailConflict() {
	t := s.T()

	s.register("intuser5", "intuser5@example.com")
	other := s.register("intuser6", "intuser6@example.com")

	_, err := s.userService.UpdateAccount(s.ctx, other.ID, "New Name", "intuser5@example.com")
	require.ErrorIs(t, err, models.ErrEmailAlreadyExists)
}

func (s *IntegrationTestSuite) TestUpdateAvatar_EmitsCleanupEvent() {
	t := s.T()

	user := s.register("intuser7", "intuser7@example.com")
	oldURL := user.AvatarURL

	updated, err := s.userService.UpdateAvatar(s.ctx, user.ID, "/tmp/new-avatar.png")
	require.NoError(t, err)
	require.NotEqual(t, oldURL, updated.AvatarURL)

	require.Len(t, s.cleanupPub.events, 1)
	require.Equal(t, oldURL, s.cleanupPub.events[0].URL)
	require.Equal(t, "avatar", s.cleanupPub.events[0].Kind)
}

func (s *IntegrationTestSuite) TestChangePassword_EndToEnd() {
	t := s.T()

	user := s.register("intuser8", "intuser8@example.com")

	err := s.userService.ChangePassword(s.ctx, user.ID, "password123", "newpassword1", "newpassword1")
	require.NoError(t, err)

	_, _, err = s.userService.Login(s.ctx, service.LoginInput{Username: "intuser8", Password: "password123"})
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, _, err = s.userService.Login(s.ctx, service.LoginInput{Username: "intuser8", Password: "newpassword1"})
	require.NoError(t, err)
}
