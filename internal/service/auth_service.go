package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/observability/metrics"
	"github.com/yourorg/orderreports/internal/security/audit"
)

// AuthService is the user-store surface consumed by the login layer. It
// never exposes password hashes and never distinguishes "no such user" from
// "wrong password" on verification.
type AuthService struct {
	users     domain.UserRepository
	cost      int
	dummyHash []byte // compared for unknown usernames, see VerifyCredentials
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewAuthService creates the user provisioning/verification service.
func NewAuthService(users domain.UserRepository, bcryptCost int, auditLog *audit.Logger, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	// Hashed at the configured cost so the unknown-user verification path
	// burns the same bcrypt work as a real comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not a real password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}
	return &AuthService{
		users:     users,
		cost:      bcryptCost,
		dummyHash: dummy,
		audit:     auditLog,
		logger:    logger,
	}
}

// CreateUser provisions a new account. The password is hashed before it
// touches storage; a duplicate username fails with domain.ErrDuplicateUser.
func (s *AuthService) CreateUser(ctx context.Context, username, password string) (*domain.User, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	err = s.users.Create(ctx, user)
	metrics.ObserveStorageOp("users", "create", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.audit.LogUserCreated(ctx, username, "success")
	s.logger.Info("user created", slog.String("username", username))
	return user, nil
}

// VerifyCredentials checks a username/password pair. Unknown usernames and
// wrong passwords both return (false, nil); only environment failures are
// errors.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchUser) {
			// Burn the same bcrypt work as the known-user path.
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return false, nil
		}
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// ResetPassword overwrites an existing user's password hash. Fails with
// domain.ErrNoSuchUser for unknown usernames.
func (s *AuthService) ResetPassword(ctx context.Context, username, newPassword string) error {
	start := time.Now()
	username = strings.TrimSpace(username)

	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.users.UpdatePasswordHash(ctx, username, string(hash))
	metrics.ObserveStorageOp("users", "reset_password", err, time.Since(start))
	if err != nil {
		return err
	}

	s.audit.LogPasswordReset(ctx, username, "success")
	return nil
}

// ListUsers returns all accounts, for admin tooling.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}
