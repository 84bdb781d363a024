package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/infrastructure/sqlite"
)

var userSchema = []string{`
	CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
`}

// SQLiteUserRepository implements domain.UserRepository on the users.sqlite
// file. All writes commit before returning.
type SQLiteUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteUserRepository opens (creating schema if first use) the user
// store at path.
func NewSQLiteUserRepository(ctx context.Context, path string, logger *slog.Logger) (*SQLiteUserRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open user store", Path: path, Err: err}
	}
	if err := sqlite.Migrate(ctx, db, userSchema); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "migrate user store", Path: path, Err: err}
	}

	return &SQLiteUserRepository{db: db, logger: logger}, nil
}

// Create inserts a new user. A username collision surfaces as
// domain.ErrDuplicateUser; existing records are never overwritten here.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", user.Username, domain.ErrDuplicateUser)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetByUsername retrieves a user by username
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	user := &domain.User{}
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("username %q: %w", username, domain.ErrNoSuchUser)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = r.parseCreatedAt(user.Username, createdAt)
	return user, nil
}

// UpdatePasswordHash replaces a user's password hash in a single
// transaction, so a crash mid-update leaves either the old or the new hash.
func (r *SQLiteUserRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ?`,
		passwordHash, username)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("username %q: %w", username, domain.ErrNoSuchUser)
	}
	return tx.Commit()
}

// List returns all users ordered by username.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		var createdAt string
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.CreatedAt = r.parseCreatedAt(user.Username, createdAt)
		users = append(users, user)
	}
	return users, rows.Err()
}

// Close releases the underlying database handle.
func (r *SQLiteUserRepository) Close() error {
	return r.db.Close()
}

// parseCreatedAt decodes a stored created_at value. A corrupt value is
// logged and yields the zero time rather than failing the whole read.
func (r *SQLiteUserRepository) parseCreatedAt(username, value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		r.logger.Warn("invalid created_at on user row",
			slog.String("username", username),
			slog.String("created_at", value),
			slog.String("error", err.Error()),
		)
	}
	return ts
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
