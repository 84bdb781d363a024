package domain

import (
	"context"
	"time"
)

// User represents an account in the user store
type User struct {
	ID           int64
	Username     string // Unique username
	PasswordHash string // Bcrypt hashed password (never the plaintext)
	CreatedAt    time.Time
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
	List(ctx context.Context) ([]*User, error)
}
