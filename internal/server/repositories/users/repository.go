// Package users implements the credential store: PostgreSQL and SQLite
// backends over database/sql, and an in-memory one for tests and local runs.
package users

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// Repository persists users keyed by email.
//
// Create inserts atomically: when the email is already present it returns
// common.ErrorAlreadyExists and leaves the stored user untouched.
// GetUserByEmail returns common.ErrorNotFound for unknown emails.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
