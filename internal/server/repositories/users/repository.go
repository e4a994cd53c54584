// Package users persists user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/ingestor/internal/server/models"
)

type Repository interface {
	// Create inserts a new user. A duplicate email returns
	// common.ErrorEmailTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
