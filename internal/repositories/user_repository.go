package repositories

import (
	"context"

	"github.com/friendzone/backend/internal/models"
)

// UserRepository defines the data access contract for user accounts and the directory.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByName(ctx context.Context, name string) (models.User, error)
	Search(ctx context.Context, query, excludeID string) ([]models.User, error)
}
