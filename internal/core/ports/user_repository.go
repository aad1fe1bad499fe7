package ports

import (
	"context"

	"github.com/99minutos/account-service/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
//
// Implementations return domain.ErrNotFound for missing rows on lookups,
// domain.ErrDuplicateName when a write would violate name uniqueness, and
// wrap any other backend failure with domain.ErrStoreUnavailable.
type UserRepository interface {
	List(ctx context.Context) ([]*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByName(ctx context.Context, name string) (*domain.User, error)
	// Create inserts user and returns the store-assigned id.
	Create(ctx context.Context, user *domain.User) (string, error)
	// Update applies changes to the row with id. A missing row is not an error.
	Update(ctx context.Context, id string, changes domain.UserChanges) error
	// Delete removes the row with id. A missing row is not an error.
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
