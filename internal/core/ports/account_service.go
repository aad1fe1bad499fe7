package ports

import (
	"context"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/pkg/token"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Name             string
	Password         string
	Role             string
	PermittedSystems []string
}

// UpdateInput carries a partial account update; nil fields are unchanged.
type UpdateInput struct {
	Name             *string
	Password         *string
	Role             *string
	PermittedSystems *[]string
}

// AccountService defines the account and session use cases.
type AccountService interface {
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	GetUser(ctx context.Context, id string) (*domain.UserSummary, error)
	Register(ctx context.Context, in RegisterInput) (string, error)
	Login(ctx context.Context, name, password string) (string, error)
	UpdateUser(ctx context.Context, id string, in UpdateInput) error
	DeleteUser(ctx context.Context, id string) error
	VerifyToken(ctx context.Context, raw string) (*token.Claims, error)
}

// LoginLimiter throttles repeated failed logins per account name.
type LoginLimiter interface {
	// Allowed reports whether name may attempt another login.
	Allowed(ctx context.Context, name string) (bool, error)
	RecordFailure(ctx context.Context, name string) error
	Reset(ctx context.Context, name string) error
}
