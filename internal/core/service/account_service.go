package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/pkg/password"
	"github.com/99minutos/account-service/internal/pkg/token"
)

// PasswordHasher abstracts the one-way password digest.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	DummyVerify(plaintext string) bool
}

// TokenManager abstracts bearer token issuance and verification.
type TokenManager interface {
	Issue(id token.Identity) (string, error)
	Verify(raw string) (*token.Claims, error)
}

// AccountService implements ports.AccountService.
type AccountService struct {
	repo    ports.UserRepository
	hasher  PasswordHasher
	tokens  TokenManager
	limiter ports.LoginLimiter
	log     zerolog.Logger
}

// NewAccountService wires the account use cases. limiter may be nil, which
// disables login throttling.
func NewAccountService(
	repo ports.UserRepository,
	hasher PasswordHasher,
	tokens TokenManager,
	limiter ports.LoginLimiter,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		limiter: limiter,
		log:     log,
	}
}

func (s *AccountService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (*domain.UserSummary, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := u.Summary()
	return &summary, nil
}

// Register creates an account and returns its id.
//
// The existence check is a fast path only: two concurrent registrations of
// the same name can both pass it, and the store's unique constraint on name
// decides the winner. The loser receives domain.ErrDuplicateName either way.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (string, error) {
	if strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return "", fmt.Errorf("%w: name and password are required", domain.ErrInvalidInput)
	}

	if _, err := s.repo.FindByName(ctx, in.Name); err == nil {
		return "", domain.ErrDuplicateName
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return "", err
	}

	systems := in.PermittedSystems
	if systems == nil {
		systems = []string{}
	}
	id, err := s.repo.Create(ctx, &domain.User{
		Name:             in.Name,
		PasswordHash:     hash,
		Role:             in.Role,
		PermittedSystems: systems,
	})
	if err != nil {
		return "", err
	}

	s.log.Info().Str("user_id", id).Str("name", in.Name).Str("role", in.Role).Msg("user registered")
	return id, nil
}

// Login authenticates name/password and returns a signed token. Unknown
// names and wrong passwords both yield domain.ErrInvalidCredentials and cost
// one bcrypt comparison each.
func (s *AccountService) Login(ctx context.Context, name, plaintext string) (string, error) {
	if s.limiter != nil {
		ok, err := s.limiter.Allowed(ctx, name)
		if err != nil {
			s.log.Warn().Err(err).Msg("login throttle check failed, allowing attempt")
		} else if !ok {
			return "", domain.ErrTooManyAttempts
		}
	}

	user, err := s.repo.FindByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.hasher.DummyVerify(plaintext)
		s.recordFailure(ctx, name)
		return "", domain.ErrInvalidCredentials
	case errors.Is(err, domain.ErrMalformedPermissionSet):
		// No token can be issued for a corrupt record; fail like any other
		// rejected login.
		s.log.Error().Err(err).Str("name", name).Msg("stored permission set is malformed")
		s.hasher.DummyVerify(plaintext)
		s.recordFailure(ctx, name)
		return "", domain.ErrInvalidCredentials
	case err != nil:
		return "", err
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		s.recordFailure(ctx, name)
		return "", domain.ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(token.Identity{
		ID:               user.ID,
		Name:             user.Name,
		Role:             user.Role,
		PermittedSystems: user.PermittedSystems,
	})
	if err != nil {
		return "", err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, name); err != nil {
			s.log.Warn().Err(err).Msg("failed to reset login throttle")
		}
	}
	return signed, nil
}

func (s *AccountService) recordFailure(ctx context.Context, name string) {
	s.log.Info().Str("name", name).Msg("login rejected")
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, name); err != nil {
		s.log.Warn().Err(err).Msg("failed to record login failure")
	}
}

// UpdateUser applies the supplied fields to account id. The password is
// rehashed only when a new one is given.
func (s *AccountService) UpdateUser(ctx context.Context, id string, in ports.UpdateInput) error {
	changes := domain.UserChanges{
		Name:             in.Name,
		Role:             in.Role,
		PermittedSystems: in.PermittedSystems,
	}
	if changes.Name != nil && strings.TrimSpace(*changes.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			if errors.Is(err, password.ErrPasswordTooLong) {
				return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
			}
			return err
		}
		changes.PasswordHash = &hash
	}
	if changes.PermittedSystems != nil && *changes.PermittedSystems == nil {
		empty := []string{}
		changes.PermittedSystems = &empty
	}
	if changes.Empty() {
		return nil
	}

	if err := s.repo.Update(ctx, id, changes); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Bool("password_changed", changes.PasswordHash != nil).Msg("user updated")
	return nil
}

// DeleteUser removes account id. Deleting an absent id succeeds.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

// VerifyToken checks raw and returns its claims.
func (s *AccountService) VerifyToken(_ context.Context, raw string) (*token.Claims, error) {
	return s.tokens.Verify(raw)
}
