package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/internal/store"
	"github.com/vacationfavorites/apiserver/types"
)

// UserDirectory defines persistence operations for accounts.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (types.Account, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (types.Account, error)
	GetRole(ctx context.Context, id uuid.UUID) (types.Role, error)
	GetProfile(ctx context.Context, id uuid.UUID) (types.Profile, error)
	List(ctx context.Context) ([]types.Profile, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	SaveAuthState(ctx context.Context, account types.Account) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MeUpdate is a self-service profile change. RoleProvided is set when the
// request tried to carry a role at all.
type MeUpdate struct {
	FirstName    *string
	LastName     *string
	RoleProvided bool
}

// AdminUpdate is a profile change made by an administrator.
type AdminUpdate struct {
	FirstName *string
	LastName  *string
	Role      *string
}

// UserService encapsulates profile and administration use-cases.
type UserService struct {
	repo   UserDirectory
	logger zerolog.Logger
}

// NewUserService constructs a UserService with the provided directory.
func NewUserService(repo UserDirectory, logger zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// ParseAccountID validates a path identifier.
func ParseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, newError(KindValidation, "Invalid user id")
	}
	return id, nil
}

func (s *UserService) Me(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	return s.Get(ctx, id)
}

func (s *UserService) UpdateMe(ctx context.Context, id uuid.UUID, in MeUpdate) (types.Profile, error) {
	if in.RoleProvided {
		return types.Profile{}, newError(KindForbidden, "You cannot change your role")
	}
	return s.update(ctx, id, types.ProfileUpdate{
		FirstName: trimmedOrNil(in.FirstName),
		LastName:  trimmedOrNil(in.LastName),
		UpdatedBy: id,
	})
}

func (s *UserService) List(ctx context.Context) ([]types.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.internal("list users", "Failed to list users", err)
	}
	return profiles, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, newError(KindNotFound, "User not found")
		}
		return types.Profile{}, s.internal("get user", "Failed to load user", err)
	}
	return profile, nil
}

// AdminUpdate changes another account. Administrators edit themselves
// through UpdateMe.
func (s *UserService) AdminUpdate(ctx context.Context, actor, id uuid.UUID, in AdminUpdate) (types.Profile, error) {
	if actor == id {
		return types.Profile{}, newError(KindForbidden, "Admin should update self via /users/me")
	}

	update := types.ProfileUpdate{
		FirstName: trimmedOrNil(in.FirstName),
		LastName:  trimmedOrNil(in.LastName),
		UpdatedBy: actor,
	}
	if in.Role != nil {
		role, ok := types.ParseRole(*in.Role)
		if !ok {
			return types.Profile{}, newError(KindValidation, "Invalid role value")
		}
		update.Role = &role
	}
	return s.update(ctx, id, update)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, "User not found")
		}
		return s.internal("delete user", "Failed to delete user", err)
	}
	return nil
}

func (s *UserService) update(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.Profile, error) {
	profile, err := s.repo.UpdateProfile(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, newError(KindNotFound, "User not found")
		}
		return types.Profile{}, s.internal("update user", "Failed to update user", err)
	}
	return profile, nil
}

func (s *UserService) internal(op, message string, cause error) *Error {
	s.logger.Error().Err(cause).Str("op", op).Msg("user operation failed")
	return internalError(message, cause)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
