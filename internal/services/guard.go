package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/internal/security"
	"github.com/vacationfavorites/apiserver/internal/store"
	"github.com/vacationfavorites/apiserver/types"
)

// RoleReader reads an account's current role.
type RoleReader interface {
	GetRole(ctx context.Context, id uuid.UUID) (types.Role, error)
}

// AccessGuard authenticates bearer tokens and authorizes privileged calls.
type AccessGuard struct {
	tokens TokenIssuer
	roles  RoleReader
	logger zerolog.Logger
}

// NewAccessGuard constructs an AccessGuard with the provided dependencies.
func NewAccessGuard(tokens TokenIssuer, roles RoleReader, logger zerolog.Logger) *AccessGuard {
	return &AccessGuard{tokens: tokens, roles: roles, logger: logger}
}

// Authenticate resolves the Authorization header value into an Identity.
func (g *AccessGuard) Authenticate(authorization string) (types.Identity, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return types.Identity{}, newError(KindUnauthorized, "Missing Authorization Bearer token")
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrMalformedPayload) {
			return types.Identity{}, newError(KindUnauthorized, "Malformed token payload")
		}
		return types.Identity{}, newError(KindUnauthorized, "Invalid or expired token")
	}

	return types.Identity{
		AccountID: claims.AccountID,
		RoleClaim: claims.Role,
		Email:     claims.Email,
	}, nil
}

// AuthorizeAdmin checks the role stored in the directory, not the token claim,
// so promotions and demotions apply to tokens already issued.
func (g *AccessGuard) AuthorizeAdmin(ctx context.Context, identity types.Identity) error {
	if identity.AccountID == uuid.Nil {
		return newError(KindUnauthorized, "Unauthorized")
	}

	role, err := g.roles.GetRole(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindUnauthorized, "Unauthorized")
		}
		g.logger.Error().Err(err).Str("account_id", identity.AccountID.String()).Msg("admin check failed")
		return internalError("Admin check failed", err)
	}

	if !role.IsAdmin() {
		return newError(KindForbidden, "Admin access required")
	}
	return nil
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(authorization string) (string, bool) {
	auth := strings.TrimSpace(authorization)
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
