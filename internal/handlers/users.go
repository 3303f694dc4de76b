package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/vacationfavorites/apiserver/internal/services"
	"github.com/vacationfavorites/apiserver/types"
)

// UserAdmin is the profile and directory administration used by the user routes.
type UserAdmin interface {
	Me(ctx context.Context, id uuid.UUID) (types.Profile, error)
	UpdateMe(ctx context.Context, id uuid.UUID, in services.MeUpdate) (types.Profile, error)
	List(ctx context.Context) ([]types.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (types.Profile, error)
	AdminUpdate(ctx context.Context, actor, id uuid.UUID, in services.AdminUpdate) (types.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserHandler provides HTTP handlers for profiles and administration.
type UserHandler struct {
	users UserAdmin
}

// NewUserHandler constructs a UserHandler with the provided service.
func NewUserHandler(users UserAdmin) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes on the given router. Every route needs a
// bearer token; everything except /me also needs the admin role.
func UserRouter(r chi.Router, users UserAdmin, guard Guard) {
	handler := NewUserHandler(users)

	r.Use(RequireAuth(guard))
	r.Get("/me", handler.GetMe)
	r.Put("/me", handler.UpdateMe)

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin(guard))
		r.Get("/", handler.ListUsers)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", handler.GetUser)
			r.Put("/", handler.UpdateUser)
			r.Delete("/", handler.DeleteUser)
		})
	})
}

type UserResponse struct {
	OK      bool          `json:"ok"`
	User    types.Profile `json:"user"`
	Message string        `json:"message,omitempty"`
}

type UserListResponse struct {
	OK    bool            `json:"ok"`
	Users []types.Profile `json:"users"`
}

type UpdateMeRequest struct {
	FirstName *string         `json:"firstName"`
	LastName  *string         `json:"lastName"`
	Role      json.RawMessage `json:"role"`
}

func (r UpdateMeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.RuneLength(0, 50)),
		validation.Field(&r.LastName, validation.RuneLength(0, 50)),
	)
}

type UpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.RuneLength(0, 50)),
		validation.Field(&r.LastName, validation.RuneLength(0, 50)),
	)
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.users.Me(r.Context(), identity.AccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{OK: true, User: profile})
}

// UpdateMe changes the caller's own names. A role in the body is refused.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	profile, err := h.users.UpdateMe(r.Context(), identity.AccountID, services.MeUpdate{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		RoleProvided: len(req.Role) > 0,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{OK: true, User: profile, Message: "Profile updated successfully"})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{OK: true, Users: profiles})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := services.ParseAccountID(chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	profile, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{OK: true, User: profile})
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := services.ParseAccountID(chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	profile, err := h.users.AdminUpdate(r.Context(), identity.AccountID, id, services.AdminUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{OK: true, User: profile, Message: "User updated successfully by admin"})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := services.ParseAccountID(chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
