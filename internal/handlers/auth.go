package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/vacationfavorites/apiserver/internal/security"
	"github.com/vacationfavorites/apiserver/internal/services"
	"github.com/vacationfavorites/apiserver/types"
)

var (
	hasUpper  = regexp.MustCompile(`[A-Z]`)
	hasLower  = regexp.MustCompile(`[a-z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
	hasSymbol = regexp.MustCompile(`[^A-Za-z0-9]`)
)

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(8, 0).Error("Password must be at least 8 characters"),
		validation.By(maxPasswordBytes),
		validation.Match(hasUpper).Error("Password must contain at least one uppercase letter"),
		validation.Match(hasLower).Error("Password must contain at least one lowercase letter"),
		validation.Match(hasDigit).Error("Password must contain at least one digit"),
		validation.Match(hasSymbol).Error("Password must contain at least one special character"),
	}
}

func maxPasswordBytes(value interface{}) error {
	password, _ := value.(string)
	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("Password must be at most %d bytes", security.MaxPasswordBytes)
	}
	return nil
}

// AuthFlows is the account lifecycle used by the auth routes.
type AuthFlows interface {
	Register(ctx context.Context, in services.RegisterInput) (services.Result, error)
	VerifyEmail(ctx context.Context, token string) (services.Result, error)
	ResendVerification(ctx context.Context, email string) (services.Result, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) (services.Result, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) (services.Result, error)
}

// AuthHandler provides registration, login and password reset endpoints.
type AuthHandler struct {
	auth AuthFlows
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth AuthFlows) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth AuthFlows) {
	handler := NewAuthHandler(auth)

	r.Post("/register", handler.Register)
	r.Get("/verify-email", handler.VerifyEmail)
	r.Post("/resend-verification", handler.ResendVerification)
	r.Post("/login", handler.Login)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.RuneLength(2, 50)),
		validation.Field(&r.LastName, validation.Required, validation.RuneLength(2, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, passwordRules()...),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// EmailRequest carries a single address for resend and forgot-password.
type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Missing email"), is.Email),
	)
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("Missing token")),
		validation.Field(&r.Password, passwordRules()...),
	)
}

type LoginResponse struct {
	OK    bool                `json:"ok"`
	Token string              `json:"token"`
	User  types.PublicProfile `json:"user"`
}

// Register starts registration and sends a verification email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, result)
}

// VerifyEmail redeems the token from the emailed link.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing token")
		return
	}

	result, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		writeTokenError(w, err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEmailRequest(w, r)
	if !ok {
		return
	}

	result, err := h.auth.ResendVerification(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{OK: true, Token: result.Token, User: result.User})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEmailRequest(w, r)
	if !ok {
		return
	}

	result, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.auth.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		writeTokenError(w, err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

func decodeEmailRequest(w http.ResponseWriter, r *http.Request) (EmailRequest, bool) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return req, false
	}
	return req, true
}

// writeTokenError answers 400 for unknown tokens on the redemption
// endpoints; the link itself is the bad request.
func writeTokenError(w http.ResponseWriter, err error) {
	if services.KindOf(err) == services.KindNotFound {
		writeServiceErrorStatus(w, err, http.StatusBadRequest)
		return
	}
	writeServiceError(w, err)
}
