package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/internal/notify"
	"github.com/vacationfavorites/apiserver/internal/security"
	"github.com/vacationfavorites/apiserver/internal/store"
	"github.com/vacationfavorites/apiserver/types"
)

const (
	defaultVerificationTTL = time.Hour
	defaultResetTTL        = 30 * time.Minute
	defaultSessionTTL      = 7 * 24 * time.Hour
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgResetUniform       = "If the email exists, a reset link has been sent."
	msgInvalidResetToken  = "Invalid or expired reset token"
)

// CredentialHasher hashes and verifies passwords.
type CredentialHasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash, plaintext string) bool
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Sign(claims security.Claims, ttl time.Duration) (string, error)
	Verify(token string) (security.Claims, error)
}

// Notifier hands an email off for delivery. Implementations must not block
// on the mail provider.
type Notifier interface {
	Send(ctx context.Context, email notify.Email) error
}

// AuthOptions holds token lifetimes. Zero values fall back to the defaults.
type AuthOptions struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	SessionTTL      time.Duration
}

// Result is the outcome of a successful flow step.
type Result struct {
	Message string
	Code    string
}

// RegisterInput is the validated registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// LoginResult carries the bearer token and the caller's public profile.
type LoginResult struct {
	Token string
	User  types.PublicProfile
}

// AuthService runs the registration, verification, login and password reset
// flows over the user directory.
type AuthService struct {
	users    UserDirectory
	hasher   CredentialHasher
	tokens   TokenIssuer
	notifier Notifier
	composer *notify.Composer
	logger   zerolog.Logger
	opts     AuthOptions

	now      func() time.Time
	newToken func() (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService with the provided dependencies.
// Zero TTLs in opts fall back to the defaults.
func NewAuthService(
	users UserDirectory,
	hasher CredentialHasher,
	tokens TokenIssuer,
	notifier Notifier,
	composer *notify.Composer,
	logger zerolog.Logger,
	opts AuthOptions,
) *AuthService {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = defaultVerificationTTL
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		composer: composer,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newToken: security.NewToken,
	}
}

// Register starts verification for a new email, or re-drives it for an
// account that never verified.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Result, error) {
	email := types.NormalizeEmail(in.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.EmailVerified {
			return Result{}, newError(KindConflict, "Email already exists")
		}
		if existing.Verification.Live(s.now()) {
			return Result{
				Message: "Verification email already sent. Please check your inbox/spam.",
				Code:    CodeVerificationAlreadySent,
			}, nil
		}
		if err := s.rotateVerification(ctx, existing); err != nil {
			return Result{}, err
		}
		return Result{Message: "Verification email sent again.", Code: CodeVerificationResent}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, s.internal("register", "Registration failed", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Result{}, s.internal("register", "Registration failed", err)
	}
	verification, err := s.mintToken(s.opts.VerificationTTL)
	if err != nil {
		return Result{}, s.internal("register", "Registration failed", err)
	}

	account, err := s.users.Create(ctx, types.Account{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          types.RoleUser,
		EmailVerified: false,
		Verification:  verification,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return Result{}, newError(KindConflict, "Email already exists")
		}
		return Result{}, s.internal("register", "Registration failed", err)
	}

	s.sendVerification(ctx, account.Email, verification.Value)
	return Result{Message: "Registered. Please verify your email."}, nil
}

// VerifyEmail redeems a verification token. An expired token is cleared
// before the failure is returned so it can never match again.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, newError(KindValidation, "Missing token")
	}

	account, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, newError(KindNotFound, "Invalid verification token")
		}
		return Result{}, s.internal("verify email", "Verify failed", err)
	}

	if !account.Verification.Live(s.now()) {
		account.Verification = nil
		if err := s.users.SaveAuthState(ctx, account); err != nil {
			return Result{}, s.internal("verify email", "Verify failed", err)
		}
		return Result{}, newError(KindExpired, "Verification token expired. Please request a new verification email.")
	}

	account.EmailVerified = true
	account.Verification = nil
	if err := s.users.SaveAuthState(ctx, account); err != nil {
		return Result{}, s.internal("verify email", "Verify failed", err)
	}
	return Result{Message: "Email verified successfully"}, nil
}

// ResendVerification always issues a fresh token for an unverified account.
// Unknown emails fail with NotFound, unlike RequestPasswordReset.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (Result, error) {
	account, err := s.users.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, newError(KindNotFound, "User not found")
		}
		return Result{}, s.internal("resend verification", "Resend failed", err)
	}

	if account.EmailVerified {
		return Result{Message: "Email already verified"}, nil
	}

	if err := s.rotateVerification(ctx, account); err != nil {
		return Result{}, err
	}
	return Result{Message: "Verification email sent"}, nil
}

// Login checks credentials of a verified account and issues a bearer token.
// Unknown email and wrong password fail with the same message.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	account, err := s.users.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// burn a comparison so the miss costs the same as a bad password
			s.hasher.Compare(s.placeholderHash(), password)
			return LoginResult{}, newError(KindUnauthorized, msgInvalidCredentials)
		}
		return LoginResult{}, s.internal("login", "Login failed", err)
	}

	if !account.EmailVerified {
		if account.Verification.Live(s.now()) {
			return LoginResult{}, &Error{
				Kind:    KindUnauthorized,
				Message: "Email not verified. Please verify using the email we sent you.",
				Code:    CodeEmailNotVerified,
			}
		}
		return LoginResult{}, &Error{
			Kind:    KindUnauthorized,
			Message: "Email not verified. Your verification link may have expired. Please request a new one.",
			Code:    CodeEmailNotVerifiedExpired,
		}
	}

	if !s.hasher.Compare(account.PasswordHash, password) {
		return LoginResult{}, newError(KindUnauthorized, msgInvalidCredentials)
	}

	token, err := s.tokens.Sign(security.Claims{
		AccountID: account.ID,
		Role:      account.Role,
		Email:     account.Email,
	}, s.opts.SessionTTL)
	if err != nil {
		return LoginResult{}, s.internal("login", "Login failed", err)
	}

	return LoginResult{
		Token: token,
		User: types.PublicProfile{
			ID:       account.ID,
			Email:    account.Email,
			Role:     account.Role,
			FullName: account.FullName(),
		},
	}, nil
}

// RequestPasswordReset emails a reset link to a verified account. Unknown and
// unverified emails get the same answer as a successful request.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (Result, error) {
	account, err := s.users.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Message: msgResetUniform}, nil
		}
		return Result{}, s.internal("request password reset", "Password reset request failed", err)
	}

	if !account.EmailVerified {
		return Result{Message: msgResetUniform}, nil
	}

	if account.Reset.Live(s.now()) {
		return Result{Message: msgResetUniform, Code: CodeResetAlreadySent}, nil
	}

	raw, err := s.newToken()
	if err != nil {
		return Result{}, s.internal("request password reset", "Password reset request failed", err)
	}
	account.Reset = &types.PendingToken{
		Value:     security.DigestToken(raw),
		ExpiresAt: s.now().Add(s.opts.ResetTTL),
	}
	if err := s.users.SaveAuthState(ctx, account); err != nil {
		return Result{}, s.internal("request password reset", "Password reset request failed", err)
	}

	s.sendPasswordReset(ctx, account.Email, raw)
	return Result{Message: msgResetUniform}, nil
}

// ResetPassword redeems a raw reset token. Absent and expired tokens are
// indistinguishable to the caller.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (Result, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Result{}, newError(KindNotFound, msgInvalidResetToken)
	}

	account, err := s.users.GetByResetTokenHash(ctx, security.DigestToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, newError(KindNotFound, msgInvalidResetToken)
		}
		return Result{}, s.internal("reset password", "Password reset failed", err)
	}

	if !account.Reset.Live(s.now()) {
		account.Reset = nil
		if err := s.users.SaveAuthState(ctx, account); err != nil {
			return Result{}, s.internal("reset password", "Password reset failed", err)
		}
		return Result{}, newError(KindNotFound, msgInvalidResetToken)
	}

	if s.hasher.Compare(account.PasswordHash, newPassword) {
		return Result{}, newError(KindConflict, "New password must be different from your current password")
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return Result{}, s.internal("reset password", "Password reset failed", err)
	}
	account.PasswordHash = passwordHash
	account.Reset = nil
	if err := s.users.SaveAuthState(ctx, account); err != nil {
		return Result{}, s.internal("reset password", "Password reset failed", err)
	}
	return Result{Message: "Password updated successfully"}, nil
}

func (s *AuthService) rotateVerification(ctx context.Context, account types.Account) error {
	verification, err := s.mintToken(s.opts.VerificationTTL)
	if err != nil {
		return s.internal("issue verification", "Could not issue verification email", err)
	}
	account.Verification = verification
	if err := s.users.SaveAuthState(ctx, account); err != nil {
		return s.internal("issue verification", "Could not issue verification email", err)
	}
	s.sendVerification(ctx, account.Email, verification.Value)
	return nil
}

func (s *AuthService) mintToken(ttl time.Duration) (*types.PendingToken, error) {
	value, err := s.newToken()
	if err != nil {
		return nil, err
	}
	return &types.PendingToken{Value: value, ExpiresAt: s.now().Add(ttl)}, nil
}

// Delivery runs after the state change is persisted and its failure does not
// undo it; the user can ask for another email.
func (s *AuthService) sendVerification(ctx context.Context, to, token string) {
	email, err := s.composer.Verification(to, token)
	if err != nil {
		s.logger.Error().Err(err).Msg("compose verification email")
		return
	}
	s.deliver(ctx, email)
}

func (s *AuthService) sendPasswordReset(ctx context.Context, to, rawToken string) {
	email, err := s.composer.PasswordReset(to, rawToken, humanizeDuration(s.opts.ResetTTL))
	if err != nil {
		s.logger.Error().Err(err).Msg("compose password reset email")
		return
	}
	s.deliver(ctx, email)
}

func (s *AuthService) deliver(ctx context.Context, email notify.Email) {
	if err := s.notifier.Send(ctx, email); err != nil {
		s.logger.Error().Err(err).Str("kind", email.Kind).Msg("email handoff failed")
	}
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("placeholder-password-for-timing")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *AuthService) internal(op, message string, cause error) *Error {
	s.logger.Error().Err(cause).Str("op", op).Msg("auth flow failed")
	return internalError(message, fmt.Errorf("%s: %w", op, cause))
}

func humanizeDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
