package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes free text into a Role. It reports false for anything
// other than the two known roles.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsAdmin compares case-insensitively so legacy rows stored as "Admin" still match.
func (r Role) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(string(r)), string(RoleAdmin))
}

// NormalizeEmail trims and lower-cases an email address. Every directory
// write and lookup goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PendingToken is a single-use token waiting to be redeemed.
// A nil *PendingToken means no token is pending.
type PendingToken struct {
	// Value is the stored token. Verification tokens are stored as issued,
	// reset tokens as the digest of the emailed value.
	Value string `json:"-"`

	// ExpiresAt is the instant after which the token is no longer accepted.
	ExpiresAt time.Time `json:"-"`
}

// Live reports whether the token is present and expires strictly after now.
func (t *PendingToken) Live(now time.Time) bool {
	return t != nil && t.Value != "" && t.ExpiresAt.After(now)
}

// Account represents a registered user.
// It contains identity, credentials, role, and verification state.
type Account struct {
	// ID is the unique identifier assigned by the directory.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the normalized, unique login address.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level ("user" or "admin").
	Role Role `json:"role" db:"role"`

	// EmailVerified is set once the user redeems a verification token.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// Verification is the pending email verification token, if any.
	Verification *PendingToken `json:"-"`

	// Reset is the pending password reset token, if any.
	Reset *PendingToken `json:"-"`

	// UpdatedBy is the account that last changed the profile.
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name with a single space.
func (a Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Profile is the public view of an account returned by the directory's
// read projections. It never carries credentials or tokens.
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	UpdatedBy     *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PublicProfile is the user summary returned alongside a login token.
type PublicProfile struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	FullName string    `json:"full_name"`
}

// ProfileUpdate is the allow-list of fields a profile update may touch.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Role      *Role
	UpdatedBy uuid.UUID
}

// Identity is the authenticated caller established from a bearer token.
// RoleClaim is the role at signing time and must not gate privileged actions.
type Identity struct {
	AccountID uuid.UUID
	RoleClaim Role
	Email     string
}
