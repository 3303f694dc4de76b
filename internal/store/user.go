package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vacationfavorites/apiserver/types"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, email, first_name, last_name, password_hash, role, email_verified,
	verification_token, verification_token_expires_at,
	reset_token_hash, reset_token_expires_at,
	updated_by, created_at, updated_at`

const profileColumns = `
	id, email, first_name, last_name, role, email_verified, updated_by, created_at, updated_at`

// UserRepository handles persistence for accounts.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepository constructs a UserRepository backed by db.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (types.Account, error) {
	var (
		account         types.Account
		role            string
		verifyToken     sql.NullString
		verifyExpiresAt sql.NullTime
		resetTokenHash  sql.NullString
		resetExpiresAt  sql.NullTime
		updatedBy       uuid.NullUUID
	)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&role,
		&account.EmailVerified,
		&verifyToken,
		&verifyExpiresAt,
		&resetTokenHash,
		&resetExpiresAt,
		&updatedBy,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	account.Role = types.Role(role)
	account.Verification = pendingToken(verifyToken, verifyExpiresAt)
	account.Reset = pendingToken(resetTokenHash, resetExpiresAt)
	if updatedBy.Valid {
		id := updatedBy.UUID
		account.UpdatedBy = &id
	}
	return account, nil
}

func scanProfile(row rowScanner) (types.Profile, error) {
	var (
		profile   types.Profile
		role      string
		updatedBy uuid.NullUUID
	)
	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.FirstName,
		&profile.LastName,
		&role,
		&profile.EmailVerified,
		&updatedBy,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	profile.Role = types.Role(role)
	profile.FullName = profile.FirstName + " " + profile.LastName
	if updatedBy.Valid {
		id := updatedBy.UUID
		profile.UpdatedBy = &id
	}
	return profile, nil
}

func pendingToken(value sql.NullString, expiresAt sql.NullTime) *types.PendingToken {
	if !value.Valid || value.String == "" {
		return nil
	}
	token := &types.PendingToken{Value: value.String}
	if expiresAt.Valid {
		token.ExpiresAt = expiresAt.Time
	}
	return token
}

func tokenColumns(token *types.PendingToken) (sql.NullString, sql.NullTime) {
	if token == nil || token.Value == "" {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: token.Value, Valid: true}, sql.NullTime{Time: token.ExpiresAt, Valid: true}
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (types.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE ` + where
	return scanAccount(r.db.QueryRowContext(ctx, query, arg))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Account, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	return r.getOne(ctx, `email = $1`, types.NormalizeEmail(email))
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (types.Account, error) {
	if token == "" {
		return types.Account{}, ErrNotFound
	}
	return r.getOne(ctx, `verification_token = $1`, token)
}

func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (types.Account, error) {
	if tokenHash == "" {
		return types.Account{}, ErrNotFound
	}
	return r.getOne(ctx, `reset_token_hash = $1`, tokenHash)
}

// GetRole reads only the role column, for authorization checks.
func (r *UserRepository) GetRole(ctx context.Context, id uuid.UUID) (types.Role, error) {
	const query = `SELECT role FROM users WHERE id = $1`
	var role string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return types.Role(role), nil
}

func (r *UserRepository) GetProfile(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

// List returns all profiles, newest first.
func (r *UserRepository) List(ctx context.Context) ([]types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]types.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *UserRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := r.now().UTC()
	account.ID = uuid.New()
	account.Email = types.NormalizeEmail(account.Email)
	if account.Role == "" {
		account.Role = types.RoleUser
	}
	account.CreatedAt = now
	account.UpdatedAt = now

	verifyToken, verifyExpiresAt := tokenColumns(account.Verification)
	resetTokenHash, resetExpiresAt := tokenColumns(account.Reset)

	const query = `
		INSERT INTO users (
			id, email, first_name, last_name, password_hash, role, email_verified,
			verification_token, verification_token_expires_at,
			reset_token_hash, reset_token_expires_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Email,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		string(account.Role),
		account.EmailVerified,
		verifyToken,
		verifyExpiresAt,
		resetTokenHash,
		resetExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "email") {
			return types.Account{}, ErrDuplicateEmail
		}
		return types.Account{}, fmt.Errorf("insert user: %w", err)
	}
	return account, nil
}

// SaveAuthState persists the credential and token columns of account.
// Profile fields and role are never written here.
func (r *UserRepository) SaveAuthState(ctx context.Context, account types.Account) error {
	verifyToken, verifyExpiresAt := tokenColumns(account.Verification)
	resetTokenHash, resetExpiresAt := tokenColumns(account.Reset)

	const query = `
		UPDATE users
		SET password_hash = $1,
			email_verified = $2,
			verification_token = $3,
			verification_token_expires_at = $4,
			reset_token_hash = $5,
			reset_token_expires_at = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		account.PasswordHash,
		account.EmailVerified,
		verifyToken,
		verifyExpiresAt,
		resetTokenHash,
		resetExpiresAt,
		r.now().UTC(),
		account.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the allow-listed fields of update and returns the
// resulting profile.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update types.ProfileUpdate) (types.Profile, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.FirstName != nil {
		add("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		add("last_name", *update.LastName)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.UpdatedBy != uuid.Nil {
		add("updated_by", update.UpdatedBy)
	}
	add("updated_at", r.now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "),
		len(args),
		profileColumns,
	)
	return scanProfile(r.db.QueryRowContext(ctx, query, args...))
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
