package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/internal/notify"
	"github.com/vacationfavorites/apiserver/internal/store"
	"github.com/vacationfavorites/apiserver/types"
)

type memoryDirectory struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]types.Account
	saves    int
	failWith error
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{accounts: map[uuid.UUID]types.Account{}}
}

func cloneToken(t *types.PendingToken) *types.PendingToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneAccount(a types.Account) types.Account {
	a.Verification = cloneToken(a.Verification)
	a.Reset = cloneToken(a.Reset)
	return a
}

func profileOf(a types.Account) types.Profile {
	return types.Profile{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		FullName:      a.FullName(),
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		UpdatedBy:     a.UpdatedBy,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (d *memoryDirectory) find(match func(types.Account) bool) (types.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return types.Account{}, d.failWith
	}
	for _, a := range d.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (d *memoryDirectory) GetByID(_ context.Context, id uuid.UUID) (types.Account, error) {
	return d.find(func(a types.Account) bool { return a.ID == id })
}

func (d *memoryDirectory) GetByEmail(_ context.Context, email string) (types.Account, error) {
	email = types.NormalizeEmail(email)
	return d.find(func(a types.Account) bool { return a.Email == email })
}

func (d *memoryDirectory) GetByVerificationToken(_ context.Context, token string) (types.Account, error) {
	return d.find(func(a types.Account) bool { return a.Verification != nil && a.Verification.Value == token })
}

func (d *memoryDirectory) GetByResetTokenHash(_ context.Context, hash string) (types.Account, error) {
	return d.find(func(a types.Account) bool { return a.Reset != nil && a.Reset.Value == hash })
}

func (d *memoryDirectory) GetRole(ctx context.Context, id uuid.UUID) (types.Role, error) {
	a, err := d.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return a.Role, nil
}

func (d *memoryDirectory) GetProfile(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	a, err := d.GetByID(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	return profileOf(a), nil
}

func (d *memoryDirectory) List(_ context.Context) ([]types.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return nil, d.failWith
	}
	profiles := make([]types.Profile, 0, len(d.accounts))
	for _, a := range d.accounts {
		profiles = append(profiles, profileOf(a))
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.After(profiles[j].CreatedAt) })
	return profiles, nil
}

func (d *memoryDirectory) Create(_ context.Context, account types.Account) (types.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return types.Account{}, d.failWith
	}
	account.Email = types.NormalizeEmail(account.Email)
	for _, a := range d.accounts {
		if a.Email == account.Email {
			return types.Account{}, store.ErrDuplicateEmail
		}
	}
	account.ID = uuid.New()
	if account.Role == "" {
		account.Role = types.RoleUser
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	d.accounts[account.ID] = cloneAccount(account)
	return account, nil
}

func (d *memoryDirectory) SaveAuthState(_ context.Context, account types.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	current, ok := d.accounts[account.ID]
	if !ok {
		return store.ErrNotFound
	}
	current.PasswordHash = account.PasswordHash
	current.EmailVerified = account.EmailVerified
	current.Verification = cloneToken(account.Verification)
	current.Reset = cloneToken(account.Reset)
	d.accounts[account.ID] = current
	d.saves++
	return nil
}

func (d *memoryDirectory) UpdateProfile(_ context.Context, id uuid.UUID, update types.ProfileUpdate) (types.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return types.Profile{}, d.failWith
	}
	current, ok := d.accounts[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	if update.FirstName != nil {
		current.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		current.LastName = *update.LastName
	}
	if update.Role != nil {
		current.Role = *update.Role
	}
	if update.UpdatedBy != uuid.Nil {
		by := update.UpdatedBy
		current.UpdatedBy = &by
	}
	d.accounts[id] = current
	return profileOf(current), nil
}

func (d *memoryDirectory) Delete(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	if _, ok := d.accounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.accounts, id)
	return nil
}

// setRole changes a role out of band, the way an operator would in SQL.
func (d *memoryDirectory) setRole(id uuid.UUID, role types.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.accounts[id]
	a.Role = role
	d.accounts[id] = a
}

func (d *memoryDirectory) mutate(email string, fn func(*types.Account)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, a := range d.accounts {
		if a.Email == types.NormalizeEmail(email) {
			fn(&a)
			d.accounts[id] = a
		}
	}
}

// plainHasher is a cheap reversible stand-in for bcrypt.
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }

func (plainHasher) Compare(hash, plaintext string) bool { return hash == "hashed:"+plaintext }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, email notify.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) last() notify.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

var linkToken = regexp.MustCompile(`token=([0-9a-f]+)`)

func tokenFromEmail(t *testing.T, email notify.Email) string {
	t.Helper()
	m := linkToken.FindStringSubmatch(email.HTML)
	if len(m) != 2 {
		t.Fatalf("no token link in email: %s", email.HTML)
	}
	return m[1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errDirectoryDown = errors.New("directory unreachable")

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
