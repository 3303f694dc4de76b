//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vacationfavorites/apiserver/internal/notify"
)

var linkToken = regexp.MustCompile(`token=([0-9a-f]+)`)

func call(t *testing.T, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

// waitForToken waits for the n-th email of kind sent to addr and returns the
// token from its link.
func waitForToken(t *testing.T, addr, kind string, n int) string {
	t.Helper()
	var emails []notify.Email
	require.Eventually(t, func() bool {
		emails = mailbox.find(addr, kind)
		return len(emails) >= n
	}, 5*time.Second, 20*time.Millisecond, "no %s email #%d for %s", kind, n, addr)

	m := linkToken.FindStringSubmatch(emails[n-1].HTML)
	require.Len(t, m, 2)
	return m[1]
}

func TestAccountLifecycle(t *testing.T) {
	email := uniqueEmail("flow")
	password := "Abcd123!"

	status, body := call(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	register := map[string]string{"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": password}
	status, body = call(t, http.MethodPost, "/auth/register", register, "")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["ok"])

	status, body = call(t, http.MethodPost, "/auth/register", register, "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "VERIFICATION_ALREADY_SENT", body["code"])

	status, body = call(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", body["code"])

	verifyToken := waitForToken(t, email, notify.KindVerification, 1)
	status, body = call(t, http.MethodGet, "/auth/verify-email?token="+verifyToken, nil, "")
	require.Equal(t, http.StatusOK, status, body)

	status, _ = call(t, http.MethodGet, "/auth/verify-email?token="+verifyToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, http.MethodPost, "/auth/register", register, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Email already exists", body["message"])

	status, body = call(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": "Wrong123!"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["message"])

	status, body = call(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	user := body["user"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", user["full_name"])
	assert.Equal(t, "user", user["role"])

	status, body = call(t, http.MethodGet, "/users/me", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, email, body["user"].(map[string]any)["email"])

	status, body = call(t, http.MethodPut, "/users/me", map[string]any{"role": "admin"}, token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You cannot change your role", body["message"])

	status, _ = call(t, http.MethodGet, "/users", nil, token)
	assert.Equal(t, http.StatusForbidden, status)

	// promoted directly in the database; the same token now passes the admin check
	_, err := dbConn.ExecContext(context.Background(), `UPDATE users SET role = 'admin' WHERE email = $1`, email)
	require.NoError(t, err)

	status, body = call(t, http.MethodGet, "/users", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["users"])
}

func TestPasswordReset(t *testing.T) {
	email := uniqueEmail("reset")
	password := "Abcd123!"
	newPassword := "Efgh456?"

	status, _ := call(t, http.MethodPost, "/auth/register",
		map[string]string{"firstName": "Grace", "lastName": "Hopper", "email": email, "password": password}, "")
	require.Equal(t, http.StatusCreated, status)
	status, _ = call(t, http.MethodGet, "/auth/verify-email?token="+waitForToken(t, email, notify.KindVerification, 1), nil, "")
	require.Equal(t, http.StatusOK, status)

	status, unknown := call(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": uniqueEmail("nobody")}, "")
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, unknown["message"], body["message"])

	status, body = call(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RESET_ALREADY_SENT", body["code"])

	raw := waitForToken(t, email, notify.KindPasswordReset, 1)

	status, body = call(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": raw, "password": password}, "")
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = call(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": raw, "password": newPassword}, "")
	require.Equal(t, http.StatusOK, status, body)

	status, _ = call(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": raw, "password": "Ijkl789#"}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": newPassword}, "")
	assert.Equal(t, http.StatusOK, status, body)
}
