package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vacationfavorites/apiserver/config"
	"github.com/vacationfavorites/apiserver/types"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMalformedPayload = errors.New("malformed token payload")
)

// Claims are the identity claims carried by a bearer token.
type Claims struct {
	AccountID uuid.UUID
	Role      types.Role
	Email     string
}

type tokenClaims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 bearer tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTIssuer constructs a JWTIssuer from cfg. An empty secret is an error.
func NewJWTIssuer(cfg config.JWTConfig) (*JWTIssuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Sign issues an HS256 token for claims that expires after ttl.
func (i *JWTIssuer) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:  string(claims.Role),
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.AccountID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry. A token that verifies but lacks the
// account id or role yields ErrMalformedPayload.
func (i *JWTIssuer) Verify(tokenString string) (Claims, error) {
	claims := tokenClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	role := strings.TrimSpace(claims.Role)
	if subject == "" || role == "" {
		return Claims{}, ErrMalformedPayload
	}
	accountID, err := uuid.Parse(subject)
	if err != nil {
		return Claims{}, ErrMalformedPayload
	}

	return Claims{
		AccountID: accountID,
		Role:      types.Role(role),
		Email:     claims.Email,
	}, nil
}
