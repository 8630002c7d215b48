// Package auth issues and checks the HS256 tokens of the development
// identity provider, and hashes its account passwords.
//
// TOKEN FLOW:
//  1. POST /token?grant_type=password → access token (1h) + refresh token (30d)
//  2. The client sends the access token as "Authorization: Bearer <jwt>"
//  3. When the access token expires, POST /token?grant_type=refresh_token
//     trades the refresh token for a new pair
//
// Both tokens are JWTs signed with the same secret. The "token_use" claim
// keeps a refresh token from being accepted as an access token and the other
// way round.
//
// WHY JWT?
// Anything holding the shared secret can check a token without calling the
// provider, the habits backend included. Nothing about a signed-in user is stored
// server side except the account row, so restarting devidp keeps every
// session valid until it expires.
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"<uuid>","email":"a@b.c","role":"authenticated","token_use":"access","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// DefaultIssuer is the "iss" claim of tokens issued by the dev provider.
const DefaultIssuer = "habit-tracker-devidp"

// Token lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Values of the "token_use" claim.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// RoleAuthenticated is the role and audience of every signed-in user.
const RoleAuthenticated = "authenticated"

// ErrTokenExpired is returned by Validate for a correctly signed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
}

// TokenService creates and validates JWTs with one HMAC secret.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithIssuer sets the issuer written into and required of tokens.
// An empty issuer is neither written nor checked, which lets a client verify
// tokens from a provider whose issuer it does not know.
func WithIssuer(iss string) TokenOption {
	return func(s *TokenService) { s.issuer = iss }
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.accessTTL = d }
}

// NewTokenService creates a TokenService with the given secret.
// Example: IDENTITY_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     DefaultIssuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL is the lifetime of tokens from IssueAccess.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess signs an access token for the user and returns it with its expiry.
func (s *TokenService) IssueAccess(userID, email string) (string, time.Time, error) {
	exp := time.Now().Add(s.accessTTL)
	tok, err := s.GenerateWithDuration(userID, email, UseAccess, s.accessTTL)
	return tok, exp, err
}

// IssueRefresh signs a refresh token for the user.
func (s *TokenService) IssueRefresh(userID, email string) (string, error) {
	return s.GenerateWithDuration(userID, email, UseRefresh, s.refreshTTL)
}

// GenerateWithDuration signs a token expiring after d. Tests use negative
// durations to produce expired tokens.
func (s *TokenService) GenerateWithDuration(userID, email, use string, d time.Duration) (string, error) {
	now := time.Now()

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{RoleAuthenticated},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    s.issuer,
		},
		Email:    email,
		Role:     RoleAuthenticated,
		TokenUse: use,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT: HS256 signature, expiry, issuer (when
// one is configured) and a non-empty subject.
//
// jwt.WithValidMethods pins the algorithm so a token claiming "alg":"none"
// or an RSA method is rejected before the key is used.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return c, nil
}

// ValidateUse is Validate plus a check of the "token_use" claim.
func (s *TokenService) ValidateUse(tokenStr, use string) (*Claims, error) {
	c, err := s.Validate(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.TokenUse != use {
		return nil, fmt.Errorf("auth: %s token presented where %s token expected", c.TokenUse, use)
	}
	return c, nil
}

// ParseUnverified decodes the claims without checking the signature.
// Only for display (expiry, email); never for authorization.
func ParseUnverified(tokenStr string) (*Claims, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &c); err != nil {
		return nil, fmt.Errorf("auth: decoding token: %w", err)
	}
	return &c, nil
}
