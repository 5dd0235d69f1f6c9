// Package auth holds the server's identity primitives: the JWT codec for
// access and refresh tokens, the password hasher, and the gate that turns an
// authorization header into verified claims.
package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims carried by both token kinds. Refresh tokens only
// fill the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Subject is what gets encoded into an access token.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// Codec issues and verifies HS256 tokens. Access and refresh tokens are signed
// with different secrets so that one leaked secret cannot forge the other kind.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewCodec validates the secrets and builds a Codec. Non-positive TTLs fall
// back to the defaults (15 minutes / 7 days).
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if accessSecret == "" {
		return nil, fmt.Errorf("%w: access token secret is not set", common.ErrConfig)
	}
	if refreshSecret == "" {
		return nil, fmt.Errorf("%w: refresh token secret is not set", common.ErrConfig)
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("%w: access and refresh token secrets must differ", common.ErrConfig)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// UsesSecret reports whether secret signs either token kind.
func (c *Codec) UsesSecret(secret []byte) bool {
	return hmac.Equal(secret, c.accessSecret) || hmac.Equal(secret, c.refreshSecret)
}

func (c *Codec) IssueAccessToken(s Subject) (string, error) {
	if s.UserID == "" {
		return "", fmt.Errorf("%w: empty token subject", common.ErrValidation)
	}
	return c.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: s.UserID},
		Email:            s.Email,
		Role:             s.Role,
	}, c.accessSecret, c.accessTTL)
}

func (c *Codec) IssueRefreshToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty token subject", common.ErrValidation)
	}
	return c.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, c.refreshSecret, c.refreshTTL)
}

// sign stamps iat/exp and a random jti; the jti keeps two tokens minted for
// the same user within one second distinct.
func (c *Codec) sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: signing secret is not set", common.ErrConfig)
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (c *Codec) VerifyAccessToken(tokenString string) (*Claims, error) {
	return c.Verify(tokenString, c.accessSecret)
}

func (c *Codec) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return c.Verify(tokenString, c.refreshSecret)
}

// Verify checks signature and expiry. It returns common.ErrTokenExpired for a
// correctly signed but expired token and common.ErrInvalidToken for anything
// else, so callers can tell "refresh and retry" from "reject".
func (c *Codec) Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// PeekExpiry reads the exp claim WITHOUT checking the signature. It exists
// only to size the lifetime of a stored refresh record and must never feed an
// authorization decision. A token without exp yields the current time.
func (c *Codec) PeekExpiry(tokenString string) (time.Time, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return c.now(), nil
	}
	return claims.ExpiresAt.Time, nil
}
