package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// UserLookup is the slice of the user store the gate needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Gate authenticates access tokens and authorizes roles.
type Gate struct {
	codec *Codec
	users UserLookup
}

func NewGate(codec *Codec, users UserLookup) *Gate {
	return &Gate{codec: codec, users: users}
}

// BearerToken accepts either a raw token or "Bearer <token>" (scheme is
// case-insensitive) and returns the token part.
func BearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, found := strings.Cut(raw, " ")
	if strings.EqualFold(scheme, common.BearerScheme) {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return raw
}

// Authenticate verifies the access token in rawHeader. All failures wrap
// common.ErrUnauthenticated; an expired token additionally matches
// common.ErrTokenExpired.
func (g *Gate) Authenticate(rawHeader string) (*Claims, error) {
	token := BearerToken(rawHeader)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", common.ErrUnauthenticated)
	}

	claims, err := g.codec.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", common.ErrUnauthenticated)
	}

	return claims, nil
}

// Authorize checks that the user behind claims currently holds role. The
// role inside the token is not trusted: it may predate a demotion, so the
// user store is always asked.
func (g *Gate) Authorize(ctx context.Context, claims *Claims, role string) error {
	if claims == nil || claims.Subject == "" {
		return common.ErrUnauthenticated
	}

	user, err := g.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: user no longer exists", common.ErrForbidden)
		}
		return fmt.Errorf("%w: role lookup failed: %v", common.ErrForbidden, err)
	}

	if user.Role != role {
		return common.ErrForbidden
	}

	return nil
}
