package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost keeps a hash around a few tens of milliseconds.
const DefaultBcryptCost = 10

// dummyPassword backs VerifyDummy; its value is irrelevant.
const dummyPassword = "storefront-dummy-password"

// PasswordHasher hashes and verifies passwords with bcrypt. The salt lives
// inside the encoded hash, so two hashes of one password differ.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher returns a hasher with the given bcrypt cost; zero means
// DefaultBcryptCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range", common.ErrConfig, cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, err
	}

	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", common.ErrValidation)
		}
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Every failure, including a
// malformed hash, is just false.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDummy spends the same time as Verify without a real hash. Login calls
// it for unknown emails so response time does not reveal which emails exist.
func (h *PasswordHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
