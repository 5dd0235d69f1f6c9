package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/storefront/internal/common"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher error: %v", err)
	}
	return h
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	hash, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !h.Verify("pw123456", hash) {
		t.Fatal("correct password rejected")
	}
	if h.Verify("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestPasswordHasher_SaltedOutput(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("two hashes of one password must differ")
	}
}

func TestPasswordHasher_MalformedHashIsFalse(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	if h.Verify("pw", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash must not verify")
	}
	if h.Verify("pw", "") {
		t.Fatal("empty hash must not verify")
	}
}

func TestPasswordHasher_TooLong(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	_, err := h.Hash(strings.Repeat("x", 73))
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewPasswordHasher_Cost(t *testing.T) {
	t.Parallel()

	if _, err := NewPasswordHasher(bcrypt.MaxCost + 1); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	h, err := NewPasswordHasher(0)
	if err != nil {
		t.Fatalf("NewPasswordHasher(0) error: %v", err)
	}
	if h.cost != DefaultBcryptCost {
		t.Fatalf("default cost: got %d", h.cost)
	}
}

func TestPasswordHasher_VerifyDummy(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	h.VerifyDummy("anything")
}
