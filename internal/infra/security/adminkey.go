package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidAdminKey = errors.New("security: invalid admin key")

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h BcryptHasher) Compare(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

func (h BcryptHasher) cost() int {
	if h.Cost >= bcrypt.MinCost {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

// AdminKey verifies the static admin key against its bcrypt hash. With no
// hash configured every key is rejected.
type AdminKey struct {
	Hash   string
	Hasher BcryptHasher
}

func (a AdminKey) Verify(key string) error {
	key = strings.TrimSpace(key)
	if a.Hash == "" || key == "" {
		return ErrInvalidAdminKey
	}
	if err := a.Hasher.Compare(a.Hash, key); err != nil {
		return ErrInvalidAdminKey
	}
	return nil
}
