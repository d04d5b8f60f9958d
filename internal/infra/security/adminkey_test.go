package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminKeyVerify(t *testing.T) {
	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	key := AdminKey{Hash: hash, Hasher: hasher}
	assert.NoError(t, key.Verify("s3cret"))
	assert.ErrorIs(t, key.Verify("guess"), ErrInvalidAdminKey)
	assert.ErrorIs(t, key.Verify(""), ErrInvalidAdminKey)
	assert.ErrorIs(t, AdminKey{}.Verify("s3cret"), ErrInvalidAdminKey)
}
