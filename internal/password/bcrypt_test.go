package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	require.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrMismatch)
}

func TestHasher_EmptyHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.ErrorIs(t, h.Compare("", "anything"), ErrMismatch)
}

func TestNewHasher_InvalidCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(100).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}
