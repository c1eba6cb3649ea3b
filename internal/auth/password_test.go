package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordUsesCost12(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	assert.True(t, VerifyPassword("correct-horse-battery", hash))
	assert.False(t, VerifyPassword("correct-horse-batter", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
}
