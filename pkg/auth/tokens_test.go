package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("ProducesEncodedArgon2idHash", func(t *testing.T) {
		hash, err := HashPassword("correct horse battery staple")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("SaltsAreRandom", func(t *testing.T) {
		a, err := HashPassword("hunter2")
		require.NoError(t, err)
		b, err := HashPassword("hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	t.Run("AcceptsCorrectPassword", func(t *testing.T) {
		ok, err := VerifyPassword("hunter2", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RejectsWrongPassword", func(t *testing.T) {
		ok, err := VerifyPassword("hunter3", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RejectsMalformedHash", func(t *testing.T) {
		_, err := VerifyPassword("hunter2", "$bcrypt$nope")
		assert.ErrorIs(t, err, ErrInvalidHash)
	})
}

func TestTokenService(t *testing.T) {
	svc := NewTokenService("a-very-secret-signing-key")

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := svc.Sign(Claims{UserID: 123, SessionID: 456})
		require.NoError(t, err)

		claims, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, uint64(123), claims.UserID)
		assert.Equal(t, uint64(456), claims.SessionID)
	})

	t.Run("RejectsWrongSecret", func(t *testing.T) {
		token, err := svc.Sign(Claims{UserID: 1, SessionID: 2})
		require.NoError(t, err)

		other := NewTokenService("a-different-secret-entirely")
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RejectsTamperedToken", func(t *testing.T) {
		token, err := svc.Sign(Claims{UserID: 1, SessionID: 2})
		require.NoError(t, err)

		tampered := token[:len(token)-2] + "xx"
		_, err = svc.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
