package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/security"
)

var cheap = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerify(t *testing.T) {
	hash, err := security.HashPassword("cardápio-secreto", cheap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("cardápio-secreto", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("cardapio-secreto", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := security.HashPassword("cardápio-secreto", cheap)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ per hash")
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	_, err := security.HashPassword("", cheap)
	assert.Error(t, err)
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=64,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=64,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=64,t=1$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$!!$a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
	} {
		_, err := security.VerifyPassword("x", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := security.HashPassword("secret1", cheap)
	require.NoError(t, err)

	assert.False(t, security.NeedsRehash(hash, cheap))

	stronger := cheap
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", cheap))
}

func TestParamsForClamps(t *testing.T) {
	p := security.ParamsFor(config.PasswordConfig{ArgonTime: 99, ArgonParallelism: 1000})
	assert.Equal(t, uint32(8), p.Memory)
	assert.Equal(t, uint32(10), p.Time)
	assert.Equal(t, uint8(255), p.Threads)
	assert.Equal(t, uint32(8), p.SaltLen)
	assert.Equal(t, uint32(16), p.KeyLen)
}

func TestCheckStrength(t *testing.T) {
	cfg := config.PasswordConfig{MinLength: 6}
	assert.ErrorIs(t, security.CheckStrength("12345", cfg), security.ErrWeakPassword)
	assert.NoError(t, security.CheckStrength("123456", cfg))
	assert.NoError(t, security.CheckStrength("çãõéíú", cfg), "length counts runes")
	assert.ErrorIs(t, security.CheckStrength("abc", config.PasswordConfig{}), security.ErrWeakPassword)
	assert.Equal(t, 6, security.MinLength(config.PasswordConfig{}))
	assert.Equal(t, 10, security.MinLength(config.PasswordConfig{MinLength: 10}))
}
