// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miracleonyenma/keygate/internal/platform/sec"
)

func newTestCodec(t *testing.T) *sec.Codec {
	t.Helper()

	codec, err := sec.NewCodec(sec.CodecConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "keygate.test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return codec
}

/*
TestCodec_AccessTokenRoundTrip verifies that issued claims survive verification.
*/
func TestCodec_AccessTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	data := sec.AccessTokenData{
		UserID:        "user-1",
		Email:         "user@test.com",
		Roles:         []string{"user", "admin"},
		EmailVerified: true,
	}

	token, err := codec.IssueAccessToken(data)
	require.NoError(t, err)

	claims, err := codec.VerifyAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, data.UserID, claims.UserID)
	assert.Equal(t, data.Email, claims.Email)
	assert.Equal(t, data.Roles, claims.Roles)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "keygate.test", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

/*
TestCodec_ExpiredTokenFails verifies expiry enforcement on verification.
*/
func TestCodec_ExpiredTokenFails(t *testing.T) {
	codec, err := sec.NewCodec(sec.CodecConfig{
		AccessSecret:  "s1",
		RefreshSecret: "s2",
		Issuer:        "keygate.test",
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Nanosecond,
	})
	require.NoError(t, err)

	token, err := codec.IssueAccessToken(sec.AccessTokenData{UserID: "u1"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = codec.VerifyAccessToken(token)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestCodec_DistinctSecrets verifies that access and refresh tokens are not
interchangeable: a token signed in one namespace never verifies in the other.
*/
func TestCodec_DistinctSecrets(t *testing.T) {
	codec := newTestCodec(t)

	accessToken, err := codec.IssueAccessToken(sec.AccessTokenData{UserID: "u1"})
	require.NoError(t, err)

	refreshToken, err := codec.IssueRefreshToken("u1")
	require.NoError(t, err)

	_, err = codec.VerifyRefreshToken(accessToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)

	_, err = codec.VerifyAccessToken(refreshToken)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestCodec_TamperedTokenFails verifies signature enforcement.
*/
func TestCodec_TamperedTokenFails(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.IssueAccessToken(sec.AccessTokenData{UserID: "u1"})
	require.NoError(t, err)

	// Flip the last character of the signature segment.
	tampered := token[:len(token)-1]
	if token[len(token)-1] == 'A' {
		tampered += "B"
	} else {
		tampered += "A"
	}

	_, err = codec.VerifyAccessToken(tampered)
	assert.ErrorIs(t, err, sec.ErrInvalidToken)
}

/*
TestCodec_LegacySingleSecretMode verifies the JWT_SECRET fallback: both
namespaces share one secret, so refresh tokens verify under it too.
*/
func TestCodec_LegacySingleSecretMode(t *testing.T) {
	codec, err := sec.NewCodec(sec.CodecConfig{
		LegacySecret: "one-secret-to-rule-them-all",
		Issuer:       "keygate.test",
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	})
	require.NoError(t, err)

	token, err := codec.IssueRefreshToken("u1")
	require.NoError(t, err)

	claims, err := codec.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

/*
TestCodec_MissingSecretsFailFast verifies startup validation.
*/
func TestCodec_MissingSecretsFailFast(t *testing.T) {
	_, err := sec.NewCodec(sec.CodecConfig{
		Issuer:     "keygate.test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	assert.Error(t, err)

	// One of the pair missing is equally fatal.
	_, err = sec.NewCodec(sec.CodecConfig{
		AccessSecret: "only-access",
		Issuer:       "keygate.test",
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	})
	assert.Error(t, err)
}

/*
TestRandomSecret verifies length and uniqueness of generated secrets.
*/
func TestRandomSecret(t *testing.T) {
	first, err := sec.RandomSecret(32)
	require.NoError(t, err)
	second, err := sec.RandomSecret(32)
	require.NoError(t, err)

	assert.Len(t, first, 64) // hex doubles the byte length
	assert.NotEqual(t, first, second)
}

/*
TestSignState_RoundTrip verifies that a signed state passes verification.
*/
func TestSignState_RoundTrip(t *testing.T) {
	secret := []byte("state-secret")

	nonce, err := sec.NewStateNonce()
	require.NoError(t, err)

	signed := sec.SignState(nonce, secret)

	recovered, ok := sec.VerifyState(signed, secret)
	require.True(t, ok)
	assert.Equal(t, nonce, recovered)
}

/*
TestVerifyState_FlippedCharacterFails verifies that a single flipped character
anywhere in the signature breaks verification.
*/
func TestVerifyState_FlippedCharacterFails(t *testing.T) {
	secret := []byte("state-secret")

	nonce, err := sec.NewStateNonce()
	require.NoError(t, err)
	signed := sec.SignState(nonce, secret)

	separator := len(nonce) // position of the "."
	for position := separator + 1; position < len(signed); position++ {
		mutated := []byte(signed)
		if mutated[position] == '0' {
			mutated[position] = '1'
		} else {
			mutated[position] = '0'
		}

		_, ok := sec.VerifyState(string(mutated), secret)
		assert.False(t, ok, "flipped signature character at %d should fail", position)
	}
}

/*
TestVerifyState_Malformed verifies rejection of structurally invalid states.
*/
func TestVerifyState_Malformed(t *testing.T) {
	secret := []byte("state-secret")

	for _, malformed := range []string{"", "no-separator", ".leading", "trailing.", "a.b.c"} {
		_, ok := sec.VerifyState(malformed, secret)
		assert.False(t, ok, "malformed state should fail: %q", malformed)
	}
}

/*
TestConstantTimeEquals covers equal, unequal, and length-mismatched inputs.
*/
func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, sec.ConstantTimeEquals("abcdef", "abcdef"))
	assert.False(t, sec.ConstantTimeEquals("abcdef", "abcdeg"))
	assert.False(t, sec.ConstantTimeEquals("short", "a-much-longer-value"))
}

/*
TestDeriveLookupKey verifies determinism and secret dependence.
*/
func TestDeriveLookupKey(t *testing.T) {
	keyA := sec.DeriveLookupKey("raw-token", []byte("secret-1"))
	keyB := sec.DeriveLookupKey("raw-token", []byte("secret-1"))
	keyC := sec.DeriveLookupKey("raw-token", []byte("secret-2"))

	assert.Equal(t, keyA, keyB)
	assert.NotEqual(t, keyA, keyC)
	assert.Len(t, keyA, 16)
}

/*
TestMagicTokenHash verifies the hash/compare pair used for magic-link storage.
*/
func TestMagicTokenHash(t *testing.T) {
	hash, err := sec.HashMagicToken("raw-magic-token")
	require.NoError(t, err)

	assert.NotEqual(t, "raw-magic-token", hash)
	assert.True(t, sec.CompareMagicToken("raw-magic-token", hash))
	assert.False(t, sec.CompareMagicToken("other-token", hash))
}
