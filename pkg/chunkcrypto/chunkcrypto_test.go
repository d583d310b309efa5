package chunkcrypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("a"), 1024)
	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	require.Len(t, ciphertext, len(plaintext)+Overhead)

	got, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)
	otherKey, err := GenerateUserKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt([]byte("hello"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, otherKey)
	require.Error(t, err)
	var cryptoErr errtypes.IsCryptoAuthFail
	require.ErrorAs(t, err, &cryptoErr)
}

func TestDecryptLegacyShortDataPassesThrough(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)

	legacy := []byte("not encrypted, too short for a header")
	got, err := Decrypt(legacy, key)
	require.NoError(t, err)
	require.Equal(t, legacy, got)
}

func TestDecryptRangeFallbackExactSizeTriesThenPassesThrough(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)

	// Data that happens to be exactly minEncryptedLen but isn't genuinely
	// encrypted under key: Decrypt fails, fallback must pass it through.
	raw := bytes.Repeat([]byte("x"), minEncryptedLen)
	got, err := DecryptRangeFallback(raw, key, minEncryptedLen)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestEncryptProducesFreshSaltAndNonceEachCall(t *testing.T) {
	key, err := GenerateUserKey()
	require.NoError(t, err)

	a, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
