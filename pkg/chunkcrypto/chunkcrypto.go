// Package chunkcrypto implements the per-chunk authenticated encryption
// PBKDF2-derived-key-then-AES-GCM scheme: a fresh salt and nonce per chunk, a
// PBKDF2-SHA256 key derivation from the user's opaque encryption key, and
// AES-256-GCM sealing. The wire layout is fixed-width and self-describing:
// salt(16) ‖ nonce(12) ‖ tag(16) ‖ ciphertext.
package chunkcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

const (
	saltSize  = 16
	nonceSize = 12
	tagSize   = 16

	// Overhead is the fixed number of bytes Encrypt adds to a plaintext:
	// salt ‖ nonce ‖ authTag. The chunk engine must account for this before
	// comparing against the substrate's attachment limit.
	Overhead = saltSize + nonceSize + tagSize

	kdfIterations = 100_000
	keySize       = 32

	// UserKeySize is the length of a freshly generated opaque user
	// encryption key (pkg/model.User.EncryptionKey).
	UserKeySize = 32

	// minEncryptedLen is the smallest length a genuinely encrypted chunk
	// can have: the header plus at least one ciphertext byte.
	minEncryptedLen = saltSize + nonceSize + tagSize + 1
)

// GenerateUserKey returns a fresh opaque per-user encryption key, created
// lazily on a user's first encrypted write.
func GenerateUserKey() ([]byte, error) {
	key := make([]byte, UserKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errtypes.CryptoAuthFail("key generation: " + err.Error())
	}
	return key, nil
}

func deriveKey(userKey, salt []byte) []byte {
	return pbkdf2.Key(userKey, salt, kdfIterations, keySize, sha256.New)
}

// Encrypt seals plaintext under a key derived from userKey and a fresh
// per-call salt/nonce, returning salt ‖ nonce ‖ tag ‖ ciphertext. Callers
// must ensure len(plaintext)+Overhead does not exceed the substrate's
// attachment limit.
func Encrypt(plaintext, userKey []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errtypes.CryptoAuthFail("salt generation: " + err.Error())
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errtypes.CryptoAuthFail("nonce generation: " + err.Error())
	}

	gcm, err := newGCM(deriveKey(userKey, salt))
	if err != nil {
		return nil, err
	}

	// gcm.Seal appends its output (ciphertext‖tag) to the dst slice; GCM
	// places the tag last, so to land on salt‖nonce‖tag‖ciphertext we seal
	// into a scratch buffer and reslice.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - tagSize

	out := make([]byte, saltSize+nonceSize+tagSize+ctLen)
	copy(out[:saltSize], salt)
	copy(out[saltSize:saltSize+nonceSize], nonce)
	copy(out[saltSize+nonceSize:saltSize+nonceSize+tagSize], sealed[ctLen:])
	copy(out[saltSize+nonceSize+tagSize:], sealed[:ctLen])
	return out, nil
}

// Decrypt reverses Encrypt. A chunk shorter than minEncryptedLen is treated
// as legacy unencrypted data and returned untouched — the compatibility
// affordance the decrypt-fallback design note calls for.
// A failed tag verification on a chunk that does look encrypted returns
// errtypes.CryptoAuthFail; the chunk engine never exercises this branch for
// data it just wrote itself.
func Decrypt(data, userKey []byte) ([]byte, error) {
	if len(data) < minEncryptedLen {
		return data, nil
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	tag := data[saltSize+nonceSize : saltSize+nonceSize+tagSize]
	ciphertext := data[saltSize+nonceSize+tagSize:]

	gcm, err := newGCM(deriveKey(userKey, salt))
	if err != nil {
		return nil, err
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errtypes.CryptoAuthFail("gcm tag verification failed")
	}
	return plaintext, nil
}

// DecryptRangeFallback implements the three-case defensive decode used by
// the byte-range fetch path: a buffer too
// short to hold the header is passed through; a buffer exactly
// expectedPlainSize long is tried and passed through on failure; anything
// else must decrypt strictly.
func DecryptRangeFallback(data, userKey []byte, expectedPlainSize int) ([]byte, error) {
	if len(data) < minEncryptedLen {
		return data, nil
	}
	if len(data) == expectedPlainSize {
		if pt, err := Decrypt(data, userKey); err == nil {
			return pt, nil
		}
		return data, nil
	}
	return Decrypt(data, userKey)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errtypes.CryptoAuthFail("aes cipher init: " + err.Error())
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, errtypes.CryptoAuthFail("gcm init: " + err.Error())
	}
	return gcm, nil
}
