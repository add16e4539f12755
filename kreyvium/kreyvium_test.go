package kreyvium

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	rng := rand.New(rand.NewSource(42))
	rng.Read(key)
	return key
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	_, err := NewCipher([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	for _, width := range []int{1, 2, 4, 8, 16} {
		plaintext := make([]byte, width)
		rand.New(rand.NewSource(int64(width))).Read(plaintext)

		ct, err := cipher.Encrypt(plaintext, width*8)
		require.NoError(t, err)
		assert.Len(t, ct, width)

		back, err := cipher.Decrypt(ct, width*8)
		require.NoError(t, err)
		assert.Equal(t, plaintext, back, "width %d", width)
	}
}

func TestEncryptIsDeterministicPerInstance(t *testing.T) {
	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	plaintext := []byte{0xA5}
	a, err := cipher.Encrypt(plaintext, 8)
	require.NoError(t, err)
	b, err := cipher.Encrypt(plaintext, 8)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKeystreamActuallyMasks(t *testing.T) {
	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	plaintext := []byte{0x00, 0x00, 0x00, 0x00}
	ct, err := cipher.Encrypt(plaintext, 32)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct, "keystream must not be all zero")
}

func TestDifferentKeysDifferentKeystreams(t *testing.T) {
	keyA := testKey(t)
	keyB := bytes.Clone(keyA)
	keyB[0] ^= 0x01

	cipherA, err := NewCipher(keyA)
	require.NoError(t, err)
	cipherB, err := NewCipher(keyB)
	require.NoError(t, err)

	plaintext := make([]byte, 8)
	ctA, err := cipherA.Encrypt(plaintext, 64)
	require.NoError(t, err)
	ctB, err := cipherB.Encrypt(plaintext, 64)
	require.NoError(t, err)
	assert.NotEqual(t, ctA, ctB)
}

func TestIVChangesKeystream(t *testing.T) {
	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	plaintext := make([]byte, 8)
	ctZeroIV, err := cipher.Encrypt(plaintext, 64)
	require.NoError(t, err)

	var iv [IVSize]byte
	iv[15] = 0x01
	cipher.SetIV(iv)
	ctOtherIV, err := cipher.Encrypt(plaintext, 64)
	require.NoError(t, err)

	assert.NotEqual(t, ctZeroIV, ctOtherIV)
}

func TestEncryptRejectsShortPlaintext(t *testing.T) {
	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	_, err = cipher.Encrypt([]byte{0x01}, 16)
	require.Error(t, err)
}
