package keystore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hannahmeinh/hhe-bench/tfhe"
)

func TestKreyviumKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage_keys", "key_kreyvium.bin")
	key := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	require.NoError(t, SaveKreyviumKey(path, key))
	loaded, err := LoadKreyviumKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)
}

func TestKreyviumKeyFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.bin")
	require.NoError(t, SaveKreyviumKey(path, []byte{0xAB, 0xCD}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02, 0xAB, 0xCD}, raw)
}

func TestKreyviumKeyLegacyLayout(t *testing.T) {
	// The original tooling wrote a native-endian size_t prefix; on the
	// platforms it shipped on that is 8 bytes little-endian.
	key := []byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 11, 22, 33, 44, 55, 66}
	raw := make([]byte, 8+len(key))
	binary.LittleEndian.PutUint64(raw, uint64(len(key)))
	copy(raw[8:], key)

	path := filepath.Join(t.TempDir(), "legacy.bin")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	loaded, err := LoadKreyviumKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, loaded)
}

func TestLoadKreyviumKeyMissingFile(t *testing.T) {
	_, err := LoadKreyviumKey(filepath.Join(t.TempDir(), "absent.bin"))
	require.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadKreyviumKeyMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xFF}, 0o600))

	_, err := LoadKreyviumKey(path)
	require.ErrorIs(t, err, ErrKeyLoad)
}

func TestParamsRoundTrip(t *testing.T) {
	scheme := tfhe.NewClearScheme()
	params, _, err := scheme.GenerateKeys(128)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "params_tfhe.bin")
	require.NoError(t, SaveParams(scheme, params, path))

	loaded, err := LoadParams(scheme, path)
	require.NoError(t, err)
	assert.Equal(t, scheme.CiphertextSize(params), scheme.CiphertextSize(loaded))
}

func TestSecretKeySetRoundTrip(t *testing.T) {
	scheme := tfhe.NewClearScheme()
	params, sk, err := scheme.GenerateKeys(128)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sk_tfhe.bin")
	require.NoError(t, SaveSecretKeySet(scheme, sk, path))

	loaded, err := LoadSecretKeySet(scheme, params, path)
	require.NoError(t, err)

	ct, err := scheme.EncryptBit(sk, 1)
	require.NoError(t, err)
	bit, err := scheme.DecryptBit(loaded, ct)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), bit)
}

func TestLoadParamsRejectsGarbage(t *testing.T) {
	scheme := tfhe.NewClearScheme()
	path := filepath.Join(t.TempDir(), "params.bin")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	_, err := LoadParams(scheme, path)
	require.ErrorIs(t, err, ErrKeyLoad)
}

func TestLoadParamsEmptyFile(t *testing.T) {
	scheme := tfhe.NewClearScheme()
	path := filepath.Join(t.TempDir(), "params.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := LoadParams(scheme, path)
	require.ErrorIs(t, err, ErrKeyLoad)
}
