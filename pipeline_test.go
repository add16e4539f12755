package hhebench

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hannahmeinh/hhe-bench/internal/keystore"
	"github.com/hannahmeinh/hhe-bench/internal/spool"
	"github.com/hannahmeinh/hhe-bench/kreyvium"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

func testParameters(t *testing.T, variant Variant, handling DataHandling, batchSize, batchCount int) Parameters {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	params := DefaultParameters()
	params.Variant = variant
	params.DataHandling = handling
	params.BatchSize = batchSize
	params.BatchCount = batchCount
	params.StorageRoot = t.TempDir()
	params.Logger = log
	return params
}

func readFrames(t *testing.T, path string) [][]byte {
	t.Helper()

	reader, err := spool.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var frames [][]byte
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, payload)
	}
	return frames
}

// The offline HHE pipeline: client spools Kreyvium ciphertexts, the server
// picks up the latest spool and transciphers, the TTP picks up the server's
// spool and decrypts. Decrypted output must match a clear decryption of the
// client's Kreyvium spool.
func TestSingleComponentPipelineHHE(t *testing.T) {
	params := testParameters(t, VariantHHE, SingleComponent, 2, 2)
	scheme := tfhe.NewClearScheme()
	require.NoError(t, GenerateKeys(params, scheme))

	client, err := NewClient(params, scheme)
	require.NoError(t, err)
	require.NoError(t, client.Run())

	server, err := NewServer(params, scheme)
	require.NoError(t, err)
	require.NoError(t, server.Run())

	ttp, err := NewTTP(params, scheme)
	require.NoError(t, err)
	require.NoError(t, ttp.Run())

	kreyviumSpool := spool.LatestFile(params.KreyviumDir())
	require.NotEmpty(t, kreyviumSpool)
	decryptedSpool := spool.LatestFile(params.DecryptedDir())
	require.NotEmpty(t, decryptedSpool)

	key, err := keystore.LoadKreyviumKey(params.KreyviumKeyPath())
	require.NoError(t, err)
	cipher, err := kreyvium.NewCipher(key)
	require.NoError(t, err)

	kreyviumFrames := readFrames(t, kreyviumSpool)
	decryptedFrames := readFrames(t, decryptedSpool)
	require.Len(t, kreyviumFrames, params.TotalMessages())
	require.Len(t, decryptedFrames, params.TotalMessages())

	for i, ct := range kreyviumFrames {
		want, err := cipher.Decrypt(ct, len(ct)*8)
		require.NoError(t, err)
		assert.Equal(t, want, decryptedFrames[i], "integer %d", i)
	}
}

// The offline HE pipeline: client spools TFHE ciphertext vectors directly,
// the TTP decrypts them. Decrypted output must match a direct decryption of
// the client's spool.
func TestSingleComponentPipelineHE(t *testing.T) {
	params := testParameters(t, VariantHE, SingleComponent, 2, 3)
	scheme := tfhe.NewClearScheme()
	require.NoError(t, GenerateKeys(params, scheme))

	client, err := NewClient(params, scheme)
	require.NoError(t, err)
	require.NoError(t, client.Run())

	ttp, err := NewTTP(params, scheme)
	require.NoError(t, err)
	require.NoError(t, ttp.Run())

	tfheSpool := spool.LatestFile(params.TFHEDir())
	require.NotEmpty(t, tfheSpool)
	decryptedSpool := spool.LatestFile(params.DecryptedDir())
	require.NotEmpty(t, decryptedSpool)

	tfheParams, err := keystore.LoadParams(scheme, params.TFHEParamsPath())
	require.NoError(t, err)
	sk, err := keystore.LoadSecretKeySet(scheme, tfheParams, params.TFHESecretKeyPath())
	require.NoError(t, err)

	reader, err := spool.NewTFHEReader(tfheSpool, scheme, tfheParams)
	require.NoError(t, err)
	defer reader.Close()

	decryptedFrames := readFrames(t, decryptedSpool)
	require.Len(t, decryptedFrames, params.TotalMessages())

	for i := 0; i < params.TotalMessages(); i++ {
		vec, err := reader.Next()
		require.NoError(t, err)
		require.Len(t, vec, params.IntegerBits)

		want, err := tfhe.DecryptBytes(scheme, sk, vec)
		require.NoError(t, err)
		assert.Equal(t, want, decryptedFrames[i], "integer %d", i)
	}
}

// The streaming HHE pipeline with all three roles live: client pushes
// Kreyvium ciphertexts to the server, the server pushes transciphered TFHE
// vectors to the TTP.
func TestAllAtOncePipelineHHE(t *testing.T) {
	params := testParameters(t, VariantHHE, AllAtOnce, 2, 2)
	params.Endpoints = Endpoints{
		ClientServerBind: "tcp://127.0.0.1:47401",
		ClientServerDial: "tcp://127.0.0.1:47401",
		ClientTTPBind:    "tcp://127.0.0.1:47402",
		ClientTTPDial:    "tcp://127.0.0.1:47402",
		ServerTTPBind:    "tcp://127.0.0.1:47403",
		ServerTTPDial:    "tcp://127.0.0.1:47403",
	}

	scheme := tfhe.NewClearScheme()
	require.NoError(t, GenerateKeys(params, scheme))

	errs := make(chan error, 3)

	go func() {
		ttp, err := NewTTP(params, scheme)
		if err != nil {
			errs <- err
			return
		}
		errs <- ttp.Run()
	}()
	go func() {
		server, err := NewServer(params, scheme)
		if err != nil {
			errs <- err
			return
		}
		errs <- server.Run()
	}()
	go func() {
		client, err := NewClient(params, scheme)
		if err != nil {
			errs <- err
			return
		}
		errs <- client.Run()
	}()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(60 * time.Second):
			t.Fatal("pipeline did not finish in time")
		}
	}

	decryptedSpool := spool.LatestFile(params.DecryptedDir())
	require.NotEmpty(t, decryptedSpool)
	decryptedFrames := readFrames(t, decryptedSpool)
	require.Len(t, decryptedFrames, params.TotalMessages())

	// Cross-check against the Kreyvium spool the server persisted while
	// receiving.
	key, err := keystore.LoadKreyviumKey(params.KreyviumKeyPath())
	require.NoError(t, err)
	cipher, err := kreyvium.NewCipher(key)
	require.NoError(t, err)

	kreyviumFrames := readFrames(t, spool.LatestFile(params.KreyviumDir()))
	require.Len(t, kreyviumFrames, params.TotalMessages())
	for i, ct := range kreyviumFrames {
		want, err := cipher.Decrypt(ct, len(ct)*8)
		require.NoError(t, err)
		assert.Equal(t, want, decryptedFrames[i], "integer %d", i)
	}
}

func TestServerRejectsHEVariant(t *testing.T) {
	params := testParameters(t, VariantHE, SingleComponent, 1, 1)
	_, err := NewServer(params, tfhe.NewClearScheme())
	require.Error(t, err)
}

func TestClientFailsWithoutKeys(t *testing.T) {
	params := testParameters(t, VariantHHE, SingleComponent, 1, 1)
	_, err := NewClient(params, tfhe.NewClearScheme())
	require.ErrorIs(t, err, keystore.ErrKeyLoad)
}

func TestServerFailsWhenNoSpoolExists(t *testing.T) {
	params := testParameters(t, VariantHHE, SingleComponent, 1, 1)
	scheme := tfhe.NewClearScheme()
	require.NoError(t, GenerateKeys(params, scheme))

	server, err := NewServer(params, scheme)
	require.NoError(t, err)
	require.Error(t, server.Run())
}

func TestKeyGenerationProducesLoadableKeys(t *testing.T) {
	params := testParameters(t, VariantHHE, SingleComponent, 1, 1)
	scheme := tfhe.NewClearScheme()
	require.NoError(t, GenerateKeys(params, scheme))

	key, err := keystore.LoadKreyviumKey(params.KreyviumKeyPath())
	require.NoError(t, err)
	assert.Len(t, key, kreyvium.KeySize)

	tfheParams, err := keystore.LoadParams(scheme, params.TFHEParamsPath())
	require.NoError(t, err)
	_, err = keystore.LoadSecretKeySet(scheme, tfheParams, params.TFHESecretKeyPath())
	require.NoError(t, err)
}
