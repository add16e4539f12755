package hhebench

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hannahmeinh/hhe-bench/internal/keystore"
	"github.com/hannahmeinh/hhe-bench/internal/perf"
	"github.com/hannahmeinh/hhe-bench/internal/queue"
	"github.com/hannahmeinh/hhe-bench/internal/spool"
	"github.com/hannahmeinh/hhe-bench/kreyvium"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// TTP is the trusted third party: it holds the TFHE secret key, receives
// TFHE ciphertext vectors from the server (HHE) or the client (HE), decrypts
// each and persists the plaintext bytes into the decrypted spool.
type TTP struct {
	params Parameters
	scheme tfhe.Scheme
	log    *logrus.Logger
	perf   *perf.Logger
	prefix string

	tfheParams tfhe.Params
	decryptor  *kreyvium.Transcipher

	tfheSpool string
}

// NewTTP loads the TFHE parameter set and secret key and builds the
// decryptor for the configured variant.
func NewTTP(params Parameters, scheme tfhe.Scheme) (*TTP, error) {
	if err := params.checkConfig(); err != nil {
		return nil, err
	}

	t := &TTP{
		params: params,
		scheme: scheme,
		log:    params.logger(),
	}
	t.prefix = params.FilePrefix(params.Stamp())
	t.tfheSpool = params.EncryptedTFHESpoolPath(t.prefix)

	var err error
	t.perf, err = perf.New(params.MeasurementRoot(), t.prefix, "ttp_"+string(params.Variant), t.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance logs: %w", err)
	}

	t.perf.Log("TTP Initialisation Keys_Params Start")
	if err := t.loadKeys(); err != nil {
		t.perf.Close()
		return nil, err
	}
	t.perf.Log("TTP Initialisation Keys_Params End")

	return t, nil
}

func (t *TTP) loadKeys() error {
	tfheParams, err := keystore.LoadParams(t.scheme, t.params.TFHEParamsPath())
	if err != nil {
		return err
	}
	sk, err := keystore.LoadSecretKeySet(t.scheme, tfheParams, t.params.TFHESecretKeyPath())
	if err != nil {
		return err
	}

	// Both variants decrypt the same way at this end: bit ciphertexts under
	// the secret key, packed into bytes. A key-less transcipher is the
	// decrypt-only configuration.
	decryptor, err := kreyvium.NewTranscipher(t.scheme, nil)
	if err != nil {
		return fmt.Errorf("failed to build decryptor: %w", err)
	}
	decryptor.SetSecretKey(sk)

	t.tfheParams = tfheParams
	t.decryptor = decryptor
	return nil
}

// receiverEndpoint is the upstream endpoint for the variant.
func (t *TTP) receiverEndpoint() string {
	if t.params.Variant == VariantHHE {
		return t.params.Endpoints.ServerTTPDial
	}
	return t.params.Endpoints.ClientTTPDial
}

// Run drives the TTP state machine to completion.
func (t *TTP) Run() error {
	defer t.perf.Close()

	if t.params.DataHandling == TransmitTFHE {
		// Receive-only leg of the split benchmark.
		t.log.Info("data handling: TRANSMIT_TFHE, receiving only")
		return t.receiveTFHEData()
	}

	if t.params.DataHandling == SingleComponent {
		// Offline handover: pick up the producer's latest spool from the
		// shared TFHE directory.
		latest := spool.LatestFile(t.params.TFHEDir())
		if latest == "" {
			return fmt.Errorf("no stamped TFHE spool found in %s", t.params.TFHEDir())
		}
		t.tfheSpool = latest
	} else {
		if err := t.receiveTFHEData(); err != nil {
			return err
		}
	}

	reader, err := spool.NewTFHEReader(t.tfheSpool, t.scheme, t.tfheParams)
	if err != nil {
		return err
	}
	defer reader.Close()

	t.perf.Log("TTP initialized")

	appender := spool.NewAppender(t.params.DecryptedSpoolPath(t.prefix))
	for batch := 1; batch <= t.params.BatchCount; batch++ {
		t.perf.Log("TTP Batch Start")

		decrypted := make([][]byte, 0, t.params.BatchSize)
		for i := 0; i < t.params.BatchSize; i++ {
			t.perf.Log("TTP Integer Start")
			plain, err := t.decryptNext(reader)
			if err != nil {
				return err
			}
			decrypted = append(decrypted, plain)
			t.perf.Log("TTP Integer End")
		}

		t.perf.Log("TTP Batch End")
		t.perf.Log("TTP Batch Transmission Start")
		for _, plain := range decrypted {
			if err := appender.Append(plain); err != nil {
				return err
			}
		}
		t.perf.Log("TTP Batch Transmission End")
	}

	return nil
}

// receiveTFHEData pulls TFHE frames into this run's spool, bounded by the
// expected message count and the EOF frame. Frames stay serialized on disk;
// deserialization happens at spool-read time.
func (t *TTP) receiveTFHEData() error {
	received, err := queue.ReceiveAndStore(context.Background(), t.receiverEndpoint(),
		t.tfheSpool, t.params.TotalMessages(), true, t.log)
	if err != nil {
		return fmt.Errorf("failed to receive TFHE data: %w", err)
	}
	t.log.Infof("received %d messages into %s", received, t.tfheSpool)
	return nil
}

// decryptNext reads the next ciphertext vector and decrypts it to plaintext
// bytes.
func (t *TTP) decryptNext(reader *spool.TFHEReader) ([]byte, error) {
	vec, err := reader.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("TFHE spool %s ended before the configured batch volume", t.tfheSpool)
		}
		return nil, err
	}

	t.perf.Log("TTP Integer Decryption Start")
	plain, err := t.decryptor.DecryptResult(vec)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	t.perf.Log("TTP Integer Decryption End : " + byteValues(plain))
	return plain, nil
}
