package hhebench

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hannahmeinh/hhe-bench/internal/keystore"
	"github.com/hannahmeinh/hhe-bench/internal/perf"
	"github.com/hannahmeinh/hhe-bench/internal/queue"
	"github.com/hannahmeinh/hhe-bench/internal/spool"
	"github.com/hannahmeinh/hhe-bench/kreyvium"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// Client produces random integer blocks, encrypts each under the configured
// variant and drains batches to the next role: Kreyvium ciphertexts toward
// the server (HHE) or TFHE ciphertexts toward the TTP (HE).
type Client struct {
	params Parameters
	scheme tfhe.Scheme
	log    *logrus.Logger
	pool   *queue.Pool
	perf   *perf.Logger
	prefix string

	// HHE
	cipher *kreyvium.Cipher

	// HE
	tfheParams tfhe.Params
	tfheSK     tfhe.SecretKeySet

	rng *rand.Rand
}

// NewClient loads the variant's key material, opens the performance logs and,
// in every data handling mode except SINGLE_COMPONENT, primes the variant's
// queue endpoint with a SOF frame.
func NewClient(params Parameters, scheme tfhe.Scheme) (*Client, error) {
	if err := params.checkConfig(); err != nil {
		return nil, err
	}

	c := &Client{
		params: params,
		scheme: scheme,
		log:    params.logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.prefix = params.FilePrefix(params.Stamp())

	var err error
	c.perf, err = perf.New(params.MeasurementRoot(), c.prefix, "client_"+string(params.Variant), c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance logs: %w", err)
	}

	c.perf.Log("Client Initialisation Keys_Params Start")
	if err := c.loadKeys(); err != nil {
		c.perf.Close()
		return nil, err
	}
	c.perf.Log("Client Initialisation Keys_Params End")

	c.pool = queue.NewPool(c.log)
	if params.DataHandling != SingleComponent {
		// A push send blocks until the downstream party has connected, so
		// the SOF prime only happens when a downstream party exists.
		c.perf.Log("Client Initialisation ZeroMQ Start")
		if err := c.pool.SendSOF(c.senderEndpoint()); err != nil {
			c.perf.Close()
			return nil, fmt.Errorf("failed to prime %s with SOF: %w", c.senderEndpoint(), err)
		}
		// Give the downstream pull socket a moment to drain the SOF before
		// data follows.
		time.Sleep(100 * time.Millisecond)
		c.perf.Log("Client Initialisation ZeroMQ End")
	}

	return c, nil
}

func (c *Client) loadKeys() error {
	switch c.params.Variant {
	case VariantHHE:
		key, err := keystore.LoadKreyviumKey(c.params.KreyviumKeyPath())
		if err != nil {
			return err
		}
		cipher, err := kreyvium.NewCipher(key)
		if err != nil {
			return fmt.Errorf("failed to build kreyvium cipher: %w", err)
		}
		c.cipher = cipher
		c.log.Info("kreyvium instance created")
	case VariantHE:
		params, err := keystore.LoadParams(c.scheme, c.params.TFHEParamsPath())
		if err != nil {
			return err
		}
		sk, err := keystore.LoadSecretKeySet(c.scheme, params, c.params.TFHESecretKeyPath())
		if err != nil {
			return err
		}
		c.tfheParams = params
		c.tfheSK = sk
		c.log.Info("tfhe encryptor created")
	}
	return nil
}

// senderEndpoint is the bound endpoint for the variant's downstream party.
func (c *Client) senderEndpoint() string {
	if c.params.Variant == VariantHHE {
		return c.params.Endpoints.ClientServerBind
	}
	return c.params.Endpoints.ClientTTPBind
}

// Run drives the client state machine to completion.
func (c *Client) Run() error {
	defer c.perf.Close()
	defer c.pool.Close()

	if c.params.DataHandling == TransmitTFHE || c.params.DataHandling == TransmitKreyvium {
		c.log.Infof("data handling: %s, re-sending latest spool", c.params.DataHandling)
		return c.transmitLatest()
	}

	c.logParameters()
	c.perf.Log("Client initialized")

	for batch := 1; batch <= c.params.BatchCount; batch++ {
		c.perf.Log("Client Batch Start")

		kreyviumBatch := make([][]byte, 0, c.params.BatchSize)
		tfheBatch := make([]tfhe.CtVec, 0, c.params.BatchSize)

		for i := 0; i < c.params.BatchSize; i++ {
			c.perf.Log("Client Integer Start")
			raw := c.produceBlock()

			switch c.params.Variant {
			case VariantHHE:
				ct, err := c.encryptKreyvium(raw)
				if err != nil {
					return err
				}
				kreyviumBatch = append(kreyviumBatch, ct)
			case VariantHE:
				ct, err := c.encryptTFHE(raw)
				if err != nil {
					return err
				}
				tfheBatch = append(tfheBatch, ct)
			}
			c.perf.Log("Client Integer End")
		}

		c.perf.Log("Client Batch End")
		c.perf.Log("Client Batch Transmission Start")
		if err := c.drain(kreyviumBatch, tfheBatch); err != nil {
			return err
		}
		c.perf.Log("Client Batch Transmission End")
	}

	if c.params.DataHandling != SingleComponent {
		if err := c.pool.SendEOF(c.senderEndpoint()); err != nil {
			return fmt.Errorf("failed to send EOF: %w", err)
		}
	}
	return nil
}

// produceBlock draws one random integer block of the configured width.
func (c *Client) produceBlock() []byte {
	block := make([]byte, c.params.IntegerBytes())
	for i := range block {
		block[i] = byte(c.rng.Intn(256))
	}
	return block
}

func (c *Client) encryptKreyvium(raw []byte) ([]byte, error) {
	c.perf.Log("Client Integer Encryption Start : " + byteValues(raw))
	ct, err := c.cipher.Encrypt(raw, len(raw)*8)
	if err != nil {
		return nil, fmt.Errorf("kreyvium encryption failed: %w", err)
	}
	c.perf.Log("Client Integer Encryption End : " + byteValues(raw))
	return ct, nil
}

func (c *Client) encryptTFHE(raw []byte) (tfhe.CtVec, error) {
	c.perf.Log("Client Integer Encryption Start : " + byteValues(raw))
	ct, err := tfhe.EncryptBytes(c.scheme, c.tfheSK, raw, len(raw)*8)
	if err != nil {
		return nil, fmt.Errorf("tfhe encryption failed: %w", err)
	}
	c.perf.Log("Client Integer Encryption End : " + byteValues(raw))
	return ct, nil
}

// drain dispatches a finished batch according to the data handling mode.
func (c *Client) drain(kreyviumBatch [][]byte, tfheBatch []tfhe.CtVec) error {
	switch c.params.DataHandling {
	case SingleComponent:
		if c.params.Variant == VariantHHE {
			appender := spool.NewAppender(c.params.KreyviumSpoolPath(c.prefix))
			for _, ct := range kreyviumBatch {
				if err := appender.Append(ct); err != nil {
					return err
				}
			}
		} else {
			appender := spool.NewTFHEAppender(c.params.TFHESpoolPath(c.prefix), c.scheme, c.tfheParams)
			for _, ct := range tfheBatch {
				if err := appender.Append(ct); err != nil {
					return err
				}
			}
		}
	case AllAtOnce:
		if c.params.Variant == VariantHHE {
			for _, ct := range kreyviumBatch {
				if err := c.pool.Send(c.senderEndpoint(), ct); err != nil {
					return err
				}
			}
		} else {
			for _, ct := range tfheBatch {
				buf, err := tfhe.EncodeCtVec(c.scheme, c.tfheParams, ct)
				if err != nil {
					return err
				}
				if err := c.pool.Send(c.senderEndpoint(), buf); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// transmitLatest re-sends the most recently written spool of the variant and
// terminates the stream with EOF.
func (c *Client) transmitLatest() error {
	var dir string
	if c.params.Variant == VariantHHE {
		dir = c.params.KreyviumDir()
	} else {
		dir = c.params.TFHEDir()
	}

	latest := spool.LatestFile(dir)
	if latest == "" {
		return fmt.Errorf("no stamped spool found in %s", dir)
	}

	c.log.Infof("re-sending %s", latest)
	if err := c.pool.SendSpool(latest, c.senderEndpoint(), false); err != nil {
		return err
	}
	return c.pool.SendEOF(c.senderEndpoint())
}

func (c *Client) logParameters() {
	c.log.Infof("data handling: %s", c.params.DataHandling)
	c.log.Infof("encryption variant: %s", c.params.Variant)
	c.log.Infof("number of batches: %d", c.params.BatchCount)
	c.log.Infof("batch size: %d", c.params.BatchSize)
	c.log.Infof("integer size: %d-bit", c.params.IntegerBits)
}

// byteValues renders a byte vector as space-separated decimal values, the
// format the measurement-log analyzer expects after decryption lines.
func byteValues(vec []byte) string {
	parts := make([]string, len(vec))
	for i, b := range vec {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return strings.Join(parts, " ")
}
