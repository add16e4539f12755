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

// Server runs the HHE middle stage: it receives Kreyvium ciphertexts from the
// client, transciphers each into a TFHE ciphertext vector without learning
// the plaintext, and forwards the vectors to the TTP.
type Server struct {
	params Parameters
	scheme tfhe.Scheme
	log    *logrus.Logger
	pool   *queue.Pool
	perf   *perf.Logger
	prefix string

	tfheParams  tfhe.Params
	transcipher *kreyvium.Transcipher

	kreyviumSpool string
}

// NewServer loads the TFHE key material and the Kreyvium key, instantiates
// the transcipher and homomorphically encrypts the Kreyvium key inside it.
func NewServer(params Parameters, scheme tfhe.Scheme) (*Server, error) {
	if err := params.checkConfig(); err != nil {
		return nil, err
	}
	if params.Variant != VariantHHE {
		return nil, fmt.Errorf("server role only exists in the HHE pipeline, variant is %s", params.Variant)
	}

	s := &Server{
		params: params,
		scheme: scheme,
		log:    params.logger(),
	}
	s.prefix = params.FilePrefix(params.Stamp())
	s.kreyviumSpool = params.KreyviumSpoolPath(s.prefix)

	var err error
	s.perf, err = perf.New(params.MeasurementRoot(), s.prefix, "server_"+string(params.Variant), s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open performance logs: %w", err)
	}

	s.perf.Log("Server Initialisation Keys_Params Start")
	if err := s.loadKeys(); err != nil {
		s.perf.Close()
		return nil, err
	}
	s.perf.Log("Server Initialisation Keys_Params End")

	s.pool = queue.NewPool(s.log)
	return s, nil
}

func (s *Server) loadKeys() error {
	tfheParams, err := keystore.LoadParams(s.scheme, s.params.TFHEParamsPath())
	if err != nil {
		return err
	}
	sk, err := keystore.LoadSecretKeySet(s.scheme, tfheParams, s.params.TFHESecretKeyPath())
	if err != nil {
		return err
	}
	key, err := keystore.LoadKreyviumKey(s.params.KreyviumKeyPath())
	if err != nil {
		return err
	}

	transcipher, err := kreyvium.NewTranscipher(s.scheme, key)
	if err != nil {
		return fmt.Errorf("failed to build transcipher: %w", err)
	}
	transcipher.SetTFHEKeys(tfheParams, sk, s.scheme.CloudKey(sk))
	if err := transcipher.EncryptKey(); err != nil {
		return fmt.Errorf("failed to homomorphically encrypt kreyvium key: %w", err)
	}

	s.tfheParams = tfheParams
	s.transcipher = transcipher
	return nil
}

// Run drives the server state machine to completion.
func (s *Server) Run() error {
	defer s.perf.Close()
	defer s.pool.Close()

	switch s.params.DataHandling {
	case TransmitKreyvium:
		// Receive-only leg of the split benchmark: persist the client's
		// re-sent Kreyvium spool and stop.
		s.log.Info("data handling: TRANSMIT_KREYVIUM, receiving only")
		return s.receiveClientData()
	case TransmitTFHE:
		s.log.Info("data handling: TRANSMIT_TFHE, re-sending latest TFHE spool")
		return s.transmitLatest()
	}

	s.logParameters()

	if s.params.DataHandling == SingleComponent {
		latest := spool.LatestFile(s.params.KreyviumDir())
		if latest == "" {
			return fmt.Errorf("no stamped kreyvium spool found in %s", s.params.KreyviumDir())
		}
		s.kreyviumSpool = latest
	} else {
		if err := s.receiveClientData(); err != nil {
			return err
		}
	}

	reader, err := spool.NewReader(s.kreyviumSpool)
	if err != nil {
		return err
	}
	defer reader.Close()

	s.perf.Log("Server initialized")

	for batch := 1; batch <= s.params.BatchCount; batch++ {
		s.perf.Log("Server Batch Start")

		batchVecs := make([]tfhe.CtVec, 0, s.params.BatchSize)
		for i := 0; i < s.params.BatchSize; i++ {
			s.perf.Log("Server Integer Start")
			vec, err := s.transcipherNext(reader)
			if err != nil {
				return err
			}
			batchVecs = append(batchVecs, vec)
			s.perf.Log("Server Integer End")
		}

		s.perf.Log("Server Batch End")
		s.perf.Log("Server Batch Transmission Start")
		if err := s.drain(batchVecs); err != nil {
			return err
		}
		s.perf.Log("Server Batch Transmission End")
		s.log.Infof("batch %d of %d %d-bit integer values processed", batch, s.params.BatchSize, s.params.IntegerBits)
	}

	if s.params.DataHandling != SingleComponent {
		if err := s.pool.SendEOF(s.params.Endpoints.ServerTTPBind); err != nil {
			return fmt.Errorf("failed to send EOF: %w", err)
		}
	}
	return nil
}

// receiveClientData pulls the client's Kreyvium ciphertexts into this run's
// spool, bounded by the expected message count and the EOF frame.
func (s *Server) receiveClientData() error {
	received, err := queue.ReceiveAndStore(context.Background(), s.params.Endpoints.ClientServerDial,
		s.kreyviumSpool, s.params.TotalMessages(), true, s.log)
	if err != nil {
		return fmt.Errorf("failed to receive client data: %w", err)
	}
	s.log.Infof("received %d messages into %s", received, s.kreyviumSpool)
	return nil
}

// transcipherNext reads the next Kreyvium frame and converts it into a TFHE
// ciphertext vector.
func (s *Server) transcipherNext(reader *spool.Reader) (tfhe.CtVec, error) {
	ct, err := reader.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("kreyvium spool %s ended before the configured batch volume", s.kreyviumSpool)
		}
		return nil, err
	}

	s.perf.Log("Server Integer Transciphering Start")
	vec, err := s.transcipher.HEDecrypt(ct, len(ct)*8)
	if err != nil {
		return nil, fmt.Errorf("transciphering failed: %w", err)
	}
	s.perf.Log("Server Integer Transciphering End")
	return vec, nil
}

// drain dispatches a finished batch according to the data handling mode.
func (s *Server) drain(batch []tfhe.CtVec) error {
	switch s.params.DataHandling {
	case SingleComponent:
		appender := spool.NewTFHEAppender(s.params.TFHESpoolPath(s.prefix), s.scheme, s.tfheParams)
		for _, vec := range batch {
			if err := appender.Append(vec); err != nil {
				return err
			}
		}
		s.log.Infof("stored TFHE encrypted data in %s", s.params.TFHESpoolPath(s.prefix))
	case AllAtOnce:
		for _, vec := range batch {
			buf, err := tfhe.EncodeCtVec(s.scheme, s.tfheParams, vec)
			if err != nil {
				return err
			}
			if err := s.pool.Send(s.params.Endpoints.ServerTTPBind, buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// transmitLatest re-sends the most recent TFHE spool to the TTP, followed by
// EOF.
func (s *Server) transmitLatest() error {
	latest := spool.LatestFile(s.params.TFHEDir())
	if latest == "" {
		return fmt.Errorf("no stamped TFHE spool found in %s", s.params.TFHEDir())
	}

	s.log.Infof("re-sending %s", latest)
	if err := s.pool.SendSpool(latest, s.params.Endpoints.ServerTTPBind, false); err != nil {
		return err
	}
	return s.pool.SendEOF(s.params.Endpoints.ServerTTPBind)
}

func (s *Server) logParameters() {
	s.log.Infof("data handling: %s", s.params.DataHandling)
	s.log.Infof("encryption variant: %s", s.params.Variant)
	s.log.Infof("number of batches: %d", s.params.BatchCount)
	s.log.Infof("batch size: %d", s.params.BatchSize)
	s.log.Infof("integer size: %d-bit", s.params.IntegerBits)
}
