package hhebench

import (
	"crypto/rand"
	"fmt"

	"github.com/hannahmeinh/hhe-bench/internal/keystore"
	"github.com/hannahmeinh/hhe-bench/kreyvium"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// tfheSecurityBits is the security level requested from the TFHE key
// generator.
const tfheSecurityBits = 128

// GenerateKeys creates a fresh Kreyvium key and TFHE key set and persists
// all three key files under the storage root. Existing files are replaced;
// every role of a run must load the same generation.
func GenerateKeys(params Parameters, scheme tfhe.Scheme) error {
	log := params.logger()

	key := make([]byte, kreyvium.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to draw kreyvium key: %w", err)
	}

	tfheParams, sk, err := scheme.GenerateKeys(tfheSecurityBits)
	if err != nil {
		return fmt.Errorf("tfhe key generation failed: %w", err)
	}

	if err := keystore.SaveKreyviumKey(params.KreyviumKeyPath(), key); err != nil {
		return err
	}
	if err := keystore.SaveParams(scheme, tfheParams, params.TFHEParamsPath()); err != nil {
		return err
	}
	if err := keystore.SaveSecretKeySet(scheme, sk, params.TFHESecretKeyPath()); err != nil {
		return err
	}

	log.Infof("key generation completed, keys stored under %s", params.KeyDir())
	return nil
}
