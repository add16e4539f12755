// The trusted-third-party role of the benchmarking harness: receives TFHE
// ciphertext vectors, decrypts each under the secret key and persists the
// plaintext bytes.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	hhebench "github.com/hannahmeinh/hhe-bench"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

func main() {
	log := logrus.New()

	params, err := hhebench.LoadParameters("harness.yaml")
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	params.Logger = log

	ttp, err := hhebench.NewTTP(params, tfhe.DefaultScheme(log))
	if err != nil {
		log.Errorf("ttp initialization failed: %v", err)
		os.Exit(1)
	}

	if err := ttp.Run(); err != nil {
		log.Errorf("ttp run failed: %v", err)
		os.Exit(1)
	}
}
