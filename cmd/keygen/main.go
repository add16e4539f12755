// One-shot key generation for the benchmarking harness: creates the Kreyvium
// key and the TFHE parameter set and secret key set under storage_keys/.
// Run it once before starting any role.
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

	if err := hhebench.GenerateKeys(params, tfhe.DefaultScheme(log)); err != nil {
		log.Errorf("key generation failed: %v", err)
		os.Exit(1)
	}
}
