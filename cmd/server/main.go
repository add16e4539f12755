// The server role of the benchmarking harness: transciphers the client's
// Kreyvium ciphertexts into TFHE ciphertext vectors and forwards them to the
// TTP. Only the HHE pipeline has this role.
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

	server, err := hhebench.NewServer(params, tfhe.DefaultScheme(log))
	if err != nil {
		log.Errorf("server initialization failed: %v", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Errorf("server run failed: %v", err)
		os.Exit(1)
	}
}
