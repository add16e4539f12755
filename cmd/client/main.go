// The client role of the benchmarking harness: produces random integer
// blocks, encrypts them under the configured variant and transmits them
// downstream. Configuration is compiled in, with an optional harness.yaml
// override in the working directory; there are no CLI arguments.
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

	client, err := hhebench.NewClient(params, tfhe.DefaultScheme(log))
	if err != nil {
		log.Errorf("client initialization failed: %v", err)
		os.Exit(1)
	}

	if err := client.Run(); err != nil {
		log.Errorf("client run failed: %v", err)
		os.Exit(1)
	}
}
