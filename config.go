// Package hhebench is a three-party benchmarking harness measuring the cost
// of two privacy-preserving encryption pipelines: direct TFHE encryption at
// the client (HE) and Kreyvium encryption at the client with server-side
// transciphering into TFHE (HHE). The package holds the run parameters and
// the Client, Server and TTP role state machines; cmd/ wraps each role in a
// standalone binary.
package hhebench

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Variant selects the encryption pipeline of a run.
type Variant string

const (
	// VariantHHE runs Kreyvium at the client and transciphering at the server.
	VariantHHE Variant = "HHE"
	// VariantHE runs direct TFHE encryption at the client.
	VariantHE Variant = "HE"
)

// DataHandling selects how ciphertexts travel between the roles.
type DataHandling string

const (
	// AllAtOnce streams every ciphertext over the queue as it is produced.
	AllAtOnce DataHandling = "ALL_AT_ONCE"
	// SingleComponent keeps each role offline: ciphertexts go to spool files
	// and the next role picks up the latest file.
	SingleComponent DataHandling = "SINGLE_COMPONENT"
	// TransmitTFHE re-sends the most recent TFHE spool over the queue.
	TransmitTFHE DataHandling = "TRANSMIT_TFHE"
	// TransmitKreyvium re-sends the most recent Kreyvium spool over the queue.
	TransmitKreyvium DataHandling = "TRANSMIT_KREYVIUM"
)

// Endpoints holds the queue endpoints of the fixed three-role topology. The
// sender of each link binds; the receiver dials.
type Endpoints struct {
	ClientServerBind string `yaml:"client_server_bind"`
	ClientServerDial string `yaml:"client_server_dial"`
	ClientTTPBind    string `yaml:"client_ttp_bind"`
	ClientTTPDial    string `yaml:"client_ttp_dial"`
	ServerTTPBind    string `yaml:"server_ttp_bind"`
	ServerTTPDial    string `yaml:"server_ttp_dial"`
}

// Parameters is the process-wide immutable configuration of a run. All three
// roles of a run must agree on it.
type Parameters struct {
	Variant      Variant      `yaml:"variant"`
	IntegerBits  int          `yaml:"integer_bits"`
	BatchSize    int          `yaml:"batch_size"`
	BatchCount   int          `yaml:"batch_count"`
	DataHandling DataHandling `yaml:"data_handling"`

	// StorageRoot is the directory every data, key and measurement path is
	// resolved against.
	StorageRoot string    `yaml:"storage_root"`
	Endpoints   Endpoints `yaml:"endpoints"`

	Logger *logrus.Logger `yaml:"-"`
}

// DefaultParameters returns the compiled-in configuration.
func DefaultParameters() Parameters {
	return Parameters{
		Variant:      VariantHHE,
		IntegerBits:  8,
		BatchSize:    4,
		BatchCount:   25,
		DataHandling: AllAtOnce,
		StorageRoot:  ".",
		Endpoints: Endpoints{
			ClientServerBind: "tcp://*:5556",
			ClientServerDial: "tcp://localhost:5556",
			ClientTTPBind:    "tcp://*:5557",
			ClientTTPDial:    "tcp://localhost:5557",
			ServerTTPBind:    "tcp://*:5557",
			ServerTTPDial:    "tcp://localhost:5557",
		},
	}
}

// LoadParameters overlays an optional YAML file over the defaults. A missing
// file is not an error; the defaults then stand as compiled in.
func LoadParameters(path string) (Parameters, error) {
	params := DefaultParameters()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return params, nil
		}
		return Parameters{}, fmt.Errorf("failed to read parameter file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &params); err != nil {
		return Parameters{}, fmt.Errorf("failed to parse parameter file %s: %w", path, err)
	}
	if err := params.checkConfig(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}

// checkConfig validates the parameter set.
func (p Parameters) checkConfig() error {
	switch p.Variant {
	case VariantHHE, VariantHE:
	default:
		return fmt.Errorf("invalid encryption variant %q", p.Variant)
	}

	switch p.IntegerBits {
	case 8, 16, 32, 64, 128:
	default:
		return fmt.Errorf("invalid integer size %d (want 8, 16, 32, 64 or 128)", p.IntegerBits)
	}

	if p.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", p.BatchSize)
	}
	if p.BatchCount < 1 {
		return fmt.Errorf("batch count must be at least 1, got %d", p.BatchCount)
	}

	switch p.DataHandling {
	case AllAtOnce, SingleComponent, TransmitTFHE, TransmitKreyvium:
	default:
		return fmt.Errorf("invalid data handling mode %q", p.DataHandling)
	}

	if p.StorageRoot == "" {
		return fmt.Errorf("storage root must not be empty")
	}
	return nil
}

// IntegerBytes is the byte width of one integer block.
func (p Parameters) IntegerBytes() int {
	return p.IntegerBits / 8
}

// TotalMessages is the number of ciphertext messages a full run produces.
func (p Parameters) TotalMessages() int {
	return p.BatchSize * p.BatchCount
}

// Stamp returns the local-time file stamp (YYYYMMDD_HHMMSS) for a run
// starting now.
func (p Parameters) Stamp() string {
	return time.Now().Format("20060102_150405")
}

// FilePrefix is the stamped filename prefix embedding the run parameters.
func (p Parameters) FilePrefix(stamp string) string {
	return fmt.Sprintf("%s_%s_BatchNr:%d_BatchSize:%d_IntSize:%d_",
		stamp, p.Variant, p.BatchCount, p.BatchSize, p.IntegerBits)
}

// Directory layout under StorageRoot.

// KreyviumDir holds the client's Kreyvium ciphertext spools.
func (p Parameters) KreyviumDir() string {
	return filepath.Join(p.StorageRoot, "data_kreyvium")
}

// TFHEDir holds the TFHE spools written by the client (HE) or server (HHE).
func (p Parameters) TFHEDir() string {
	return filepath.Join(p.StorageRoot, "data_tfhe")
}

// EncryptedTFHEDir holds the TTP-side spools of received TFHE frames.
func (p Parameters) EncryptedTFHEDir() string {
	return filepath.Join(p.StorageRoot, "data_encrypted_tfhe")
}

// DecryptedDir holds the TTP's decrypted output spools.
func (p Parameters) DecryptedDir() string {
	return filepath.Join(p.StorageRoot, "data_decrypted")
}

// KeyDir holds the persisted key material.
func (p Parameters) KeyDir() string {
	return filepath.Join(p.StorageRoot, "storage_keys")
}

// MeasurementRoot holds the time and memory logs and the results catalog.
func (p Parameters) MeasurementRoot() string {
	return filepath.Join(p.StorageRoot, "Performance_Measurement")
}

// CatalogDir is the embedded results catalog location.
func (p Parameters) CatalogDir() string {
	return filepath.Join(p.MeasurementRoot(), "catalog")
}

// KreyviumKeyPath is the Kreyvium key file.
func (p Parameters) KreyviumKeyPath() string {
	return filepath.Join(p.KeyDir(), "key_kreyvium.bin")
}

// TFHEParamsPath is the exported TFHE parameter set.
func (p Parameters) TFHEParamsPath() string {
	return filepath.Join(p.KeyDir(), "params_tfhe.bin")
}

// TFHESecretKeyPath is the exported TFHE secret key set.
func (p Parameters) TFHESecretKeyPath() string {
	return filepath.Join(p.KeyDir(), "sk_tfhe.bin")
}

// KreyviumSpoolPath is the stamped Kreyvium spool for this run.
func (p Parameters) KreyviumSpoolPath(prefix string) string {
	return filepath.Join(p.KreyviumDir(), prefix+"data_kreyvium.bin")
}

// TFHESpoolPath is the stamped producer-side TFHE spool for this run.
func (p Parameters) TFHESpoolPath(prefix string) string {
	return filepath.Join(p.TFHEDir(), prefix+"data_tfhe.bin")
}

// EncryptedTFHESpoolPath is the stamped TTP-side TFHE spool for this run.
func (p Parameters) EncryptedTFHESpoolPath(prefix string) string {
	return filepath.Join(p.EncryptedTFHEDir(), prefix+"data_tfhe.bin")
}

// DecryptedSpoolPath is the stamped decrypted-output spool for this run.
func (p Parameters) DecryptedSpoolPath(prefix string) string {
	return filepath.Join(p.DecryptedDir(), prefix+"data_decrypted.bin")
}

// logger returns the configured logger or a default one.
func (p Parameters) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.New()
}
