// Package tfhe defines the capability surface through which the harness
// drives a TFHE gate-bootstrapping implementation: key generation, bit-level
// encryption and decryption, gate evaluation, and the fixed-size ciphertext
// export format consumed by the codec.
//
// Two implementations exist. NewClearScheme returns a clear-bit reference
// implementation used by tests and by builds without the native library.
// NewNativeScheme binds the TFHE C library and is compiled in only under the
// `tfhecgo` build tag.
package tfhe

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var (
	// ErrParamsUnbound is returned when a codec or scheme operation is
	// invoked without a parameter handle.
	ErrParamsUnbound = errors.New("tfhe parameters not bound")

	// ErrCodec indicates a ciphertext export/import failure or an encoded
	// buffer too short for its declared element count.
	ErrCodec = errors.New("tfhe codec failure")

	// ErrNotBuilt is returned by NewNativeScheme when the binary was built
	// without the native TFHE bindings.
	ErrNotBuilt = errors.New("native tfhe bindings not built (build with -tags tfhecgo)")
)

// Params is an opaque parameter-set handle owned by the scheme that created it.
type Params interface {
	tfheParams()
}

// SecretKeySet is an opaque secret key set. It contains the cloud (evaluation)
// key, obtainable through Scheme.CloudKey.
type SecretKeySet interface {
	tfheSecretKeySet()
}

// CloudKeySet is the evaluation key used for gate bootstrapping. It cannot
// decrypt.
type CloudKeySet interface {
	tfheCloudKeySet()
}

// Ciphertext is an opaque gate-bootstrapping ciphertext encrypting one bit.
type Ciphertext interface {
	tfheCiphertext()
}

// CtVec is an ordered sequence of bit ciphertexts. A vector encrypting an
// integer holds one ciphertext per plaintext bit.
type CtVec []Ciphertext

// Evaluator evaluates boolean gates over ciphertexts under a cloud key.
// Gate methods do not return errors; the first failure sticks and every
// later call returns an undefined ciphertext. Callers check Err once after
// a circuit has been evaluated.
type Evaluator interface {
	Xor(a, b Ciphertext) Ciphertext
	And(a, b Ciphertext) Ciphertext
	Not(a Ciphertext) Ciphertext
	// Constant returns a trivial (noiseless) ciphertext of a public bit.
	Constant(bit uint8) Ciphertext
	// Err reports the first gate failure, or nil.
	Err() error
}

// Scheme is the full capability surface the harness needs from a TFHE
// implementation.
type Scheme interface {
	// Name identifies the implementation in logs.
	Name() string

	// GenerateKeys creates a fresh parameter set at the given security level
	// and a random secret key set bound to it.
	GenerateKeys(securityBits int) (Params, SecretKeySet, error)

	// CloudKey extracts the evaluation key from a secret key set.
	CloudKey(sk SecretKeySet) CloudKeySet

	ExportParams(p Params) ([]byte, error)
	ImportParams(blob []byte) (Params, error)
	ExportSecretKeySet(sk SecretKeySet) ([]byte, error)
	ImportSecretKeySet(p Params, blob []byte) (SecretKeySet, error)

	// CiphertextSize is the fixed export size in bytes of one ciphertext
	// under p.
	CiphertextSize(p Params) int
	ExportCiphertext(p Params, ct Ciphertext) ([]byte, error)
	ImportCiphertext(p Params, blob []byte) (Ciphertext, error)

	EncryptBit(sk SecretKeySet, bit uint8) (Ciphertext, error)
	DecryptBit(sk SecretKeySet, ct Ciphertext) (uint8, error)

	// Evaluator returns a gate evaluator bound to the cloud key.
	Evaluator(ck CloudKeySet) Evaluator
}

// DefaultScheme returns the native scheme when the binary carries the cgo
// bindings, otherwise the clear-bit reference scheme. The fallback is logged
// because clear-scheme timings measure only the data plane, not the
// cryptography.
func DefaultScheme(log *logrus.Logger) Scheme {
	s, err := NewNativeScheme()
	if err == nil {
		return s
	}
	if log != nil {
		log.Warnf("falling back to clear-bit reference scheme: %v", err)
	}
	return NewClearScheme()
}
