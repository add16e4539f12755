package tfhe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// clearCiphertextSize is the fixed export size of a clear-scheme ciphertext.
// The first byte carries the bit. EncryptBit fills the remainder with random
// bytes so that spools and wire messages have a realistic shape; gate outputs
// of the evaluator leave it zero.
const clearCiphertextSize = 32

var (
	clearParamsMagic = [4]byte{'C', 'L', 'P', '1'}
	clearSecretMagic = [4]byte{'C', 'L', 'S', '1'}
)

// NewClearScheme returns the clear-bit reference implementation of the
// capability surface. Ciphertexts carry their bit in the clear; it exists to
// exercise the data plane (framing, spools, transport, transciphering
// circuits) without the native TFHE library and offers no confidentiality.
func NewClearScheme() Scheme {
	return clearScheme{}
}

type clearScheme struct{}

type clearParams struct {
	ctSize int
}

func (*clearParams) tfheParams() {}

type clearSecretKeySet struct {
	params *clearParams
	tag    [16]byte
}

func (*clearSecretKeySet) tfheSecretKeySet() {}

type clearCloudKeySet struct {
	params *clearParams
}

func (*clearCloudKeySet) tfheCloudKeySet() {}

type clearCiphertext []byte

func (clearCiphertext) tfheCiphertext() {}

func (clearScheme) Name() string { return "clear" }

func (clearScheme) GenerateKeys(securityBits int) (Params, SecretKeySet, error) {
	if securityBits <= 0 {
		return nil, nil, fmt.Errorf("invalid security level %d", securityBits)
	}
	p := &clearParams{ctSize: clearCiphertextSize}
	sk := &clearSecretKeySet{params: p}
	if _, err := rand.Read(sk.tag[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to draw key tag: %w", err)
	}
	return p, sk, nil
}

func (clearScheme) CloudKey(sk SecretKeySet) CloudKeySet {
	csk, ok := sk.(*clearSecretKeySet)
	if !ok {
		return nil
	}
	return &clearCloudKeySet{params: csk.params}
}

func (clearScheme) ExportParams(p Params) ([]byte, error) {
	cp, ok := p.(*clearParams)
	if !ok {
		return nil, fmt.Errorf("%w: foreign params handle", ErrCodec)
	}
	blob := make([]byte, 8)
	copy(blob, clearParamsMagic[:])
	binary.BigEndian.PutUint32(blob[4:], uint32(cp.ctSize))
	return blob, nil
}

func (clearScheme) ImportParams(blob []byte) (Params, error) {
	if len(blob) != 8 || [4]byte(blob[:4]) != clearParamsMagic {
		return nil, fmt.Errorf("%w: not a clear-scheme parameter blob", ErrCodec)
	}
	size := binary.BigEndian.Uint32(blob[4:])
	if size == 0 || size > 1<<16 {
		return nil, fmt.Errorf("%w: implausible ciphertext size %d", ErrCodec, size)
	}
	return &clearParams{ctSize: int(size)}, nil
}

func (clearScheme) ExportSecretKeySet(sk SecretKeySet) ([]byte, error) {
	csk, ok := sk.(*clearSecretKeySet)
	if !ok {
		return nil, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	blob := make([]byte, 8+len(csk.tag))
	copy(blob, clearSecretMagic[:])
	binary.BigEndian.PutUint32(blob[4:], uint32(csk.params.ctSize))
	copy(blob[8:], csk.tag[:])
	return blob, nil
}

func (clearScheme) ImportSecretKeySet(p Params, blob []byte) (SecretKeySet, error) {
	cp, ok := p.(*clearParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	if len(blob) != 8+16 || [4]byte(blob[:4]) != clearSecretMagic {
		return nil, fmt.Errorf("%w: not a clear-scheme secret key blob", ErrCodec)
	}
	if int(binary.BigEndian.Uint32(blob[4:8])) != cp.ctSize {
		return nil, fmt.Errorf("%w: secret key bound to different parameters", ErrCodec)
	}
	sk := &clearSecretKeySet{params: cp}
	copy(sk.tag[:], blob[8:])
	return sk, nil
}

func (clearScheme) CiphertextSize(p Params) int {
	cp, ok := p.(*clearParams)
	if !ok {
		return 0
	}
	return cp.ctSize
}

func (clearScheme) ExportCiphertext(p Params, ct Ciphertext) ([]byte, error) {
	cp, ok := p.(*clearParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	cct, ok := ct.(clearCiphertext)
	if !ok {
		return nil, fmt.Errorf("%w: foreign ciphertext", ErrCodec)
	}
	if len(cct) != cp.ctSize {
		return nil, fmt.Errorf("%w: ciphertext size %d does not match params %d", ErrCodec, len(cct), cp.ctSize)
	}
	out := make([]byte, len(cct))
	copy(out, cct)
	return out, nil
}

func (clearScheme) ImportCiphertext(p Params, blob []byte) (Ciphertext, error) {
	cp, ok := p.(*clearParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	if len(blob) != cp.ctSize {
		return nil, fmt.Errorf("%w: ciphertext blob has %d bytes, want %d", ErrCodec, len(blob), cp.ctSize)
	}
	ct := make(clearCiphertext, cp.ctSize)
	copy(ct, blob)
	return ct, nil
}

func (clearScheme) EncryptBit(sk SecretKeySet, bit uint8) (Ciphertext, error) {
	csk, ok := sk.(*clearSecretKeySet)
	if !ok {
		return nil, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	ct := make(clearCiphertext, csk.params.ctSize)
	if _, err := rand.Read(ct[1:]); err != nil {
		return nil, fmt.Errorf("failed to draw ciphertext filler: %w", err)
	}
	ct[0] = bit & 1
	return ct, nil
}

func (clearScheme) DecryptBit(sk SecretKeySet, ct Ciphertext) (uint8, error) {
	csk, ok := sk.(*clearSecretKeySet)
	if !ok {
		return 0, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	cct, ok := ct.(clearCiphertext)
	if !ok || len(cct) != csk.params.ctSize {
		return 0, fmt.Errorf("%w: foreign or malformed ciphertext", ErrCodec)
	}
	return cct[0] & 1, nil
}

func (clearScheme) Evaluator(ck CloudKeySet) Evaluator {
	cck, ok := ck.(*clearCloudKeySet)
	if !ok {
		return &clearEvaluator{err: fmt.Errorf("%w: foreign cloud key set", ErrCodec)}
	}
	return &clearEvaluator{params: cck.params}
}

type clearEvaluator struct {
	params *clearParams
	err    error
}

func (e *clearEvaluator) bit(ct Ciphertext) uint8 {
	cct, ok := ct.(clearCiphertext)
	if !ok || len(cct) == 0 {
		if e.err == nil {
			e.err = fmt.Errorf("%w: foreign ciphertext in gate evaluation", ErrCodec)
		}
		return 0
	}
	return cct[0] & 1
}

func (e *clearEvaluator) fresh(bit uint8) Ciphertext {
	size := clearCiphertextSize
	if e.params != nil {
		size = e.params.ctSize
	}
	ct := make(clearCiphertext, size)
	ct[0] = bit & 1
	return ct
}

func (e *clearEvaluator) Xor(a, b Ciphertext) Ciphertext {
	if e.err != nil {
		return e.fresh(0)
	}
	return e.fresh(e.bit(a) ^ e.bit(b))
}

func (e *clearEvaluator) And(a, b Ciphertext) Ciphertext {
	if e.err != nil {
		return e.fresh(0)
	}
	return e.fresh(e.bit(a) & e.bit(b))
}

func (e *clearEvaluator) Not(a Ciphertext) Ciphertext {
	if e.err != nil {
		return e.fresh(0)
	}
	return e.fresh(e.bit(a) ^ 1)
}

func (e *clearEvaluator) Constant(bit uint8) Ciphertext {
	return e.fresh(bit & 1)
}

func (e *clearEvaluator) Err() error {
	return e.err
}
