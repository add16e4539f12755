package kreyvium

import (
	"errors"
	"fmt"

	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// gateBits adapts a TFHE gate evaluator to the cipher's bit evaluator.
type gateBits struct {
	ev tfhe.Evaluator
}

func (g gateBits) Xor(a, b tfhe.Ciphertext) tfhe.Ciphertext { return g.ev.Xor(a, b) }
func (g gateBits) And(a, b tfhe.Ciphertext) tfhe.Ciphertext { return g.ev.And(a, b) }
func (g gateBits) Const(bit uint8) tfhe.Ciphertext          { return g.ev.Constant(bit) }

// Transcipher converts Kreyvium ciphertexts into TFHE ciphertexts of the same
// plaintext without decrypting: it evaluates the Kreyvium keystream
// homomorphically over the encrypted key bits and XORs it against
// trivial-ciphertext bits of the public Kreyvium ciphertext.
//
// A Transcipher constructed without a Kreyvium key can still decrypt results;
// that is the TTP's configuration.
type Transcipher struct {
	scheme tfhe.Scheme
	key    []byte
	iv     [IVSize]byte

	params tfhe.Params
	sk     tfhe.SecretKeySet
	cloud  tfhe.CloudKeySet

	encKey []tfhe.Ciphertext
}

// NewTranscipher returns a transcipher for the given scheme. key may be nil
// for a decrypt-only instance; otherwise it must be 16 bytes.
func NewTranscipher(scheme tfhe.Scheme, key []byte) (*Transcipher, error) {
	if key != nil && len(key) != KeySize {
		return nil, fmt.Errorf("kreyvium key must be %d bytes, got %d", KeySize, len(key))
	}
	t := &Transcipher{scheme: scheme}
	if key != nil {
		t.key = make([]byte, KeySize)
		copy(t.key, key)
	}
	return t, nil
}

// SetTFHEKeys binds the parameter handle, the secret key set and the cloud
// key. All three are required before EncryptKey and HEDecrypt; DecryptResult
// needs only the secret key set.
func (t *Transcipher) SetTFHEKeys(params tfhe.Params, sk tfhe.SecretKeySet, cloud tfhe.CloudKeySet) {
	t.params = params
	t.sk = sk
	t.cloud = cloud
}

// SetSecretKey binds only the secret key set, for decrypt-only use.
func (t *Transcipher) SetSecretKey(sk tfhe.SecretKeySet) {
	t.sk = sk
}

// SetIV replaces the instance IV used by the homomorphic keystream. It must
// match the client cipher's IV.
func (t *Transcipher) SetIV(iv [IVSize]byte) {
	t.iv = iv
}

// EncryptKey encrypts the 128 Kreyvium key bits under the TFHE secret key.
// The encrypted key is what the keystream circuit runs on; the clear key is
// not consulted again afterwards.
func (t *Transcipher) EncryptKey() error {
	if t.key == nil {
		return errors.New("no kreyvium key bound")
	}
	if t.sk == nil {
		return errors.New("tfhe keys not bound")
	}

	t.encKey = make([]tfhe.Ciphertext, 128)
	for i := range t.encKey {
		ct, err := t.scheme.EncryptBit(t.sk, tfhe.BitOf(t.key, i))
		if err != nil {
			return fmt.Errorf("failed to encrypt key bit %d: %w", i, err)
		}
		t.encKey[i] = ct
	}
	return nil
}

// HEDecrypt transciphers a packed Kreyvium ciphertext of `bits` bits into a
// vector of `bits` TFHE ciphertexts encrypting the plaintext bits.
func (t *Transcipher) HEDecrypt(ciphertext []byte, bits int) (tfhe.CtVec, error) {
	if t.encKey == nil {
		return nil, errors.New("kreyvium key not homomorphically encrypted; call EncryptKey first")
	}
	if t.cloud == nil {
		return nil, errors.New("tfhe cloud key not bound")
	}
	if bits > len(ciphertext)*8 {
		return nil, fmt.Errorf("cannot transcipher %d bits from %d bytes", bits, len(ciphertext))
	}

	ev := t.scheme.Evaluator(t.cloud)
	ks := newEngine[tfhe.Ciphertext](gateBits{ev: ev}, t.encKey, t.iv[:]).keystream(bits)

	out := make(tfhe.CtVec, bits)
	for i := 0; i < bits; i++ {
		out[i] = ev.Xor(ks[i], ev.Constant(tfhe.BitOf(ciphertext, i)))
	}
	if err := ev.Err(); err != nil {
		return nil, fmt.Errorf("gate evaluation failed: %w", err)
	}
	return out, nil
}

// DecryptResult decrypts a TFHE ciphertext vector bit by bit and packs the
// plaintext bytes.
func (t *Transcipher) DecryptResult(cts tfhe.CtVec) ([]byte, error) {
	if t.sk == nil {
		return nil, errors.New("tfhe secret key not bound")
	}
	return tfhe.DecryptBytes(t.scheme, t.sk, cts)
}
