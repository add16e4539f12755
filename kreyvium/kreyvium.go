// Package kreyvium implements the Kreyvium stream cipher (Canteaut et al.,
// FSE 2016): Trivium extended to a 128-bit key and IV for use in hybrid
// homomorphic encryption. The keystream engine is written once over a generic
// bit evaluator, so the same circuit drives both the clear cipher used by the
// client and the gate-level transciphering used by the server.
package kreyvium

import (
	"fmt"

	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// KeySize is the Kreyvium key length in bytes (128 bits).
const KeySize = 16

// IVSize is the Kreyvium IV length in bytes (128 bits).
const IVSize = 16

// warmupRounds is the number of initialization clocks whose output is
// discarded (4 x 288).
const warmupRounds = 1152

// Evaluator supplies the boolean operations of the cipher over an opaque bit
// representation: plain bits for the clear cipher, TFHE ciphertexts for the
// transcipher.
type Evaluator[B any] interface {
	Xor(a, b B) B
	And(a, b B) B
	Const(bit uint8) B
}

// engine is the Kreyvium state machine: the 288-bit Trivium-style register
// plus the two 128-bit rotating registers K* and IV*.
type engine[B any] struct {
	ev Evaluator[B]
	s  []B // s[0] is s1 of the paper
	kr []B // K*  (rotating)
	vr []B // IV* (rotating)
}

// newEngine initializes the cipher state from 128 key bits (index 0 = K1)
// and a 16-byte IV, then runs the warm-up rounds.
func newEngine[B any](ev Evaluator[B], keyBits []B, iv []byte) *engine[B] {
	e := &engine[B]{
		ev: ev,
		s:  make([]B, 288),
		kr: make([]B, 128),
		vr: make([]B, 128),
	}

	ivBit := func(i int) B { return ev.Const(tfhe.BitOf(iv, i)) }

	// (s1..s93) <- (K1..K93), (s94..s177) <- (IV1..IV84),
	// (s178..s288) <- (IV85..IV128, 1, ..., 1, 0)
	for i := 0; i < 93; i++ {
		e.s[i] = keyBits[i]
	}
	for i := 0; i < 84; i++ {
		e.s[93+i] = ivBit(i)
	}
	for i := 0; i < 44; i++ {
		e.s[177+i] = ivBit(84 + i)
	}
	for i := 221; i < 287; i++ {
		e.s[i] = ev.Const(1)
	}
	e.s[287] = ev.Const(0)

	// K* and IV* hold the key and IV bits in reverse order.
	for i := 0; i < 128; i++ {
		e.kr[i] = keyBits[127-i]
		e.vr[i] = ivBit(127 - i)
	}

	for i := 0; i < warmupRounds; i++ {
		e.clock()
	}
	return e
}

// clock advances the state by one round and returns the keystream bit.
func (e *engine[B]) clock() B {
	ev := e.ev

	t1 := ev.Xor(e.s[65], e.s[92])
	t2 := ev.Xor(e.s[161], e.s[176])
	t3 := ev.Xor(ev.Xor(e.s[242], e.s[287]), e.kr[127])

	z := ev.Xor(ev.Xor(t1, t2), t3)

	n1 := ev.Xor(ev.Xor(t1, ev.And(e.s[90], e.s[91])), ev.Xor(e.s[170], e.vr[127]))
	n2 := ev.Xor(t2, ev.Xor(ev.And(e.s[174], e.s[175]), e.s[263]))
	n3 := ev.Xor(t3, ev.Xor(ev.And(e.s[285], e.s[286]), e.s[68]))

	t4 := e.kr[127]
	t5 := e.vr[127]

	copy(e.s[178:288], e.s[177:287])
	e.s[177] = n2
	copy(e.s[94:177], e.s[93:176])
	e.s[93] = n1
	copy(e.s[1:93], e.s[0:92])
	e.s[0] = n3

	copy(e.kr[1:], e.kr[:127])
	e.kr[0] = t4
	copy(e.vr[1:], e.vr[:127])
	e.vr[0] = t5

	return z
}

// keystream produces n keystream bits.
func (e *engine[B]) keystream(n int) []B {
	out := make([]B, n)
	for i := range out {
		out[i] = e.clock()
	}
	return out
}

// plainBits evaluates the cipher over clear bits.
type plainBits struct{}

func (plainBits) Xor(a, b uint8) uint8  { return a ^ b }
func (plainBits) And(a, b uint8) uint8  { return a & b }
func (plainBits) Const(bit uint8) uint8 { return bit & 1 }

// Cipher is the clear Kreyvium cipher. Each Encrypt call restarts the
// keystream from the key and instance IV, matching the stateless per-message
// transciphering on the server side.
type Cipher struct {
	key []byte
	iv  [IVSize]byte
}

// NewCipher returns a clear cipher for a 16-byte key with the all-zero IV.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("kreyvium key must be %d bytes, got %d", KeySize, len(key))
	}
	c := &Cipher{key: make([]byte, KeySize)}
	copy(c.key, key)
	return c, nil
}

// SetIV replaces the instance IV.
func (c *Cipher) SetIV(iv [IVSize]byte) {
	c.iv = iv
}

// Encrypt XORs the first `bits` bits of plaintext with the keystream and
// returns the packed ciphertext bytes. Ciphertext length equals
// ceil(bits/8); for whole-byte messages it equals the plaintext length.
func (c *Cipher) Encrypt(plaintext []byte, bits int) ([]byte, error) {
	if bits > len(plaintext)*8 {
		return nil, fmt.Errorf("cannot encrypt %d bits from %d bytes", bits, len(plaintext))
	}

	keyBits := make([]uint8, 128)
	for i := range keyBits {
		keyBits[i] = tfhe.BitOf(c.key, i)
	}
	ks := newEngine[uint8](plainBits{}, keyBits, c.iv[:]).keystream(bits)

	out := make([]uint8, bits)
	for i := 0; i < bits; i++ {
		out[i] = tfhe.BitOf(plaintext, i) ^ ks[i]
	}
	return tfhe.PackBits(out), nil
}

// Decrypt is Encrypt: the cipher is an XOR stream.
func (c *Cipher) Decrypt(ciphertext []byte, bits int) ([]byte, error) {
	return c.Encrypt(ciphertext, bits)
}
