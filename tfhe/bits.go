package tfhe

import (
	"fmt"
)

// BitOf returns bit i of data, counting most-significant-bit first within
// each byte. This is the byte-to-bit convention shared by every pipeline
// stage; both encryption paths and the decryptor must agree on it.
func BitOf(data []byte, i int) uint8 {
	return (data[i/8] >> (7 - uint(i)%8)) & 1
}

// PackBits packs bits (one per element, MSB first) into bytes. The trailing
// byte is zero-padded when the count is not a multiple of eight.
func PackBits(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		out[i/8] |= (b & 1) << (7 - uint(i)%8)
	}
	return out
}

// EncryptBytes bit-encrypts the first `bits` bits of data under sk, producing
// one ciphertext per bit. This is the HE-only client path.
func EncryptBytes(s Scheme, sk SecretKeySet, data []byte, bits int) (CtVec, error) {
	if bits > len(data)*8 {
		return nil, fmt.Errorf("cannot encrypt %d bits from %d bytes", bits, len(data))
	}
	cts := make(CtVec, 0, bits)
	for i := 0; i < bits; i++ {
		ct, err := s.EncryptBit(sk, BitOf(data, i))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt bit %d: %w", i, err)
		}
		cts = append(cts, ct)
	}
	return cts, nil
}

// DecryptBytes decrypts a ciphertext vector bit by bit and packs the result
// into bytes. This serves the TTP for both pipelines.
func DecryptBytes(s Scheme, sk SecretKeySet, cts CtVec) ([]byte, error) {
	bits := make([]uint8, len(cts))
	for i, ct := range cts {
		b, err := s.DecryptBit(sk, ct)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt bit %d: %w", i, err)
		}
		bits[i] = b
	}
	return PackBits(bits), nil
}
