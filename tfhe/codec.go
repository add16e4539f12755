package tfhe

import (
	"encoding/binary"
	"fmt"
)

// EncodeCtVec serializes a ciphertext vector to a single buffer:
// a 4-byte big-endian element count followed by the fixed-size export of each
// ciphertext in order.
func EncodeCtVec(s Scheme, p Params, cts CtVec) ([]byte, error) {
	if p == nil {
		return nil, ErrParamsUnbound
	}

	size := s.CiphertextSize(p)
	buf := make([]byte, 4, 4+size*len(cts))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(cts)))

	for i, ct := range cts {
		blob, err := s.ExportCiphertext(p, ct)
		if err != nil {
			return nil, fmt.Errorf("%w: exporting ciphertext %d: %v", ErrCodec, i, err)
		}
		if len(blob) != size {
			return nil, fmt.Errorf("%w: ciphertext %d exported %d bytes, want %d", ErrCodec, i, len(blob), size)
		}
		buf = append(buf, blob...)
	}
	return buf, nil
}

// DecodeCtVec parses a buffer produced by EncodeCtVec, importing every
// ciphertext and binding it to p.
func DecodeCtVec(s Scheme, p Params, buf []byte) (CtVec, error) {
	if p == nil {
		return nil, ErrParamsUnbound
	}
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: buffer too short for element count", ErrCodec)
	}

	n := binary.BigEndian.Uint32(buf[:4])
	size := s.CiphertextSize(p)
	if uint64(len(buf)-4) < uint64(n)*uint64(size) {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, need %d for %d ciphertexts", ErrCodec, len(buf)-4, uint64(n)*uint64(size), n)
	}

	cts := make(CtVec, 0, n)
	off := 4
	for i := uint32(0); i < n; i++ {
		ct, err := s.ImportCiphertext(p, buf[off:off+size])
		if err != nil {
			return nil, fmt.Errorf("%w: importing ciphertext %d: %v", ErrCodec, i, err)
		}
		cts = append(cts, ct)
		off += size
	}
	return cts, nil
}
