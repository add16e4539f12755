// Package keystore persists the run's key material as files: the Kreyvium
// key and the TFHE parameter set and secret key set as opaque blobs exported
// through the capability surface. Loading blocks on disk I/O; keys are loaded
// once at role start and are read-only afterwards.
package keystore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hannahmeinh/hhe-bench/internal/framing"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// ErrKeyLoad indicates a missing, unreadable or malformed key file.
var ErrKeyLoad = errors.New("key load failure")

// SaveKreyviumKey stores the key as a single length-prefixed frame, the same
// 4-byte big-endian format every spool record uses. This replaces the
// original tooling's native-endian size_t prefix, which depended on the
// building platform.
func SaveKreyviumKey(path string, key []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	var buf bytes.Buffer
	if err := framing.WriteFrame(&buf, key); err != nil {
		return fmt.Errorf("failed to frame kreyvium key: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write kreyvium key file: %w", err)
	}
	return nil
}

// LoadKreyviumKey reads a key file in the framed format. Files written by the
// original tooling carried a native-endian size_t prefix instead; a 64-bit
// little-endian layout whose prefix matches the remaining file size is still
// accepted.
func LoadKreyviumKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	if len(raw) >= 4 && binary.BigEndian.Uint32(raw[:4]) == uint32(len(raw)-4) {
		key, err := framing.ReadFrame(bytes.NewReader(raw))
		if err == nil {
			return key, nil
		}
	}

	if len(raw) >= 8 {
		if size := binary.LittleEndian.Uint64(raw[:8]); size == uint64(len(raw)-8) {
			return raw[8:], nil
		}
	}
	return nil, fmt.Errorf("%w: %s has neither framed nor legacy key layout", ErrKeyLoad, path)
}

// SaveParams exports a parameter set and writes it as an opaque blob.
func SaveParams(s tfhe.Scheme, p tfhe.Params, path string) error {
	blob, err := s.ExportParams(p)
	if err != nil {
		return fmt.Errorf("failed to export tfhe parameters: %w", err)
	}
	return writeBlob(path, blob)
}

// LoadParams reads and imports a parameter set blob.
func LoadParams(s tfhe.Scheme, path string) (tfhe.Params, error) {
	blob, err := readBlob(path)
	if err != nil {
		return nil, err
	}
	p, err := s.ImportParams(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: importing parameters from %s: %v", ErrKeyLoad, path, err)
	}
	return p, nil
}

// SaveSecretKeySet exports a secret key set and writes it as an opaque blob.
func SaveSecretKeySet(s tfhe.Scheme, sk tfhe.SecretKeySet, path string) error {
	blob, err := s.ExportSecretKeySet(sk)
	if err != nil {
		return fmt.Errorf("failed to export tfhe secret key set: %w", err)
	}
	return writeBlob(path, blob)
}

// LoadSecretKeySet reads a secret key set blob and binds it to params.
func LoadSecretKeySet(s tfhe.Scheme, params tfhe.Params, path string) (tfhe.SecretKeySet, error) {
	blob, err := readBlob(path)
	if err != nil {
		return nil, err
	}
	sk, err := s.ImportSecretKeySet(params, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: importing secret key set from %s: %v", ErrKeyLoad, path, err)
	}
	return sk, nil
}

func writeBlob(path string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readBlob(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}
	defer f.Close()

	blob, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrKeyLoad, path, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrKeyLoad, path)
	}
	return blob, nil
}
