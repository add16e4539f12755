// Package spool implements append-only files of length-prefixed frames and
// their sequential readers. A spool is the on-disk buffer between pipeline
// stages: Kreyvium ciphertexts, serialized TFHE ciphertext vectors, raw queue
// messages and decrypted results all travel through one.
//
// All append and read entry points serialize on the process-global per-path
// lock, so one spool can be shared between producer and consumer threads of
// the same process.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hannahmeinh/hhe-bench/internal/framing"
	"github.com/hannahmeinh/hhe-bench/internal/pathlock"
	"github.com/hannahmeinh/hhe-bench/tfhe"
)

// Appender appends byte frames to a spool file. The file and its parent
// directories are created on first append.
type Appender struct {
	path string
}

// NewAppender returns an appender for the spool at path.
func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Path returns the spool file path.
func (a *Appender) Path() string {
	return a.path
}

// Append writes one frame holding payload. The append is atomic at frame
// granularity with respect to other path-locked writers.
func (a *Appender) Append(payload []byte) error {
	lock := pathlock.Acquire(a.path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open spool for append: %w", err)
	}
	defer f.Close()

	if err := framing.WriteFrame(f, payload); err != nil {
		return fmt.Errorf("failed to append frame to %s: %w", a.path, err)
	}
	return nil
}

// Truncate empties the spool at path under its lock. Used after a drain that
// re-sent the spool's contents.
func Truncate(path string) error {
	lock := pathlock.Acquire(path)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to truncate spool %s: %w", path, err)
	}
	return f.Close()
}

// Reader reads frames from a spool in insertion order. A reader opened on a
// missing file is empty: Next returns io.EOF immediately and never fails.
type Reader struct {
	path string
	f    *os.File
}

// NewReader opens the spool at path for sequential reading.
func NewReader(path string) (*Reader, error) {
	r := &Reader{path: path}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to open spool %s: %w", path, err)
	}
	r.f = f
	return r, nil
}

// Next returns the next frame payload, or io.EOF at the clean end of the
// spool. Corruption surfaces as framing.ErrCorruptedFrame.
func (r *Reader) Next() ([]byte, error) {
	if r.f == nil {
		return nil, io.EOF
	}

	lock := pathlock.Acquire(r.path)
	lock.Lock()
	defer lock.Unlock()

	payload, err := framing.ReadFrame(r.f)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame from %s: %w", r.path, err)
	}
	return payload, nil
}

// Reset restarts iteration from the beginning of the spool.
func (r *Reader) Reset() error {
	if r.f == nil {
		return nil
	}

	lock := pathlock.Acquire(r.path)
	lock.Lock()
	defer lock.Unlock()

	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset spool reader for %s: %w", r.path, err)
	}
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}

// TFHEAppender appends TFHE ciphertext vectors, encoding each through the
// codec before framing.
type TFHEAppender struct {
	appender *Appender
	scheme   tfhe.Scheme
	params   tfhe.Params
}

// NewTFHEAppender returns an appender that serializes ciphertext vectors
// under the given scheme and parameter handle.
func NewTFHEAppender(path string, scheme tfhe.Scheme, params tfhe.Params) *TFHEAppender {
	return &TFHEAppender{appender: NewAppender(path), scheme: scheme, params: params}
}

// Append encodes cts and appends the result as one frame.
func (a *TFHEAppender) Append(cts tfhe.CtVec) error {
	buf, err := tfhe.EncodeCtVec(a.scheme, a.params, cts)
	if err != nil {
		return fmt.Errorf("failed to encode ciphertext vector: %w", err)
	}
	return a.appender.Append(buf)
}

// TFHEReader reads TFHE ciphertext vectors from a spool, deserializing each
// frame through the codec. Deserialization happens at read time; the spool
// itself stores opaque frames.
type TFHEReader struct {
	reader *Reader
	scheme tfhe.Scheme
	params tfhe.Params
}

// NewTFHEReader opens the spool at path for sequential ciphertext-vector
// reading bound to the given parameter handle.
func NewTFHEReader(path string, scheme tfhe.Scheme, params tfhe.Params) (*TFHEReader, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	return &TFHEReader{reader: r, scheme: scheme, params: params}, nil
}

// Next returns the next ciphertext vector, or io.EOF at the clean end.
func (r *TFHEReader) Next() (tfhe.CtVec, error) {
	payload, err := r.reader.Next()
	if err != nil {
		return nil, err
	}
	cts, err := tfhe.DecodeCtVec(r.scheme, r.params, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext vector from %s: %w", r.reader.path, err)
	}
	return cts, nil
}

// Reset restarts iteration from the beginning of the spool.
func (r *TFHEReader) Reset() error {
	return r.reader.Reset()
}

// Close releases the underlying file.
func (r *TFHEReader) Close() error {
	return r.reader.Close()
}
