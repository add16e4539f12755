//go:build tfhecgo

package tfhe

/*
#cgo LDFLAGS: -ltfhe-spqlios-fma
#include <stdio.h>
#include <stdlib.h>
#include <tfhe/tfhe.h>
#include <tfhe/tfhe_io.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// NewNativeScheme returns the capability surface backed by the TFHE
// gate-bootstrapping C library.
func NewNativeScheme() (Scheme, error) {
	return nativeScheme{}, nil
}

type nativeScheme struct{}

type nativeParams struct {
	ptr    *C.TFheGateBootstrappingParameterSet
	ctSize int
}

func (*nativeParams) tfheParams() {}

type nativeSecretKeySet struct {
	ptr    *C.TFheGateBootstrappingSecretKeySet
	params *nativeParams
}

func (*nativeSecretKeySet) tfheSecretKeySet() {}

type nativeCloudKeySet struct {
	ptr    *C.TFheGateBootstrappingCloudKeySet
	params *nativeParams
}

func (*nativeCloudKeySet) tfheCloudKeySet() {}

type nativeCiphertext struct {
	ptr    *C.LweSample
	params *nativeParams
}

func (*nativeCiphertext) tfheCiphertext() {}

func (nativeScheme) Name() string { return "tfhe-native" }

func (nativeScheme) GenerateKeys(securityBits int) (Params, SecretKeySet, error) {
	p := C.new_default_gate_bootstrapping_parameters(C.int(securityBits))
	if p == nil {
		return nil, nil, fmt.Errorf("new_default_gate_bootstrapping_parameters(%d) failed", securityBits)
	}
	sk := C.new_random_gate_bootstrapping_secret_keyset(p)
	if sk == nil {
		return nil, nil, fmt.Errorf("new_random_gate_bootstrapping_secret_keyset failed")
	}
	np := &nativeParams{ptr: p}
	return np, &nativeSecretKeySet{ptr: sk, params: np}, nil
}

func (nativeScheme) CloudKey(sk SecretKeySet) CloudKeySet {
	nsk, ok := sk.(*nativeSecretKeySet)
	if !ok {
		return nil
	}
	return &nativeCloudKeySet{ptr: &nsk.ptr.cloud, params: nsk.params}
}

// memWriter runs fn against a memory-backed FILE and returns the bytes it
// wrote.
func memWriter(fn func(*C.FILE)) ([]byte, error) {
	var buf *C.char
	var size C.size_t
	f := C.open_memstream(&buf, &size)
	if f == nil {
		return nil, fmt.Errorf("open_memstream failed")
	}
	fn(f)
	C.fclose(f)
	defer C.free(unsafe.Pointer(buf))
	return C.GoBytes(unsafe.Pointer(buf), C.int(size)), nil
}

// memReader runs fn against a FILE reading from blob.
func memReader(blob []byte, fn func(*C.FILE)) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty blob")
	}
	mode := C.CString("rb")
	defer C.free(unsafe.Pointer(mode))
	f := C.fmemopen(unsafe.Pointer(&blob[0]), C.size_t(len(blob)), mode)
	if f == nil {
		return fmt.Errorf("fmemopen failed")
	}
	fn(f)
	C.fclose(f)
	return nil
}

func (nativeScheme) ExportParams(p Params) ([]byte, error) {
	np, ok := p.(*nativeParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	return memWriter(func(f *C.FILE) {
		C.export_tfheGateBootstrappingParameterSet_toFile(f, np.ptr)
	})
}

func (nativeScheme) ImportParams(blob []byte) (Params, error) {
	var ptr *C.TFheGateBootstrappingParameterSet
	err := memReader(blob, func(f *C.FILE) {
		ptr = C.new_tfheGateBootstrappingParameterSet_fromFile(f)
	})
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, fmt.Errorf("%w: parameter import failed", ErrCodec)
	}
	return &nativeParams{ptr: ptr}, nil
}

func (nativeScheme) ExportSecretKeySet(sk SecretKeySet) ([]byte, error) {
	nsk, ok := sk.(*nativeSecretKeySet)
	if !ok {
		return nil, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	return memWriter(func(f *C.FILE) {
		C.export_tfheGateBootstrappingSecretKeySet_toFile(f, nsk.ptr)
	})
}

func (nativeScheme) ImportSecretKeySet(p Params, blob []byte) (SecretKeySet, error) {
	np, ok := p.(*nativeParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	var ptr *C.TFheGateBootstrappingSecretKeySet
	err := memReader(blob, func(f *C.FILE) {
		ptr = C.new_tfheGateBootstrappingSecretKeySet_fromFile(f)
	})
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, fmt.Errorf("%w: secret key import failed", ErrCodec)
	}
	return &nativeSecretKeySet{ptr: ptr, params: np}, nil
}

// CiphertextSize is measured once per parameter handle by exporting a probe
// sample; the library's export size is fixed by the parameter set.
func (s nativeScheme) CiphertextSize(p Params) int {
	np, ok := p.(*nativeParams)
	if !ok {
		return 0
	}
	if np.ctSize != 0 {
		return np.ctSize
	}
	probe := C.new_gate_bootstrapping_ciphertext(np.ptr)
	defer C.delete_gate_bootstrapping_ciphertext(probe)
	blob, err := memWriter(func(f *C.FILE) {
		C.export_gate_bootstrapping_ciphertext_toFile(f, probe, np.ptr)
	})
	if err != nil {
		return 0
	}
	np.ctSize = len(blob)
	return np.ctSize
}

func (s nativeScheme) ExportCiphertext(p Params, ct Ciphertext) ([]byte, error) {
	np, ok := p.(*nativeParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	nct, ok := ct.(*nativeCiphertext)
	if !ok {
		return nil, fmt.Errorf("%w: foreign ciphertext", ErrCodec)
	}
	return memWriter(func(f *C.FILE) {
		C.export_gate_bootstrapping_ciphertext_toFile(f, nct.ptr, np.ptr)
	})
}

func (s nativeScheme) ImportCiphertext(p Params, blob []byte) (Ciphertext, error) {
	np, ok := p.(*nativeParams)
	if !ok {
		return nil, ErrParamsUnbound
	}
	ct := &nativeCiphertext{ptr: C.new_gate_bootstrapping_ciphertext(np.ptr), params: np}
	err := memReader(blob, func(f *C.FILE) {
		C.import_gate_bootstrapping_ciphertext_fromFile(f, ct.ptr, np.ptr)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return ct, nil
}

func (s nativeScheme) EncryptBit(sk SecretKeySet, bit uint8) (Ciphertext, error) {
	nsk, ok := sk.(*nativeSecretKeySet)
	if !ok {
		return nil, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	ct := &nativeCiphertext{ptr: C.new_gate_bootstrapping_ciphertext(nsk.params.ptr), params: nsk.params}
	C.bootsSymEncrypt(ct.ptr, C.int(bit&1), nsk.ptr)
	return ct, nil
}

func (s nativeScheme) DecryptBit(sk SecretKeySet, ct Ciphertext) (uint8, error) {
	nsk, ok := sk.(*nativeSecretKeySet)
	if !ok {
		return 0, fmt.Errorf("%w: foreign secret key set", ErrCodec)
	}
	nct, ok := ct.(*nativeCiphertext)
	if !ok {
		return 0, fmt.Errorf("%w: foreign ciphertext", ErrCodec)
	}
	return uint8(C.bootsSymDecrypt(nct.ptr, nsk.ptr)) & 1, nil
}

func (s nativeScheme) Evaluator(ck CloudKeySet) Evaluator {
	nck, ok := ck.(*nativeCloudKeySet)
	if !ok {
		return &nativeEvaluator{err: fmt.Errorf("%w: foreign cloud key set", ErrCodec)}
	}
	return &nativeEvaluator{cloud: nck}
}

type nativeEvaluator struct {
	cloud *nativeCloudKeySet
	err   error
}

func (e *nativeEvaluator) operand(ct Ciphertext) *C.LweSample {
	nct, ok := ct.(*nativeCiphertext)
	if !ok {
		if e.err == nil {
			e.err = fmt.Errorf("%w: foreign ciphertext in gate evaluation", ErrCodec)
		}
		return nil
	}
	return nct.ptr
}

func (e *nativeEvaluator) fresh() *nativeCiphertext {
	if e.cloud == nil {
		return nil
	}
	return &nativeCiphertext{
		ptr:    C.new_gate_bootstrapping_ciphertext(e.cloud.params.ptr),
		params: e.cloud.params,
	}
}

func (e *nativeEvaluator) Xor(a, b Ciphertext) Ciphertext {
	out := e.fresh()
	ca, cb := e.operand(a), e.operand(b)
	if e.err != nil {
		return out
	}
	C.bootsXOR(out.ptr, ca, cb, e.cloud.ptr)
	return out
}

func (e *nativeEvaluator) And(a, b Ciphertext) Ciphertext {
	out := e.fresh()
	ca, cb := e.operand(a), e.operand(b)
	if e.err != nil {
		return out
	}
	C.bootsAND(out.ptr, ca, cb, e.cloud.ptr)
	return out
}

func (e *nativeEvaluator) Not(a Ciphertext) Ciphertext {
	out := e.fresh()
	ca := e.operand(a)
	if e.err != nil {
		return out
	}
	C.bootsNOT(out.ptr, ca, e.cloud.ptr)
	return out
}

func (e *nativeEvaluator) Constant(bit uint8) Ciphertext {
	out := e.fresh()
	if out == nil {
		return nil
	}
	C.bootsCONSTANT(out.ptr, C.int(bit&1), e.cloud.ptr)
	return out
}

func (e *nativeEvaluator) Err() error {
	return e.err
}
