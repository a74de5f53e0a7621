/*
Copyright 2025 The YARL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package codec encodes state vectors into the byte blobs shipped inside
// sample envelopes. Learners decode with the codec named in the envelope.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/pierrec/lz4/v4"

	errutil "github.com/YARL-project/YARL/pkg/util/error"
)

const (
	// NameNone identifies the pass-through codec.
	NameNone = "none"
	// NameLZ4 identifies the LZ4 block codec.
	NameLZ4 = "lz4"
)

// methodRaw and methodLZ4 are the first byte of every encoded blob. Encoders
// fall back to methodRaw when a payload does not compress.
const (
	methodRaw byte = 0
	methodLZ4 byte = 1
)

// blob layout: method byte, uint32 little-endian raw byte length, payload.
const headerLen = 5

// A Codec converts a state vector to a transportable blob and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the identifier recorded in envelopes so the receiving side
	// can pick the matching decoder.
	Name() string
	Encode(state []float64) ([]byte, error)
	Decode(blob []byte) ([]float64, error)
}

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch name {
	case NameNone, "":
		return Nop{}, nil
	case NameLZ4:
		return LZ4{}, nil
	default:
		return nil, errutil.Error{Code: errutil.BadConfiguration, Msg: "unknown codec " + name}
	}
}

// Nop frames states as raw little-endian float64 bytes without compressing.
type Nop struct{}

func (Nop) Name() string { return NameNone }

func (Nop) Encode(state []float64) ([]byte, error) {
	raw := floatsToBytes(state)
	blob := make([]byte, headerLen+len(raw))
	blob[0] = methodRaw
	binary.LittleEndian.PutUint32(blob[1:headerLen], uint32(len(raw)))
	copy(blob[headerLen:], raw)
	return blob, nil
}

func (Nop) Decode(blob []byte) ([]float64, error) {
	method, raw, err := unframe(blob)
	if err != nil {
		return nil, err
	}
	if method != methodRaw {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: "blob was not encoded by the none codec"}
	}
	return bytesToFloats(raw)
}

// LZ4 compresses states with the LZ4 block format. Incompressible states are
// stored raw so Decode never depends on how well the input compressed.
type LZ4 struct{}

func (LZ4) Name() string { return NameLZ4 }

func (LZ4) Encode(state []float64) ([]byte, error) {
	raw := floatsToBytes(state)
	dst := make([]byte, headerLen+lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, dst[headerLen:], nil)
	if err != nil {
		return nil, errutil.Error{Code: errutil.Internal, Msg: "lz4 compression failed: " + err.Error()}
	}
	if n == 0 || n >= len(raw) {
		// Incompressible input.
		dst = dst[:headerLen+len(raw)]
		dst[0] = methodRaw
		copy(dst[headerLen:], raw)
	} else {
		dst = dst[:headerLen+n]
		dst[0] = methodLZ4
	}
	binary.LittleEndian.PutUint32(dst[1:headerLen], uint32(len(raw)))
	return dst, nil
}

func (LZ4) Decode(blob []byte) ([]float64, error) {
	method, payload, err := unframe(blob)
	if err != nil {
		return nil, err
	}
	if method == methodRaw {
		return bytesToFloats(payload)
	}
	rawLen := int(binary.LittleEndian.Uint32(blob[1:headerLen]))
	raw := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(payload, raw)
	if err != nil {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: "lz4 decompression failed: " + err.Error()}
	}
	if n != rawLen {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: "lz4 blob decompressed to an unexpected length"}
	}
	return bytesToFloats(raw)
}

func unframe(blob []byte) (byte, []byte, error) {
	if len(blob) < headerLen {
		return 0, nil, errutil.Error{Code: errutil.BadRequest, Msg: "blob shorter than codec header"}
	}
	method := blob[0]
	if method != methodRaw && method != methodLZ4 {
		return 0, nil, errutil.Error{Code: errutil.BadRequest, Msg: "unknown codec method byte"}
	}
	if method == methodRaw {
		rawLen := int(binary.LittleEndian.Uint32(blob[1:headerLen]))
		if len(blob)-headerLen != rawLen {
			return 0, nil, errutil.Error{Code: errutil.BadRequest, Msg: "raw blob length does not match header"}
		}
	}
	return method, blob[headerLen:], nil
}

func floatsToBytes(state []float64) []byte {
	raw := make([]byte, 8*len(state))
	for i, v := range state {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return raw
}

func bytesToFloats(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, errutil.Error{Code: errutil.BadRequest, Msg: "state payload length is not a multiple of 8"}
	}
	state := make([]float64, len(raw)/8)
	for i := range state {
		state[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return state, nil
}
