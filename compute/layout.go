// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compute

import (
	"encoding/binary"
	"math"
)

// ScalarSize is the size in bytes of one vertex component.
const ScalarSize = 4

// VertexLayout describes which attributes are interleaved in a
// deformed vertex stream, in the fixed order position, normal, tangent.
type VertexLayout struct {
	Position bool
	Normal   bool
	Tangent  bool
}

// Floats returns the number of float components per vertex.
func (l VertexLayout) Floats() int {
	n := 0
	if l.Position {
		n += 3
	}
	if l.Normal {
		n += 3
	}
	if l.Tangent {
		n += 4
	}
	return n
}

// Stride returns the size of one vertex in bytes.
func (l VertexLayout) Stride() int {
	return l.Floats() * ScalarSize
}

// NormalOffset returns the byte offset of the normal within a vertex,
// or -1 if the layout has no normal.
func (l VertexLayout) NormalOffset() int {
	if !l.Normal {
		return -1
	}
	if l.Position {
		return 3 * ScalarSize
	}
	return 0
}

// TangentOffset returns the byte offset of the tangent within a vertex,
// or -1 if the layout has no tangent.
func (l VertexLayout) TangentOffset() int {
	if !l.Tangent {
		return -1
	}
	off := 0
	if l.Position {
		off += 3
	}
	if l.Normal {
		off += 3
	}
	return off * ScalarSize
}

// Float32Bytes encodes the values as little endian bytes.
func Float32Bytes(vals []float32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// BytesFloat32 decodes little endian bytes into float32 values.
func BytesFloat32(b []byte) []float32 {
	vals := make([]float32, len(b)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vals
}

// Uint32Bytes encodes the values as little endian bytes.
func Uint32Bytes(vals []uint32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}
