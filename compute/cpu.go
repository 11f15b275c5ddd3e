// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compute

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CPU is a [Device] that runs the masking kernel on the CPU, one work
// group after another. It is the reference implementation of the kernel
// and is used where no GPU is available.
type CPU struct {
	// Dispatches is the number of successful dispatches.
	Dispatches int

	live       int
	overfreed  int
	allocTotal int
}

// NewCPU returns a new CPU device.
func NewCPU() *CPU {
	return &CPU{}
}

// Live returns the number of buffers that still hold references.
func (d *CPU) Live() int { return d.live }

// Allocated returns the total number of buffers ever allocated.
func (d *CPU) Allocated() int { return d.allocTotal }

// OverReleased returns the number of Release calls made on buffers
// that had already been freed.
func (d *CPU) OverReleased() int { return d.overfreed }

// CPUBuffer is a [Buffer] backed by host memory.
type CPUBuffer struct {
	Label string

	data []byte
	refs int
	dev  *CPU
}

func (b *CPUBuffer) Size() int { return len(b.data) }

func (b *CPUBuffer) Retain() {
	if b.refs <= 0 {
		slog.Error("compute.CPUBuffer: retain of freed buffer", "label", b.Label)
		return
	}
	b.refs++
}

func (b *CPUBuffer) Release() {
	if b.refs <= 0 {
		b.dev.overfreed++
		slog.Error("compute.CPUBuffer: release of freed buffer", "label", b.Label)
		return
	}
	b.refs--
	if b.refs == 0 {
		b.data = nil
		b.dev.live--
	}
}

// Freed returns whether the last reference has been released.
func (b *CPUBuffer) Freed() bool { return b.refs <= 0 }

// Refs returns the current reference count.
func (b *CPUBuffer) Refs() int { return b.refs }

func (d *CPU) NewBuffer(label string, size int) (Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("compute.CPU NewBuffer %s: negative size %d", label, size)
	}
	d.live++
	d.allocTotal++
	return &CPUBuffer{Label: label, data: make([]byte, size), refs: 1, dev: d}, nil
}

func (d *CPU) NewBufferInit(label string, data []byte) (Buffer, error) {
	buf, err := d.NewBuffer(label, len(data))
	if err != nil {
		return nil, err
	}
	copy(buf.(*CPUBuffer).data, data)
	return buf, nil
}

func (d *CPU) buffer(buf Buffer) (*CPUBuffer, error) {
	cb, ok := buf.(*CPUBuffer)
	if !ok || cb == nil {
		return nil, fmt.Errorf("compute.CPU: buffer %T does not belong to a CPU device", buf)
	}
	if cb.dev != d {
		return nil, fmt.Errorf("compute.CPU: buffer %s belongs to another device", cb.Label)
	}
	if cb.Freed() {
		return nil, fmt.Errorf("compute.CPU: buffer %s has been released", cb.Label)
	}
	return cb, nil
}

func (d *CPU) Write(buf Buffer, offset int, data []byte) error {
	cb, err := d.buffer(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(cb.data) {
		return fmt.Errorf("compute.CPU Write %s: range [%d, %d) out of bounds %d", cb.Label, offset, offset+len(data), len(cb.data))
	}
	copy(cb.data[offset:], data)
	return nil
}

func (d *CPU) Read(buf Buffer) ([]byte, error) {
	cb, err := d.buffer(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(cb.data))
	copy(out, cb.data)
	return out, nil
}

func (d *CPU) Dispatch(k *Kernel) error {
	if err := k.Validate(); err != nil {
		return err
	}
	src, err := d.buffer(k.Source)
	if err != nil {
		return err
	}
	dst, err := d.buffer(k.Target)
	if err != nil {
		return err
	}
	mask, err := d.buffer(k.Mask)
	if err != nil {
		return err
	}
	for g := 0; g < k.Groups; g++ {
		for t := 0; t < k.ThreadsPerGroup; t++ {
			i := g*k.ThreadsPerGroup + t
			if i >= k.VertexCount {
				break
			}
			runVertex(k, i, src.data, dst.data, mask.data)
		}
	}
	d.Dispatches++
	return nil
}

// runVertex is one kernel invocation.
func runVertex(k *Kernel, i int, src, dst, mask []byte) {
	base := i * k.Layout.Stride()
	pos := mgl32.TransformCoordinate(load3(src, base), k.Root)
	if binary.LittleEndian.Uint32(mask[i*4:])&k.HiddenMask != 0 {
		pos = k.HiddenPos.Vec3()
	}
	store3(dst, base, pos)
	if off := k.Layout.NormalOffset(); off >= 0 {
		store3(dst, base+off, mgl32.TransformNormal(load3(src, base+off), k.Root))
	}
	if off := k.Layout.TangentOffset(); off >= 0 {
		store3(dst, base+off, mgl32.TransformNormal(load3(src, base+off), k.Root))
		copy(dst[base+off+12:base+off+16], src[base+off+12:base+off+16])
	}
}

func load3(b []byte, off int) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b[off:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[off+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[off+8:])),
	}
}

func store3(b []byte, off int, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(b[off+4:], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(b[off+8:], math.Float32bits(v[2]))
}
