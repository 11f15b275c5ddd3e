// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compute defines the compute dispatch facility used to
// copy and mask deformed vertex streams into local clone buffers,
// along with a CPU reference implementation of it.
package compute

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrBufferUnavailable is returned when a renderer has not yet produced
// a deformed vertex buffer, typically on the very first frame.
// Callers treat it as "skip this frame", never as a fault.
var ErrBufferUnavailable = errors.New("compute: buffer unavailable")

// DefaultThreadsPerGroup is the number of threads in one work group.
const DefaultThreadsPerGroup = 64

// MaxThreadsPerGroup is the largest work group that every WebGPU
// device supports.
const MaxThreadsPerGroup = 256

// Buffer is a reference counted, device resident byte buffer.
// A new buffer starts with one reference.
type Buffer interface {
	// Size returns the size of the buffer in bytes.
	Size() int

	// Retain adds a reference to the buffer.
	Retain()

	// Release drops a reference; the buffer memory is freed
	// when the last reference is dropped.
	Release()
}

// Device is a compute dispatch facility.
type Device interface {
	// NewBuffer allocates a zeroed buffer of the given size in bytes.
	NewBuffer(label string, size int) (Buffer, error)

	// NewBufferInit allocates a buffer initialized with the given data.
	NewBufferInit(label string, data []byte) (Buffer, error)

	// Write writes data into the buffer at the given byte offset.
	Write(buf Buffer, offset int, data []byte) error

	// Read returns a copy of the buffer contents.
	Read(buf Buffer) ([]byte, error)

	// Dispatch runs the vertex masking kernel.
	Dispatch(k *Kernel) error
}

// GroupSizer is implemented by devices whose kernel runs with a fixed
// number of threads per work group.
type GroupSizer interface {
	GroupSize() int
}

// ThreadsPerGroup returns the number of threads per work group to
// dispatch with on dev: the fixed group size of the device if it has
// one, else threads, else [DefaultThreadsPerGroup].
func ThreadsPerGroup(dev Device, threads int) int {
	if gs, ok := dev.(GroupSizer); ok {
		return gs.GroupSize()
	}
	if threads <= 0 {
		return DefaultThreadsPerGroup
	}
	return threads
}

// Sentinel is the position written for hidden vertices.
// It is outside any view frustum and clipped by every rasterizer.
var Sentinel = mgl32.Vec4{math32.Inf(1), math32.Inf(1), math32.Inf(1), math32.Inf(1)}

// Kernel holds the inputs of one masking dispatch.
//
// For every vertex index i < VertexCount, the kernel reads the deformed
// position, normal and tangent of vertex i from Source at i*Layout.Stride(),
// transforms them by Root, and writes them into Target at the same offset.
// If Mask[i] & HiddenMask is non zero, HiddenPos is written instead of the
// position.
type Kernel struct {
	// Source is the deformed vertex stream of the source renderer.
	Source Buffer

	// Target is the vertex buffer of the duplicate.
	Target Buffer

	// Mask holds one uint32 exclusion mask per vertex.
	Mask Buffer

	// Layout is the vertex layout shared by Source and Target.
	Layout VertexLayout

	// VertexCount is the number of vertices to process.
	VertexCount int

	// HiddenMask selects the exclusion groups to hide.
	HiddenMask uint32

	// HiddenPos is the position written for hidden vertices.
	HiddenPos mgl32.Vec4

	// Root maps the deformed stream into the duplicate's local space.
	Root mgl32.Mat4

	// Groups is the number of work groups to dispatch.
	Groups int

	// ThreadsPerGroup is the number of threads per work group.
	ThreadsPerGroup int
}

// Validate checks that the kernel inputs are consistent.
func (k *Kernel) Validate() error {
	switch {
	case k.Source == nil:
		return fmt.Errorf("compute.Kernel: source: %w", ErrBufferUnavailable)
	case k.Target == nil, k.Mask == nil:
		return errors.New("compute.Kernel: target and mask buffers are required")
	case !k.Layout.Position:
		return errors.New("compute.Kernel: layout has no position attribute")
	case k.ThreadsPerGroup <= 0:
		return fmt.Errorf("compute.Kernel: invalid threads per group %d", k.ThreadsPerGroup)
	case k.Groups*k.ThreadsPerGroup < k.VertexCount:
		return fmt.Errorf("compute.Kernel: %d groups of %d threads cannot cover %d vertices", k.Groups, k.ThreadsPerGroup, k.VertexCount)
	}
	need := k.VertexCount * k.Layout.Stride()
	if k.Source.Size() < need || k.Target.Size() < need {
		return fmt.Errorf("compute.Kernel: vertex buffers smaller than %d bytes (source %d, target %d)", need, k.Source.Size(), k.Target.Size())
	}
	if k.Mask.Size() < k.VertexCount*4 {
		return fmt.Errorf("compute.Kernel: mask buffer smaller than %d bytes", k.VertexCount*4)
	}
	return nil
}

// Groups returns the number of work groups of the given number of threads
// needed to cover n elements: ceil(n / threads).
func Groups(n, threads int) int {
	if threads <= 0 {
		threads = DefaultThreadsPerGroup
	}
	if n <= 0 {
		return 0
	}
	return (n + threads - 1) / threads
}
