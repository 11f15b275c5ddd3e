// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wgpucompute implements [compute.Device] on WebGPU.
package wgpucompute

import (
	_ "embed"
	"errors"
	"fmt"

	cerrors "cogentcore.org/core/base/errors"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/localclone/localclone/compute"
)

//go:embed shaders/localclone.wgsl
var shaderSource string

// WorkgroupSize is the fixed workgroup size of the embedded shader.
const WorkgroupSize = 64

// absent marks a missing attribute offset in the shader params.
const absent = 0xffffffff

// params mirrors the Params uniform struct of the shader.
type params struct {
	Root          [16]float32
	HiddenPos     [4]float32
	Stride        uint32
	HiddenMask    uint32
	VertexCount   uint32
	NormalOffset  uint32
	TangentOffset uint32
	pad           [3]uint32
}

// Device is a [compute.Device] that runs the masking kernel on a
// WebGPU device owned by the host renderer.
type Device struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
	params   *wgpu.Buffer
}

// New configures the masking pipeline on the given device.
// The device remains owned by the caller.
func New(device *wgpu.Device) (*Device, error) {
	d := &Device{device: device, queue: device.GetQueue()}
	var err error
	d.module, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "localclone",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderSource},
	})
	if cerrors.Log(err) != nil {
		return nil, err
	}
	d.pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "localclone",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     d.module,
			EntryPoint: "main",
		},
	})
	if cerrors.Log(err) != nil {
		d.Release()
		return nil, err
	}
	d.layout = d.pipeline.GetBindGroupLayout(0)
	d.params, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "localclone_params",
		Size:  uint64(len(wgpu.ToBytes([]params{{}}))),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if cerrors.Log(err) != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

// Release releases the pipeline resources. Buffers created by the
// device are released through their own reference counts.
func (d *Device) Release() {
	if d.params != nil {
		d.params.Release()
		d.params = nil
	}
	if d.layout != nil {
		d.layout.Release()
		d.layout = nil
	}
	if d.pipeline != nil {
		d.pipeline.Release()
		d.pipeline = nil
	}
	if d.module != nil {
		d.module.Release()
		d.module = nil
	}
}

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

func (d *Device) NewBuffer(label string, size int) (compute.Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: storageUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpucompute NewBuffer %s: %w", label, err)
	}
	return Wrap(buf, size), nil
}

func (d *Device) NewBufferInit(label string, data []byte) (compute.Buffer, error) {
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    storageUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpucompute NewBufferInit %s: %w", label, err)
	}
	return Wrap(buf, len(data)), nil
}

func (d *Device) Write(buf compute.Buffer, offset int, data []byte) error {
	b, err := unwrap(buf)
	if err != nil {
		return err
	}
	return d.queue.WriteBuffer(b.buf, uint64(offset), data)
}

// Read copies the buffer into a mappable staging buffer and waits
// for the device to map it.
func (d *Device) Read(buf compute.Buffer) ([]byte, error) {
	b, err := unwrap(buf)
	if err != nil {
		return nil, err
	}
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "localclone_read",
		Size:  uint64(b.size),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()
	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(b.buf, 0, staging, 0, uint64(b.size))
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, err
	}
	d.queue.Submit(cmd)
	cmd.Release()

	var status wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, uint64(b.size), func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, err
	}
	d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("wgpucompute Read: map status %s", status.String())
	}
	out := make([]byte, b.size)
	copy(out, staging.GetMappedRange(0, uint(b.size)))
	staging.Unmap()
	return out, nil
}

var _ compute.GroupSizer = (*Device)(nil)

// GroupSize returns [WorkgroupSize]: kernels on a Device always
// dispatch with the workgroup size of the shader.
func (d *Device) GroupSize() int { return WorkgroupSize }

func (d *Device) Dispatch(k *compute.Kernel) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if k.ThreadsPerGroup != WorkgroupSize {
		return fmt.Errorf("wgpucompute Dispatch: shader workgroup size is %d, not %d", WorkgroupSize, k.ThreadsPerGroup)
	}
	src, err := unwrap(k.Source)
	if err != nil {
		return err
	}
	dst, err := unwrap(k.Target)
	if err != nil {
		return err
	}
	mask, err := unwrap(k.Mask)
	if err != nil {
		return err
	}

	p := params{
		Root:          k.Root,
		HiddenPos:     k.HiddenPos,
		Stride:        uint32(k.Layout.Stride()),
		HiddenMask:    k.HiddenMask,
		VertexCount:   uint32(k.VertexCount),
		NormalOffset:  offset(k.Layout.NormalOffset()),
		TangentOffset: offset(k.Layout.TangentOffset()),
	}
	if err := d.queue.WriteBuffer(d.params, 0, wgpu.ToBytes([]params{p})); err != nil {
		return err
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "localclone",
		Layout: d.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: src.buf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: dst.buf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: mask.buf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: d.params, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}
	defer bg.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer enc.Release()
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(uint32(k.Groups), 1, 1)
	pass.End()
	pass.Release()
	cmd, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(cmd)
	cmd.Release()
	return nil
}

func offset(off int) uint32 {
	if off < 0 {
		return absent
	}
	return uint32(off)
}

// Buffer is a reference counted [wgpu.Buffer].
type Buffer struct {
	buf  *wgpu.Buffer
	size int
	refs int
}

// Wrap wraps a buffer with one reference. Hosts use it to hand their
// deformed vertex buffers to local clones.
func Wrap(buf *wgpu.Buffer, size int) *Buffer {
	return &Buffer{buf: buf, size: size, refs: 1}
}

// WGPU returns the underlying buffer, or nil once released.
func (b *Buffer) WGPU() *wgpu.Buffer { return b.buf }

func (b *Buffer) Size() int { return b.size }

func (b *Buffer) Retain() {
	if b.refs > 0 {
		b.refs++
	}
}

func (b *Buffer) Release() {
	if b.refs <= 0 {
		return
	}
	b.refs--
	if b.refs == 0 {
		b.buf.Release()
		b.buf = nil
	}
}

var errForeign = errors.New("wgpucompute: buffer does not belong to a WebGPU device")

func unwrap(buf compute.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		return nil, errForeign
	}
	if b.buf == nil {
		return nil, fmt.Errorf("wgpucompute: buffer has been released")
	}
	return b, nil
}
