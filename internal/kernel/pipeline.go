// Package kernel builds and dispatches the compute pipelines behind
// filter nodes.
//
// Every kernel follows one binding convention inside bind group 0:
//
//	@binding(0 .. n-1)   texture_2d<f32>              inputs, in pop order
//	@binding(n)          texture_storage_2d<fmt, write> destination
//	@binding(n+1+i)      var<uniform>                 parameter buffer i
//
// where n is the number of stack sources the kernel consumes.
package kernel

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultEntryPoint is the compute entry point used when none is given.
const DefaultEntryPoint = "main"

// Pipeline errors.
var (
	// ErrNilDevice is returned when building without a device.
	ErrNilDevice = errors.New("kernel: device is nil")

	// ErrBindingMismatch is returned when a bind call does not match the layout.
	ErrBindingMismatch = errors.New("kernel: binding count does not match layout")
)

// Layout describes the resources a kernel binds.
type Layout struct {
	// Sources is the number of input textures.
	Sources int

	// Params is the number of uniform parameter buffers.
	Params int

	// Format is the storage format of the destination texture.
	Format gputypes.TextureFormat
}

// Buffer is a uniform parameter buffer bound to a kernel.
type Buffer struct {
	Buffer hal.Buffer
	Size   uint64
}

// Pipeline is a compiled compute kernel and its layouts.
//
// A Pipeline is immutable after Build and may be dispatched any number of
// times. It is not safe for concurrent use with Destroy.
type Pipeline struct {
	Label  string
	Layout Layout

	device     hal.Device
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// Build compiles wgsl to SPIR-V with naga and creates the compute pipeline
// for it. Malformed kernels fail here instead of at dispatch time.
func Build(device hal.Device, label, wgsl, entryPoint string, layout Layout) (*Pipeline, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	spirv, err := CompileSPIRV(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	slogger().Debug("kernel compiled", "label", label, "spirv_words", len(spirv))

	p := &Pipeline{Label: label, Layout: layout, device: device}
	if err := p.create(spirv, entryPoint); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return p, nil
}

func (p *Pipeline) create(spirv []uint32, entryPoint string) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	p.shader = shader

	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.Label + "_bind_layout",
		Entries: layoutEntries(p.Layout),
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   p.Label + "_pipeline",
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: entryPoint},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

func layoutEntries(l Layout) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, l.Sources+1+l.Params)
	for i := 0; i < l.Sources; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // source counts are tiny
			Visibility: gputypes.ShaderStageCompute,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(l.Sources), //nolint:gosec // source counts are tiny
		Visibility: gputypes.ShaderStageCompute,
		StorageTexture: &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessWriteOnly,
			Format:        l.Format,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	})
	for i := 0; i < l.Params; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(l.Sources + 1 + i), //nolint:gosec // binding counts are tiny
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	return entries
}

// BindGroup creates a bind group for one dispatch. The caller owns the
// returned group and must destroy it once the GPU is done with it.
func (p *Pipeline) BindGroup(inputs []hal.TextureView, dst hal.TextureView, params []Buffer) (hal.BindGroup, error) {
	if len(inputs) != p.Layout.Sources || len(params) != p.Layout.Params {
		return nil, fmt.Errorf("%w: %s wants %d sources and %d params, got %d and %d",
			ErrBindingMismatch, p.Label, p.Layout.Sources, p.Layout.Params, len(inputs), len(params))
	}
	entries := make([]gputypes.BindGroupEntry, 0, len(inputs)+1+len(params))
	for i, view := range inputs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // source counts are tiny
			Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  uint32(len(inputs)), //nolint:gosec // source counts are tiny
		Resource: gputypes.TextureViewBinding{TextureView: dst.NativeHandle()},
	})
	for i, b := range params {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(len(inputs) + 1 + i), //nolint:gosec // binding counts are tiny
			Resource: gputypes.BufferBinding{Buffer: b.Buffer.NativeHandle(), Offset: 0, Size: b.Size},
		})
	}
	group, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.Label + "_bind",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	return group, nil
}

// Encode records one compute pass dispatching groupsX × groupsY workgroups.
func (p *Pipeline) Encode(enc hal.CommandEncoder, group hal.BindGroup, groupsX, groupsY uint32) {
	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: p.Label})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Dispatch(groupsX, groupsY, 1)
	pass.End()
}

// Destroy releases the pipeline, its layouts and the shader module.
// Safe to call on a partially built pipeline and more than once.
func (p *Pipeline) Destroy() {
	if p == nil || p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
