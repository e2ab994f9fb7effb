package vs

import (
	"fmt"
	"slices"

	"github.com/gogpu/vs/internal/accel"
	"github.com/gogpu/vs/internal/kernel"
)

// Compile turns script into a Runtime bound to ctx's device.
//
// Each pipeline entry is resolved against registry, its attributes are
// resolved over the declared defaults into parameter buffers, and the node
// is built by the first backend that knows its name: control nodes, then
// the built-in accelerated kernels, then library. Constants are written
// once into the buffers they name; variables are created by type.
//
// Any entry that fails makes Compile return a *CompileError listing every
// failed entry, unless WithSkipUnresolved is given. Compile never leaves
// partially built resources behind on failure.
func Compile(ctx *Context, script *Script, registry Registry, library KernelLibrary, opts ...CompileOption) (*Runtime, error) {
	if ctx == nil || ctx.closed {
		return nil, ErrContextClosed
	}
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &compiler{
		ctx:       ctx,
		registry:  registry,
		library:   library,
		pipelines: make(map[string]*kernel.Pipeline),
	}
	rt := &Runtime{ctx: ctx}
	for i, spec := range script.Pipeline {
		n, bindings, err := c.node(i, spec)
		if err != nil {
			rt.report.Entries = append(rt.report.Entries, EntryError{Index: i, Name: spec.Name, Err: err})
			continue
		}
		rt.nodes = append(rt.nodes, n)
		rt.bindings = append(rt.bindings, bindings...)
	}
	for _, p := range c.pipelines {
		rt.pipelines = append(rt.pipelines, p)
	}

	if !rt.report.OK() {
		if !o.skipUnresolved {
			rt.Destroy()
			return nil, &CompileError{Report: rt.report}
		}
		for _, e := range rt.report.Entries {
			Logger().Warn("vs: skipping pipeline entry", "index", e.Index, "name", e.Name, "err", e.Err)
		}
	}

	for _, b := range rt.bindings {
		ctx.RegisterNamedBuffer(b.key, b.buf)
	}
	if len(script.Constants) > 0 {
		// Oversized constants are logged per buffer and leave the defaults.
		_ = ctx.UpdateNamedBuffers(script.Constants)
	}
	rt.vars = buildVariables(script.Variables)

	Logger().Info("vs: script compiled", "nodes", len(rt.nodes), "variables", len(rt.vars),
		"skipped", len(rt.report.Entries))
	return rt, nil
}

type compiler struct {
	ctx       *Context
	registry  Registry
	library   KernelLibrary
	pipelines map[string]*kernel.Pipeline
}

// node builds pipeline entry i. On error nothing it allocated survives.
func (c *compiler) node(i int, spec NodeSpec) (*Node, []namedBinding, error) {
	info, ok := c.registry[spec.Name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownNode, spec.Name)
	}
	for name := range spec.Attr {
		if !slices.ContainsFunc(info.Attr, func(a AttrInfo) bool { return a.Name == name }) {
			Logger().Warn("vs: ignoring undeclared attribute", "node", spec.Name, "attr", name)
		}
	}

	if op, ok := isControl(spec.Name); ok {
		return &Node{Name: spec.Name, Kind: NodeControl, Control: op}, nil, nil
	}
	if k, ok := accel.Lookup(spec.Name); ok {
		n, err := c.accelerated(i, spec, info, k)
		return n, nil, err
	}
	if src, ok := c.library[spec.Name]; ok {
		return c.filter(i, spec, info, src)
	}
	return nil, nil, fmt.Errorf("%w: no backend provides %q", ErrKernelBuild, spec.Name)
}

// filter builds a library kernel node with one buffer per attribute.
func (c *compiler) filter(i int, spec NodeSpec, info NodeInfo, src string) (*Node, []namedBinding, error) {
	p, err := c.pipeline(spec.Name, src, info.Sources, len(info.Attr))
	if err != nil {
		return nil, nil, err
	}

	n := &Node{Name: spec.Name, Kind: NodeFilter, Sources: info.Sources}
	var bindings []namedBinding
	for _, a := range info.Attr {
		values, key := resolveAttr(spec.Name, a, spec.Attr[a.Name])
		label := fmt.Sprintf("vs_%d_%s_%s", i, spec.Name, a.Name)
		buf, err := newParamBuffer(c.ctx.device, c.ctx.queue, label, len(a.Default), values)
		if err != nil {
			destroyParams(c.ctx, n.params)
			return nil, nil, err
		}
		n.params = append(n.params, buf)
		if key != "" {
			bindings = append(bindings, namedBinding{key: key, buf: buf})
		}
	}
	n.pipeline = p
	return n, bindings, nil
}

// accelerated builds a built-in kernel node. Its buffers hold the packed
// form of the resolved attributes, so variable bindings do not apply.
func (c *compiler) accelerated(i int, spec NodeSpec, info NodeInfo, k *accel.Kernel) (*Node, error) {
	if info.Sources != k.Sources {
		return nil, fmt.Errorf("%w: %q consumes %d sources, registry declares %d",
			ErrKernelBuild, spec.Name, k.Sources, info.Sources)
	}
	resolved := make(map[string][]float32, len(info.Attr))
	for _, a := range info.Attr {
		values, key := resolveAttr(spec.Name, a, spec.Attr[a.Name])
		if key != "" {
			Logger().Warn("vs: variable binding ignored on accelerated node", "node", spec.Name, "attr", a.Name, "key", key)
		}
		resolved[a.Name] = values
	}
	packed := k.Pack(resolved)

	p, err := c.pipeline(spec.Name, k.WGSL, k.Sources, len(packed))
	if err != nil {
		return nil, err
	}
	n := &Node{Name: spec.Name, Kind: NodeAccelerated, Sources: k.Sources, pipeline: p}
	for j, values := range packed {
		label := fmt.Sprintf("vs_%d_%s_%d", i, spec.Name, j)
		buf, err := newParamBuffer(c.ctx.device, c.ctx.queue, label, len(values), values)
		if err != nil {
			destroyParams(c.ctx, n.params)
			return nil, err
		}
		n.params = append(n.params, buf)
	}
	return n, nil
}

// pipeline returns the compiled pipeline for name, building it on first
// use. Entries naming the same kernel share one pipeline.
func (c *compiler) pipeline(name, src string, sources, params int) (*kernel.Pipeline, error) {
	if p, ok := c.pipelines[name]; ok {
		if p.Layout.Sources != sources || p.Layout.Params != params {
			return nil, fmt.Errorf("%w: %q layout differs from an earlier entry", ErrKernelBuild, name)
		}
		return p, nil
	}
	layout := kernel.Layout{Sources: sources, Params: params, Format: c.ctx.opts.format}
	tw, th := c.ctx.TileSize()
	if kernel.FixedWorkgroup(src) && (tw != DefaultTileSize || th != DefaultTileSize) {
		Logger().Warn("vs: kernel does not use the tile size placeholders",
			"node", name, "tile_width", tw, "tile_height", th)
	}
	p, err := kernel.Build(c.ctx.device, name, kernel.Specialize(src, layout.Format, tw, th), "", layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKernelBuild, err)
	}
	c.pipelines[name] = p
	return p, nil
}

func destroyParams(ctx *Context, params []*ParamBuffer) {
	for _, p := range params {
		p.destroy(ctx.device)
	}
}

// resolveAttr applies an override to the attribute default. A literal
// overwrites the start of the default when it is not longer than it; a
// string leaves the default and returns the key to bind.
func resolveAttr(node string, a AttrInfo, override any) (values []float32, key string) {
	values = slices.Clone(a.Default)
	if override == nil {
		return values, ""
	}
	if s, ok := override.(string); ok {
		return values, s
	}
	lit, ok := literal(override)
	if !ok {
		Logger().Warn("vs: ignoring attribute override of unsupported type",
			"node", node, "attr", a.Name, "type", fmt.Sprintf("%T", override))
		return values, ""
	}
	if len(lit) > len(values) {
		Logger().Warn("vs: ignoring attribute override longer than its default",
			"node", node, "attr", a.Name, "len", len(lit), "default_len", len(values))
		return values, ""
	}
	copy(values, lit)
	return values, ""
}

// literal converts a numeric override to a float vector.
func literal(v any) ([]float32, bool) {
	switch x := v.(type) {
	case []float32:
		return x, true
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, true
	case []int:
		out := make([]float32, len(x))
		for i, n := range x {
			out[i] = float32(n)
		}
		return out, true
	case []any:
		out := make([]float32, len(x))
		for i, e := range x {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		if f, ok := toFloat(v); ok {
			return []float32{float32(f)}, true
		}
		return nil, false
	}
}
