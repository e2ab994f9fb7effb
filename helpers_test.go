package vs

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

const (
	testWidth  = 64
	testHeight = 48
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("no noop adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// newTestContext returns a Context on a noop device, closed at cleanup.
func newTestContext(t *testing.T, opts ...ContextOption) (*Context, hal.Device) {
	t.Helper()
	device, queue := createNoopDevice(t)
	ctx, err := NewContext(device, queue, opts...)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, device
}

// captureTexture creates a texture standing in for a camera frame.
func captureTexture(t *testing.T, device hal.Device, w, h uint32) hal.Texture {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "capture",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	return tex
}

// ingest admits one test-sized frame and fails the test if it is dropped.
func ingest(t *testing.T, ctx *Context) {
	t.Helper()
	ok, err := ctx.Ingest(Frame{
		Texture: captureTexture(t, ctx.Device(), testWidth, testHeight),
		Width:   testWidth,
		Height:  testHeight,
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if !ok {
		t.Fatal("Ingest dropped the frame")
	}
}

// finishFrame submits and flushes the frame in flight.
func finishFrame(t *testing.T, ctx *Context) {
	t.Helper()
	if _, err := ctx.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := ctx.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

// readFloats reads n float32 values back from a parameter buffer.
func readFloats(t *testing.T, device hal.Device, b *ParamBuffer, n int) []float32 {
	t.Helper()
	m, err := device.MapBuffer(b.Raw(), 0, b.Size())
	if err != nil {
		t.Fatalf("MapBuffer failed: %v", err)
	}
	defer func() { _ = device.UnmapBuffer(b.Raw()) }()
	raw := unsafe.Slice((*byte)(m.Ptr), b.Size())
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func ids(ts []*Texture) []TextureID {
	out := make([]TextureID, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func skipIfNagaLimitation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

// blurKernel is a minimal single-source kernel with one vec4 parameter.
const blurKernel = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(2) var<uniform> sigma: vec4<f32>;

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    let c = textureLoad(src, p, 0);
    textureStore(dst, p, c * sigma.x);
}
`

// mixKernel consumes two sources.
const mixKernel = `
@group(0) @binding(0) var a: texture_2d<f32>;
@group(0) @binding(1) var b: texture_2d<f32>;
@group(0) @binding(2) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(3) var<uniform> ratio: vec4<f32>;

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    textureStore(dst, p, mix(textureLoad(b, p, 0), textureLoad(a, p, 0), ratio.x));
}
`

func testRegistry() Registry {
	return BuiltinRegistry().Merge(Registry{
		"blur": {Sources: 1, Attr: []AttrInfo{{Name: "sigma", Default: []float32{1.0}}}},
		"mix":  {Sources: 2, Attr: []AttrInfo{{Name: "ratio", Default: []float32{0.5, 0, 0, 0}}}},
	})
}

func testLibrary() KernelLibrary {
	return KernelLibrary{"blur": blurKernel, "mix": mixKernel}
}

// compileOrSkip compiles script and skips the test on naga limitations.
func compileOrSkip(t *testing.T, ctx *Context, s *Script, opts ...CompileOption) *Runtime {
	t.Helper()
	rt, err := Compile(ctx, s, testRegistry(), testLibrary(), opts...)
	if err != nil {
		skipIfNagaLimitation(t, err)
		t.Fatalf("Compile failed: %v", err)
	}
	t.Cleanup(rt.Destroy)
	return rt
}
