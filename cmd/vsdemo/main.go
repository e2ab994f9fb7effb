// Command vsdemo runs an effect script over a synthetic camera feed.
//
// A capture goroutine renders frames at a fixed rate and a display
// goroutine holds each output for a while before releasing it. With the
// default retain limit of 2, a slow display makes the context drop frames,
// which shows up in the final statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/vs"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// pulseKernel scales RGB by the gain attribute.
const pulseKernel = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(2) var<uniform> gain: vec4<f32>;

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = textureDimensions(dst);
    if (id.x >= size.x || id.y >= size.y) {
        return;
    }
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    let c = textureLoad(src, p, 0);
    textureStore(dst, p, vec4<f32>(c.rgb * gain.x, c.a));
}
`

func main() {
	var (
		backend = flag.String("backend", "noop", "HAL backend: noop or vulkan")
		cfgPath = flag.String("config", "", "optional vs.toml session config")
		width   = flag.Int("width", 640, "frame width")
		height  = flag.Int("height", 360, "frame height")
		frames  = flag.Int("frames", 120, "number of frames to capture")
		fps     = flag.Int("fps", 60, "capture rate")
		hold    = flag.Duration("hold", 50*time.Millisecond, "how long the display keeps each output")
		verbose = flag.Bool("v", false, "log runtime diagnostics")
	)
	flag.Parse()

	if *verbose {
		vs.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	device, queue, cleanup, err := openDevice(*backend)
	if err != nil {
		log.Fatalf("Failed to open %s device: %v", *backend, err)
	}
	defer cleanup()

	script := demoScript()
	opts := []vs.ContextOption{vs.WithRetainLimit(2)}
	var compileOpts []vs.CompileOption
	if *cfgPath != "" {
		cfg, err := vs.LoadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		opts = append(opts, cfg.ContextOptions()...)
		compileOpts = cfg.CompileOptions()
		cfg.Apply(script)
	}

	ctx, err := vs.NewContext(device, queue, opts...)
	if err != nil {
		log.Fatalf("Failed to create context: %v", err)
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			log.Printf("Close: %v", err)
		}
	}()
	if ctx.Format() != gputypes.TextureFormatRGBA8Unorm {
		log.Fatalf("vsdemo uploads rgba8unorm frames, config asks for %v", ctx.Format())
	}

	registry := vs.BuiltinRegistry().Merge(vs.Registry{
		"pulse": {Sources: 1, Attr: []vs.AttrInfo{{Name: "gain", Default: []float32{1}}}},
	})
	rt, err := vs.Compile(ctx, script, registry, vs.KernelLibrary{"pulse": pulseKernel}, compileOpts...)
	if err != nil {
		log.Fatalf("Failed to compile script: %v", err)
	}
	defer rt.Destroy()
	log.Printf("Compiled %d nodes", len(rt.Nodes()))

	w, h := uint32(*width), uint32(*height)
	capture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "vsdemo_capture",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		log.Fatalf("Failed to create capture texture: %v", err)
	}
	defer device.DestroyTexture(capture)

	g, gctx := errgroup.WithContext(context.Background())
	feed := make(chan *image.RGBA)
	shown := make(chan vs.TextureID, 4)

	g.Go(func() error {
		defer close(feed)
		return captureLoop(gctx, feed, *width, *height, *frames, *fps)
	})
	g.Go(func() error {
		for id := range shown {
			time.Sleep(*hold)
			ctx.ReleaseLater(id)
		}
		return nil
	})

	start := time.Now()
	var ownerErr error
	for img := range feed {
		now := time.Since(start).Seconds()
		if err := upload(queue, capture, img); err != nil {
			ownerErr = err
			break
		}
		ok, err := ctx.Ingest(vs.Frame{Texture: capture, Width: w, Height: h, Time: now})
		if err != nil {
			ownerErr = err
			break
		}
		if !ok {
			continue
		}
		if err := rt.Encode(ctx, now); err != nil {
			log.Printf("Frame dropped: %v", err)
			continue
		}
		out := ctx.Top()
		ctx.Retain(out.ID)
		if _, err := ctx.Submit(); err != nil {
			ownerErr = err
			break
		}
		if err := ctx.Flush(); err != nil {
			ownerErr = err
			break
		}
		select {
		case shown <- out.ID:
		default:
			ctx.Release(out.ID)
		}
	}
	// Drain the feed so the capture goroutine can finish after an error.
	for range feed {
	}
	close(shown)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Capture failed: %v", err)
	}
	if ownerErr != nil {
		log.Fatalf("Pipeline failed: %v", ownerErr)
	}

	log.Printf("%v", ctx.Stats())
	log.Printf("%v", ctx.PoolStats())
}

// demoScript blends an edge-detected copy of the frame over itself, adds a
// trail from the previous output and pulses the brightness.
func demoScript() *vs.Script {
	return vs.NewScript().
		Fork().
		Append("gaussian_blur", vs.Attr{"sigma": 2.0}).
		Append("sobel", vs.Attr{"weight": 1.5}).
		Append("alpha", vs.Attr{"ratio": 0.4}).
		Prev().
		Append("alpha", vs.Attr{"ratio": 0.2}).
		Append("pulse", vs.Attr{"gain": "pulse"}).
		SetVariable("pulse", vs.VariableSpec{"type": "sin", "freq": 0.5, "amplitude": 0.5, "offset": 0.75})
}

func openDevice(name string) (hal.Device, hal.Queue, func(), error) {
	variant := gputypes.BackendEmpty
	switch name {
	case "noop":
	case "vulkan":
		variant = gputypes.BackendVulkan
	default:
		return nil, nil, nil, errors.New("unknown backend " + name)
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, nil, nil, errors.New("backend not registered")
	}
	instance, err := backend.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, errors.New("no adapters")
	}
	log.Printf("Using adapter %s", adapters[0].Info.Name)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, err
	}
	cleanup := func() {
		open.Device.Destroy()
		instance.Destroy()
	}
	return open.Device, open.Queue, cleanup, nil
}

// captureLoop renders a moving pattern at low resolution and scales it to
// the frame size, standing in for a camera.
func captureLoop(ctx context.Context, feed chan<- *image.RGBA, w, h, frames, fps int) error {
	fps = max(fps, 1)
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()

	small := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		phase := float64(i) / float64(fps)
		for y := range 36 {
			for x := range 64 {
				v := 0.5 + 0.5*math.Sin(float64(x)/6+phase*3)*math.Cos(float64(y)/5-phase*2)
				small.SetRGBA(x, y, color.RGBA{R: uint8(255 * v), G: uint8(128 * v), B: uint8(255 * (1 - v)), A: 255})
			}
		}
		frame := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(frame, frame.Bounds(), small, small.Bounds(), xdraw.Src, nil)

		select {
		case feed <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func upload(queue hal.Queue, dst hal.Texture, img *image.RGBA) error {
	b := img.Bounds()
	return queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: dst, Aspect: gputypes.TextureAspectAll},
		img.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(img.Stride), RowsPerImage: uint32(b.Dy())},
		&hal.Extent3D{Width: uint32(b.Dx()), Height: uint32(b.Dy()), DepthOrArrayLayers: 1},
	)
}
