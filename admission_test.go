package vs

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/wgpu/hal"
)

func TestAdmissionStateMachine(t *testing.T) {
	ctx, device := newTestContext(t)
	frame := Frame{Texture: captureTexture(t, device, testWidth, testHeight), Width: testWidth, Height: testHeight, Time: 1.5}

	ok, err := ctx.Ingest(frame)
	if err != nil || !ok {
		t.Fatalf("Ingest while idle = %v, %v; want accepted", ok, err)
	}
	if !ctx.InFlight() {
		t.Fatal("state should be InFlight after an accepted frame")
	}
	if got := ctx.Stats(); got.Accepted != 1 || got.Dropped != 0 {
		t.Errorf("Stats() = %+v, want 1 accepted", got)
	}
	if ctx.Depth() != 1 || ctx.Top() != ctx.Source() {
		t.Errorf("stack = %v, want [source]", ctx.Stack())
	}
	if ctx.Time() != 1.5 {
		t.Errorf("Time() = %v, want 1.5", ctx.Time())
	}

	allocs := ctx.PoolStats().Allocations
	for i := range 3 {
		ok, err := ctx.Ingest(frame)
		if err != nil || ok {
			t.Fatalf("Ingest while in flight = %v, %v; want dropped", ok, err)
		}
		if got := ctx.Stats(); got.Dropped != uint64(i+1) || got.Accepted != 1 {
			t.Errorf("Stats() = %+v after %d drops", got, i+1)
		}
	}
	if !ctx.InFlight() || ctx.Depth() != 1 {
		t.Error("dropped frames must not change state or stack")
	}
	if ctx.PoolStats().Allocations != allocs {
		t.Error("dropped frames must not allocate")
	}

	finishFrame(t, ctx)
	ok, err = ctx.Ingest(frame)
	if err != nil || !ok {
		t.Fatalf("Ingest after flush = %v, %v; want accepted", ok, err)
	}
	if got := ctx.Stats(); got.Accepted != 2 || got.Dropped != 3 {
		t.Errorf("Stats() = %+v, want 2 accepted 3 dropped", got)
	}
	finishFrame(t, ctx)
}

func TestIngestInvalidFrame(t *testing.T) {
	ctx, device := newTestContext(t)
	tests := []struct {
		name  string
		frame Frame
	}{
		{"nil texture", Frame{Width: 4, Height: 4}},
		{"zero width", Frame{Texture: captureTexture(t, device, 4, 4), Height: 4}},
		{"zero height", Frame{Texture: captureTexture(t, device, 4, 4), Width: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ctx.Ingest(tt.frame)
			if ok || !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Ingest = %v, %v; want ErrInvalidFrame", ok, err)
			}
			if ctx.InFlight() {
				t.Error("invalid frame must not be admitted")
			}
		})
	}
}

func TestRetainLimitDropsFrames(t *testing.T) {
	ctx, _ := newTestContext(t, WithRetainLimit(1))
	ingest(t, ctx)
	out, err := ctx.AcquireDestination()
	if err != nil {
		t.Fatal(err)
	}
	ctx.Push(out)
	ctx.Retain(out.ID)
	finishFrame(t, ctx)

	// One retained texture is within the limit.
	ingest(t, ctx)
	second, err := ctx.AcquireDestination()
	if err != nil {
		t.Fatal(err)
	}
	ctx.Retain(second.ID)
	finishFrame(t, ctx)

	ok, err := ctx.Ingest(Frame{Texture: captureTexture(t, ctx.Device(), testWidth, testHeight), Width: testWidth, Height: testHeight})
	if err != nil || ok {
		t.Fatalf("Ingest over retain limit = %v, %v; want dropped", ok, err)
	}
	if ctx.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", ctx.Stats().Dropped)
	}

	ctx.ReleaseLater(second.ID)
	ingest(t, ctx)
	finishFrame(t, ctx)
}

func TestAbortKeepsPrevious(t *testing.T) {
	ctx, _ := newTestContext(t)
	ingest(t, ctx)
	finishFrame(t, ctx)
	want := ctx.Previous()

	ingest(t, ctx)
	if err := ctx.Fork(); err != nil {
		t.Fatal(err)
	}
	ctx.Abort()
	if ctx.InFlight() || ctx.Depth() != 0 || ctx.Encoder() != nil {
		t.Error("Abort should clear the stack, drop the encoder and return to Idle")
	}
	if got := ctx.Previous(); len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Abort changed the previous list: %v, want %v", got, want)
	}
	if _, err := ctx.Submit(); !errors.Is(err, ErrNotInFlight) {
		t.Errorf("Submit after Abort = %v, want ErrNotInFlight", err)
	}
	ingest(t, ctx)
	finishFrame(t, ctx)
}

func TestIngestKeepsReferencedSource(t *testing.T) {
	ctx, _ := newTestContext(t)
	ingest(t, ctx)
	first := ctx.Source()
	if first.ID != SourceID {
		t.Fatalf("first source = %v, want ID %d", first, SourceID)
	}
	if err := ctx.Fork(); err != nil {
		t.Fatal(err)
	}
	ctx.Retain(ctx.Top().ID)
	finishFrame(t, ctx) // previous list: [first, first]

	ingest(t, ctx)
	second := ctx.Source()
	if second == first {
		t.Fatal("frame copied over a source still in the previous list")
	}
	if !second.ID.IsSource() || second.ID >= first.ID {
		t.Errorf("second source ID = %d, want below %d", second.ID, first.ID)
	}
	if got := ctx.Prev(); got != first {
		t.Errorf("Prev() = %v, want last frame's source %v", got, first)
	}
	finishFrame(t, ctx) // previous list: [second]

	// first is out of the previous list but still retained.
	ingest(t, ctx)
	third := ctx.Source()
	if third == first || third == second {
		t.Errorf("source %v reused while retained or carried over", third)
	}
	finishFrame(t, ctx)

	ctx.Release(first.ID)
	ingest(t, ctx)
	if ctx.Source() != first {
		t.Errorf("Source() = %v, want released %v", ctx.Source(), first)
	}
	finishFrame(t, ctx)

	if s := ctx.PoolStats(); s.Sources != 3 || s.Allocations != 0 {
		t.Errorf("PoolStats = %v, want 3 sources and no destination allocations", s)
	}
}

func TestIngestReusesFreeSource(t *testing.T) {
	ctx, _ := newTestContext(t)
	ingest(t, ctx)
	src := ctx.Source()
	if _, err := ctx.Pop(); err != nil {
		t.Fatal(err)
	}
	finishFrame(t, ctx) // previous list is empty

	for range 3 {
		ingest(t, ctx)
		if ctx.Source() != src {
			t.Fatalf("Source() = %v, want unreferenced %v", ctx.Source(), src)
		}
		if _, err := ctx.Pop(); err != nil {
			t.Fatal(err)
		}
		finishFrame(t, ctx)
	}
	if n := ctx.PoolStats().Sources; n != 1 {
		t.Errorf("Sources = %d, want 1", n)
	}

	// A pass-through frame keeps its source in the previous list, so the
	// next two frames alternate between two sources.
	ingest(t, ctx)
	finishFrame(t, ctx)
	ingest(t, ctx)
	if ctx.Source() == src {
		t.Error("frame copied over the carried-over source")
	}
	finishFrame(t, ctx)
	ingest(t, ctx)
	if ctx.Source() != src {
		t.Errorf("Source() = %v, want %v back once it left the previous list", ctx.Source(), src)
	}
	finishFrame(t, ctx)
	if n := ctx.PoolStats().Sources; n != 2 {
		t.Errorf("Sources = %d, want 2", n)
	}
}

var errBeginEncoding = errors.New("begin encoding failed")

// brokenEncoder fails BeginEncoding and records whether it was discarded.
type brokenEncoder struct {
	hal.CommandEncoder
	discarded bool
}

func (e *brokenEncoder) BeginEncoding(string) error { return errBeginEncoding }
func (e *brokenEncoder) DiscardEncoding()           { e.discarded = true }

type brokenEncoderDevice struct {
	hal.Device
	enc *brokenEncoder
}

func (d *brokenEncoderDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	d.enc = &brokenEncoder{CommandEncoder: enc}
	return d.enc, nil
}

func TestIngestDiscardsEncoderOnBeginFailure(t *testing.T) {
	device, queue := createNoopDevice(t)
	broken := &brokenEncoderDevice{Device: device}
	ctx, err := NewContext(broken, queue)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ctx.Close() })

	ok, err := ctx.Ingest(Frame{Texture: captureTexture(t, device, testWidth, testHeight), Width: testWidth, Height: testHeight})
	if ok || !errors.Is(err, errBeginEncoding) {
		t.Fatalf("Ingest = %v, %v; want the BeginEncoding error", ok, err)
	}
	if broken.enc == nil || !broken.enc.discarded {
		t.Error("encoder that failed to begin was not discarded")
	}
	if ctx.InFlight() || ctx.Encoder() != nil || ctx.Stats().Accepted != 0 {
		t.Error("a failed Ingest must leave the Context idle")
	}
}

func TestSubmitIndicesIncrease(t *testing.T) {
	ctx, _ := newTestContext(t)
	var last uint64
	for range 3 {
		ingest(t, ctx)
		idx, err := ctx.Submit()
		if err != nil {
			t.Fatal(err)
		}
		if idx <= last {
			t.Errorf("submission index %d not above %d", idx, last)
		}
		last = idx
		if err := ctx.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if ctx.Source().lastUse != last {
		t.Errorf("source lastUse = %d, want %d", ctx.Source().lastUse, last)
	}
}

func TestClosedContext(t *testing.T) {
	ctx, device := newTestContext(t)
	ingest(t, ctx)
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	frame := Frame{Texture: captureTexture(t, device, 4, 4), Width: 4, Height: 4}
	if _, err := ctx.Ingest(frame); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Ingest after Close = %v, want ErrContextClosed", err)
	}
	if _, err := ctx.AcquireDestination(); !errors.Is(err, ErrContextClosed) {
		t.Errorf("AcquireDestination after Close = %v, want ErrContextClosed", err)
	}
}

func TestStatsConcurrent(t *testing.T) {
	ctx, _ := newTestContext(t)
	ingest(t, ctx)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = ctx.Stats()
			}
		}()
	}
	for range 50 {
		if ok, _ := ctx.Ingest(Frame{Texture: ctx.Source().Raw(), Width: testWidth, Height: testHeight}); ok {
			t.Error("frame admitted while in flight")
		}
	}
	wg.Wait()
	if got := ctx.Stats().Dropped; got != 50 {
		t.Errorf("Dropped = %d, want 50", got)
	}
	if !strings.Contains(ctx.Stats().String(), "50 dropped") {
		t.Errorf("String() = %q", ctx.Stats().String())
	}
}

func TestNewContextErrors(t *testing.T) {
	device, queue := createNoopDevice(t)
	if _, err := NewContext(nil, queue); !errors.Is(err, ErrNilDevice) {
		t.Errorf("nil device = %v, want ErrNilDevice", err)
	}
	if _, err := NewContext(device, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("nil queue = %v, want ErrNilDevice", err)
	}
}

func TestTileCount(t *testing.T) {
	tests := []struct {
		w, h, tile uint32
		wantX      uint32
		wantY      uint32
	}{
		{64, 48, 16, 4, 3},
		{65, 48, 16, 5, 3},
		{1, 1, 16, 1, 1},
		{1920, 1080, 8, 240, 135},
	}
	for _, tt := range tests {
		ctx, _ := newTestContext(t, WithFrameSize(tt.w, tt.h), WithTileSize(tt.tile, tt.tile))
		x, y := ctx.TileCount()
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("TileCount(%dx%d / %d) = %d,%d, want %d,%d", tt.w, tt.h, tt.tile, x, y, tt.wantX, tt.wantY)
		}
	}
}
