package vs

import "github.com/gogpu/gputypes"

// Defaults for Context creation.
const (
	DefaultTileSize      = 16
	DefaultMaxStackDepth = 8
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := vs.NewContext(device, queue,
//		vs.WithPixelFormat(gputypes.TextureFormatRGBA16Float),
//		vs.WithRetainLimit(2),
//	)
type ContextOption func(*contextOptions)

type contextOptions struct {
	format         gputypes.TextureFormat
	tileW, tileH   uint32
	maxStackDepth  int
	allowUnderflow bool
	retainLimit    int
	frameW, frameH uint32
}

func defaultOptions() contextOptions {
	return contextOptions{
		format:        gputypes.TextureFormatRGBA8Unorm,
		tileW:         DefaultTileSize,
		tileH:         DefaultTileSize,
		maxStackDepth: DefaultMaxStackDepth,
		retainLimit:   -1, // unlimited
	}
}

// WithPixelFormat sets the format of pool textures. It must be usable as a
// write-only storage texture: RGBA8Unorm (default), RGBA16Float or
// RGBA32Float.
func WithPixelFormat(f gputypes.TextureFormat) ContextOption {
	return func(o *contextOptions) {
		o.format = f
	}
}

// WithTileSize sets the workgroup tile used to size dispatches. Kernels
// declare `@workgroup_size($TILE_W, $TILE_H)`, which Compile fills in with
// this size.
func WithTileSize(w, h uint32) ContextOption {
	return func(o *contextOptions) {
		if w > 0 && h > 0 {
			o.tileW, o.tileH = w, h
		}
	}
}

// WithMaxStackDepth sets the stack depth above which a warning is logged,
// once per frame. The stack itself is not bounded.
func WithMaxStackDepth(n int) ContextOption {
	return func(o *contextOptions) {
		if n > 0 {
			o.maxStackDepth = n
		}
	}
}

// WithAllowUnderflow makes Pop on an empty stack log and return a freshly
// allocated texture instead of failing with ErrStackUnderflow.
//
// This only exists for partial pipelines while debugging scripts; it hides
// arity mistakes and grows the pool on every underflow.
func WithAllowUnderflow(allow bool) ContextOption {
	return func(o *contextOptions) {
		o.allowUnderflow = allow
	}
}

// WithRetainLimit drops incoming frames while more than n textures are
// retained, so a slow consumer (an encoder) throttles admission instead of
// growing the pool. A negative n disables the limit.
func WithRetainLimit(n int) ContextOption {
	return func(o *contextOptions) {
		o.retainLimit = n
	}
}

// WithFrameSize sets the initial frame size so that destinations can be
// acquired before the first Ingest. Ingest resizes as frames arrive.
func WithFrameSize(w, h uint32) ContextOption {
	return func(o *contextOptions) {
		o.frameW, o.frameH = w, h
	}
}

// CompileOption configures Compile.
type CompileOption func(*compileOptions)

type compileOptions struct {
	skipUnresolved bool
}

// WithSkipUnresolved makes Compile drop pipeline entries that fail to
// resolve or build, logging each one, instead of failing the whole
// compile. The collected failures remain available from Runtime.Report.
func WithSkipUnresolved() CompileOption {
	return func(o *compileOptions) {
		o.skipUnresolved = true
	}
}
