package vs

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/vs/internal/kernel"
	"github.com/gogpu/wgpu/hal"
)

// ErrNilDevice is returned when a Context is created without a device or
// queue.
var ErrNilDevice = errors.New("vs: device or queue is nil")

// releaseQueueSize bounds pending ReleaseLater calls between two drains.
const releaseQueueSize = 64

// Context is the per-session state of a video pipeline: the texture stack,
// the previous list, the texture pool, admission state and the named
// parameter buffers.
//
// A Context is owned by one goroutine. Only Stats and ReleaseLater may be
// called concurrently with the owner.
type Context struct {
	device hal.Device
	queue  hal.Queue
	opts   contextOptions

	pool   *texturePool
	stack  []*Texture
	prev   []*Texture
	source *Texture

	// Admission and per-frame encoding state.
	state       admissionState
	encoder     hal.CommandEncoder
	frameTime   float64
	frameGroups []hal.BindGroup
	touched     []*Texture
	depthWarned bool
	pending     []pendingSubmission

	named map[string][]*ParamBuffer

	releases chan TextureID
	accepted atomic.Uint64
	dropped  atomic.Uint64

	closed bool
}

var _ io.Closer = (*Context)(nil)

// NewContext creates a Context on device, submitting work to queue.
func NewContext(device hal.Device, queue hal.Queue, opts ...ContextOption) (*Context, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if _, ok := kernel.StorageFormat(o.format); !ok {
		return nil, fmt.Errorf("vs: pixel format %v cannot be used as a storage texture", o.format)
	}

	c := &Context{
		device:   device,
		queue:    queue,
		opts:     o,
		pool:     newTexturePool(device, o.format),
		named:    make(map[string][]*ParamBuffer),
		releases: make(chan TextureID, releaseQueueSize),
	}
	if o.frameW > 0 && o.frameH > 0 {
		c.pool.resize(o.frameW, o.frameH)
	}
	return c, nil
}

// NewContextFromProvider creates a Context sharing the device of an
// external provider (for example a gogpu window). The provider must expose
// HAL types, either through HalDevice/HalQueue methods or by returning
// hal.Device and hal.Queue from Device and Queue.
//
// When no pixel format option is given and the provider's surface format
// is storage capable, pool textures use the surface format.
func NewContextFromProvider(provider gpucontext.DeviceProvider, opts ...ContextOption) (*Context, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, err
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		if _, ok := kernel.StorageFormat(f); ok {
			opts = append([]ContextOption{WithPixelFormat(f)}, opts...)
		}
	}
	return NewContext(device, queue, opts...)
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var dev, q any
	if hp, ok := provider.(halProvider); ok {
		dev, q = hp.HalDevice(), hp.HalQueue()
	} else {
		dev, q = provider.Device(), provider.Queue()
	}
	device, ok := dev.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("vs: provider device is %T, not hal.Device", dev)
	}
	queue, ok := q.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("vs: provider queue is %T, not hal.Queue", q)
	}
	return device, queue, nil
}

// Device returns the device the Context allocates on.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the queue the Context submits to.
func (c *Context) Queue() hal.Queue { return c.queue }

// Format returns the pixel format of pool textures.
func (c *Context) Format() gputypes.TextureFormat { return c.opts.format }

// Size returns the current frame size. It is zero before the first frame
// unless WithFrameSize was given.
func (c *Context) Size() (w, h uint32) { return c.pool.width, c.pool.height }

// TileSize returns the workgroup tile used for dispatch sizing.
func (c *Context) TileSize() (w, h uint32) { return c.opts.tileW, c.opts.tileH }

// TileCount returns the number of workgroups that cover the current frame.
func (c *Context) TileCount() (x, y uint32) {
	w, h := c.Size()
	return (w + c.opts.tileW - 1) / c.opts.tileW, (h + c.opts.tileH - 1) / c.opts.tileH
}

// Encoder returns the command encoder of the frame in flight, or nil.
func (c *Context) Encoder() hal.CommandEncoder { return c.encoder }

// PoolStats returns texture pool statistics.
func (c *Context) PoolStats() PoolStats { return c.pool.stats() }

// Close aborts any frame in flight, waits for the device to go idle and
// destroys every texture, pending command buffer and bind group owned by
// the Context. Named buffers belong to their Runtime and are not touched.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.Abort()
	var err error
	if werr := c.device.WaitIdle(); werr != nil {
		err = fmt.Errorf("vs: wait idle: %w", werr)
	}
	c.reclaim(^uint64(0))
	c.pool.destroy()
	c.source = nil
	c.stack = nil
	c.prev = nil
	clear(c.named)
	c.closed = true
	return err
}

// pendingSubmission is GPU work whose command buffer and bind groups must
// outlive the submission.
type pendingSubmission struct {
	index  uint64
	cmd    hal.CommandBuffer
	groups []hal.BindGroup
}

// reclaim frees the resources of every submission up to completed.
func (c *Context) reclaim(completed uint64) {
	kept := c.pending[:0]
	for _, p := range c.pending {
		if p.index > completed {
			kept = append(kept, p)
			continue
		}
		for _, g := range p.groups {
			c.device.DestroyBindGroup(g)
		}
		c.device.FreeCommandBuffer(p.cmd)
	}
	for i := len(kept); i < len(c.pending); i++ {
		c.pending[i] = pendingSubmission{}
	}
	c.pending = kept
}

// referenced reports whether t is on the stack or in the previous list.
func (c *Context) referenced(t *Texture) bool {
	for _, s := range c.stack {
		if s == t {
			return true
		}
	}
	for _, s := range c.prev {
		if s == t {
			return true
		}
	}
	return false
}
