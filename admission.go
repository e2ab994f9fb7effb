package vs

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

type admissionState int

const (
	stateIdle admissionState = iota
	stateInFlight
)

func (s admissionState) String() string {
	if s == stateInFlight {
		return "InFlight"
	}
	return "Idle"
}

// Frame is a captured video frame offered to Ingest.
type Frame struct {
	// Texture holds the captured image. It must allow CopySrc usage and
	// have the Context's pixel format.
	Texture hal.Texture

	Width  uint32
	Height uint32

	// Time is the capture timestamp in seconds.
	Time float64
}

// FrameStats are the admission counters of a Context.
type FrameStats struct {
	Accepted uint64
	Dropped  uint64
}

func (s FrameStats) String() string {
	total := s.Accepted + s.Dropped
	ratio := 0.0
	if total > 0 {
		ratio = float64(s.Dropped) / float64(total)
	}
	return fmt.Sprintf("Frames: %d accepted, %d dropped (%.1f%%)", s.Accepted, s.Dropped, ratio*100)
}

// Stats returns the admission counters. Safe for concurrent use.
func (c *Context) Stats() FrameStats {
	return FrameStats{Accepted: c.accepted.Load(), Dropped: c.dropped.Load()}
}

// InFlight reports whether a frame has been admitted and not yet flushed.
func (c *Context) InFlight() bool { return c.state == stateInFlight }

// Time returns the capture timestamp of the frame in flight.
func (c *Context) Time() float64 { return c.frameTime }

// Source returns the source texture holding the latest admitted frame.
// A frame whose previous source is still referenced, through the previous
// list or a Retain, is copied into another source texture.
func (c *Context) Source() *Texture { return c.source }

// Ingest offers a captured frame. While another frame is in flight, or
// while more textures are retained than the retain limit allows, the frame
// is dropped and Ingest returns false.
//
// An admitted frame is copied into a free source texture, which becomes the only stack entry, and a command encoder is opened for the
// frame's nodes.
func (c *Context) Ingest(f Frame) (bool, error) {
	if c.closed {
		return false, ErrContextClosed
	}
	c.drainReleases()

	if c.state == stateInFlight {
		c.dropped.Add(1)
		return false, nil
	}
	if limit := c.opts.retainLimit; limit >= 0 && len(c.pool.retain) > limit {
		c.dropped.Add(1)
		return false, nil
	}
	if f.Texture == nil || f.Width == 0 || f.Height == 0 {
		return false, ErrInvalidFrame
	}

	completed := c.queue.PollCompleted()
	c.reclaim(completed)
	if err := c.prepareSource(f.Width, f.Height); err != nil {
		return false, err
	}
	c.pool.collect(c.referenced, completed)

	enc, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "vs_frame"})
	if err != nil {
		return false, fmt.Errorf("vs: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("vs_frame"); err != nil {
		enc.DiscardEncoding()
		return false, fmt.Errorf("vs: begin encoding: %w", err)
	}
	enc.CopyTextureToTexture(f.Texture, c.source.raw, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: f.Texture, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: c.source.raw, Aspect: gputypes.TextureAspectAll},
		Size:    hal.Extent3D{Width: f.Width, Height: f.Height, DepthOrArrayLayers: 1},
	}})

	c.encoder = enc
	c.frameTime = f.Time
	clear(c.stack)
	c.stack = c.stack[:0]
	c.touched = append(c.touched[:0], c.source)
	c.Push(c.source)
	c.state = stateInFlight
	c.accepted.Add(1)
	return true, nil
}

// prepareSource picks the source texture for a w×h frame. On a size change
// the pool switches to the new size and textures of the old size drain:
// they stay valid while referenced and are destroyed once the GPU is done
// with them.
func (c *Context) prepareSource(w, h uint32) error {
	if c.pool.width != w || c.pool.height != h {
		Logger().Info("vs: frame size changed", "width", w, "height", h,
			"old_width", c.pool.width, "old_height", c.pool.height)
		c.pool.resize(w, h)
	}
	src, err := c.pool.acquireSource(c.referenced)
	if err != nil {
		return err
	}
	c.source = src
	return nil
}

// Submit ends the frame's encoding and submits it. Bind groups and the
// command buffer are released once the queue reports the submission done.
func (c *Context) Submit() (uint64, error) {
	if c.closed {
		return 0, ErrContextClosed
	}
	if c.encoder == nil {
		return 0, ErrNotInFlight
	}
	cmd, err := c.encoder.EndEncoding()
	if err != nil {
		c.Abort()
		return 0, fmt.Errorf("vs: end encoding: %w", err)
	}
	c.encoder = nil
	index, err := c.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		c.device.FreeCommandBuffer(cmd)
		c.destroyFrameGroups()
		c.abortStack()
		return 0, fmt.Errorf("vs: submit: %w", err)
	}
	for _, t := range c.touched {
		t.lastUse = index
	}
	clear(c.touched)
	c.touched = c.touched[:0]
	c.pending = append(c.pending, pendingSubmission{index: index, cmd: cmd, groups: c.frameGroups})
	c.frameGroups = nil
	return index, nil
}

// Abort discards the frame in flight without submitting anything and
// returns to Idle. The previous list is left as it was, so the next frame
// sees the same carry-over.
func (c *Context) Abort() {
	if c.encoder != nil {
		c.encoder.DiscardEncoding()
		c.encoder = nil
	}
	c.destroyFrameGroups()
	c.abortStack()
}

func (c *Context) abortStack() {
	clear(c.stack)
	c.stack = c.stack[:0]
	clear(c.touched)
	c.touched = c.touched[:0]
	c.depthWarned = false
	c.state = stateIdle
}

func (c *Context) destroyFrameGroups() {
	for _, g := range c.frameGroups {
		c.device.DestroyBindGroup(g)
	}
	c.frameGroups = nil
}

// trackBindGroup keeps g alive until the frame's submission completes.
func (c *Context) trackBindGroup(g hal.BindGroup) {
	c.frameGroups = append(c.frameGroups, g)
}

// markUsed records textures bound by the frame in flight.
func (c *Context) markUsed(ts ...*Texture) {
	c.touched = append(c.touched, ts...)
}
