package vs

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureID identifies a pool texture. IDs are assigned in allocation
// order and never reused within a Context.
type TextureID int

// SourceID is the ID of the first source texture. Source textures hold
// captured frames and are never handed out as destinations; later ones take
// IDs counting down from SourceID.
const SourceID TextureID = -1

// IsSource reports whether id names a source texture.
func (id TextureID) IsSource() bool { return id <= SourceID }

// Texture is a GPU image on the stack. Textures are compared by ID.
type Texture struct {
	ID     TextureID
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat

	raw  hal.Texture
	view hal.TextureView

	// lastUse is the submission index of the last frame that bound the
	// texture. Zero means never submitted.
	lastUse uint64
}

// Raw returns the underlying texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// View returns the texture's default view.
func (t *Texture) View() hal.TextureView { return t.view }

func (t *Texture) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.ID.IsSource() {
		return fmt.Sprintf("source%d(%dx%d)", SourceID-t.ID, t.Width, t.Height)
	}
	return fmt.Sprintf("#%d(%dx%d)", t.ID, t.Width, t.Height)
}

const poolTextureUsage = gputypes.TextureUsageStorageBinding |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// PoolStats reports texture pool usage.
type PoolStats struct {
	// Entries is the number of textures of the current frame size.
	Entries int

	// Sources is the number of source textures of the current frame size.
	Sources int

	// Stale is the number of textures of an old frame size still waiting
	// to be destroyed.
	Stale int

	// Retained is the number of distinct retained textures.
	Retained int

	// Allocations is the total number of destination textures created.
	Allocations uint64

	// Reuses is the number of destinations served from existing entries.
	Reuses uint64

	// Destroyed is the number of stale textures destroyed after a resize.
	Destroyed uint64
}

func (s PoolStats) String() string {
	return fmt.Sprintf("Pool: %d entries, %d sources, %d stale, %d retained, %d allocations, %d reuses, %d destroyed",
		s.Entries, s.Sources, s.Stale, s.Retained, s.Allocations, s.Reuses, s.Destroyed)
}

// texturePool owns every pool texture of a Context. It never decides on its
// own whether a texture is free; callers pass the reference check.
type texturePool struct {
	device hal.Device
	format gputypes.TextureFormat

	width, height uint32

	entries []*Texture
	sources []*Texture
	stale   []*Texture
	nextID  TextureID

	// sourceCount numbers source textures; their IDs count down from
	// SourceID.
	sourceCount int

	retain map[TextureID]int

	allocations uint64
	reuses      uint64
	destroyed   uint64
}

func newTexturePool(device hal.Device, format gputypes.TextureFormat) *texturePool {
	return &texturePool{
		device: device,
		format: format,
		retain: make(map[TextureID]int),
	}
}

// acquire returns the first entry for which inUse reports false, or
// allocates a new one.
func (p *texturePool) acquire(inUse func(*Texture) bool) (*Texture, error) {
	for _, t := range p.entries {
		if !inUse(t) && p.retain[t.ID] == 0 {
			p.reuses++
			return t, nil
		}
	}
	return p.allocate()
}

// allocate creates a texture of the current size with a fresh ID.
func (p *texturePool) allocate() (*Texture, error) {
	t, err := p.create(fmt.Sprintf("vs_pool_%d", p.nextID), p.nextID)
	if err != nil {
		return nil, err
	}
	p.nextID++
	p.allocations++
	p.entries = append(p.entries, t)
	Logger().Debug("vs: pool texture allocated", "id", t.ID, "width", t.Width, "height", t.Height, "entries", len(p.entries))
	return t, nil
}

// acquireSource returns a source texture for the next captured frame: the
// first one for which inUse reports false and that is not retained, or a
// new one. A source still read through the previous list or held by a
// consumer is never overwritten.
func (p *texturePool) acquireSource(inUse func(*Texture) bool) (*Texture, error) {
	for _, t := range p.sources {
		if !inUse(t) && p.retain[t.ID] == 0 {
			return t, nil
		}
	}
	id := SourceID - TextureID(p.sourceCount)
	t, err := p.create(fmt.Sprintf("vs_source_%d", p.sourceCount), id)
	if err != nil {
		return nil, err
	}
	p.sourceCount++
	p.sources = append(p.sources, t)
	Logger().Debug("vs: source texture allocated", "id", t.ID, "sources", len(p.sources))
	return t, nil
}

func (p *texturePool) create(label string, id TextureID) (*Texture, error) {
	if p.width == 0 || p.height == 0 {
		return nil, fmt.Errorf("%w: frame size unknown", ErrInvalidFrame)
	}
	raw, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              p.width,
			Height:             p.height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        p.format,
		Usage:         poolTextureUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("vs: create texture %s: %w", label, err)
	}
	view, err := p.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        p.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.device.DestroyTexture(raw)
		return nil, fmt.Errorf("vs: create texture view %s: %w", label, err)
	}
	return &Texture{
		ID:     id,
		Width:  p.width,
		Height: p.height,
		Format: p.format,
		raw:    raw,
		view:   view,
	}, nil
}

// resize switches allocation to w×h. Existing entries become stale and are
// never handed out again.
func (p *texturePool) resize(w, h uint32) {
	if w == p.width && h == p.height {
		return
	}
	p.stale = append(p.stale, p.entries...)
	p.stale = append(p.stale, p.sources...)
	p.entries = nil
	p.sources = nil
	p.width, p.height = w, h
}

// collect destroys stale textures that are unreferenced and whose last
// submission has completed.
func (p *texturePool) collect(inUse func(*Texture) bool, completed uint64) {
	kept := p.stale[:0]
	for _, t := range p.stale {
		if inUse(t) || p.retain[t.ID] > 0 || t.lastUse > completed {
			kept = append(kept, t)
			continue
		}
		p.destroyTexture(t)
		p.destroyed++
	}
	for i := len(kept); i < len(p.stale); i++ {
		p.stale[i] = nil
	}
	p.stale = kept
}

func (p *texturePool) retainID(id TextureID) {
	p.retain[id]++
}

func (p *texturePool) releaseID(id TextureID) {
	n, ok := p.retain[id]
	if !ok {
		return
	}
	if n <= 1 {
		delete(p.retain, id)
		return
	}
	p.retain[id] = n - 1
}

func (p *texturePool) releaseAll() {
	clear(p.retain)
}

func (p *texturePool) retained(id TextureID) bool {
	return p.retain[id] > 0
}

func (p *texturePool) stats() PoolStats {
	return PoolStats{
		Entries:     len(p.entries),
		Sources:     len(p.sources),
		Stale:       len(p.stale),
		Retained:    len(p.retain),
		Allocations: p.allocations,
		Reuses:      p.reuses,
		Destroyed:   p.destroyed,
	}
}

func (p *texturePool) destroyTexture(t *Texture) {
	if t.view != nil {
		p.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.raw != nil {
		p.device.DestroyTexture(t.raw)
		t.raw = nil
	}
}

// destroy releases every texture. The caller guarantees the GPU is idle.
func (p *texturePool) destroy() {
	for _, t := range p.entries {
		p.destroyTexture(t)
	}
	for _, t := range p.sources {
		p.destroyTexture(t)
	}
	for _, t := range p.stale {
		p.destroyTexture(t)
	}
	p.entries = nil
	p.sources = nil
	p.stale = nil
	clear(p.retain)
}

// AcquireDestination returns a pool texture that is referenced by neither
// the stack, the previous list nor the retain set, allocating one when
// every entry is in use. Nodes call it before popping their inputs, so a
// destination never aliases a texture that is about to be read.
func (c *Context) AcquireDestination() (*Texture, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	c.drainReleases()
	return c.pool.acquire(c.referenced)
}

// Retain excludes the texture id from reuse until a matching Release.
// Retains are counted; every Retain needs exactly one Release.
func (c *Context) Retain(id TextureID) {
	c.pool.retainID(id)
}

// Release undoes one Retain. Releasing an id that is not retained is a
// no-op.
func (c *Context) Release(id TextureID) {
	c.pool.releaseID(id)
}

// ReleaseAll drops every retain, for example after an encoder finished.
func (c *Context) ReleaseAll() {
	c.drainReleases()
	c.pool.releaseAll()
}

// Retained reports whether id is currently retained.
func (c *Context) Retained(id TextureID) bool {
	return c.pool.retained(id)
}

// ReleaseLater schedules a Release from any goroutine, typically a GPU or
// encoder completion callback. The release is applied by the owner at the
// start of the next Ingest or AcquireDestination. If the queue is full
// ReleaseLater blocks until the owner drains it.
func (c *Context) ReleaseLater(id TextureID) {
	c.releases <- id
}

func (c *Context) drainReleases() {
	for {
		select {
		case id := <-c.releases:
			c.pool.releaseID(id)
		default:
			return
		}
	}
}
