package vs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// paramAlign is the size granularity of uniform parameter buffers.
const paramAlign = 16

// ParamBuffer is a uniform buffer holding one node attribute.
type ParamBuffer struct {
	Label string

	buf  hal.Buffer
	size uint64
}

// newParamBuffer creates a uniform buffer large enough for n floats,
// rounded up to paramAlign, and writes values into it.
func newParamBuffer(device hal.Device, queue hal.Queue, label string, n int, values []float32) (*ParamBuffer, error) {
	size := uint64(n) * 4
	if size == 0 {
		size = paramAlign
	}
	size = (size + paramAlign - 1) / paramAlign * paramAlign
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("vs: create buffer %s: %w", label, err)
	}
	b := &ParamBuffer{Label: label, buf: buf, size: size}
	if len(values) > 0 {
		if err := b.write(queue, values); err != nil {
			device.DestroyBuffer(buf)
			return nil, err
		}
	}
	return b, nil
}

// Size returns the buffer capacity in bytes.
func (b *ParamBuffer) Size() uint64 { return b.size }

// Raw returns the underlying buffer.
func (b *ParamBuffer) Raw() hal.Buffer { return b.buf }

func (b *ParamBuffer) write(queue hal.Queue, values []float32) error {
	n := uint64(len(values)) * 4
	if n > b.size {
		return fmt.Errorf("%w: %s holds %d bytes, update has %d", ErrBufferCapacityExceeded, b.Label, b.size, n)
	}
	if err := queue.WriteBuffer(b.buf, 0, floatBytes(values)); err != nil {
		return fmt.Errorf("vs: write buffer %s: %w", b.Label, err)
	}
	return nil
}

func (b *ParamBuffer) destroy(device hal.Device) {
	if b.buf != nil {
		device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// floatBytes encodes values as little-endian float32, the layout WGSL
// uniforms expect.
func floatBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// RegisterNamedBuffer binds key to b: every UpdateNamedBuffers value for
// key is written into b. A key may be bound to several buffers.
func (c *Context) RegisterNamedBuffer(key string, b *ParamBuffer) {
	for _, have := range c.named[key] {
		if have == b {
			return
		}
	}
	c.named[key] = append(c.named[key], b)
}

// unregisterNamedBuffer removes the binding of key to b.
func (c *Context) unregisterNamedBuffer(key string, b *ParamBuffer) {
	bufs := c.named[key]
	if i := slices.Index(bufs, b); i >= 0 {
		bufs = slices.Delete(bufs, i, i+1)
	}
	if len(bufs) == 0 {
		delete(c.named, key)
		return
	}
	c.named[key] = bufs
}

// NamedKeys returns the keys that have at least one bound buffer, sorted.
func (c *Context) NamedKeys() []string {
	keys := make([]string, 0, len(c.named))
	for k := range c.named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpdateNamedBuffers writes each value into the buffers bound to its key.
// Keys without bindings are ignored. A value that does not fit a buffer is
// skipped for that buffer; the skipped updates are logged and returned
// joined, each wrapping ErrBufferCapacityExceeded. Other updates still
// apply.
func (c *Context) UpdateNamedBuffers(values map[string][]float32) error {
	if c.closed {
		return ErrContextClosed
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		for _, b := range c.named[key] {
			if err := b.write(c.queue, values[key]); err != nil {
				Logger().Warn("vs: skipping buffer update", "key", key, "buffer", b.Label,
					"capacity", b.size, "values", len(values[key]), "err", err)
				errs = append(errs, fmt.Errorf("key %q: %w", key, err))
			}
		}
	}
	return errors.Join(errs...)
}
