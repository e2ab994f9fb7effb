package vs

// Push puts t on top of the stack.
func (c *Context) Push(t *Texture) {
	c.stack = append(c.stack, t)
	if len(c.stack) > c.opts.maxStackDepth && !c.depthWarned {
		c.depthWarned = true
		Logger().Warn("vs: stack depth above limit, a node may be leaking textures",
			"depth", len(c.stack), "limit", c.opts.maxStackDepth)
	}
}

// Pop removes and returns the top of the stack. It fails with
// ErrStackUnderflow on an empty stack, unless the Context was created with
// WithAllowUnderflow.
func (c *Context) Pop() (*Texture, error) {
	n := len(c.stack)
	if n == 0 {
		if !c.opts.allowUnderflow {
			return nil, ErrStackUnderflow
		}
		Logger().Warn("vs: stack underflow, allocating a replacement texture")
		return c.pool.allocate()
	}
	t := c.stack[n-1]
	c.stack[n-1] = nil
	c.stack = c.stack[:n-1]
	return t, nil
}

// Top returns the top of the stack without removing it, or nil.
func (c *Context) Top() *Texture {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// Depth returns the number of stack entries.
func (c *Context) Depth() int { return len(c.stack) }

// Stack returns a copy of the stack, bottom first.
func (c *Context) Stack() []*Texture {
	return append([]*Texture(nil), c.stack...)
}

// Previous returns a copy of the previous list, oldest first.
func (c *Context) Previous() []*Texture {
	return append([]*Texture(nil), c.prev...)
}

// Shift moves the top of the stack to the bottom.
func (c *Context) Shift() error {
	n := len(c.stack)
	if n == 0 {
		return ErrStackUnderflow
	}
	top := c.stack[n-1]
	copy(c.stack[1:], c.stack[:n-1])
	c.stack[0] = top
	return nil
}

// Fork pushes a second reference to the top of the stack.
func (c *Context) Fork() error {
	top := c.Top()
	if top == nil {
		return ErrStackUnderflow
	}
	c.Push(top)
	return nil
}

// Swap exchanges the two topmost entries.
func (c *Context) Swap() error {
	n := len(c.stack)
	if n < 2 {
		return ErrStackUnderflow
	}
	c.stack[n-1], c.stack[n-2] = c.stack[n-2], c.stack[n-1]
	return nil
}

// Prev removes and returns the newest entry of the previous list. When the
// list is exhausted it returns the source texture instead, so temporal
// effects degrade to the current frame on their first run. Prev returns
// nil only if no frame was ever ingested.
func (c *Context) Prev() *Texture {
	n := len(c.prev)
	if n == 0 {
		Logger().Debug("vs: previous list empty, using source texture")
		return c.source
	}
	t := c.prev[n-1]
	c.prev[n-1] = nil
	c.prev = c.prev[:n-1]
	return t
}

// Flush ends the frame in flight: the stack replaces the previous list,
// order preserved, the stack is cleared and the Context becomes ready for
// the next frame. The frame must have been submitted.
func (c *Context) Flush() error {
	if c.closed {
		return ErrContextClosed
	}
	if c.state != stateInFlight {
		return ErrNotInFlight
	}
	if c.encoder != nil {
		return ErrNotSubmitted
	}
	clear(c.prev)
	c.prev = append(c.prev[:0], c.stack...)
	clear(c.stack)
	c.stack = c.stack[:0]
	c.depthWarned = false
	c.state = stateIdle
	return nil
}
