package vs

import (
	"github.com/gogpu/vs/internal/kernel"
)

// Runtime is a compiled script: an ordered node list and the dynamic
// variables feeding its buffers. A Runtime is replayed unchanged every
// frame.
type Runtime struct {
	nodes  []*Node
	vars   []DynamicVariable
	report CompileReport

	ctx       *Context
	pipelines []*kernel.Pipeline
	bindings  []namedBinding
}

type namedBinding struct {
	key string
	buf *ParamBuffer
}

// Nodes returns the compiled nodes in execution order.
func (r *Runtime) Nodes() []*Node {
	return append([]*Node(nil), r.nodes...)
}

// Variables returns the dynamic variables.
func (r *Runtime) Variables() []DynamicVariable {
	return append([]DynamicVariable(nil), r.vars...)
}

// Report returns the entries dropped by a WithSkipUnresolved compile.
func (r *Runtime) Report() CompileReport { return r.report }

// Encode records the frame in flight: dynamic variables are evaluated at
// now and written to their buffers, then every node executes in order.
//
// A buffer update that does not fit is logged and skipped; the frame
// continues. A node failure aborts the frame (see Context.Abort) and is
// returned as a *NodeError.
func (r *Runtime) Encode(c *Context, now float64) error {
	if c.closed {
		return ErrContextClosed
	}
	if c.state != stateInFlight || c.encoder == nil {
		return ErrNotInFlight
	}
	if len(r.vars) > 0 {
		// Skipped buffers are logged by UpdateNamedBuffers; the frame goes on.
		_ = c.UpdateNamedBuffers(evaluate(r.vars, now))
	}
	for i, n := range r.nodes {
		if err := n.execute(c, c.encoder); err != nil {
			c.Abort()
			return &NodeError{Index: i, Name: n.Name, Err: err}
		}
	}
	return nil
}

// Destroy unbinds the runtime's named buffers and releases its buffers and
// pipelines. No frame using the runtime may still be executing.
func (r *Runtime) Destroy() {
	if r.ctx == nil {
		return
	}
	for _, b := range r.bindings {
		r.ctx.unregisterNamedBuffer(b.key, b.buf)
	}
	for _, n := range r.nodes {
		for _, p := range n.params {
			p.destroy(r.ctx.device)
		}
	}
	for _, p := range r.pipelines {
		p.Destroy()
	}
	r.bindings = nil
	r.pipelines = nil
	r.nodes = nil
	r.ctx = nil
}
