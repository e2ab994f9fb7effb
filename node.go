package vs

import (
	"fmt"

	"github.com/gogpu/vs/internal/kernel"
	"github.com/gogpu/wgpu/hal"
)

// NodeKind tells how a node is executed.
type NodeKind int

const (
	// NodeFilter runs a kernel from the script's KernelLibrary.
	NodeFilter NodeKind = iota
	// NodeAccelerated runs a built-in kernel.
	NodeAccelerated
	// NodeControl reorders the stack without GPU work.
	NodeControl
)

func (k NodeKind) String() string {
	switch k {
	case NodeFilter:
		return "filter"
	case NodeAccelerated:
		return "accelerated"
	case NodeControl:
		return "control"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// ControlOp is the stack operation of a control node.
type ControlOp int

const (
	ControlFork ControlOp = iota + 1
	ControlSwap
	ControlShift
	ControlPrev
)

func (op ControlOp) String() string {
	switch op {
	case ControlFork:
		return NameFork
	case ControlSwap:
		return NameSwap
	case ControlShift:
		return NameShift
	case ControlPrev:
		return NamePrev
	default:
		return fmt.Sprintf("ControlOp(%d)", int(op))
	}
}

// Node is one compiled pipeline step. Nodes are immutable after Compile.
type Node struct {
	Name    string
	Kind    NodeKind
	Control ControlOp

	// Sources is the number of stack entries a filter consumes.
	Sources int

	params   []*ParamBuffer
	pipeline *kernel.Pipeline
}

// Params returns the node's parameter buffers in binding order.
func (n *Node) Params() []*ParamBuffer { return n.params }

func (n *Node) String() string {
	if n.Kind == NodeControl {
		return n.Control.String()
	}
	return fmt.Sprintf("%s(%s, %d sources, %d params)", n.Name, n.Kind, n.Sources, len(n.params))
}

// execute runs the node against the frame in flight.
func (n *Node) execute(c *Context, enc hal.CommandEncoder) error {
	switch n.Kind {
	case NodeControl:
		return n.control(c)
	case NodeFilter, NodeAccelerated:
		return n.dispatch(c, enc)
	default:
		return fmt.Errorf("vs: unknown node kind %v", n.Kind)
	}
}

func (n *Node) control(c *Context) error {
	switch n.Control {
	case ControlFork:
		return c.Fork()
	case ControlSwap:
		return c.Swap()
	case ControlShift:
		return c.Shift()
	case ControlPrev:
		t := c.Prev()
		if t == nil {
			return ErrNotInFlight
		}
		c.Push(t)
		return nil
	default:
		return fmt.Errorf("vs: unknown control op %v", n.Control)
	}
}

// dispatch binds the popped inputs, a fresh destination and the parameter
// buffers, records one compute pass and pushes the destination.
func (n *Node) dispatch(c *Context, enc hal.CommandEncoder) error {
	// The destination must be chosen while the inputs are still on the
	// stack.
	dst, err := c.AcquireDestination()
	if err != nil {
		return err
	}

	inputs := make([]hal.TextureView, n.Sources)
	used := make([]*Texture, 0, n.Sources+1)
	for i := range inputs {
		t, err := c.Pop()
		if err != nil {
			return err
		}
		inputs[i] = t.view
		used = append(used, t)
	}

	params := make([]kernel.Buffer, len(n.params))
	for i, p := range n.params {
		params[i] = kernel.Buffer{Buffer: p.buf, Size: p.size}
	}
	group, err := n.pipeline.BindGroup(inputs, dst.view, params)
	if err != nil {
		return err
	}
	c.trackBindGroup(group)

	gx, gy := c.TileCount()
	n.pipeline.Encode(enc, group, gx, gy)
	c.markUsed(append(used, dst)...)
	c.Push(dst)
	return nil
}
