package vs

import (
	"maps"
	"slices"

	"github.com/gogpu/vs/internal/accel"
)

// AttrInfo declares a node attribute and its default value. The default's
// length fixes the size of the attribute's parameter buffer.
type AttrInfo struct {
	Name    string
	Default []float32
}

// NodeInfo declares a node: how many stack entries it consumes and the
// attributes it accepts, in binding order.
type NodeInfo struct {
	Sources int
	Attr    []AttrInfo
}

// Registry maps node names to their declarations. A Registry is treated as
// immutable once handed to Compile.
type Registry map[string]NodeInfo

// KernelLibrary maps node names to WGSL compute shader sources. Sources may
// use $FORMAT for the destination storage format.
type KernelLibrary map[string]string

// BuiltinRegistry returns the declarations of the control nodes and of
// the built-in accelerated kernels.
func BuiltinRegistry() Registry {
	r := Registry{
		NameFork:  {},
		NameSwap:  {},
		NameShift: {},
		NamePrev:  {},
	}
	for _, name := range accel.Names() {
		k, _ := accel.Lookup(name)
		info := NodeInfo{Sources: k.Sources}
		for _, a := range k.Attr {
			info.Attr = append(info.Attr, AttrInfo{Name: a.Name, Default: slices.Clone(a.Default)})
		}
		r[name] = info
	}
	return r
}

// Merge returns a new registry holding r and other. Entries of other win.
func (r Registry) Merge(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	maps.Copy(out, r)
	maps.Copy(out, other)
	return out
}

// Names returns the registered node names, sorted.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

func isControl(name string) (ControlOp, bool) {
	switch name {
	case NameFork:
		return ControlFork, true
	case NameSwap:
		return ControlSwap, true
	case NameShift:
		return ControlShift, true
	case NamePrev:
		return ControlPrev, true
	default:
		return 0, false
	}
}
