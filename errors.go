package vs

import (
	"errors"
	"fmt"
	"strings"
)

// Runtime and compile errors.
var (
	// ErrStackUnderflow is returned when a node pops more textures than the
	// stack holds. It aborts the current frame.
	ErrStackUnderflow = errors.New("vs: stack underflow")

	// ErrUnknownNode is reported when a pipeline entry names a node that is
	// not in the registry.
	ErrUnknownNode = errors.New("vs: unknown node")

	// ErrKernelBuild is reported when no backend can construct an executable
	// kernel for a resolved node.
	ErrKernelBuild = errors.New("vs: kernel build failed")

	// ErrBufferCapacityExceeded is reported when a variable update does not
	// fit the parameter buffer it is bound to. The update is skipped.
	ErrBufferCapacityExceeded = errors.New("vs: buffer capacity exceeded")

	// ErrNotInFlight is returned when a frame operation is attempted while
	// no frame has been admitted.
	ErrNotInFlight = errors.New("vs: no frame in flight")

	// ErrNotSubmitted is returned by Flush when the frame in flight has not
	// been submitted yet.
	ErrNotSubmitted = errors.New("vs: frame not submitted")

	// ErrContextClosed is returned when operating on a closed Context.
	ErrContextClosed = errors.New("vs: context closed")

	// ErrInvalidFrame is returned by Ingest for frames without a texture or
	// with zero dimensions.
	ErrInvalidFrame = errors.New("vs: invalid frame")
)

// NodeError describes a failure while executing one node of a Runtime.
type NodeError struct {
	Index int
	Name  string
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("vs: node %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// EntryError is one failed pipeline entry in a CompileReport.
type EntryError struct {
	Index int
	Name  string
	Err   error
}

func (e EntryError) String() string {
	return fmt.Sprintf("#%d %q: %v", e.Index, e.Name, e.Err)
}

// CompileReport collects the per-entry failures of one compilation.
type CompileReport struct {
	Entries []EntryError
}

// OK reports whether every entry compiled.
func (r CompileReport) OK() bool { return len(r.Entries) == 0 }

func (r CompileReport) String() string {
	if r.OK() {
		return "ok"
	}
	parts := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// CompileError is returned by Compile when one or more entries failed.
type CompileError struct {
	Report CompileReport
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("vs: compile failed (%d entries): %s", len(e.Report.Entries), e.Report)
}

// Unwrap exposes the individual entry errors to errors.Is and errors.As.
func (e *CompileError) Unwrap() []error {
	errs := make([]error, len(e.Report.Entries))
	for i, entry := range e.Report.Entries {
		errs[i] = entry.Err
	}
	return errs
}
