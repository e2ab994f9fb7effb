// Package vs runs real-time video effect pipelines on the GPU.
//
// # Overview
//
// A captured video frame is transformed by an ordered chain of compute
// passes ("nodes") into an output frame. Nodes exchange images through a
// small texture stack: a filter pops its inputs and pushes one result, a
// control node only reorders the stack. Images come from a bounded pool and
// are reused once nothing references them, so texture memory does not grow
// over time.
//
// # Quick Start
//
//	ctx, err := vs.NewContext(device, queue)
//	if err != nil { ... }
//	defer ctx.Close()
//
//	script := vs.NewScript().
//		Append("gaussian_blur", vs.Attr{"sigma": 3.0}).
//		Append("saturation", vs.Attr{"factor": "pulse"}).
//		SetVariable("pulse", vs.VariableSpec{"type": "sin", "freq": 0.5})
//
//	rt, err := vs.Compile(ctx, script, vs.BuiltinRegistry(), nil)
//	if err != nil { ... }
//	defer rt.Destroy()
//
//	// once per captured frame, on the owning goroutine:
//	ok, err := ctx.Ingest(vs.Frame{Texture: captured, Width: w, Height: h, Time: t})
//	if !ok { return } // dropped: previous frame still in flight
//	if err := rt.Encode(ctx, t); err != nil { ... }
//	out := ctx.Top()
//	ctx.Submit()
//	ctx.Flush()
//
// # Ownership
//
// A Context is owned by one goroutine. Stack, pool and admission calls are
// not synchronized. Stats and ReleaseLater are the exceptions and may be
// called from anywhere, for example from a GPU completion callback.
//
// # Frames
//
// Admission follows a drop-newest-while-busy policy: while a frame is in
// flight (between Ingest and Flush) new frames are counted as dropped and
// ignored. Flush carries the leftover stack into the previous list, which
// the next frame reads through the "prev" control node for temporal
// effects.
package vs
