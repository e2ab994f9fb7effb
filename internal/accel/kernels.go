// Package accel provides the built-in accelerated image kernels.
//
// Accelerated kernels are compiled WGSL compute shaders that ship with the
// runtime. Unlike user kernels their parameter buffers are not raw
// attribute vectors: each kernel packs its resolved attributes into the
// uniform layout its shader expects (weight tables, matrices).
//
// Kernel sources use $FORMAT for the destination storage format and
// $TILE_W, $TILE_H for the workgroup size; see kernel.Specialize.
package accel

import (
	"sort"
)

// Attr is an attribute a kernel accepts, with its default value.
type Attr struct {
	Name    string
	Default []float32
}

// Kernel is a built-in accelerated kernel.
type Kernel struct {
	// Name is the node name scripts refer to.
	Name string

	// Sources is the number of stack entries the kernel consumes.
	Sources int

	// Attr lists the accepted attributes in declaration order.
	Attr []Attr

	// WGSL is the compute shader source.
	WGSL string

	// Pack converts resolved attribute values into uniform buffer
	// contents, one slice per parameter binding.
	Pack func(attr map[string][]float32) [][]float32
}

// Params returns the number of uniform buffers the kernel binds.
func (k *Kernel) Params() int {
	return len(k.Pack(k.defaults()))
}

func (k *Kernel) defaults() map[string][]float32 {
	m := make(map[string][]float32, len(k.Attr))
	for _, a := range k.Attr {
		m[a.Name] = a.Default
	}
	return m
}

var kernels = map[string]*Kernel{}

func register(k *Kernel) {
	kernels[k.Name] = k
}

func init() {
	register(&Kernel{
		Name:    "gaussian_blur",
		Sources: 1,
		Attr:    []Attr{{Name: "sigma", Default: []float32{2}}},
		WGSL:    gaussianWGSL,
		Pack:    packGaussian,
	})
	register(&Kernel{
		Name:    "sobel",
		Sources: 1,
		Attr:    []Attr{{Name: "weight", Default: []float32{1}}},
		WGSL:    sobelWGSL,
		Pack: func(a map[string][]float32) [][]float32 {
			return [][]float32{{first(a["weight"], 1), 0, 0, 0}}
		},
	})
	register(&Kernel{
		Name:    "color_matrix",
		Sources: 1,
		Attr:    []Attr{{Name: "matrix", Default: identityDefault()}},
		WGSL:    colorMatrixWGSL,
		Pack:    packColorMatrix,
	})
	register(&Kernel{
		Name:    "brightness",
		Sources: 1,
		Attr:    []Attr{{Name: "factor", Default: []float32{1}}},
		WGSL:    colorMatrixWGSL,
		Pack:    packMatrix(BrightnessMatrix, "factor", 1),
	})
	register(&Kernel{
		Name:    "contrast",
		Sources: 1,
		Attr:    []Attr{{Name: "factor", Default: []float32{1}}},
		WGSL:    colorMatrixWGSL,
		Pack:    packMatrix(ContrastMatrix, "factor", 1),
	})
	register(&Kernel{
		Name:    "saturation",
		Sources: 1,
		Attr:    []Attr{{Name: "factor", Default: []float32{1}}},
		WGSL:    colorMatrixWGSL,
		Pack:    packMatrix(SaturationMatrix, "factor", 1),
	})
	register(&Kernel{
		Name:    "hue_rotate",
		Sources: 1,
		Attr:    []Attr{{Name: "degrees", Default: []float32{0}}},
		WGSL:    colorMatrixWGSL,
		Pack:    packMatrix(HueRotateMatrix, "degrees", 0),
	})
	register(&Kernel{Name: "grayscale", Sources: 1, WGSL: colorMatrixWGSL, Pack: packFixed(SaturationMatrix(0))})
	register(&Kernel{Name: "sepia", Sources: 1, WGSL: colorMatrixWGSL, Pack: packFixed(SepiaMatrix())})
	register(&Kernel{Name: "invert", Sources: 1, WGSL: colorMatrixWGSL, Pack: packFixed(InvertMatrix())})
	register(&Kernel{
		Name:    "alpha",
		Sources: 2,
		Attr:    []Attr{{Name: "ratio", Default: []float32{0.5}}},
		WGSL:    alphaWGSL,
		Pack: func(a map[string][]float32) [][]float32 {
			return [][]float32{{first(a["ratio"], 0.5), 0, 0, 0}}
		},
	})
}

func identityDefault() []float32 {
	m := IdentityMatrix()
	return m[:]
}

// Lookup returns the kernel registered under name.
func Lookup(name string) (*Kernel, bool) {
	k, ok := kernels[name]
	return k, ok
}

// Names returns the names of all built-in kernels, sorted.
func Names() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
