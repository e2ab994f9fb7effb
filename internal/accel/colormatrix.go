package accel

import "math"

// ColorMatrix is a 4x5 color transformation in row-major order:
//
//	[R']   [a00 a01 a02 a03 a04]   [R]
//	[G'] = [a10 a11 a12 a13 a14] * [G]
//	[B']   [a20 a21 a22 a23 a24]   [B]
//	[A']   [a30 a31 a32 a33 a34]   [A]
//	                               [1]
//
// The fifth column is a bias in [0, 255] units.
type ColorMatrix [20]float32

// Rec. 709 luminance weights.
const (
	lumR = 0.2126
	lumG = 0.7152
	lumB = 0.0722
)

// IdentityMatrix passes colors through unchanged.
func IdentityMatrix() ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// BrightnessMatrix scales RGB by factor: 0 = black, 1 = unchanged.
func BrightnessMatrix(factor float32) ColorMatrix {
	return ColorMatrix{
		factor, 0, 0, 0, 0,
		0, factor, 0, 0, 0,
		0, 0, factor, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// ContrastMatrix scales RGB around mid-gray: 0 = gray, 1 = unchanged.
func ContrastMatrix(factor float32) ColorMatrix {
	offset := 128 * (1 - factor)
	return ColorMatrix{
		factor, 0, 0, 0, offset,
		0, factor, 0, 0, offset,
		0, 0, factor, 0, offset,
		0, 0, 0, 1, 0,
	}
}

// SaturationMatrix blends between luminance (0) and identity (1).
func SaturationMatrix(factor float32) ColorMatrix {
	inv := 1 - factor
	return ColorMatrix{
		lumR*inv + factor, lumG * inv, lumB * inv, 0, 0,
		lumR * inv, lumG*inv + factor, lumB * inv, 0, 0,
		lumR * inv, lumG * inv, lumB*inv + factor, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// SepiaMatrix applies a fixed sepia tone.
func SepiaMatrix() ColorMatrix {
	return ColorMatrix{
		0.393, 0.769, 0.189, 0, 0,
		0.349, 0.686, 0.168, 0, 0,
		0.272, 0.534, 0.131, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// InvertMatrix inverts RGB and keeps alpha.
func InvertMatrix() ColorMatrix {
	return ColorMatrix{
		-1, 0, 0, 0, 255,
		0, -1, 0, 0, 255,
		0, 0, -1, 0, 255,
		0, 0, 0, 1, 0,
	}
}

// HueRotateMatrix rotates hue by degrees.
func HueRotateMatrix(degrees float32) ColorMatrix {
	rad := float64(degrees) * math.Pi / 180
	c := float32(math.Cos(rad))
	s := float32(math.Sin(rad))
	return ColorMatrix{
		lumR + c*(1-lumR) - s*lumR, lumG - c*lumG - s*lumG, lumB - c*lumB + s*(1-lumB), 0, 0,
		lumR - c*lumR + s*0.143, lumG + c*(1-lumG) + s*0.140, lumB - c*lumB - s*0.283, 0, 0,
		lumR - c*lumR - s*(1-lumR), lumG - c*lumG + s*lumG, lumB + c*(1-lumB) + s*lumB, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Apply transforms one RGBA color given in [0, 255] and clamps the result.
// It is the CPU reference for the color_matrix kernel.
func (m ColorMatrix) Apply(c [4]float32) [4]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		r := m[row*5:]
		v := r[0]*c[0] + r[1]*c[1] + r[2]*c[2] + r[3]*c[3] + r[4]
		out[row] = float32(math.Max(0, math.Min(255, float64(v))))
	}
	return out
}

// Pack lays the matrix out as the kernel's array<vec4<f32>, 5> uniform:
// four coefficient rows followed by the bias vector scaled to [0, 1].
func (m ColorMatrix) Pack() []float32 {
	out := make([]float32, 20)
	for row := 0; row < 4; row++ {
		copy(out[row*4:row*4+4], m[row*5:row*5+4])
		out[16+row] = m[row*5+4] / 255
	}
	return out
}

func packMatrix(f func(float32) ColorMatrix, attr string, def float32) func(map[string][]float32) [][]float32 {
	return func(a map[string][]float32) [][]float32 {
		return [][]float32{f(first(a[attr], def)).Pack()}
	}
}

func packFixed(m ColorMatrix) func(map[string][]float32) [][]float32 {
	packed := m.Pack()
	return func(map[string][]float32) [][]float32 {
		return [][]float32{append([]float32(nil), packed...)}
	}
}

func packColorMatrix(a map[string][]float32) [][]float32 {
	m := IdentityMatrix()
	copy(m[:], a["matrix"])
	return [][]float32{m.Pack()}
}
