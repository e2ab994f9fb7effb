package accel

import "math"

// MaxBlurRadius is the largest half-width the gaussian_blur kernel samples.
// The weight table is a uniform array<vec4<f32>, 8>, so it holds
// MaxBlurRadius+1 weights.
const MaxBlurRadius = 31

// GaussianWeights returns the centre and one side of a normalised 1D
// Gaussian kernel for sigma: w[0] is the centre tap and w[i] the tap at
// distance i. The full kernel w[0] + 2·Σw[i] sums to 1.
//
// The half-width is ceil(3·sigma), which covers 99.7% of the distribution,
// clamped to MaxBlurRadius. For sigma <= 0, returns [1] (identity).
func GaussianWeights(sigma float64) []float32 {
	if sigma <= 0 || math.IsNaN(sigma) {
		return []float32{1.0}
	}

	half := int(math.Ceil(sigma * 3))
	if half > MaxBlurRadius {
		half = MaxBlurRadius
	}

	weights := make([]float32, half+1)
	twoSigmaSq := 2 * sigma * sigma
	sum := float64(0)
	for i := 0; i <= half; i++ {
		x := float64(i)
		val := math.Exp(-(x * x) / twoSigmaSq)
		weights[i] = float32(val)
		if i == 0 {
			sum += val
		} else {
			sum += 2 * val
		}
	}

	if sum > 0 {
		invSum := float32(1.0 / sum)
		for i := range weights {
			weights[i] *= invSum
		}
	}
	return weights
}

// packGaussian turns the sigma attribute into the two uniform buffers of
// the gaussian_blur kernel: params (radius) and the padded weight table.
func packGaussian(attr map[string][]float32) [][]float32 {
	sigma := float64(first(attr["sigma"], 2.0))
	weights := GaussianWeights(sigma)

	params := []float32{float32(len(weights) - 1), 0, 0, 0}
	table := make([]float32, (MaxBlurRadius+1+3)/4*4)
	copy(table, weights)
	return [][]float32{params, table}
}

func first(v []float32, def float32) float32 {
	if len(v) == 0 {
		return def
	}
	return v[0]
}
