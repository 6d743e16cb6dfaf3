// Package composite provides the per-pixel numerical kernels shared by the
// blend variants: silhouette coverage probabilities, probabilistic-OR alpha
// aggregation, and depth-weighted softmax weights.
//
// All kernels operate on one pixel's K candidate slots at a time and are
// built from sigmoid, exp, log, elementwise products and sum/max reductions
// so the computation has a well-defined derivative everywhere. Padding slots
// (negative face index) are removed by multiplicative masking, never by
// branching on the masked values.
package composite

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sigmoid returns 1 / (1 + exp(-x)).
//
// The two-branch form keeps the exponent non-positive so exp never
// overflows; both branches are the same function.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Probs fills dst[k] with the coverage probability of slot k:
//
//	dst[k] = sigmoid(-dists[k] / sigma) * mask[k]
//
// where mask[k] is 1 for a valid slot (faces[k] >= 0) and 0 for padding.
// The sign flip maps negative distance (pixel inside the face) to a
// probability near 1 and positive distance to a probability near 0.
//
// dst, dists and faces must all have length K.
func Probs(dst []float64, dists []float64, faces []int32, sigma float64) {
	for k := range dst {
		mask := validMask(faces[k])
		dst[k] = Sigmoid(-dists[k]/sigma) * mask
	}
}

// Alpha aggregates per-slot coverage probabilities into one alpha value
// using the probabilistic OR:
//
//	alpha = 1 - prod_k (1 - probs[k])
//
// computed in the log domain as 1 - exp(sum_k log(1 - probs[k])). The log
// form is preferred: on a computational graph the product couples every
// slot's gradient through all other slots, while the log-sum keeps them
// additive and stable for large K. Both forms agree to floating tolerance;
// AlphaProduct keeps the direct form as a reference.
//
// alpha is 1 as soon as any slot fully covers the pixel and 0 when every
// slot is padding.
func Alpha(probs []float64) float64 {
	sum := 0.0
	for _, p := range probs {
		sum += math.Log1p(-p)
	}
	return 1 - math.Exp(sum)
}

// AlphaProduct is the direct product form of Alpha.
func AlphaProduct(probs []float64) float64 {
	prod := 1.0
	for _, p := range probs {
		prod *= 1 - p
	}
	return 1 - prod
}

// InverseDepths fills dst[k] with the normalized inverse depth of slot k:
//
//	dst[k] = (zfar - zbuf[k]) / (zfar - znear) * mask[k]
//
// A face at the near plane maps to 1, a face at the far plane to 0, and
// padding slots to 0 regardless of their (undefined) depth value.
//
// dst, zbuf and faces must all have length K.
func InverseDepths(dst []float64, zbuf []float64, faces []int32, znear, zfar float64) {
	inv := 1 / (zfar - znear)
	for k := range dst {
		mask := validMask(faces[k])
		dst[k] = (zfar - zbuf[k]) * inv * mask
	}
}

// BackgroundDelta returns the fixed background mass term:
//
//	delta = exp(1e-10 / gamma) * 1e-10
//
// It stands in for an infinitely distant extra face so the softmax
// denominator never reaches zero, and it becomes the background weight
// after normalization.
func BackgroundDelta(gamma float64) float64 {
	return math.Exp(1e-10/gamma) * 1e-10
}

// SoftmaxWeights fills weights[k] with the normalized depth-weighted
// contribution of slot k and returns the normalized background weight.
// On return, sum_k weights[k] + bg == 1 up to floating-point error.
//
// The unnormalized weight of slot k is probs[k] * exp((zinv[k]-zmax)/gamma)
// where zmax is the per-pixel maximum of zinv. Subtracting the maximum caps
// the exponent at zero so exp cannot overflow, and the ratio between face
// weights is unchanged. The fixed delta term is added to the denominator
// unshifted; it is a constant, not a candidate in the max.
//
// probs and zinv must already be masked (zero at padding slots). weights,
// probs and zinv must all have length K >= 1.
func SoftmaxWeights(weights, probs, zinv []float64, gamma float64) (bg float64) {
	zmax := floats.Max(zinv)
	for k := range weights {
		weights[k] = probs[k] * math.Exp((zinv[k]-zmax)/gamma)
	}
	delta := BackgroundDelta(gamma)
	denom := floats.Sum(weights) + delta
	floats.Scale(1/denom, weights)
	return delta / denom
}

// validMask returns 1 for a real face index and 0 for the padding sentinel.
func validMask(face int32) float64 {
	if face >= 0 {
		return 1
	}
	return 0
}
