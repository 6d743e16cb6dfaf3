// Package softblend composites rasterized face fragments into RGBA images
// for differentiable rendering.
//
// # Overview
//
// softblend is the blending stage of a soft rasterization pipeline. A
// rasterizer produces, for every pixel, the top K candidate faces together
// with their signed 2D distance to the face silhouette and interpolated
// depth. A shading stage produces an RGB color per candidate face. This
// package combines both into one RGBA image per batch element, using
// continuous probability-weighted blending so that the output varies
// smoothly with the input geometry.
//
// # Quick Start
//
//	import "github.com/gogpu/softblend"
//
//	frags, err := softblend.NewFragments(n, h, w, k, faces, dists, zbuf)
//	if err != nil {
//	    return err
//	}
//
//	params := softblend.NewBlendParams(
//	    softblend.WithSigma(1e-4),
//	    softblend.WithBackground(softblend.White),
//	)
//
//	img, err := softblend.SoftmaxRGBBlend(colors, frags, params)
//
// # Blend Variants
//
// Three variants share the same fragment contract:
//
//   - HardRGBBlend: color of the nearest face, alpha 1. Not differentiable;
//     useful as a z-buffer style baseline.
//   - SigmoidAlphaBlend: hard color assignment with a smooth silhouette
//     alpha derived from the 2D distance map.
//   - SoftmaxRGBBlend: fully soft compositing. Face colors are blended by
//     a depth-weighted softmax over the per-face coverage probabilities,
//     plus a background term.
//
// Every arithmetic step in the soft variants is built from sigmoid, exp,
// log, elementwise products and sum/max reductions, so the computation can
// be replayed inside a gradient-based optimization loop. Invalid fragment
// slots are removed by multiplicative masking, never by branching.
//
// # Coordinate System
//
// Fragment arrays use the rasterizer's row order. Output images are
// vertically flipped so that row 0 is the top of the image, matching the
// usual image convention.
//
// # Performance
//
// The CPU path partitions work across a work-stealing worker pool; rows
// are independent so the workload scales with cores. An optional GPU
// compute backend can be enabled with:
//
//	import _ "github.com/gogpu/softblend/gpu" // enables GPU compositing
package softblend

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
