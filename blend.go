package softblend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/softblend/internal/composite"
	"github.com/gogpu/softblend/internal/parallel"
)

// rowGrain is the number of image rows handed to one worker at a time.
const rowGrain = 8

// blendPool returns the shared worker pool for CPU compositing, creating
// it on first use with one worker per CPU.
var blendPool = sync.OnceValue(func() *parallel.WorkerPool {
	return parallel.NewWorkerPool(0)
})

// HardRGBBlend composites the top K faces with the hard nearest-face rule:
//
//   - RGB: the color of slot 0, the nearest face.
//   - A:   1.0 everywhere, even where no face is present. This is a
//     deliberate simplification of the baseline variant, not an oversight.
//
// The nearest-face selection is a step function of the input geometry, so
// this variant carries no gradient; use it for previews and as a z-buffer
// style reference.
//
// colors has shape [N,H,W,K,3]. The result has shape [N,H,W,4] with row 0
// at the top of the image.
func HardRGBBlend(colors []float64, frags *Fragments) (*Image, error) {
	if err := frags.checkColors(colors); err != nil {
		return nil, err
	}

	img := NewImage(frags.Batch(), frags.Height(), frags.Width())
	if !tryAccelerator(AccelHardBlend, img, colors, frags, BlendParams{}) {
		k := frags.Slots()
		forEachRow(frags, func(pixStart, pixEnd int) {
			for pix := pixStart; pix < pixEnd; pix++ {
				c := pix * k * 3 // slot 0 color of this pixel
				o := pix * 4
				img.Pix[o] = colors[c]
				img.Pix[o+1] = colors[c+1]
				img.Pix[o+2] = colors[c+2]
				img.Pix[o+3] = 1
			}
		})
	}
	img.FlipRows()
	return img, nil
}

// SigmoidAlphaBlend composites the top K faces with a hard color choice and
// a smooth silhouette alpha:
//
//   - RGB: the color of slot 0, as in HardRGBBlend.
//   - A:   the probabilistic-OR aggregate of sigmoid(-dist/sigma) over all
//     valid slots (see SilhouetteAlpha).
//
// Only sigma from params is used. All four channels are clamped to [0,1];
// the alpha is mathematically already in range, the clamp guards against
// floating-point drift.
//
// colors has shape [N,H,W,K,3]. The result has shape [N,H,W,4] with row 0
// at the top of the image.
func SigmoidAlphaBlend(colors []float64, frags *Fragments, params BlendParams) (*Image, error) {
	if err := frags.checkColors(colors); err != nil {
		return nil, err
	}
	if frags.Dists == nil {
		return nil, ErrMissingDists
	}

	img := NewImage(frags.Batch(), frags.Height(), frags.Width())
	if !tryAccelerator(AccelSigmoidBlend, img, colors, frags, params) {
		k := frags.Slots()
		sigma := params.Sigma()
		forEachRow(frags, func(pixStart, pixEnd int) {
			probs := make([]float64, k)
			for pix := pixStart; pix < pixEnd; pix++ {
				base := pix * k
				composite.Probs(probs, frags.Dists[base:base+k], frags.Faces[base:base+k], sigma)

				c := base * 3 // slot 0 color, hard assignment
				o := pix * 4
				img.Pix[o] = colors[c]
				img.Pix[o+1] = colors[c+1]
				img.Pix[o+2] = colors[c+2]
				img.Pix[o+3] = composite.Alpha(probs)
			}
		})
	}
	img.Clamp()
	img.FlipRows()
	return img, nil
}

// SoftmaxRGBBlend composites the top K faces with fully soft blending of
// both color and depth ordering:
//
//   - RGB: a convex combination of the K face colors and the background
//     color. Each face is weighted by its coverage probability scaled by a
//     softmax over normalized inverse depth, so nearer faces dominate with
//     a sharpness controlled by gamma.
//   - A:   the probabilistic-OR aggregate of the coverage probabilities,
//     as in SigmoidAlphaBlend.
//
// Depths are normalized against the params clip planes. A pixel whose
// slots are all padding composites to pure background with alpha 0. All
// four channels are clamped to [0,1].
//
// colors has shape [N,H,W,K,3]. The result has shape [N,H,W,4] with row 0
// at the top of the image.
func SoftmaxRGBBlend(colors []float64, frags *Fragments, params BlendParams) (*Image, error) {
	if err := frags.checkColors(colors); err != nil {
		return nil, err
	}
	if frags.Dists == nil {
		return nil, ErrMissingDists
	}
	if frags.ZBuf == nil {
		return nil, ErrMissingZBuf
	}
	if !params.backgroundBroadcastable(frags.Batch()) {
		return nil, fmt.Errorf("softblend: %d background colors cannot broadcast over batch of %d",
			len(params.background), frags.Batch())
	}

	img := NewImage(frags.Batch(), frags.Height(), frags.Width())
	if !tryAccelerator(AccelSoftmaxBlend, img, colors, frags, params) {
		softmaxBlendCPU(img, colors, frags, params)
	}
	img.Clamp()
	img.FlipRows()
	return img, nil
}

// softmaxBlendCPU is the CPU path of SoftmaxRGBBlend.
func softmaxBlendCPU(img *Image, colors []float64, frags *Fragments, params BlendParams) {
	k := frags.Slots()
	sigma := params.Sigma()
	gamma := params.Gamma()
	znear, zfar := params.ClipPlanes()
	pixPerElem := frags.Height() * frags.Width()

	forEachRow(frags, func(pixStart, pixEnd int) {
		probs := make([]float64, k)
		zinv := make([]float64, k)
		weights := make([]float64, k)
		for pix := pixStart; pix < pixEnd; pix++ {
			base := pix * k
			faces := frags.Faces[base : base+k]
			composite.Probs(probs, frags.Dists[base:base+k], faces, sigma)
			composite.InverseDepths(zinv, frags.ZBuf[base:base+k], faces, znear, zfar)
			bgWeight := composite.SoftmaxWeights(weights, probs, zinv, gamma)

			bg := params.Background(pix / pixPerElem)
			r := bgWeight * bg.R
			g := bgWeight * bg.G
			b := bgWeight * bg.B
			for s := 0; s < k; s++ {
				c := (base + s) * 3
				r += weights[s] * colors[c]
				g += weights[s] * colors[c+1]
				b += weights[s] * colors[c+2]
			}

			o := pix * 4
			img.Pix[o] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = composite.Alpha(probs)
		}
	})
}

// tryAccelerator dispatches one blend call to the registered accelerator.
// It returns true when the accelerator produced dst; on ErrFallbackToCPU or
// any other error the caller runs the CPU path instead.
func tryAccelerator(op AcceleratedOp, dst *Image, colors []float64, frags *Fragments, params BlendParams) bool {
	a := RegisteredAccelerator()
	if a == nil || !a.CanAccelerate(op) {
		return false
	}

	var err error
	switch op {
	case AccelHardBlend:
		err = a.HardRGBBlend(dst, colors, frags)
	case AccelSigmoidBlend:
		err = a.SigmoidAlphaBlend(dst, colors, frags, params)
	case AccelSoftmaxBlend:
		err = a.SoftmaxRGBBlend(dst, colors, frags, params)
	default:
		return false
	}
	if err != nil {
		if !errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("accelerator blend failed, using CPU", "accelerator", a.Name(), "err", err)
		}
		return false
	}
	return true
}
