package softblend

import (
	"fmt"

	"github.com/gogpu/softblend/internal/composite"
	"github.com/gogpu/softblend/internal/parallel"
)

// SilhouetteAlpha computes the per-pixel coverage probability used as the
// alpha channel by the soft blend variants.
//
// Each valid slot contributes sigmoid(-dist/sigma), padding slots
// contribute zero, and the K contributions are aggregated with a
// probabilistic OR: a pixel is covered as soon as any one face covers it.
// The result has shape [N,H,W], flat row-major, in rasterizer row order
// and is not clamped. A pixel whose slots are all padding gets alpha 0.
func SilhouetteAlpha(frags *Fragments, sigma float64) ([]float64, error) {
	if frags.Dists == nil {
		return nil, ErrMissingDists
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("softblend: sigma must be positive, got %g", sigma)
	}

	k := frags.Slots()
	out := make([]float64, frags.Batch()*frags.Height()*frags.Width())
	forEachRow(frags, func(rowStart, rowEnd int) {
		probs := make([]float64, k)
		for pix := rowStart; pix < rowEnd; pix++ {
			base := pix * k
			composite.Probs(probs, frags.Dists[base:base+k], frags.Faces[base:base+k], sigma)
			out[pix] = composite.Alpha(probs)
		}
	})
	return out, nil
}

// forEachRow runs fn over contiguous pixel ranges, one image row at a time,
// spread across the worker pool. Ranges are disjoint so fn may write to its
// slice of the output without locking.
func forEachRow(frags *Fragments, fn func(pixStart, pixEnd int)) {
	rows := frags.Batch() * frags.Height()
	w := frags.Width()
	parallel.For(blendPool(), rows, rowGrain, func(start, end int) {
		fn(start*w, end*w)
	})
}
