package softblend

import (
	"errors"
	"fmt"
)

// Fragment data errors.
var (
	// ErrBadShape is returned when a fragment or color array does not match
	// the declared [N,H,W,K] shape.
	ErrBadShape = errors.New("softblend: array length does not match shape")

	// ErrMissingDists is returned when a blend variant needs the 2D distance
	// map but the fragments were built without one.
	ErrMissingDists = errors.New("softblend: fragments have no 2D distance map")

	// ErrMissingZBuf is returned when a blend variant needs the depth buffer
	// but the fragments were built without one.
	ErrMissingZBuf = errors.New("softblend: fragments have no depth buffer")
)

// Fragments holds the per-pixel rasterizer output consumed by the blend
// variants. All arrays are flat, row-major over [N,H,W,K]: batch, row,
// column, then candidate face slot. Slot 0 is the nearest face.
//
// A slot with Faces[i] < 0 is padding: the rasterizer found fewer than K
// faces at that pixel. The distance and depth values of a padding slot are
// undefined and every blend variant masks them out.
//
// Fragments are read-only for the duration of a blend call. The slices are
// caller-owned and not copied.
type Fragments struct {
	// Faces identifies the face covering each slot; negative means empty.
	Faces []int32

	// Dists is the signed 2D Euclidean distance from the pixel center to
	// the face silhouette edge. Negative inside the face, positive outside.
	// May be nil when only hard blending is used.
	Dists []float64

	// ZBuf is the interpolated view-space depth of the face at the pixel.
	// May be nil when only hard or sigmoid blending is used.
	ZBuf []float64

	batch, height, width, slots int
}

// NewFragments creates a Fragments view over caller-owned arrays.
//
// faces is required and must have length n*h*w*k. dists and zbuf are
// optional (nil), but when present must have the same length as faces.
// k must be at least 1.
func NewFragments(n, h, w, k int, faces []int32, dists, zbuf []float64) (*Fragments, error) {
	if n <= 0 || h <= 0 || w <= 0 || k <= 0 {
		return nil, fmt.Errorf("%w: invalid shape [%d,%d,%d,%d]", ErrBadShape, n, h, w, k)
	}
	want := n * h * w * k
	if len(faces) != want {
		return nil, fmt.Errorf("%w: faces has %d entries, shape [%d,%d,%d,%d] needs %d",
			ErrBadShape, len(faces), n, h, w, k, want)
	}
	if dists != nil && len(dists) != want {
		return nil, fmt.Errorf("%w: dists has %d entries, want %d", ErrBadShape, len(dists), want)
	}
	if zbuf != nil && len(zbuf) != want {
		return nil, fmt.Errorf("%w: zbuf has %d entries, want %d", ErrBadShape, len(zbuf), want)
	}
	return &Fragments{
		Faces:  faces,
		Dists:  dists,
		ZBuf:   zbuf,
		batch:  n,
		height: h,
		width:  w,
		slots:  k,
	}, nil
}

// Batch returns the number of batch elements N.
func (f *Fragments) Batch() int { return f.batch }

// Height returns the image height H in pixels.
func (f *Fragments) Height() int { return f.height }

// Width returns the image width W in pixels.
func (f *Fragments) Width() int { return f.width }

// Slots returns the number of candidate face slots K per pixel.
func (f *Fragments) Slots() int { return f.slots }

// pixelBase returns the index of slot 0 for pixel (n, y, x).
// Slots k of that pixel occupy [base, base+K).
func (f *Fragments) pixelBase(n, y, x int) int {
	return ((n*f.height+y)*f.width + x) * f.slots
}

// checkColors validates a color array of shape [N,H,W,K,3] against the
// fragment shape.
func (f *Fragments) checkColors(colors []float64) error {
	want := f.batch * f.height * f.width * f.slots * 3
	if len(colors) != want {
		return fmt.Errorf("%w: colors has %d entries, shape [%d,%d,%d,%d,3] needs %d",
			ErrBadShape, len(colors), f.batch, f.height, f.width, f.slots, want)
	}
	return nil
}
