package softblend

// Default blend parameter values. Sigma and gamma match the reference
// soft rasterizer settings; smaller values give harder edges and stronger
// nearest-face dominance respectively.
const (
	// DefaultSigma controls the sharpness of the distance-to-probability
	// transition at face silhouettes.
	DefaultSigma = 1e-4

	// DefaultGamma controls the sharpness of the depth-to-weight transition
	// between overlapping faces.
	DefaultGamma = 1e-4

	// DefaultZNear is the near clipping plane used to normalize depth.
	DefaultZNear = 1.0

	// DefaultZFar is the far clipping plane used to normalize depth.
	DefaultZFar = 100.0
)

// BlendParams configures the soft blend variants.
//
// The zero value is not useful; construct with NewBlendParams, which applies
// the defaults above and an opaque white background:
//
//	params := softblend.NewBlendParams(
//	    softblend.WithSigma(1e-5),
//	    softblend.WithBackground(softblend.Black),
//	)
//
// BlendParams is an immutable value; options are applied at construction
// and the struct is safe to share between concurrent blend calls.
type BlendParams struct {
	sigma      float64
	gamma      float64
	background []RGBA
	znear      float64
	zfar       float64
}

// BlendOption configures BlendParams during creation.
type BlendOption func(*BlendParams)

// NewBlendParams creates blend parameters with defaults applied, then the
// given options in order.
func NewBlendParams(opts ...BlendOption) BlendParams {
	p := BlendParams{
		sigma:      DefaultSigma,
		gamma:      DefaultGamma,
		background: []RGBA{White},
		znear:      DefaultZNear,
		zfar:       DefaultZFar,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithSigma sets the sigmoid sharpness for the 2D distance probability map.
// Non-positive values are ignored.
func WithSigma(sigma float64) BlendOption {
	return func(p *BlendParams) {
		if sigma > 0 {
			p.sigma = sigma
		}
	}
}

// WithGamma sets the exponential sharpness for the depth weighting.
// Non-positive values are ignored.
func WithGamma(gamma float64) BlendOption {
	return func(p *BlendParams) {
		if gamma > 0 {
			p.gamma = gamma
		}
	}
}

// WithBackground sets a single background color broadcast across the whole
// batch. Only the RGB channels are used.
func WithBackground(c RGBA) BlendOption {
	return func(p *BlendParams) {
		p.background = []RGBA{c}
	}
}

// WithBackgroundPerBatch sets one background color per batch element.
// The slice length must match the fragment batch size at blend time;
// an empty slice is ignored.
func WithBackgroundPerBatch(cs []RGBA) BlendOption {
	return func(p *BlendParams) {
		if len(cs) > 0 {
			p.background = append([]RGBA(nil), cs...)
		}
	}
}

// WithClipPlanes sets the near and far planes used to normalize depth in
// the softmax variant. Invalid pairs (znear <= 0 or zfar <= znear) are
// ignored.
func WithClipPlanes(znear, zfar float64) BlendOption {
	return func(p *BlendParams) {
		if znear > 0 && zfar > znear {
			p.znear = znear
			p.zfar = zfar
		}
	}
}

// Sigma returns the sigmoid sharpness parameter.
func (p BlendParams) Sigma() float64 { return p.sigma }

// Gamma returns the depth weighting sharpness parameter.
func (p BlendParams) Gamma() float64 { return p.gamma }

// ClipPlanes returns the near and far depth planes.
func (p BlendParams) ClipPlanes() (znear, zfar float64) { return p.znear, p.zfar }

// Background returns the background color for batch element n, applying
// the broadcast rule: a single configured color serves every element.
func (p BlendParams) Background(n int) RGBA {
	if len(p.background) == 1 {
		return p.background[0]
	}
	if n >= 0 && n < len(p.background) {
		return p.background[n]
	}
	return White
}

// backgroundBroadcastable reports whether the configured background colors
// can serve a batch of n elements.
func (p BlendParams) backgroundBroadcastable(n int) bool {
	return len(p.background) == 1 || len(p.background) == n
}
