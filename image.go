package softblend

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// Image is a batch of float RGBA images, the output of a blend call.
//
// Pixels are stored flat, row-major over [N,H,W,4] with channel order
// R, G, B, A and every channel in [0, 1]. Row 0 is the top of the image.
type Image struct {
	batch  int
	height int
	width  int

	// Pix holds the pixel data, 4 floats per pixel.
	Pix []float64
}

// NewImage creates a zeroed image batch with the given dimensions.
func NewImage(batch, height, width int) *Image {
	return &Image{
		batch:  batch,
		height: height,
		width:  width,
		Pix:    make([]float64, batch*height*width*4),
	}
}

// Batch returns the number of batch elements N.
func (m *Image) Batch() int { return m.batch }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// index returns the offset of the R channel of pixel (n, y, x).
func (m *Image) index(n, y, x int) int {
	return ((n*m.height+y)*m.width + x) * 4
}

// At returns the RGBA value of pixel (n, y, x).
func (m *Image) At(n, y, x int) RGBA {
	i := m.index(n, y, x)
	return RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: m.Pix[i+3]}
}

// Set assigns the RGBA value of pixel (n, y, x).
func (m *Image) Set(n, y, x int, c RGBA) {
	i := m.index(n, y, x)
	m.Pix[i] = c.R
	m.Pix[i+1] = c.G
	m.Pix[i+2] = c.B
	m.Pix[i+3] = c.A
}

// FlipRows reverses the row order of every batch element in place.
// Applying it twice restores the original order.
func (m *Image) FlipRows() {
	rowLen := m.width * 4
	tmp := make([]float64, rowLen)
	for n := 0; n < m.batch; n++ {
		base := n * m.height * rowLen
		for top, bot := 0, m.height-1; top < bot; top, bot = top+1, bot-1 {
			a := m.Pix[base+top*rowLen : base+top*rowLen+rowLen]
			b := m.Pix[base+bot*rowLen : base+bot*rowLen+rowLen]
			copy(tmp, a)
			copy(a, b)
			copy(b, tmp)
		}
	}
}

// Clamp restricts every channel to [0, 1] in place.
func (m *Image) Clamp() {
	for i, v := range m.Pix {
		m.Pix[i] = clamp01(v)
	}
}

// Frame returns one batch element as a standard image.Image view.
// The view shares storage with the batch; it does not copy.
func (m *Image) Frame(n int) image.Image {
	return &frame{img: m, n: n}
}

// ToNRGBA converts one batch element to an 8-bit image.NRGBA.
func (m *Image) ToNRGBA(n int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			c := m.At(n, y, x)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(clamp255(c.R * 255))
			out.Pix[i+1] = uint8(clamp255(c.G * 255))
			out.Pix[i+2] = uint8(clamp255(c.B * 255))
			out.Pix[i+3] = uint8(clamp255(c.A * 255))
		}
	}
	return out
}

// SavePNG saves one batch element to a PNG file.
func (m *Image) SavePNG(n int, path string) error {
	if n < 0 || n >= m.batch {
		return fmt.Errorf("softblend: batch index %d out of range [0,%d)", n, m.batch)
	}
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return png.Encode(f, m.ToNRGBA(n))
}

// frame adapts one batch element to the image.Image interface.
type frame struct {
	img *Image
	n   int
}

// At implements the image.Image interface.
func (v *frame) At(x, y int) color.Color {
	if x < 0 || x >= v.img.width || y < 0 || y >= v.img.height {
		return color.NRGBA{}
	}
	return v.img.At(v.n, y, x).Color()
}

// Bounds implements the image.Image interface.
func (v *frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, v.img.width, v.img.height)
}

// ColorModel implements the image.Image interface.
func (v *frame) ColorModel() color.Model {
	return color.NRGBAModel
}
