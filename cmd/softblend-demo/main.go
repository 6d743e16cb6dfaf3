// Command softblend-demo composites a synthetic scene with all three blend
// variants and writes the results as PNG files.
//
// The scene is three overlapping disks at different depths, "rasterized"
// analytically: the signed distance of a pixel to a disk silhouette is
// |p-c| - r, and each pixel keeps its K nearest disks sorted by depth. This
// stands in for a real mesh rasterizer and makes the differences between
// the variants easy to see: hard selection aliases, sigmoid softens only
// the silhouette, softmax also feathers the occlusion boundaries.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/draw"

	"github.com/gogpu/softblend"
)

// disk is one synthetic scene primitive.
type disk struct {
	cx, cy float64 // center in unit image coordinates
	r      float64 // radius in unit image coordinates
	depth  float64 // constant view-space depth
	color  softblend.RGBA
}

func main() {
	var (
		width  = flag.Int("width", 256, "image width")
		height = flag.Int("height", 256, "image height")
		sigma  = flag.Float64("sigma", 3e-5, "silhouette sharpness")
		gamma  = flag.Float64("gamma", 3e-5, "depth weighting sharpness")
		scale  = flag.Int("scale", 2, "output upscaling factor")
		outDir = flag.String("out", ".", "output directory")
	)
	flag.Parse()

	scene := []disk{
		{cx: 0.38, cy: 0.42, r: 0.27, depth: 20, color: softblend.Hex("#e4572e")},
		{cx: 0.62, cy: 0.45, r: 0.25, depth: 35, color: softblend.Hex("#17bebb")},
		{cx: 0.50, cy: 0.65, r: 0.24, depth: 50, color: softblend.Hex("#ffc914")},
	}

	const k = 3
	colors, frags, err := rasterize(scene, *height, *width, k)
	if err != nil {
		log.Fatalf("rasterize: %v", err)
	}

	params := softblend.NewBlendParams(
		softblend.WithSigma(*sigma),
		softblend.WithGamma(*gamma),
		softblend.WithBackground(softblend.Hex("#2b2d42")),
	)

	outputs := []struct {
		name string
		run  func() (*softblend.Image, error)
	}{
		{"hard.png", func() (*softblend.Image, error) {
			return softblend.HardRGBBlend(colors, frags)
		}},
		{"sigmoid.png", func() (*softblend.Image, error) {
			return softblend.SigmoidAlphaBlend(colors, frags, params)
		}},
		{"softmax.png", func() (*softblend.Image, error) {
			return softblend.SoftmaxRGBBlend(colors, frags, params)
		}},
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}
	for _, out := range outputs {
		img, err := out.run()
		if err != nil {
			log.Fatalf("%s: %v", out.name, err)
		}
		path := filepath.Join(*outDir, out.name)
		if err := savePNG(img, path, *scale); err != nil {
			log.Fatalf("save %s: %v", path, err)
		}
		log.Printf("wrote %s (%dx%d, scale %d)", path, *width, *height, *scale)
	}
}

// rasterize produces fragments and colors for the disk scene with N=1.
// Per pixel it keeps the K nearest disks by depth; remaining slots are
// padded with a negative face index.
func rasterize(scene []disk, h, w, k int) ([]float64, *softblend.Fragments, error) {
	faces := make([]int32, h*w*k)
	dists := make([]float64, h*w*k)
	zbuf := make([]float64, h*w*k)
	colors := make([]float64, h*w*k*3)

	type hit struct {
		face  int
		dist  float64
		depth float64
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := (float64(x) + 0.5) / float64(w)
			// Fragment rows run bottom-up; the blend output flips them back.
			py := (float64(h-1-y) + 0.5) / float64(h)

			var hits []hit
			for f, d := range scene {
				sd := math.Hypot(px-d.cx, py-d.cy) - d.r
				// Keep faces the pixel is inside or nearly touching; a real
				// rasterizer applies the same blur-radius cutoff.
				if sd < 0.05 {
					hits = append(hits, hit{face: f, dist: sd, depth: d.depth})
				}
			}
			sort.Slice(hits, func(i, j int) bool { return hits[i].depth < hits[j].depth })

			base := (y*w + x) * k
			for s := 0; s < k; s++ {
				if s < len(hits) {
					ht := hits[s]
					faces[base+s] = int32(ht.face)
					dists[base+s] = ht.dist
					zbuf[base+s] = ht.depth
					c := scene[ht.face].color
					colors[(base+s)*3] = c.R
					colors[(base+s)*3+1] = c.G
					colors[(base+s)*3+2] = c.B
				} else {
					faces[base+s] = -1
					dists[base+s] = 0
					zbuf[base+s] = 0
				}
			}
		}
	}

	frags, err := softblend.NewFragments(1, h, w, k, faces, dists, zbuf)
	if err != nil {
		return nil, nil, err
	}
	return colors, frags, nil
}

// savePNG writes batch element 0, optionally upscaled with nearest-neighbor
// so the soft silhouettes stay inspectable pixel by pixel.
func savePNG(img *softblend.Image, path string, scale int) error {
	if scale <= 1 {
		return img.SavePNG(0, path)
	}
	src := img.ToNRGBA(0)
	dst := image.NewNRGBA(image.Rect(0, 0, src.Bounds().Dx()*scale, src.Bounds().Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, dst)
}
