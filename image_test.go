package softblend

import "testing"

func TestImage_AtSet(t *testing.T) {
	img := NewImage(2, 3, 4)
	want := RGBA{R: 0.1, G: 0.2, B: 0.3, A: 0.4}
	img.Set(1, 2, 3, want)
	if got := img.At(1, 2, 3); got != want {
		t.Errorf("At = %+v, want %+v", got, want)
	}
	if got := img.At(0, 0, 0); got != (RGBA{}) {
		t.Errorf("untouched pixel = %+v, want zero", got)
	}
}

func TestImage_FlipRowsInvolution(t *testing.T) {
	img := NewImage(2, 5, 3)
	for i := range img.Pix {
		img.Pix[i] = float64(i)
	}
	orig := append([]float64(nil), img.Pix...)

	img.FlipRows()
	flippedOnce := append([]float64(nil), img.Pix...)
	img.FlipRows()

	for i := range img.Pix {
		if img.Pix[i] != orig[i] {
			t.Fatalf("double flip changed channel %d: %g != %g", i, img.Pix[i], orig[i])
		}
	}

	// Each batch element flips independently.
	w := 3
	for n := 0; n < 2; n++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < w; x++ {
				src := ((n*5+(4-y))*w + x) * 4
				dst := ((n*5+y)*w + x) * 4
				if flippedOnce[dst] != orig[src] {
					t.Fatalf("batch %d row %d not mirrored from row %d", n, y, 4-y)
				}
			}
		}
	}
}

func TestImage_FlipRowsOddHeight(t *testing.T) {
	img := NewImage(1, 3, 1)
	img.Set(0, 0, 0, Red)
	img.Set(0, 1, 0, Green)
	img.Set(0, 2, 0, Blue)
	img.FlipRows()

	if img.At(0, 0, 0) != Blue || img.At(0, 1, 0) != Green || img.At(0, 2, 0) != Red {
		t.Errorf("flipped rows = %+v %+v %+v, want blue green red",
			img.At(0, 0, 0), img.At(0, 1, 0), img.At(0, 2, 0))
	}
}

func TestImage_Clamp(t *testing.T) {
	img := NewImage(1, 1, 2)
	img.Pix = []float64{-0.5, 0.5, 1.5, 2, 0, 1, -1e9, 1e9}
	img.Clamp()
	want := []float64{0, 0.5, 1, 1, 0, 1, 0, 1}
	for i, v := range img.Pix {
		if v != want[i] {
			t.Errorf("Pix[%d] = %g, want %g", i, v, want[i])
		}
	}
}

func TestImage_Frame(t *testing.T) {
	img := NewImage(2, 2, 2)
	img.Set(1, 0, 1, RGBA{R: 1, G: 0.5, B: 0, A: 1})

	frame := img.Frame(1)
	if b := frame.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", b)
	}

	r, g, _, a := frame.At(1, 0).RGBA()
	if r != 0xffff || a != 0xffff {
		t.Errorf("red/alpha = %#x/%#x, want full", r, a)
	}
	if g < 0x7e00 || g > 0x8100 {
		t.Errorf("green = %#x, want about half scale", g)
	}

	// Frame 0 is untouched.
	if _, _, _, a := img.Frame(0).At(1, 0).RGBA(); a != 0 {
		t.Errorf("frame 0 alpha = %#x, want 0", a)
	}

	// Out-of-bounds access returns transparent.
	if _, _, _, a := frame.At(-1, 5).RGBA(); a != 0 {
		t.Errorf("out-of-bounds alpha = %#x, want 0", a)
	}
}

func TestImage_ToNRGBA(t *testing.T) {
	img := NewImage(1, 1, 1)
	img.Set(0, 0, 0, RGBA{R: 1, G: 0, B: 0.2, A: 1})

	out := img.ToNRGBA(0)
	px := out.NRGBAAt(0, 0)
	if px.R != 255 || px.G != 0 || px.A != 255 {
		t.Errorf("pixel = %+v", px)
	}
	if px.B < 50 || px.B > 52 {
		t.Errorf("blue = %d, want 51", px.B)
	}
}
