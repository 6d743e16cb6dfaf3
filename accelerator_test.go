package softblend

import (
	"errors"
	"testing"
)

// fakeAccelerator records calls and returns a scripted result so the
// dispatch and fallback logic can be tested without a GPU.
type fakeAccelerator struct {
	name     string
	ops      AcceleratedOp
	initErr  error
	blendErr error
	fill     RGBA

	initCalls  int
	closeCalls int
	blendCalls int
	provider   any
}

func (f *fakeAccelerator) Name() string { return f.name }

func (f *fakeAccelerator) Init() error {
	f.initCalls++
	return f.initErr
}

func (f *fakeAccelerator) Close() { f.closeCalls++ }

func (f *fakeAccelerator) CanAccelerate(op AcceleratedOp) bool {
	return f.ops&op != 0
}

func (f *fakeAccelerator) HardRGBBlend(dst *Image, colors []float64, frags *Fragments) error {
	return f.blend(dst)
}

func (f *fakeAccelerator) SigmoidAlphaBlend(dst *Image, colors []float64, frags *Fragments, params BlendParams) error {
	return f.blend(dst)
}

func (f *fakeAccelerator) SoftmaxRGBBlend(dst *Image, colors []float64, frags *Fragments, params BlendParams) error {
	return f.blend(dst)
}

func (f *fakeAccelerator) blend(dst *Image) error {
	f.blendCalls++
	if f.blendErr != nil {
		return f.blendErr
	}
	for n := 0; n < dst.Batch(); n++ {
		for y := 0; y < dst.Height(); y++ {
			for x := 0; x < dst.Width(); x++ {
				dst.Set(n, y, x, f.fill)
			}
		}
	}
	return nil
}

func (f *fakeAccelerator) SetDeviceProvider(provider any) error {
	f.provider = provider
	return nil
}

// swapAccelerator installs an accelerator for the test and restores the
// previous registration on cleanup.
func swapAccelerator(t *testing.T, a Accelerator) {
	t.Helper()
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	t.Cleanup(func() {
		accelMu.Lock()
		accel = old
		accelMu.Unlock()
	})
}

func TestRegisterAccelerator(t *testing.T) {
	swapAccelerator(t, nil)

	fake := &fakeAccelerator{name: "fake", ops: AccelSoftmaxBlend}
	if err := RegisterAccelerator(fake); err != nil {
		t.Fatalf("RegisterAccelerator: %v", err)
	}
	if fake.initCalls != 1 {
		t.Errorf("initCalls = %d, want 1", fake.initCalls)
	}
	if RegisteredAccelerator() != Accelerator(fake) {
		t.Error("registered accelerator not returned")
	}

	// Replacing closes the old one.
	second := &fakeAccelerator{name: "second"}
	if err := RegisterAccelerator(second); err != nil {
		t.Fatalf("RegisterAccelerator(second): %v", err)
	}
	if fake.closeCalls != 1 {
		t.Errorf("old accelerator closeCalls = %d, want 1", fake.closeCalls)
	}
}

func TestRegisterAccelerator_InitFailure(t *testing.T) {
	swapAccelerator(t, nil)

	fake := &fakeAccelerator{name: "broken", initErr: errors.New("no device")}
	if err := RegisterAccelerator(fake); err == nil {
		t.Fatal("want init error, got nil")
	}
	if RegisteredAccelerator() != nil {
		t.Error("failed accelerator must not be registered")
	}
}

func TestRegisterAccelerator_Nil(t *testing.T) {
	if err := RegisterAccelerator(nil); err == nil {
		t.Fatal("want error for nil accelerator, got nil")
	}
}

func TestBlend_UsesAccelerator(t *testing.T) {
	fake := &fakeAccelerator{
		name: "fake",
		ops:  AccelSoftmaxBlend,
		fill: RGBA{R: 0.25, G: 0.5, B: 0.75, A: 1},
	}
	swapAccelerator(t, fake)

	frags := buildFragments(t, 1, 1, 1, 1,
		[]int32{0}, []float64{0}, []float64{10})
	img, err := SoftmaxRGBBlend([]float64{1, 1, 1}, frags, NewBlendParams())
	if err != nil {
		t.Fatalf("SoftmaxRGBBlend: %v", err)
	}

	if fake.blendCalls != 1 {
		t.Fatalf("blendCalls = %d, want 1", fake.blendCalls)
	}
	if got := img.At(0, 0, 0); got != fake.fill {
		t.Errorf("pixel = %+v, want accelerator fill %+v", got, fake.fill)
	}
}

func TestBlend_SkipsUnsupportedOps(t *testing.T) {
	fake := &fakeAccelerator{name: "fake", ops: AccelSoftmaxBlend}
	swapAccelerator(t, fake)

	frags := buildFragments(t, 1, 1, 1, 1, []int32{0}, nil, nil)
	if _, err := HardRGBBlend([]float64{1, 0, 0}, frags); err != nil {
		t.Fatalf("HardRGBBlend: %v", err)
	}
	if fake.blendCalls != 0 {
		t.Errorf("blendCalls = %d, want 0 for unsupported op", fake.blendCalls)
	}
}

func TestBlend_FallbackOnError(t *testing.T) {
	for _, blendErr := range []error{ErrFallbackToCPU, errors.New("device lost")} {
		fake := &fakeAccelerator{
			name:     "fake",
			ops:      AccelSoftmaxBlend,
			blendErr: blendErr,
		}
		swapAccelerator(t, fake)

		frags := buildFragments(t, 1, 1, 1, 1,
			[]int32{-1}, []float64{0}, []float64{0})
		params := NewBlendParams(WithBackground(RGB(0.1, 0.2, 0.3)))
		img, err := SoftmaxRGBBlend(make([]float64, 3), frags, params)
		if err != nil {
			t.Fatalf("SoftmaxRGBBlend: %v", err)
		}
		if fake.blendCalls != 1 {
			t.Fatalf("blendCalls = %d, want 1", fake.blendCalls)
		}

		// CPU path must have produced the result.
		if px := img.At(0, 0, 0); !near(px.R, 0.1, 1e-12) || px.A != 0 {
			t.Errorf("fallback pixel = %+v, want CPU background composite", px)
		}
	}
}

func TestSetAcceleratorDeviceProvider(t *testing.T) {
	// No accelerator registered is a no-op.
	swapAccelerator(t, nil)
	if err := SetAcceleratorDeviceProvider("provider"); err != nil {
		t.Fatalf("no accelerator: %v", err)
	}

	fake := &fakeAccelerator{name: "fake"}
	swapAccelerator(t, fake)
	if err := SetAcceleratorDeviceProvider("provider"); err != nil {
		t.Fatalf("SetAcceleratorDeviceProvider: %v", err)
	}
	if fake.provider != "provider" {
		t.Errorf("provider = %v, want %q", fake.provider, "provider")
	}
}
