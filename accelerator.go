package softblend

import (
	"errors"
	"sync"
)

// ErrFallbackToCPU indicates the accelerator cannot handle this blend call.
// The caller should transparently fall back to CPU compositing.
var ErrFallbackToCPU = errors.New("softblend: falling back to CPU compositing")

// AcceleratedOp describes blend operation types for capability checking.
type AcceleratedOp uint32

const (
	// AccelHardBlend represents hard nearest-face compositing.
	AccelHardBlend AcceleratedOp = 1 << iota

	// AccelSigmoidBlend represents sigmoid-alpha compositing.
	AccelSigmoidBlend

	// AccelSoftmaxBlend represents softmax depth-weighted compositing.
	AccelSoftmaxBlend
)

// Accelerator is an optional compositing acceleration provider.
//
// When registered via RegisterAccelerator, the blend entry points try the
// accelerator first for supported operations. If the accelerator returns
// ErrFallbackToCPU or any other error, compositing transparently falls back
// to the CPU path.
//
// An accelerator writes the composited pixels into dst in rasterizer row
// order, unclamped; the caller applies the final clamp and row flip so both
// paths share one epilogue.
//
// Implementations are provided by backend packages. Users opt in via blank
// import:
//
//	import _ "github.com/gogpu/softblend/gpu" // enables GPU compositing
type Accelerator interface {
	// Name returns the accelerator name (e.g., "wgpu").
	Name() string

	// Init initializes accelerator resources. Called once during registration.
	Init() error

	// Close releases accelerator resources.
	Close()

	// CanAccelerate reports whether the accelerator supports the given
	// operation. This is a fast check used to skip the accelerator entirely
	// for unsupported operations.
	CanAccelerate(op AcceleratedOp) bool

	// HardRGBBlend composites with the hard nearest-face rule.
	// Returns ErrFallbackToCPU if the call cannot be accelerated.
	HardRGBBlend(dst *Image, colors []float64, frags *Fragments) error

	// SigmoidAlphaBlend composites with hard colors and silhouette alpha.
	// Returns ErrFallbackToCPU if the call cannot be accelerated.
	SigmoidAlphaBlend(dst *Image, colors []float64, frags *Fragments, params BlendParams) error

	// SoftmaxRGBBlend composites with depth-weighted softmax blending.
	// Returns ErrFallbackToCPU if the call cannot be accelerated.
	SoftmaxRGBBlend(dst *Image, colors []float64, frags *Fragments, params BlendParams) error
}

// DeviceProviderAware is an optional interface for accelerators that can
// share GPU resources with an external provider (e.g., a gogpu window).
// When SetDeviceProvider is called, the accelerator reuses the provided GPU
// device instead of creating its own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers an accelerator for optional GPU compositing.
//
// Only one accelerator can be registered. Subsequent calls replace the
// previous one. The accelerator's Init() method is called during
// registration; if Init() fails, the accelerator is not registered and the
// error is returned.
//
// Typical usage via blank import in backend packages:
//
//	func init() {
//	    softblend.RegisterAccelerator(wgpu.NewAccelerator())
//	}
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("softblend: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// RegisteredAccelerator returns the currently registered accelerator, or
// nil if none.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider passes a device provider to the registered
// accelerator, enabling GPU device sharing. If no accelerator is registered
// or it doesn't support device sharing, this is a no-op.
//
// The provider should implement HalDevice() any and HalQueue() any methods
// that return wgpu/hal types.
func SetAcceleratorDeviceProvider(provider any) error {
	a := RegisteredAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
