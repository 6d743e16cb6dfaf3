//go:build !nogpu

// Package gpu registers the WebGPU accelerator for hardware-accelerated
// compositing.
//
// Import this package to offload the softmax blend variant to a compute
// shader. If GPU initialization fails (no Vulkan available), registration
// still succeeds and every blend call transparently composites on the CPU.
//
// Usage:
//
//	import _ "github.com/gogpu/softblend/gpu" // enable GPU compositing
package gpu

import (
	"github.com/gogpu/softblend"
	"github.com/gogpu/softblend/backend/wgpu"
)

func init() {
	if err := softblend.RegisterAccelerator(wgpu.NewAccelerator()); err != nil {
		softblend.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the accelerator to use a shared GPU device
// from an external provider (e.g., gogpu). This avoids creating a separate
// GPU instance and enables efficient device sharing.
//
// The provider should implement HalDevice() any and HalQueue() any methods
// that return wgpu/hal types.
func SetDeviceProvider(provider any) error {
	return softblend.SetAcceleratorDeviceProvider(provider)
}
