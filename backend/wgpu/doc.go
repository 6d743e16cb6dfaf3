// Package wgpu provides GPU-accelerated compositing using WebGPU.
//
// The accelerator implements the softblend.Accelerator interface and
// offloads the softmax depth-weighted blend to a compute shader. The hard
// and sigmoid variants stay on the CPU: they are memory bound, and the
// upload cost of the fragment arrays exceeds their arithmetic.
//
// The WGSL shader is compiled to SPIR-V with gogpu/naga and dispatched
// through the wgpu HAL. If no GPU is available, Init succeeds with the GPU
// disabled and every blend call returns softblend.ErrFallbackToCPU, so the
// caller transparently composites on the CPU.
//
// Users normally enable this backend with a blank import of
// github.com/gogpu/softblend/gpu rather than importing this package
// directly.
package wgpu
