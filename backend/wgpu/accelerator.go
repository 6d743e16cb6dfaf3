//go:build !nogpu

package wgpu

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/softblend"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

//go:embed shaders/softmax.wgsl
var softmaxShaderWGSL string

// DefaultGPUPixelThreshold is the minimum number of output pixels (N*H*W)
// to use the GPU. Below this, dispatch and transfer overhead outweigh the
// parallel arithmetic and the CPU path is typically faster.
const DefaultGPUPixelThreshold = 1 << 16

// Accelerator offloads softmax compositing to a WebGPU compute shader.
// It implements the softblend.Accelerator interface.
//
// Each blend call uploads the fragment and color arrays, runs one compute
// pass per batch element (the background color is a per-element uniform),
// and reads the composited pixels back.
type Accelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	log *slog.Logger

	pixelThreshold int
	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var _ softblend.Accelerator = (*Accelerator)(nil)
var _ softblend.DeviceProviderAware = (*Accelerator)(nil)

// NewAccelerator creates an unregistered WebGPU accelerator.
// Call softblend.RegisterAccelerator to initialize and enable it.
func NewAccelerator() *Accelerator {
	return &Accelerator{
		log:            slog.New(slog.DiscardHandler),
		pixelThreshold: DefaultGPUPixelThreshold,
	}
}

// Name returns the accelerator name.
func (a *Accelerator) Name() string { return "wgpu" }

// CanAccelerate reports GPU support for the given blend operation.
// Only the softmax variant is worth the transfer cost.
func (a *Accelerator) CanAccelerate(op softblend.AcceleratedOp) bool {
	return op&softblend.AccelSoftmaxBlend != 0
}

// SetLogger replaces the accelerator's logger. Called by softblend when a
// logger is configured via softblend.SetLogger.
func (a *Accelerator) SetLogger(l *slog.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l != nil {
		a.log = l
	}
}

// SetPixelThreshold overrides the minimum GPU workload size.
// Zero or negative sends every supported call to the GPU (for testing).
func (a *Accelerator) SetPixelThreshold(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pixelThreshold = n
}

// Init acquires a GPU device and builds the compute pipeline. A missing
// GPU is not an error: the accelerator stays registered with the GPU
// disabled and every call falls back to the CPU.
func (a *Accelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initGPU(); err != nil {
		a.log.Warn("GPU unavailable, compositing stays on CPU", "err", err)
	}
	return nil
}

// Close releases GPU resources.
func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyPipeline()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
			a.device = nil
		}
		if a.instance != nil {
			a.instance.Destroy()
			a.instance = nil
		}
	} else {
		// Don't destroy shared resources — we don't own them
		a.device = nil
		a.instance = nil
	}
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDeviceProvider switches the accelerator to use a shared GPU device
// from an external provider (e.g., gogpu). The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func (a *Accelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Destroy own resources if we created them
	a.destroyPipeline()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createPipeline(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("wgpu: create pipeline with shared device: %w", err)
	}
	a.gpuReady = true
	a.log.Info("switched to shared GPU device")
	return nil
}

// HardRGBBlend is not accelerated; the hard variant is a memory-bound copy.
func (a *Accelerator) HardRGBBlend(_ *softblend.Image, _ []float64, _ *softblend.Fragments) error {
	return softblend.ErrFallbackToCPU
}

// SigmoidAlphaBlend is not accelerated; upload cost exceeds its arithmetic.
func (a *Accelerator) SigmoidAlphaBlend(_ *softblend.Image, _ []float64, _ *softblend.Fragments, _ softblend.BlendParams) error {
	return softblend.ErrFallbackToCPU
}

// SoftmaxRGBBlend composites on the GPU. Small workloads and missing GPU
// support return softblend.ErrFallbackToCPU.
func (a *Accelerator) SoftmaxRGBBlend(dst *softblend.Image, colors []float64, frags *softblend.Fragments, params softblend.BlendParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gpuReady {
		return softblend.ErrFallbackToCPU
	}
	if frags.Batch()*frags.Height()*frags.Width() < a.pixelThreshold {
		return softblend.ErrFallbackToCPU
	}
	return a.dispatchSoftmax(dst, colors, frags, params)
}

func (a *Accelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createPipeline(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipeline: %w", err)
	}
	a.gpuReady = true
	a.log.Info("GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

// createPipeline compiles the softmax shader and builds the compute
// pipeline. The WGSL is compiled to SPIR-V with naga; shader bugs surface
// here rather than at dispatch time.
func (a *Accelerator) createPipeline() error {
	spirvBytes, err := naga.Compile(softmaxShaderWGSL)
	if err != nil {
		return fmt.Errorf("compile softmax shader: %w", err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	shader, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "softmax_blend",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	a.shader = shader

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "softmax_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 5, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	a.bindLayout = bindLayout

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "softmax_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{a.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	a.pipeLayout = pipeLayout

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "softmax_pipeline", Layout: a.pipeLayout,
		Compute: hal.ComputeState{Module: a.shader, EntryPoint: "cs_softmax"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	a.pipeline = pipeline

	return nil
}

func (a *Accelerator) destroyPipeline() {
	if a.device == nil {
		return
	}
	if a.pipeline != nil {
		a.device.DestroyComputePipeline(a.pipeline)
		a.pipeline = nil
	}
	if a.pipeLayout != nil {
		a.device.DestroyPipelineLayout(a.pipeLayout)
		a.pipeLayout = nil
	}
	if a.bindLayout != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
	}
	if a.shader != nil {
		a.device.DestroyShaderModule(a.shader)
		a.shader = nil
	}
}
