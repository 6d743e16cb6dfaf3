//go:build !nogpu

package wgpu

import (
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/softblend"
	"github.com/gogpu/softblend/internal/composite"
	"github.com/gogpu/wgpu/hal"
)

// paramsSize is the byte size of the shader Params uniform:
// 4 x u32 + 8 x f32. Must match Params in shaders/softmax.wgsl.
const paramsSize = 48

// packParams serializes the per-pass uniform for one batch element.
func packParams(frags *softblend.Fragments, params softblend.BlendParams, batchIndex int) []byte {
	znear, zfar := params.ClipPlanes()
	bg := params.Background(batchIndex)

	buf := make([]byte, paramsSize)
	writeUint32(buf, 0, uint32(frags.Width()))   //nolint:gosec // dimensions fit uint32
	writeUint32(buf, 4, uint32(frags.Height()))  //nolint:gosec // dimensions fit uint32
	writeUint32(buf, 8, uint32(frags.Slots()))   //nolint:gosec // K fits uint32
	writeUint32(buf, 12, uint32(batchIndex))     //nolint:gosec // batch index fits uint32
	writeFloat32(buf, 16, float32(params.Sigma()))
	writeFloat32(buf, 20, float32(params.Gamma()))
	writeFloat32(buf, 24, float32(znear))
	writeFloat32(buf, 28, float32(zfar))
	writeFloat32(buf, 32, float32(bg.R))
	writeFloat32(buf, 36, float32(bg.G))
	writeFloat32(buf, 40, float32(bg.B))
	writeFloat32(buf, 44, float32(composite.BackgroundDelta(params.Gamma())))
	return buf
}

// dispatchSoftmax uploads the whole batch, runs one compute pass per batch
// element (same pipeline, per-element uniform), and reads the composited
// pixels back into dst. Caller holds a.mu.
func (a *Accelerator) dispatchSoftmax(dst *softblend.Image, colors []float64, frags *softblend.Fragments, params softblend.BlendParams) error {
	n := frags.Batch()
	w, h := uint32(frags.Width()), uint32(frags.Height()) //nolint:gosec // dimensions fit uint32
	pixelBufSize := uint64(n) * uint64(w) * uint64(h) * 4 * 4

	inputs := []struct {
		label string
		data  []byte
	}{
		{"softmax_faces", packInt32(frags.Faces)},
		{"softmax_dists", packFloat32(frags.Dists)},
		{"softmax_zbuf", packFloat32(frags.ZBuf)},
		{"softmax_colors", packFloat32(colors)},
	}

	inputBufs := make([]hal.Buffer, 0, len(inputs))
	defer func() {
		for _, b := range inputBufs {
			a.device.DestroyBuffer(b)
		}
	}()
	for _, in := range inputs {
		buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
			Label: in.label, Size: uint64(len(in.data)),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create %s buffer: %w", in.label, err)
		}
		inputBufs = append(inputBufs, buf)
		a.queue.WriteBuffer(buf, 0, in.data)
	}

	storageBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "softmax_out", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output buffer: %w", err)
	}
	defer a.device.DestroyBuffer(storageBuf)

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "softmax_staging", Size: pixelBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	uniformBufs, bindGroups, err := a.createPerElementBindings(n, frags, params, inputBufs, storageBuf, pixelBufSize)
	if err != nil {
		a.cleanupBindings(uniformBufs, bindGroups)
		return err
	}
	defer a.cleanupBindings(uniformBufs, bindGroups)

	return a.encodeMultiPass(bindGroups, storageBuf, stagingBuf, w, h, pixelBufSize, dst)
}

// createPerElementBindings creates one uniform buffer and bind group per
// batch element. All bind groups share the input and output buffers.
func (a *Accelerator) createPerElementBindings(
	n int, frags *softblend.Fragments, params softblend.BlendParams,
	inputBufs []hal.Buffer, storageBuf hal.Buffer, pixelBufSize uint64,
) ([]hal.Buffer, []hal.BindGroup, error) {
	uniformBufs := make([]hal.Buffer, 0, n)
	bindGroups := make([]hal.BindGroup, 0, n)

	elems := uint64(frags.Batch()*frags.Height()*frags.Width()*frags.Slots())

	for i := 0; i < n; i++ {
		ub, err := a.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "softmax_params", Size: paramsSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return uniformBufs, bindGroups, fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		uniformBufs = append(uniformBufs, ub)
		a.queue.WriteBuffer(ub, 0, packParams(frags, params, i))

		bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "softmax_bind", Layout: a.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: paramsSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: inputBufs[0].NativeHandle(), Offset: 0, Size: elems * 4}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: inputBufs[1].NativeHandle(), Offset: 0, Size: elems * 4}},
				{Binding: 3, Resource: gputypes.BufferBinding{Buffer: inputBufs[2].NativeHandle(), Offset: 0, Size: elems * 4}},
				{Binding: 4, Resource: gputypes.BufferBinding{Buffer: inputBufs[3].NativeHandle(), Offset: 0, Size: elems * 4 * 3}},
				{Binding: 5, Resource: gputypes.BufferBinding{Buffer: storageBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
			},
		})
		if err != nil {
			return uniformBufs, bindGroups, fmt.Errorf("create bind group %d: %w", i, err)
		}
		bindGroups = append(bindGroups, bg)
	}

	return uniformBufs, bindGroups, nil
}

// cleanupBindings destroys uniform buffers and bind groups.
func (a *Accelerator) cleanupBindings(uniformBufs []hal.Buffer, bindGroups []hal.BindGroup) {
	for _, bg := range bindGroups {
		if bg != nil {
			a.device.DestroyBindGroup(bg)
		}
	}
	for _, ub := range uniformBufs {
		if ub != nil {
			a.device.DestroyBuffer(ub)
		}
	}
}

// encodeMultiPass records one compute pass per batch element in a single
// command encoder, copies the output to the staging buffer, submits with
// one fence, and unpacks the readback into dst.
func (a *Accelerator) encodeMultiPass(
	bindGroups []hal.BindGroup, storageBuf, stagingBuf hal.Buffer,
	w, h uint32, pixelBufSize uint64, dst *softblend.Image,
) error {
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "softmax_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("softmax_blend"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	for _, bg := range bindGroups {
		computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "softmax_pass"})
		computePass.SetPipeline(a.pipeline)
		computePass.SetBindGroup(0, bg, nil)
		computePass.Dispatch((w+7)/8, (h+7)/8, 1)
		computePass.End()
	}

	encoder.CopyBufferToBuffer(storageBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixelBufSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, pixelBufSize)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackFloat32(readback, dst.Pix)
	return nil
}

// Byte serialization helpers for GPU buffer upload.

func writeUint32(buf []byte, offset int, val uint32) {
	buf[offset] = byte(val)
	buf[offset+1] = byte(val >> 8)
	buf[offset+2] = byte(val >> 16)
	buf[offset+3] = byte(val >> 24)
}

func writeFloat32(buf []byte, offset int, val float32) {
	writeUint32(buf, offset, math.Float32bits(val))
}

// packInt32 serializes an int32 slice little-endian.
func packInt32(vals []int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		writeUint32(buf, i*4, uint32(v)) //nolint:gosec // intentional bit-cast
	}
	return buf
}

// packFloat32 narrows a float64 slice to float32 and serializes it
// little-endian. The GPU path trades float64 precision for bandwidth.
func packFloat32(vals []float64) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		writeFloat32(buf, i*4, float32(v))
	}
	return buf
}

// unpackFloat32 widens a little-endian float32 buffer into dst.
func unpackFloat32(buf []byte, dst []float64) {
	for i := range dst {
		bits := uint32(buf[i*4]) |
			uint32(buf[i*4+1])<<8 |
			uint32(buf[i*4+2])<<16 |
			uint32(buf[i*4+3])<<24
		dst[i] = float64(math.Float32frombits(bits))
	}
}
