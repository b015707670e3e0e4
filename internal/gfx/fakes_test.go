package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// hostAllocator backs every buffer with plain host memory.
type hostAllocator struct {
	created   int
	destroyed int
	failAfter int
}

func (a *hostAllocator) CreateBuffer(size int, usage core1_0.BufferUsageFlags, memoryUsage MemoryUsage) (*Buffer, error) {
	if a.failAfter > 0 && a.created >= a.failAfter {
		return nil, errors.New("out of memory")
	}
	a.created++
	return &Buffer{
		Size:  size,
		Usage: usage,
		alloc: allocation{size: size, mapped: make([]byte, size)},
	}, nil
}

func (a *hostAllocator) DestroyBuffer(b *Buffer) {
	a.destroyed++
	*b = Buffer{}
}

// copyRecorder executes copies immediately and logs everything else.
type copyRecorder struct {
	ops      []string
	barriers []BufferBarrier
}

func (r *copyRecorder) BufferBarrier(cmd core1_0.CommandBuffer, barrier BufferBarrier) error {
	r.ops = append(r.ops, "buffer-barrier")
	r.barriers = append(r.barriers, barrier)
	return nil
}

func (r *copyRecorder) ImageBarrier(cmd core1_0.CommandBuffer, barrier ImageBarrier) error {
	r.ops = append(r.ops, "image-barrier")
	return nil
}

func (r *copyRecorder) CopyBuffer(cmd core1_0.CommandBuffer, src, dst *Buffer, size int) error {
	r.ops = append(r.ops, "copy")
	copy(dst.alloc.mapped[:size], src.alloc.mapped[:size])
	return nil
}

func (r *copyRecorder) BeginRenderPass(cmd core1_0.CommandBuffer, begin RenderPassBegin) error {
	r.ops = append(r.ops, "begin-pass")
	return nil
}

func (r *copyRecorder) EndRenderPass(cmd core1_0.CommandBuffer) {
	r.ops = append(r.ops, "end-pass")
}

func (r *copyRecorder) BindPipeline(cmd core1_0.CommandBuffer, pipeline *Pipeline) {
	r.ops = append(r.ops, "bind-pipeline")
}

func (r *copyRecorder) BindBindlessSet(cmd core1_0.CommandBuffer, pipeline *Pipeline) {
	r.ops = append(r.ops, "bind-bindless")
}

func (r *copyRecorder) SetViewportScissor(cmd core1_0.CommandBuffer, extent core1_0.Extent2D) {
	r.ops = append(r.ops, "viewport")
}

func (r *copyRecorder) BindIndexBuffer(cmd core1_0.CommandBuffer, buffer *Buffer) {
	r.ops = append(r.ops, "bind-index")
}

func (r *copyRecorder) PushConstants(cmd core1_0.CommandBuffer, pipeline *Pipeline, data []byte) {
	r.ops = append(r.ops, "push")
}

func (r *copyRecorder) DrawIndexed(cmd core1_0.CommandBuffer, indexCount int) {
	r.ops = append(r.ops, "draw-indexed")
}

func (r *copyRecorder) Draw(cmd core1_0.CommandBuffer, vertexCount int) {
	r.ops = append(r.ops, "draw")
}
