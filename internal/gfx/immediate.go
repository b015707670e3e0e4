package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// immediateExecutor runs one-off command buffers outside the frame loop,
// on its own pool so frame pools are never touched.
type immediateExecutor struct {
	pool  core1_0.CommandPool
	fence core1_0.Fence
}

func (d *Device) createImmediateExecutor() error {
	var err error
	d.immediate.pool, _, err = d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: d.graphicsFamily,
	})
	if err != nil {
		return errors.Wrap(err, "creating immediate command pool")
	}

	d.immediate.fence, _, err = d.driver.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "creating immediate fence")
	}
	return nil
}

// ImmediateSubmit records fn into a one-time command buffer, submits it and
// waits for it to finish.
func (d *Device) ImmediateSubmit(fn func(cmd core1_0.CommandBuffer) error) error {
	buffers, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.immediate.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocating immediate command buffer")
	}
	cmd := buffers[0]
	defer d.driver.FreeCommandBuffers(cmd)

	_, err = d.driver.BeginCommandBuffer(cmd, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "beginning immediate command buffer")
	}

	if err := fn(cmd); err != nil {
		// Still end the buffer so it can be freed from a valid state.
		_, _ = d.driver.EndCommandBuffer(cmd)
		return err
	}

	_, err = d.driver.EndCommandBuffer(cmd)
	if err != nil {
		return errors.Wrap(err, "ending immediate command buffer")
	}

	_, err = d.driver.QueueSubmit(d.graphicsQueue, &d.immediate.fence,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{cmd},
		},
	)
	if err != nil {
		return errors.Wrap(err, "submitting immediate command buffer")
	}

	_, err = d.driver.WaitForFences(true, common.NoTimeout, d.immediate.fence)
	if err != nil {
		return errors.Wrap(err, "waiting for immediate fence")
	}

	_, err = d.driver.ResetFences(d.immediate.fence)
	return errors.Wrap(err, "resetting immediate fence")
}

func (d *Device) cleanupImmediateExecutor() {
	if d.immediate.fence.Initialized() {
		d.driver.DestroyFence(d.immediate.fence, nil)
	}
	if d.immediate.pool.Initialized() {
		d.driver.DestroyCommandPool(d.immediate.pool, nil)
	}
	d.immediate = immediateExecutor{}
}
