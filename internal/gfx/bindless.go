package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const bindlessBinding = 0

type bindlessWrite struct {
	id      ImageID
	view    core1_0.ImageView
	sampler core1_0.Sampler
	layout  core1_0.ImageLayout
}

// pendingWrites holds descriptor writes per frame slot. A slot's writes are
// applied only once that slot's fence has signalled, so a set is never
// updated while a submitted command buffer may read it.
type pendingWrites struct {
	slots [][]bindlessWrite
}

func newPendingWrites(frames int) pendingWrites {
	return pendingWrites{slots: make([][]bindlessWrite, frames)}
}

func (p *pendingWrites) queue(w bindlessWrite) {
	for i := range p.slots {
		p.slots[i] = append(p.slots[i], w)
	}
}

// take removes the writes queued for slot. When an ID was written more than
// once only the latest write survives, in the position of its first write.
func (p *pendingWrites) take(slot int) []bindlessWrite {
	queued := p.slots[slot]
	p.slots[slot] = nil
	if len(queued) == 0 {
		return nil
	}

	index := make(map[ImageID]int, len(queued))
	writes := make([]bindlessWrite, 0, len(queued))
	for _, w := range queued {
		if i, ok := index[w.id]; ok {
			writes[i] = w
			continue
		}
		index[w.id] = len(writes)
		writes = append(writes, w)
	}
	return writes
}

func (p *pendingWrites) len(slot int) int {
	return len(p.slots[slot])
}

// bindlessSet is the combined image sampler array shaders index by ImageID.
// There is one descriptor set per frame slot.
type bindlessSet struct {
	driver   core1_0.CoreDeviceDriver
	layout   core1_0.DescriptorSetLayout
	pool     core1_0.DescriptorPool
	sets     []core1_0.DescriptorSet
	capacity int
	pending  pendingWrites
}

func newBindlessSet(driver core1_0.CoreDeviceDriver, frames, capacity int) (*bindlessSet, error) {
	b := &bindlessSet{driver: driver, capacity: capacity, pending: newPendingWrites(frames)}

	var err error
	b.layout, _, err = driver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         bindlessBinding,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: capacity,
				StageFlags:      core1_0.StageVertex | core1_0.StageFragment,
			},
		},
		NextOptions: common.NextOptions{Next: bindlessBindingFlags(nil)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating bindless set layout")
	}

	b.pool, _, err = driver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: frames,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: capacity * frames,
			},
		},
	})
	if err != nil {
		b.cleanup()
		return nil, errors.Wrap(err, "creating bindless descriptor pool")
	}

	layouts := make([]core1_0.DescriptorSetLayout, frames)
	for i := range layouts {
		layouts[i] = b.layout
	}
	b.sets, _, err = driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: b.pool,
		SetLayouts:     layouts,
	})
	if err != nil {
		b.cleanup()
		return nil, errors.Wrap(err, "allocating bindless descriptor sets")
	}
	return b, nil
}

// fill points every slot of every set at img. Only valid while no frame is
// in flight.
func (b *bindlessSet) fill(img *Image, sampler core1_0.Sampler) error {
	infos := make([]core1_0.DescriptorImageInfo, b.capacity)
	for i := range infos {
		infos[i] = core1_0.DescriptorImageInfo{
			ImageView:   img.View,
			Sampler:     sampler,
			ImageLayout: img.SampledLayout,
		}
	}

	writes := make([]core1_0.WriteDescriptorSet, 0, len(b.sets))
	for _, set := range b.sets {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:          set,
			DstBinding:      bindlessBinding,
			DstArrayElement: 0,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			ImageInfo:       infos,
		})
	}
	return errors.Wrap(b.driver.UpdateDescriptorSets(writes, nil), "filling bindless sets")
}

func (b *bindlessSet) queue(w bindlessWrite) {
	b.pending.queue(w)
}

// flush applies the writes queued for slot. Call after the slot's fence wait.
func (b *bindlessSet) flush(slot int) error {
	queued := b.pending.take(slot)
	if len(queued) == 0 {
		return nil
	}

	writes := make([]core1_0.WriteDescriptorSet, 0, len(queued))
	for _, w := range queued {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:          b.sets[slot],
			DstBinding:      bindlessBinding,
			DstArrayElement: int(w.id),
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   w.view,
					Sampler:     w.sampler,
					ImageLayout: w.layout,
				},
			},
		})
	}
	return errors.Wrapf(b.driver.UpdateDescriptorSets(writes, nil), "flushing %d bindless writes", len(writes))
}

func (b *bindlessSet) set(slot int) core1_0.DescriptorSet {
	return b.sets[slot]
}

func (b *bindlessSet) cleanup() {
	if b.pool.Initialized() {
		// Destroying the pool frees its sets.
		b.driver.DestroyDescriptorPool(b.pool, nil)
	}
	if b.layout.Initialized() {
		b.driver.DestroyDescriptorSetLayout(b.layout, nil)
	}
	*b = bindlessSet{}
}

// BindlessSetLayout is set 0 of every pipeline that samples cached images.
func (d *Device) BindlessSetLayout() core1_0.DescriptorSetLayout {
	return d.bindless.layout
}

// writeBindlessImage points slot id of every frame's set at img.
func (d *Device) writeBindlessImage(id ImageID, img *Image) {
	sampler := d.linearSampler
	if isDepthFormat(img.Format) {
		sampler = d.nearestSampler
	}
	d.bindless.queue(bindlessWrite{
		id:      id,
		view:    img.View,
		sampler: sampler,
		layout:  img.SampledLayout,
	})
}
