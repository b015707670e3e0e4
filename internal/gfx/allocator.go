package gfx

import (
	"math/bits"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"
)

// MemoryUsage hints where an allocation should live.
type MemoryUsage int

const (
	// MemoryUsageAuto picks device local memory unless host access is
	// requested.
	MemoryUsageAuto MemoryUsage = iota
	MemoryUsageAutoPreferDevice
	MemoryUsageAutoPreferHost
)

func (u MemoryUsage) String() string {
	switch u {
	case MemoryUsageAuto:
		return "Auto"
	case MemoryUsageAutoPreferDevice:
		return "AutoPreferDevice"
	case MemoryUsageAutoPreferHost:
		return "AutoPreferHost"
	}
	return "Unknown"
}

type AllocationFlags uint32

const (
	// AllocationMapped keeps the memory persistently mapped.
	AllocationMapped AllocationFlags = 1 << iota
	// AllocationHostAccessSequentialWrite: the host only writes,
	// sequentially (memcpy). Allows write-combined memory.
	AllocationHostAccessSequentialWrite
	// AllocationHostAccessRandom: the host reads back. Requires cached
	// memory.
	AllocationHostAccessRandom
	// AllocationDeviceAddress allocates memory a buffer device address
	// can be taken from.
	AllocationDeviceAddress
)

type AllocationCreateInfo struct {
	Usage MemoryUsage
	Flags AllocationFlags
}

// allocation is a dedicated device memory block.
type allocation struct {
	memory          core1_0.DeviceMemory
	size            int
	memoryTypeIndex int
	mapped          []byte
}

// memoryFlags converts a usage hint into required, preferred and not preferred
// memory property flags. deviceAccess is false for resources only used as
// transfer sources or destinations.
func memoryFlags(info AllocationCreateInfo, deviceAccess bool) (required, preferred, notPreferred core1_0.MemoryPropertyFlags) {
	hostSequential := info.Flags&AllocationHostAccessSequentialWrite != 0
	hostRandom := info.Flags&AllocationHostAccessRandom != 0
	preferHost := info.Usage == MemoryUsageAutoPreferHost
	preferDevice := info.Usage == MemoryUsageAutoPreferDevice

	switch {
	case hostRandom:
		required |= core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCached
	case hostSequential:
		required |= core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
		notPreferred |= core1_0.MemoryPropertyHostCached
		if deviceAccess && preferHost {
			notPreferred |= core1_0.MemoryPropertyDeviceLocal
		} else if deviceAccess || preferDevice {
			preferred |= core1_0.MemoryPropertyDeviceLocal
		} else {
			notPreferred |= core1_0.MemoryPropertyDeviceLocal
		}
	default:
		if preferHost {
			notPreferred |= core1_0.MemoryPropertyDeviceLocal
		} else {
			preferred |= core1_0.MemoryPropertyDeviceLocal
		}
	}
	return required, preferred, notPreferred
}

// findMemoryTypeIndex returns the allowed memory type with all required
// flags and the fewest missing preferred / present not-preferred flags.
func findMemoryTypeIndex(types []core1_0.MemoryType, typeBits uint32, required, preferred, notPreferred core1_0.MemoryPropertyFlags) (int, error) {
	best := -1
	bestCost := 0
	for i, memoryType := range types {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		flags := memoryType.PropertyFlags
		if flags&required != required {
			continue
		}

		cost := bits.OnesCount32(uint32(preferred&^flags)) + bits.OnesCount32(uint32(notPreferred&flags))
		if best < 0 || cost < bestCost {
			best = i
			bestCost = cost
			if cost == 0 {
				break
			}
		}
	}

	if best < 0 {
		return 0, errors.Errorf("no memory type with bits %b has required flags %s", typeBits, required)
	}
	return best, nil
}

// Allocator hands out dedicated device memory blocks.
type Allocator struct {
	driver      core1_0.CoreDeviceDriver
	memoryTypes []core1_0.MemoryType
	logger      *slog.Logger
	// addressAllocateInfo chains the device address allocate flag into
	// allocations that ask for it. Nil when the feature is unavailable.
	addressAllocateInfo func(next common.Options) common.Options
}

// allocate takes size and memoryTypeBits straight from the resource's
// memory requirements.
func (a *Allocator) allocate(size int, memoryTypeBits uint32, info AllocationCreateInfo, deviceAccess bool) (allocation, error) {
	required, preferred, notPreferred := memoryFlags(info, deviceAccess)
	if info.Flags&AllocationMapped != 0 {
		required |= core1_0.MemoryPropertyHostVisible
	}

	typeIndex, err := findMemoryTypeIndex(a.memoryTypes, memoryTypeBits, required, preferred, notPreferred)
	if err != nil {
		return allocation{}, err
	}

	allocInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}
	if info.Flags&AllocationDeviceAddress != 0 && a.addressAllocateInfo != nil {
		allocInfo.Next = a.addressAllocateInfo(allocInfo.Next)
	}

	memory, _, err := a.driver.AllocateMemory(nil, allocInfo)
	if err != nil {
		return allocation{}, errors.Wrapf(err, "allocating %d bytes from memory type %d", size, typeIndex)
	}

	alloc := allocation{memory: memory, size: size, memoryTypeIndex: typeIndex}
	if info.Flags&AllocationMapped != 0 {
		ptr, _, err := a.driver.MapMemory(memory, 0, size, 0)
		if err != nil {
			a.driver.FreeMemory(memory, nil)
			return allocation{}, errors.Wrap(err, "mapping memory")
		}
		alloc.mapped = unsafe.Slice((*byte)(ptr), size)
	}

	a.logger.Debug("Allocator::allocate",
		slog.Int("Size", size),
		slog.Int("MemoryTypeIndex", typeIndex),
		slog.String("Usage", info.Usage.String()),
		slog.Bool("Mapped", alloc.mapped != nil),
	)
	return alloc, nil
}

func (a *Allocator) free(alloc allocation) {
	if !alloc.memory.Initialized() {
		return
	}
	if alloc.mapped != nil {
		a.driver.UnmapMemory(alloc.memory)
	}
	a.driver.FreeMemory(alloc.memory, nil)
}
