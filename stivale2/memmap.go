package stivale2

import "stivaleos/kernel"

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemUsable indicates that the memory region is available for use.
	MemUsable MemoryEntryType = 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved MemoryEntryType = 2

	// MemACPIReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemACPIReclaimable MemoryEntryType = 3

	// MemACPINVS indicates memory that must be preserved when hibernating.
	MemACPINVS MemoryEntryType = 4

	// MemBadMemory indicates a defective memory region.
	MemBadMemory MemoryEntryType = 5

	// MemBootloaderReclaimable holds bootloader data, including the
	// stivale2 struct, that can be reused once the kernel no longer needs
	// the boot information.
	MemBootloaderReclaimable MemoryEntryType = 0x1000

	// MemKernelAndModules holds the kernel image and loaded modules.
	MemKernelAndModules MemoryEntryType = 0x1001

	// MemFramebuffer holds the framebuffer.
	MemFramebuffer MemoryEntryType = 0x1002
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemUsable:
		return "usable"
	case MemReserved:
		return "reserved"
	case MemACPIReclaimable:
		return "ACPI (reclaimable)"
	case MemACPINVS:
		return "ACPI NVS"
	case MemBadMemory:
		return "bad memory"
	case MemBootloaderReclaimable:
		return "bootloader (reclaimable)"
	case MemKernelAndModules:
		return "kernel and modules"
	case MemFramebuffer:
		return "framebuffer"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	Base uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType

	unused uint32
}

// End returns the address right after the region.
func (e *MemoryMapEntry) End() uint64 {
	return e.Base + e.Length
}

// MemRegionVisitor defines a visitor function that gets invoked by
// VisitMemRegions for each memory region provided by the bootloader. The
// visitor must return true to continue or false to abort the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// VisitMemRegions invokes visitor for each memory region in the memory map.
// The visitor is not invoked if the bootloader did not supply a memory map.
func (i *Info) VisitMemRegions(visitor MemRegionVisitor) *kernel.Error {
	tag, err := i.MemoryMap()
	if err != nil || tag == nil {
		return err
	}

	for _, entry := range tag.Entries().All() {
		if !visitor(&entry) {
			break
		}
	}

	return nil
}
