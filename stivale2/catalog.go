package stivale2

// Shape describes the memory layout of a tag kind.
//
// Fixed-shape tags only use Size. Count-prefixed tags also define the offset
// of their 64-bit record count and the stride of the records that follow
// the fixed part of the tag.
type Shape struct {
	ID   TagID
	Name string

	// Size of the fixed part of the tag including its header.
	Size uint64

	// Offset of the record count from the tag start. Only valid when
	// Stride is not zero.
	CountOffset uint64

	// Size of each record or 0 for fixed-shape tags.
	Stride uint64

	// Deprecated tags are still decoded but should not be relied upon.
	Deprecated bool
}

// Variable returns true if the shape describes a count-prefixed tag.
func (s Shape) Variable() bool {
	return s.Stride != 0
}

// catalog lists the layout of every tag kind defined by the protocol. The
// sizes are part of the bootloader contract and must not change.
var catalog = [...]Shape{
	{ID: TagCommandLine, Name: "command line", Size: 24},
	{ID: TagMemoryMap, Name: "memory map", Size: 24, CountOffset: 16, Stride: 24},
	{ID: TagFramebuffer, Name: "framebuffer", Size: 40},
	{ID: TagEDIDInfo, Name: "EDID info", Size: 24, CountOffset: 16, Stride: 1},
	{ID: TagMTRR, Name: "framebuffer MTRR", Size: 16, Deprecated: true},
	{ID: TagTerminal, Name: "terminal", Size: 40},
	{ID: TagModules, Name: "modules", Size: 24, CountOffset: 16, Stride: 144},
	{ID: TagRSDP, Name: "RSDP", Size: 24},
	{ID: TagSMBIOS, Name: "SMBIOS", Size: 40},
	{ID: TagEpoch, Name: "epoch", Size: 24},
	{ID: TagFirmware, Name: "firmware", Size: 24},
	{ID: TagEFISystemTable, Name: "EFI system table", Size: 24},
	{ID: TagKernelFile, Name: "kernel file", Size: 24},
	{ID: TagKernelFileV2, Name: "kernel file v2", Size: 32},
	{ID: TagKernelSlide, Name: "kernel slide", Size: 24},
	{ID: TagSMP, Name: "SMP", Size: 40, CountOffset: 32, Stride: 32},
	{ID: TagPXEInfo, Name: "PXE server info", Size: 20},
	{ID: TagUART, Name: "MMIO UART", Size: 24},
	{ID: TagDeviceTree, Name: "device tree blob", Size: 32},
	{ID: TagVMap, Name: "VMAP", Size: 24},
	{ID: TagPMRs, Name: "PMRs", Size: 24, CountOffset: 16, Stride: 24},
	{ID: TagKernelBaseAddress, Name: "kernel base address", Size: 32},
}

// ShapeOf returns the shape for the tag kind id.
func ShapeOf(id TagID) (Shape, bool) {
	for i := range catalog {
		if catalog[i].ID == id {
			return catalog[i], true
		}
	}

	return Shape{}, false
}

// Catalog returns a copy of the shapes of all known tag kinds.
func Catalog() []Shape {
	return append([]Shape(nil), catalog[:]...)
}
