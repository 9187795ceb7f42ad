package stivale2

import (
	"stivaleos/kernel"
	"time"
	"unsafe"
)

// CommandLineTag points to the NUL-terminated kernel command line.
type CommandLineTag struct {
	TagHeader

	// Address of the command line string.
	CmdLine uint64
}

// CommandLine returns the command line tag or nil if it is not present. Use
// CommandLineString or BootCmdLine to read the command line itself.
func (i *Info) CommandLine() (*CommandLineTag, *kernel.Error) {
	ptr, err := i.lookup(TagCommandLine)
	return (*CommandLineTag)(ptr), err
}

// MemoryMapTag describes the physical memory layout.
type MemoryMapTag struct {
	TagHeader

	EntryCount uint64
}

// Entries returns the memory map entries.
func (t *MemoryMapTag) Entries() Records[MemoryMapEntry] {
	return Records[MemoryMapEntry]{recordsAfter[MemoryMapTag, MemoryMapEntry](t, t.EntryCount)}
}

// MemoryMap returns the memory map tag or nil if it is not present.
func (i *Info) MemoryMap() (*MemoryMapTag, *kernel.Error) {
	ptr, err := i.lookup(TagMemoryMap)
	return (*MemoryMapTag)(ptr), err
}

// FramebufferMemoryModel defines the pixel encoding of a framebuffer.
type FramebufferMemoryModel uint8

// FramebufferRGB is the only memory model defined by the protocol.
const FramebufferRGB FramebufferMemoryModel = 1

// FramebufferTag describes the linear framebuffer set up by the bootloader.
type FramebufferTag struct {
	TagHeader

	// The framebuffer address.
	Addr uint64

	// Dimensions in pixels.
	Width, Height uint16

	// Row pitch in bytes.
	Pitch uint16

	// Bits per pixel.
	Bpp uint16

	MemoryModel FramebufferMemoryModel

	// The width (in bits) and position of each color component.
	RedMaskSize    uint8
	RedMaskShift   uint8
	GreenMaskSize  uint8
	GreenMaskShift uint8
	BlueMaskSize   uint8
	BlueMaskShift  uint8

	unused uint8
}

// Framebuffer returns the framebuffer tag or nil if it is not present.
func (i *Info) Framebuffer() (*FramebufferTag, *kernel.Error) {
	ptr, err := i.lookup(TagFramebuffer)
	return (*FramebufferTag)(ptr), err
}

// EDIDInfoTag carries the raw EDID block of the primary display.
type EDIDInfoTag struct {
	TagHeader

	EDIDSize uint64
}

// Data returns the EDID bytes.
func (t *EDIDInfoTag) Data() Records[byte] {
	return Records[byte]{recordsAfter[EDIDInfoTag, byte](t, t.EDIDSize)}
}

// EDIDInfo returns the EDID tag or nil if it is not present.
func (i *Info) EDIDInfo() (*EDIDInfoTag, *kernel.Error) {
	ptr, err := i.lookup(TagEDIDInfo)
	return (*EDIDInfoTag)(ptr), err
}

// MTRRTag signals that the framebuffer was set up as write-combining using
// MTRRs.
//
// Deprecated: removed from the protocol; kept for older bootloaders.
type MTRRTag struct {
	TagHeader
}

// MTRR returns the MTRR tag or nil if it is not present.
//
// Deprecated: removed from the protocol; kept for older bootloaders.
func (i *Info) MTRR() (*MTRRTag, *kernel.Error) {
	ptr, err := i.lookup(TagMTRR)
	return (*MTRRTag)(ptr), err
}

// TerminalTag describes the terminal provided by the bootloader.
type TerminalTag struct {
	TagHeader

	Flags uint32

	// Terminal dimensions in characters.
	Cols, Rows uint16

	// Address of the terminal write function.
	TermWrite uint64

	// Maximum string length accepted by TermWrite (0 means no limit).
	MaxLength uint64
}

// Terminal returns the terminal tag or nil if it is not present.
func (i *Info) Terminal() (*TerminalTag, *kernel.Error) {
	ptr, err := i.lookup(TagTerminal)
	return (*TerminalTag)(ptr), err
}

// ModulesTag lists the modules loaded by the bootloader.
type ModulesTag struct {
	TagHeader

	ModuleCount uint64
}

// Module describes a loaded module.
type Module struct {
	// Address range occupied by the module.
	Begin uint64
	End   uint64

	// The module name as a NUL-terminated string.
	String [128]byte
}

// Name returns the module name.
func (m *Module) Name() string {
	return stringFromBytes(m.String[:])
}

// Size returns the module length in bytes.
func (m *Module) Size() uint64 {
	if m.End < m.Begin {
		return 0
	}

	return m.End - m.Begin
}

// Modules returns the list of modules.
func (t *ModulesTag) Modules() Records[Module] {
	return Records[Module]{recordsAfter[ModulesTag, Module](t, t.ModuleCount)}
}

// Modules returns the modules tag or nil if it is not present.
func (i *Info) Modules() (*ModulesTag, *kernel.Error) {
	ptr, err := i.lookup(TagModules)
	return (*ModulesTag)(ptr), err
}

// ModuleContents returns a view of the memory occupied by m.
func (i *Info) ModuleContents(m Module) ([]byte, *kernel.Error) {
	if m.End < m.Begin {
		return nil, ErrRangeOutsideRegion
	}

	return i.Bytes(m.Begin, m.End-m.Begin)
}

// RSDPTag points to the ACPI RSDP structure.
type RSDPTag struct {
	TagHeader

	RSDP uint64
}

// RSDP returns the RSDP tag or nil if it is not present.
func (i *Info) RSDP() (*RSDPTag, *kernel.Error) {
	ptr, err := i.lookup(TagRSDP)
	return (*RSDPTag)(ptr), err
}

// SMBIOSTag points to the SMBIOS entry points.
type SMBIOSTag struct {
	TagHeader

	Flags uint64

	// Addresses of the 32-bit and 64-bit entry points or 0 if not
	// available.
	SMBIOSEntry32 uint64
	SMBIOSEntry64 uint64
}

// SMBIOS returns the SMBIOS tag or nil if it is not present.
func (i *Info) SMBIOS() (*SMBIOSTag, *kernel.Error) {
	ptr, err := i.lookup(TagSMBIOS)
	return (*SMBIOSTag)(ptr), err
}

// EpochTag contains the UNIX time at boot.
type EpochTag struct {
	TagHeader

	Epoch uint64
}

// Time returns the boot time.
func (t *EpochTag) Time() time.Time {
	return time.Unix(int64(t.Epoch), 0).UTC()
}

// Epoch returns the epoch tag or nil if it is not present.
func (i *Info) Epoch() (*EpochTag, *kernel.Error) {
	ptr, err := i.lookup(TagEpoch)
	return (*EpochTag)(ptr), err
}

// FirmwareFlag describes the firmware that booted the system.
type FirmwareFlag uint64

// FirmwareBIOS is set when the system was booted by BIOS and clear when it
// was booted by UEFI.
const FirmwareBIOS FirmwareFlag = 1 << 0

// FirmwareTag describes the firmware that booted the system.
type FirmwareTag struct {
	TagHeader

	Flags FirmwareFlag
}

// IsBIOS returns true if the system was booted by BIOS.
func (t *FirmwareTag) IsBIOS() bool {
	return t.Flags&FirmwareBIOS != 0
}

// Firmware returns the firmware tag or nil if it is not present.
func (i *Info) Firmware() (*FirmwareTag, *kernel.Error) {
	ptr, err := i.lookup(TagFirmware)
	return (*FirmwareTag)(ptr), err
}

// EFISystemTableTag points to the EFI system table.
type EFISystemTableTag struct {
	TagHeader

	SystemTable uint64
}

// EFISystemTable returns the EFI system table tag or nil if it is not
// present.
func (i *Info) EFISystemTable() (*EFISystemTableTag, *kernel.Error) {
	ptr, err := i.lookup(TagEFISystemTable)
	return (*EFISystemTableTag)(ptr), err
}

// KernelFileTag points to a raw copy of the kernel file.
type KernelFileTag struct {
	TagHeader

	KernelFile uint64
}

// KernelFile returns the kernel file tag or nil if it is not present.
func (i *Info) KernelFile() (*KernelFileTag, *kernel.Error) {
	ptr, err := i.lookup(TagKernelFile)
	return (*KernelFileTag)(ptr), err
}

// KernelFileV2Tag points to a raw copy of the kernel file and its size.
type KernelFileV2Tag struct {
	TagHeader

	KernelFile uint64
	KernelSize uint64
}

// KernelFileV2 returns the v2 kernel file tag or nil if it is not present.
func (i *Info) KernelFileV2() (*KernelFileV2Tag, *kernel.Error) {
	ptr, err := i.lookup(TagKernelFileV2)
	return (*KernelFileV2Tag)(ptr), err
}

// KernelSlideTag contains the slide applied to a relocatable kernel.
type KernelSlideTag struct {
	TagHeader

	KernelSlide uint64
}

// KernelSlide returns the kernel slide tag or nil if it is not present.
func (i *Info) KernelSlide() (*KernelSlideTag, *kernel.Error) {
	ptr, err := i.lookup(TagKernelSlide)
	return (*KernelSlideTag)(ptr), err
}

// SMPFlag describes how the bootloader set up the application processors.
type SMPFlag uint64

// SMPX2APIC is set when x2APIC mode was enabled.
const SMPX2APIC SMPFlag = 1 << 0

// SMPInfo describes a CPU. The kernel starts an application processor by
// writing TargetStack and ExtraArgument and then GotoAddress.
type SMPInfo struct {
	ProcessorID uint32
	LAPICID     uint32

	TargetStack   uint64
	GotoAddress   uint64
	ExtraArgument uint64
}

// SMPTag lists the CPUs detected by the bootloader.
type SMPTag struct {
	TagHeader

	Flags SMPFlag

	// LAPIC ID of the bootstrap processor.
	BSPLAPICID uint32

	unused uint32

	CPUCount uint64
}

// CPUs returns a read-only view of the CPU list.
func (t *SMPTag) CPUs() Records[SMPInfo] {
	return Records[SMPInfo]{recordsAfter[SMPTag, SMPInfo](t, t.CPUCount)}
}

// MutableSMPTag is an SMPTag whose CPU records may be written. It is only
// returned by Info.SMPMut.
type MutableSMPTag struct {
	SMPTag
}

// CPUs returns the CPU list. The records alias boot memory; writes are seen
// by the bootloader's application processor trampolines.
func (t *MutableSMPTag) CPUs() []SMPInfo {
	return recordsAfter[SMPTag, SMPInfo](&t.SMPTag, t.CPUCount)
}

// SMP returns the SMP tag or nil if it is not present.
func (i *Info) SMP() (*SMPTag, *kernel.Error) {
	ptr, err := i.lookup(TagSMP)
	return (*SMPTag)(ptr), err
}

// SMPMut returns a writable SMP tag or nil if it is not present. This is the
// only tag the kernel may modify: it writes a stack and entry point for each
// application processor before releasing it. Records must be written once,
// before the processor is started, by a single writer.
func (i *Info) SMPMut() (*MutableSMPTag, *kernel.Error) {
	ptr, err := i.lookup(TagSMP)
	return (*MutableSMPTag)(ptr), err
}

// PXEInfoTag contains the address of the PXE server the kernel was loaded
// from.
type PXEInfoTag struct {
	TagHeader

	// Server IPv4 address in network byte order.
	ServerIP uint32
}

// ServerAddr returns the server IPv4 address as four octets.
func (t *PXEInfoTag) ServerAddr() [4]byte {
	return *(*[4]byte)(unsafe.Pointer(&t.ServerIP))
}

// PXEInfo returns the PXE server info tag or nil if it is not present.
func (i *Info) PXEInfo() (*PXEInfoTag, *kernel.Error) {
	ptr, err := i.lookup(TagPXEInfo)
	return (*PXEInfoTag)(ptr), err
}

// UARTTag points to a memory mapped UART.
type UARTTag struct {
	TagHeader

	Addr uint64
}

// UART returns the MMIO UART tag or nil if it is not present.
func (i *Info) UART() (*UARTTag, *kernel.Error) {
	ptr, err := i.lookup(TagUART)
	return (*UARTTag)(ptr), err
}

// DeviceTreeTag points to a flattened device tree blob.
type DeviceTreeTag struct {
	TagHeader

	Addr uint64
	Size uint64
}

// DeviceTree returns the device tree tag or nil if it is not present.
func (i *Info) DeviceTree() (*DeviceTreeTag, *kernel.Error) {
	ptr, err := i.lookup(TagDeviceTree)
	return (*DeviceTreeTag)(ptr), err
}

// VMapTag contains the base of the higher half direct map.
type VMapTag struct {
	TagHeader

	Addr uint64
}

// VMap returns the VMAP tag or nil if it is not present.
func (i *Info) VMap() (*VMapTag, *kernel.Error) {
	ptr, err := i.lookup(TagVMap)
	return (*VMapTag)(ptr), err
}

// PMRPermission is an OR-able set of access permissions of a PMR.
type PMRPermission uint64

// The list of PMR permissions.
const (
	PMRExecutable PMRPermission = 1 << iota
	PMRWritable
	PMRReadable
)

// PMR describes a protected memory range of the kernel image.
type PMR struct {
	Base        uint64
	Length      uint64
	Permissions PMRPermission
}

// PMRsTag lists the protected memory ranges of the kernel image.
type PMRsTag struct {
	TagHeader

	EntryCount uint64
}

// Entries returns the PMR list.
func (t *PMRsTag) Entries() Records[PMR] {
	return Records[PMR]{recordsAfter[PMRsTag, PMR](t, t.EntryCount)}
}

// PMRs returns the PMRs tag or nil if it is not present.
func (i *Info) PMRs() (*PMRsTag, *kernel.Error) {
	ptr, err := i.lookup(TagPMRs)
	return (*PMRsTag)(ptr), err
}

// KernelBaseAddressTag contains the addresses where the kernel was loaded.
type KernelBaseAddressTag struct {
	TagHeader

	PhysicalBaseAddress uint64
	VirtualBaseAddress  uint64
}

// KernelBaseAddress returns the kernel base address tag or nil if it is not
// present.
func (i *Info) KernelBaseAddress() (*KernelBaseAddressTag, *kernel.Error) {
	ptr, err := i.lookup(TagKernelBaseAddress)
	return (*KernelBaseAddressTag)(ptr), err
}
