package stivale2

import "unsafe"

// HeaderFlag is an OR-able flag that the kernel sets in its Header.
type HeaderFlag uint64

// The list of header flags.
const (
	// HeaderHigherHalfPointers asks the bootloader to return pointers to
	// the higher half direct map in the struct and its tags.
	HeaderHigherHalfPointers HeaderFlag = 1 << (iota + 1)

	// HeaderProtectedMemoryRanges asks the bootloader to map the kernel
	// image using the permissions of its ELF segments and report them
	// with a PMRs tag.
	HeaderProtectedMemoryRanges

	// HeaderFullyVirtualMappings asks the bootloader to map the kernel at
	// its virtual address without requiring a matching physical load
	// address. The kernel base address tag reports the actual location.
	HeaderFullyVirtualMappings
)

// The list of header tags defined by the stivale2 protocol.
const (
	HeaderTagAnyVideoID        TagID = 0xc75c9fa92a44c4db
	HeaderTagFramebufferID     TagID = 0x3ecc1bc43d0f7971
	HeaderTagTerminalID        TagID = 0xa85d499b1823be72
	HeaderTagSMPID             TagID = 0x1ab015085f3273df
	HeaderTagFiveLevelPagingID TagID = 0x932f477032007e8f
	HeaderTagUnmapNullID       TagID = 0x92919432b16fe7e7
	HeaderTagSlideHHDMID       TagID = 0xdc29269c2af53d1d
)

// Header is placed by the kernel in its .stivale2hdr section. It tells the
// bootloader where to jump and which features the kernel requests.
type Header struct {
	// Entry point or 0 to use the ELF entry point.
	EntryPoint uint64

	// Initial stack pointer.
	Stack uint64

	Flags HeaderFlag

	// Address of the first header tag or 0.
	Tags uint64
}

// AddTag links tag in front of the current header tag list.
func (h *Header) AddTag(tag *TagHeader) {
	tag.Next = h.Tags
	h.Tags = uint64(uintptr(unsafe.Pointer(tag)))
}

// VideoPreference tells the bootloader which kind of video mode to set up
// when the any video tag is used.
type VideoPreference uint64

// The list of video preferences.
const (
	VideoPreferLinear VideoPreference = iota
	VideoPreferNoLinear
)

// HeaderTagAnyVideo asks the bootloader to set up any video mode.
type HeaderTagAnyVideo struct {
	TagHeader

	Preference VideoPreference
}

// NewHeaderTagAnyVideo returns an any video header tag.
func NewHeaderTagAnyVideo(pref VideoPreference) HeaderTagAnyVideo {
	return HeaderTagAnyVideo{
		TagHeader:  TagHeader{Identifier: HeaderTagAnyVideoID},
		Preference: pref,
	}
}

// HeaderTagFramebuffer asks the bootloader to set up a linear framebuffer.
// Zero dimensions let the bootloader pick the best mode.
type HeaderTagFramebuffer struct {
	TagHeader

	FramebufferWidth  uint16
	FramebufferHeight uint16
	FramebufferBpp    uint16

	unused uint16
}

// NewHeaderTagFramebuffer returns a framebuffer header tag.
func NewHeaderTagFramebuffer(width, height, bpp uint16) HeaderTagFramebuffer {
	return HeaderTagFramebuffer{
		TagHeader:         TagHeader{Identifier: HeaderTagFramebufferID},
		FramebufferWidth:  width,
		FramebufferHeight: height,
		FramebufferBpp:    bpp,
	}
}

// HeaderTagTerminal asks the bootloader to provide a terminal.
type HeaderTagTerminal struct {
	TagHeader

	Flags uint64

	// Address of a callback invoked by the terminal or 0.
	Callback uint64
}

// NewHeaderTagTerminal returns a terminal header tag.
func NewHeaderTagTerminal() HeaderTagTerminal {
	return HeaderTagTerminal{TagHeader: TagHeader{Identifier: HeaderTagTerminalID}}
}

// HeaderTagSMP asks the bootloader to bring up the application processors.
type HeaderTagSMP struct {
	TagHeader

	Flags SMPFlag
}

// NewHeaderTagSMP returns an SMP header tag.
func NewHeaderTagSMP(flags SMPFlag) HeaderTagSMP {
	return HeaderTagSMP{
		TagHeader: TagHeader{Identifier: HeaderTagSMPID},
		Flags:     flags,
	}
}

// HeaderTagFiveLevelPaging asks the bootloader to enable 5-level paging.
type HeaderTagFiveLevelPaging struct {
	TagHeader
}

// HeaderTagUnmapNull asks the bootloader to unmap the first page.
type HeaderTagUnmapNull struct {
	TagHeader
}

// HeaderTagSlideHHDM asks the bootloader to slide the higher half direct map.
type HeaderTagSlideHHDM struct {
	TagHeader

	Flags     uint64
	Alignment uint64
}
