// Package stivale2 decodes the boot information structure that a stivale2
// compliant bootloader passes to the kernel.
//
// The structure consists of a fixed header (Struct) followed by a singly
// linked list of tags. Each tag starts with a TagHeader and is followed by
// kind specific fields. Some tag kinds carry a record count followed by that
// many fixed-size records.
//
// Nothing in this package allocates or copies the boot data; all returned
// values are views into the memory reserved by the bootloader and remain
// valid for as long as that memory is not reclaimed by the kernel.
package stivale2

import (
	"stivaleos/kernel"
	"unsafe"
)

// maxStringLen is the capacity of the bootloader brand and version buffers.
const maxStringLen = 64

var (
	// ErrStructOutsideRegion is returned when the stivale2 struct does not
	// fit in the boot region.
	ErrStructOutsideRegion = &kernel.Error{Module: "stivale2", Message: "stivale2 struct lies outside the boot region"}

	// ErrTagOutsideRegion is returned when a tag header or the fixed part
	// of a tag does not lie in the boot region.
	ErrTagOutsideRegion = &kernel.Error{Module: "stivale2", Message: "malformed boot data: tag lies outside the boot region"}

	// ErrRecordsOutsideRegion is returned when the record array of a
	// count-prefixed tag extends past the boot region.
	ErrRecordsOutsideRegion = &kernel.Error{Module: "stivale2", Message: "malformed boot data: tag records extend past the boot region"}

	// ErrRangeOutsideRegion is returned when a memory range referenced by
	// a tag does not lie in the boot region.
	ErrRangeOutsideRegion = &kernel.Error{Module: "stivale2", Message: "malformed boot data: referenced range lies outside the boot region"}

	// ErrTooManyTags is returned when the tag chain is longer than the
	// configured maximum. This is usually caused by a cycle.
	ErrTooManyTags = &kernel.Error{Module: "stivale2", Message: "malformed boot data: tag chain exceeds the maximum tag count"}

	// ErrStringTooLong is returned when a string does not fit in the
	// bootloader brand or version buffers.
	ErrStringTooLong = &kernel.Error{Module: "stivale2", Message: "string exceeds the capacity of the destination buffer"}

	// ErrStringUnterminated is returned when a NUL-terminated string
	// referenced by a tag has no terminator in range.
	ErrStringUnterminated = &kernel.Error{Module: "stivale2", Message: "malformed boot data: string is not NUL-terminated"}

	sizeofStruct = uint64(unsafe.Sizeof(Struct{}))
)

// Struct is the top-level structure that the bootloader passes to the kernel.
// Its layout matches the stivale2 protocol byte for byte.
type Struct struct {
	bootloaderBrand   [maxStringLen]byte
	bootloaderVersion [maxStringLen]byte

	// Address of the first tag or 0 if there are no tags.
	tags uint64
}

// BootloaderBrand returns the bootloader brand without any trailing padding.
func (s *Struct) BootloaderBrand() string {
	return stringFromBytes(s.bootloaderBrand[:])
}

// BootloaderVersion returns the bootloader version without any trailing
// padding.
func (s *Struct) BootloaderVersion() string {
	return stringFromBytes(s.bootloaderVersion[:])
}

// SetBootloaderBrand stores brand in the brand buffer. It returns
// ErrStringTooLong and leaves the buffer untouched if brand does not fit.
//
// Only bootloaders should call this function.
func (s *Struct) SetBootloaderBrand(brand string) *kernel.Error {
	return setString(s.bootloaderBrand[:], brand)
}

// SetBootloaderVersion stores version in the version buffer. It returns
// ErrStringTooLong and leaves the buffer untouched if version does not fit.
//
// Only bootloaders should call this function.
func (s *Struct) SetBootloaderVersion(version string) *kernel.Error {
	return setString(s.bootloaderVersion[:], version)
}

// FirstTag returns the address of the first tag in the chain or 0 if the
// chain is empty.
func (s *Struct) FirstTag() uint64 {
	return s.tags
}

// SetFirstTag sets the address of the chain head.
func (s *Struct) SetFirstTag(addr uint64) {
	s.tags = addr
}

// AddTag links tag in front of the current chain head. Tags added later are
// therefore visited first. The tag must stay reachable and in place for as
// long as the struct is in use.
//
// Only bootloaders should call this function.
func (s *Struct) AddTag(tag *TagHeader) {
	tag.Next = s.tags
	s.tags = uint64(uintptr(unsafe.Pointer(tag)))
}

func setString(dst []byte, src string) *kernel.Error {
	if len(src) > len(dst) {
		return ErrStringTooLong
	}

	n := copy(dst, src)
	for ; n < len(dst); n++ {
		dst[n] = 0
	}

	return nil
}

// stringFromBytes converts a fixed-size, NUL or space padded buffer into a
// string. Conversion stops at the first NUL byte and any trailing spaces are
// dropped.
func stringFromBytes(buf []byte) string {
	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	for end > 0 && buf[end-1] == ' ' {
		end--
	}

	return string(buf[:end])
}
