package stivale2

import (
	"math"
	"unsafe"
)

// Region describes the memory window that holds the boot data.
//
// Addresses written by the bootloader in the range [Base, Base+Size) are
// visible to the caller at Mapped+(addr-Base). A Region with a zero Size is
// trusted: addresses are translated but never checked, which matches how a
// kernel that identity-maps (or HHDM-maps) the boot data would access it.
type Region struct {
	// Base is the address of the window as written by the bootloader.
	Base uint64

	// Size is the window size in bytes. Zero disables all bounds checks.
	Size uint64

	// Mapped is the address where Base is visible to the caller.
	Mapped uintptr

	// backing keeps a Go-allocated window reachable while the region is
	// in use.
	backing []byte
}

// RegionFromBytes returns a checked region that exposes buf at the bootloader
// address base.
func RegionFromBytes(base uint64, buf []byte) Region {
	r := Region{Base: base, Size: uint64(len(buf)), backing: buf}
	if len(buf) != 0 {
		r.Mapped = uintptr(unsafe.Pointer(&buf[0]))
	}

	return r
}

// Trusted reports whether the region performs no bounds checks.
func (r Region) Trusted() bool {
	return r.Size == 0
}

// Contains returns true if size bytes starting at addr lie in the region.
// Trusted regions contain every range.
func (r Region) Contains(addr, size uint64) bool {
	if r.Size == 0 {
		return true
	}

	if addr < r.Base {
		return false
	}

	off := addr - r.Base
	return off <= r.Size && size <= r.Size-off
}

// remaining returns the number of bytes between addr and the end of the
// region. For trusted regions it returns the largest length that can still
// be expressed as a Go slice.
func (r Region) remaining(addr uint64) uint64 {
	if r.Size == 0 {
		return math.MaxInt
	}

	return r.Size - (addr - r.Base)
}

// view translates a bootloader address into a pointer after checking that
// size bytes starting at it lie in the region. This is the only place where
// addresses supplied by the bootloader are turned into pointers; everything
// else in this package reinterprets the memory returned by view.
func (r Region) view(addr, size uint64) (unsafe.Pointer, bool) {
	if !r.Contains(addr, size) {
		return nil, false
	}

	return unsafe.Pointer(r.Mapped + uintptr(addr-r.Base)), true
}

// bytes returns a byte slice that aliases size bytes starting at addr.
func (r Region) bytes(addr, size uint64) ([]byte, bool) {
	if size > math.MaxInt {
		return nil, false
	}

	ptr, ok := r.view(addr, size)
	if !ok {
		return nil, false
	}

	if size == 0 {
		return nil, true
	}

	return unsafe.Slice((*byte)(ptr), int(size)), true
}
