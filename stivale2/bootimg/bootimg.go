// Package bootimg lays out stivale2 boot information images the way a
// bootloader would: a stivale2 struct followed by tags and any data they
// reference, all placed at a chosen base address.
//
// Images are used as test fixtures and by host-side tools that inspect
// boot information captured from a running system.
package bootimg

import (
	"errors"
	"fmt"
	"io"
	"stivaleos/kernel"
	"stivaleos/stivale2"
	"unsafe"
)

// tagAlignment is the alignment of every tag and blob in the image.
const tagAlignment = 8

var (
	errRecordsRequired = errors.New("tag kind is count-prefixed; use AddRecordTag")
	errNotRecordTag    = errors.New("tag kind is not count-prefixed")
	errUnknownTag      = errors.New("unknown tag kind")
	errTagTooSmall     = errors.New("tag value is smaller than the catalog size")
	errStrideMismatch  = errors.New("record size does not match the catalog stride")
	errNoSuchTag       = errors.New("no tag at the given address")

	sizeofStruct    = int(unsafe.Sizeof(stivale2.Struct{}))
	sizeofTagHeader = int(unsafe.Sizeof(stivale2.TagHeader{}))
)

// Builder assembles an image. Tags are linked in the order they are added.
// The first error encountered is reported by Build.
type Builder struct {
	base uint64
	buf  []byte

	// Offsets of all tags in insertion order.
	tags []int

	err error
}

// NewBuilder returns a builder for an image whose stivale2 struct is placed
// at base.
func NewBuilder(base uint64) *Builder {
	return &Builder{
		base: base,
		buf:  make([]byte, sizeofStruct, 4096),
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) header() *stivale2.Struct {
	return (*stivale2.Struct)(unsafe.Pointer(&b.buf[0]))
}

func (b *Builder) tagAt(off int) *stivale2.TagHeader {
	return (*stivale2.TagHeader)(unsafe.Pointer(&b.buf[off]))
}

// SetBrand sets the bootloader brand.
func (b *Builder) SetBrand(brand string) {
	if err := b.header().SetBootloaderBrand(brand); err != nil {
		b.fail(fmt.Errorf("brand %q: %w", brand, err))
	}
}

// SetVersion sets the bootloader version.
func (b *Builder) SetVersion(version string) {
	if err := b.header().SetBootloaderVersion(version); err != nil {
		b.fail(fmt.Errorf("version %q: %w", version, err))
	}
}

// align pads the image so that its length is a multiple of tagAlignment.
func (b *Builder) align() {
	for len(b.buf)%tagAlignment != 0 {
		b.buf = append(b.buf, 0)
	}
}

// appendRaw appends size bytes starting at ptr and returns their offset.
func (b *Builder) appendRaw(ptr unsafe.Pointer, size uintptr) int {
	b.align()
	off := len(b.buf)
	if size != 0 {
		b.buf = append(b.buf, unsafe.Slice((*byte)(ptr), size)...)
	}

	return off
}

// link appends a tag header at off to the chain.
func (b *Builder) link(id stivale2.TagID, off int) uint64 {
	addr := b.base + uint64(off)

	tag := b.tagAt(off)
	tag.Identifier = id
	tag.Next = 0

	if len(b.tags) == 0 {
		b.header().SetFirstTag(addr)
	} else {
		b.tagAt(b.tags[len(b.tags)-1]).Next = addr
	}

	b.tags = append(b.tags, off)
	return addr
}

// AddTag appends a fixed-shape tag and returns its address. The header of
// tag is filled in by the builder. Tag kinds that are not part of the
// catalog are written using the size of T.
func AddTag[T any](b *Builder, id stivale2.TagID, tag T) uint64 {
	size := unsafe.Sizeof(tag)
	if size < uintptr(sizeofTagHeader) {
		b.fail(fmt.Errorf("tag %s: %w", id, errTagTooSmall))
		return 0
	}

	if shape, ok := stivale2.ShapeOf(id); ok {
		switch {
		case shape.Variable():
			b.fail(fmt.Errorf("tag %s: %w", id, errRecordsRequired))
			return 0
		case uintptr(shape.Size) > size:
			b.fail(fmt.Errorf("tag %s: %w", id, errTagTooSmall))
			return 0
		}
		size = uintptr(shape.Size)
	}

	return b.link(id, b.appendRaw(unsafe.Pointer(&tag), size))
}

// AddRecordTag appends a count-prefixed tag followed by records and returns
// its address. The record count is written at the catalog offset for id.
func AddRecordTag[T, R any](b *Builder, id stivale2.TagID, tag T, records []R) uint64 {
	shape, ok := stivale2.ShapeOf(id)
	switch {
	case !ok:
		b.fail(fmt.Errorf("tag %#x: %w", uint64(id), errUnknownTag))
		return 0
	case !shape.Variable():
		b.fail(fmt.Errorf("tag %s: %w", id, errNotRecordTag))
		return 0
	case uintptr(shape.Size) > unsafe.Sizeof(tag):
		b.fail(fmt.Errorf("tag %s: %w", id, errTagTooSmall))
		return 0
	}

	var rec R
	if uint64(unsafe.Sizeof(rec)) != shape.Stride {
		b.fail(fmt.Errorf("tag %s: %w (got %d; want %d)", id, errStrideMismatch, unsafe.Sizeof(rec), shape.Stride))
		return 0
	}

	off := b.appendRaw(unsafe.Pointer(&tag), uintptr(shape.Size))
	*(*uint64)(unsafe.Pointer(&b.buf[off+int(shape.CountOffset)])) = uint64(len(records))
	if len(records) != 0 {
		b.buf = append(b.buf, unsafe.Slice((*byte)(unsafe.Pointer(&records[0])), len(records)*int(shape.Stride))...)
	}

	return b.link(id, off)
}

// AddBlob appends raw data to the image and returns its address. Blobs hold
// data referenced by tags such as command lines or module contents.
func (b *Builder) AddBlob(data []byte) uint64 {
	b.align()
	off := len(b.buf)
	b.buf = append(b.buf, data...)
	return b.base + uint64(off)
}

// AddCString appends s as a NUL-terminated string and returns its address.
func (b *Builder) AddCString(s string) uint64 {
	return b.AddBlob(append([]byte(s), 0))
}

// SetNext overrides the next pointer of the tag at tagAddr. It is used to
// fabricate malformed chains and must be called after all tags are added.
func (b *Builder) SetNext(tagAddr, next uint64) {
	for _, off := range b.tags {
		if b.base+uint64(off) == tagAddr {
			b.tagAt(off).Next = next
			return
		}
	}

	b.fail(fmt.Errorf("tag at %#x: %w", tagAddr, errNoSuchTag))
}

// SetFirstTag overrides the address of the chain head.
func (b *Builder) SetFirstTag(addr uint64) {
	b.header().SetFirstTag(addr)
}

// Build returns the assembled image. The builder must not be used after
// calling Build.
func (b *Builder) Build() (*Image, error) {
	if b.err != nil {
		return nil, b.err
	}

	return &Image{Base: b.base, Data: b.buf}, nil
}

// Image is a stivale2 struct and its tags laid out at Base.
type Image struct {
	Base uint64
	Data []byte
}

// Load wraps data captured from memory at base.
func Load(base uint64, data []byte) *Image {
	return &Image{Base: base, Data: data}
}

// Region returns a checked region covering the image.
func (img *Image) Region() stivale2.Region {
	return stivale2.RegionFromBytes(img.Base, img.Data)
}

// Info returns an Info for the stivale2 struct at the start of the image.
func (img *Image) Info() (*stivale2.Info, *kernel.Error) {
	return img.InfoAt(img.Base)
}

// InfoAt returns an Info for a stivale2 struct at structAddr inside the
// image.
func (img *Image) InfoAt(structAddr uint64) (*stivale2.Info, *kernel.Error) {
	return stivale2.New(structAddr, img.Region())
}

// WriteTo implements io.WriterTo.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(img.Data)
	return int64(n), err
}
