package stivale2

import (
	"iter"
	"stivaleos/kernel"
	"unsafe"
)

// RecordView describes the record array of a count-prefixed tag. All
// addresses are expressed in the bootloader's view of memory.
type RecordView struct {
	// Address of the tag header.
	Addr uint64

	// Number of records that follow the fixed part of the tag.
	Count uint64

	// Address of the first record.
	First uint64

	// Size of each record.
	Stride uint64

	tag unsafe.Pointer
}

// RecordAddr returns the address of record n.
func (v RecordView) RecordAddr(n uint64) uint64 {
	return v.First + n*v.Stride
}

// End returns the address right after the last record.
func (v RecordView) End() uint64 {
	return v.First + v.Count*v.Stride
}

// DecodeRecords reads the record count of the tag at addr using the layout
// described by shape and returns a view over its records. The records are
// not copied. The whole record array must lie in the region; a count of
// zero never touches memory past the count field.
func (i *Info) DecodeRecords(addr uint64, shape Shape) (RecordView, *kernel.Error) {
	tag, ok := i.region.view(addr, shape.Size)
	if !ok {
		return RecordView{}, ErrTagOutsideRegion
	}

	view := RecordView{
		Addr:   addr,
		First:  addr + shape.Size,
		Stride: shape.Stride,
		tag:    tag,
	}

	if !shape.Variable() {
		return view, nil
	}

	// The count must be part of the fixed payload that view checked.
	if shape.Size < 8 || shape.CountOffset > shape.Size-8 {
		return RecordView{}, ErrTagOutsideRegion
	}

	view.Count = *(*uint64)(unsafe.Add(tag, shape.CountOffset))
	if view.Count > i.region.remaining(view.First)/shape.Stride {
		return RecordView{}, ErrRecordsOutsideRegion
	}

	return view, nil
}

// recordsAfter returns the count records of type R that immediately follow
// the fixed part of tag. The caller must have validated the tag with
// DecodeRecords.
func recordsAfter[T, R any](tag *T, count uint64) []R {
	if count == 0 {
		return nil
	}

	first := unsafe.Add(unsafe.Pointer(tag), unsafe.Sizeof(*tag))
	return unsafe.Slice((*R)(first), count)
}

// Records is a read-only view over the records of a count-prefixed tag.
// Records alias boot memory; At returns a copy of a single record.
type Records[T any] struct {
	list []T
}

// Len returns the number of records.
func (r Records[T]) Len() int {
	return len(r.list)
}

// At returns a copy of record n. It panics if n is out of range.
func (r Records[T]) At(n int) T {
	return r.list[n]
}

// All iterates the records in order.
func (r Records[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for n, rec := range r.list {
			if !yield(n, rec) {
				return
			}
		}
	}
}

// CopyTo copies the records into dst and returns the number of records
// copied.
func (r Records[T]) CopyTo(dst []T) int {
	return copy(dst, r.list)
}
