package stivale2

import (
	"stivaleos/kernel"
	"strings"
	"unsafe"
)

// DefaultMaxTags is the default upper bound for the number of tags visited
// while walking the chain.
const DefaultMaxTags = 1024

// maxCmdLineLen bounds the command line scan when the region is trusted.
const maxCmdLineLen = 4096

// bootInfo is the boot information used by drivers during probing.
var bootInfo *Info

// SetBootInfo updates the boot information returned by BootInfo. It must be
// invoked before any driver is probed.
func SetBootInfo(info *Info) {
	bootInfo = info
}

// BootInfo returns the boot information registered with SetBootInfo or nil.
func BootInfo() *Info {
	return bootInfo
}

// Info provides read access to a stivale2 struct and its tags. All tag
// addresses are translated and bounds-checked through the region supplied
// to New.
//
// A nil *Info behaves like a struct without tags.
type Info struct {
	addr    uint64
	region  Region
	maxTags int

	cmdLineKV map[string]string
}

// New returns an Info for the stivale2 struct located at structAddr. The
// address is expressed in the bootloader's view of memory and is translated
// through region.
func New(structAddr uint64, region Region) (*Info, *kernel.Error) {
	if _, ok := region.view(structAddr, sizeofStruct); !ok {
		return nil, ErrStructOutsideRegion
	}

	return &Info{
		addr:    structAddr,
		region:  region,
		maxTags: DefaultMaxTags,
	}, nil
}

// SetMaxTags changes the maximum number of tags that may be visited while
// walking the chain. Values less than 1 restore DefaultMaxTags.
func (i *Info) SetMaxTags(n int) {
	if n < 1 {
		n = DefaultMaxTags
	}

	i.maxTags = n
}

// Region returns the region used to access the boot data.
func (i *Info) Region() Region {
	return i.region
}

// Struct returns the stivale2 struct.
func (i *Info) Struct() *Struct {
	ptr, _ := i.region.view(i.addr, sizeofStruct)
	return (*Struct)(ptr)
}

// Tags returns an iterator over the tag chain. Each call starts a new walk
// from the first tag.
func (i *Info) Tags() TagIterator {
	if i == nil {
		return TagIterator{}
	}

	return TagIterator{info: i, next: i.Struct().tags}
}

// TagIterator walks the tag chain one tag at a time. The walk stops at the
// end of the chain or at the first structural fault, which is reported by
// Err.
type TagIterator struct {
	info *Info
	next uint64
	hops int

	addr uint64
	tag  *TagHeader
	err  *kernel.Error
}

// Next advances to the next tag and returns false when the walk is over.
func (it *TagIterator) Next() bool {
	it.tag = nil
	if it.info == nil || it.err != nil || it.next == 0 {
		return false
	}

	if it.hops >= it.info.maxTags {
		it.err = ErrTooManyTags
		return false
	}

	ptr, ok := it.info.region.view(it.next, sizeofTagHeader)
	if !ok {
		it.err = ErrTagOutsideRegion
		return false
	}

	it.addr = it.next
	it.tag = (*TagHeader)(ptr)
	it.next = it.tag.Next
	it.hops++
	return true
}

// Tag returns the header of the current tag.
func (it *TagIterator) Tag() *TagHeader {
	return it.tag
}

// Addr returns the bootloader address of the current tag.
func (it *TagIterator) Addr() uint64 {
	return it.addr
}

// Err returns the fault that stopped the walk or nil if the end of the chain
// was reached.
func (it *TagIterator) Err() *kernel.Error {
	return it.err
}

// TagVisitor is invoked by VisitTags for each tag in the chain. The visitor
// must return true to continue or false to abort the walk.
type TagVisitor func(addr uint64, tag *TagHeader) bool

// VisitTags invokes visitor for each tag in chain order.
func (i *Info) VisitTags(visitor TagVisitor) *kernel.Error {
	it := i.Tags()
	for it.Next() {
		if !visitor(it.Addr(), it.Tag()) {
			return nil
		}
	}

	return it.Err()
}

// FindTag scans the chain and returns the address of the first tag whose
// identifier equals id. Later tags with the same identifier are never
// returned. A missing tag is reported by found being false; a non-nil error
// means that the chain is malformed.
func (i *Info) FindTag(id TagID) (addr uint64, found bool, err *kernel.Error) {
	it := i.Tags()
	for it.Next() {
		if it.Tag().Identifier == id {
			return it.Addr(), true, nil
		}
	}

	return 0, false, it.Err()
}

// lookup locates the first tag of kind id and validates it against the
// catalog shape. It returns a nil pointer if the tag is not present.
func (i *Info) lookup(id TagID) (unsafe.Pointer, *kernel.Error) {
	addr, found, err := i.FindTag(id)
	if err != nil || !found {
		return nil, err
	}

	shape, _ := ShapeOf(id)
	if shape.Variable() {
		view, err := i.DecodeRecords(addr, shape)
		if err != nil {
			return nil, err
		}
		return view.tag, nil
	}

	ptr, ok := i.region.view(addr, shape.Size)
	if !ok {
		return nil, ErrTagOutsideRegion
	}

	return ptr, nil
}

// Bytes returns a slice that aliases size bytes of boot memory starting at
// addr. The slice is writable; callers must only write to memory that the
// protocol allows the kernel to modify.
func (i *Info) Bytes(addr, size uint64) ([]byte, *kernel.Error) {
	buf, ok := i.region.bytes(addr, size)
	if !ok {
		return nil, ErrRangeOutsideRegion
	}

	return buf, nil
}

// cString returns a copy of the NUL-terminated string at addr.
func (i *Info) cString(addr uint64) (string, *kernel.Error) {
	if _, ok := i.region.view(addr, 0); !ok {
		return "", ErrRangeOutsideRegion
	}

	maxLen := i.region.remaining(addr)
	if i.region.Trusted() {
		maxLen = maxCmdLineLen
	}

	for n := uint64(0); n < maxLen; n++ {
		ptr, _ := i.region.view(addr+n, 1)
		if *(*byte)(ptr) != 0 {
			continue
		}

		buf, _ := i.region.bytes(addr, n)
		return string(buf), nil
	}

	return "", ErrStringUnterminated
}

// CommandLineString returns the kernel command line or an empty string if
// no command line tag is present.
func (i *Info) CommandLineString() (string, *kernel.Error) {
	tag, err := i.CommandLine()
	if err != nil || tag == nil || tag.CmdLine == 0 {
		return "", err
	}

	return i.cString(tag.CmdLine)
}

// BootCmdLine returns the command line key-value pairs passed to the kernel.
// Arguments without a value map to themselves. The result is cached.
func (i *Info) BootCmdLine() (map[string]string, *kernel.Error) {
	if i == nil {
		return map[string]string{}, nil
	}

	if i.cmdLineKV != nil {
		return i.cmdLineKV, nil
	}

	cmdLine, err := i.CommandLineString()
	if err != nil {
		return nil, err
	}

	kv := make(map[string]string)
	for _, pair := range strings.Fields(cmdLine) {
		key, value, found := strings.Cut(pair, "=")
		switch {
		case found: // foo=bar
			kv[key] = value
		default: // nofoo
			kv[key] = key
		}
	}

	i.cmdLineKV = kv
	return kv, nil
}
