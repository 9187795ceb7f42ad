package stivale2

import (
	"strings"
	"testing"
	"unsafe"
)

func TestBootloaderStrings(t *testing.T) {
	var s Struct

	if err := s.SetBootloaderBrand("mybootloader"); err != nil {
		t.Fatal(err)
	}

	if exp, got := "mybootloader", s.BootloaderBrand(); got != exp {
		t.Fatalf("expected brand to be %q; got %q", exp, got)
	}

	if err := s.SetBootloaderVersion("2.0   "); err != nil {
		t.Fatal(err)
	}

	if exp, got := "2.0", s.BootloaderVersion(); got != exp {
		t.Fatalf("expected space padding to be trimmed from version; got %q", got)
	}

	// A shorter value must not leave any bytes of the previous one behind
	if err := s.SetBootloaderBrand("lim"); err != nil {
		t.Fatal(err)
	}

	if exp, got := "lim", s.BootloaderBrand(); got != exp {
		t.Fatalf("expected brand to be %q; got %q", exp, got)
	}
}

func TestBootloaderStringCapacity(t *testing.T) {
	var s Struct

	full := strings.Repeat("x", maxStringLen)
	if err := s.SetBootloaderBrand(full); err != nil {
		t.Fatalf("expected a %d byte brand to fit; got %v", maxStringLen, err)
	}

	if got := s.BootloaderBrand(); got != full {
		t.Fatalf("expected brand to be %q; got %q", full, got)
	}

	if err := s.SetBootloaderBrand(full + "y"); err != ErrStringTooLong {
		t.Fatalf("expected ErrStringTooLong; got %v", err)
	}

	if got := s.BootloaderBrand(); got != full {
		t.Fatal("expected brand to be left untouched after a failed update")
	}

	if err := s.SetBootloaderVersion(full + full); err != ErrStringTooLong {
		t.Fatalf("expected ErrStringTooLong; got %v", err)
	}
}

func TestStringFromBytes(t *testing.T) {
	specs := []struct {
		input []byte
		exp   string
	}{
		{[]byte{}, ""},
		{[]byte{0, 'a', 'b'}, ""},
		{[]byte("limine\x00\x00\x00"), "limine"},
		{[]byte("limine    "), "limine"},
		{[]byte("lim ine \x00junk"), "lim ine"},
		{[]byte("no padding"), "no padding"},
	}

	for specIndex, spec := range specs {
		if got := stringFromBytes(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestStructLayout(t *testing.T) {
	var s Struct

	if exp, got := uintptr(136), unsafe.Sizeof(s); got != exp {
		t.Fatalf("expected stivale2 struct size to be %d; got %d", exp, got)
	}

	if exp, got := uintptr(128), unsafe.Offsetof(s.tags); got != exp {
		t.Fatalf("expected tags field offset to be %d; got %d", exp, got)
	}

	if exp, got := uintptr(16), unsafe.Sizeof(TagHeader{}); got != exp {
		t.Fatalf("expected tag header size to be %d; got %d", exp, got)
	}
}

// Tags linked with Struct.AddTag are referenced by address so they must not
// live on a goroutine stack that may move.
var (
	trustedStruct Struct
	trustedRSDP   = RSDPTag{TagHeader: TagHeader{Identifier: TagRSDP}, RSDP: 0xe0000}
	trustedEpoch  = EpochTag{TagHeader: TagHeader{Identifier: TagEpoch}, Epoch: 1234}
)

func TestAddTagWithTrustedRegion(t *testing.T) {
	trustedStruct.SetFirstTag(0)
	trustedStruct.AddTag(&trustedRSDP.TagHeader)
	trustedStruct.AddTag(&trustedEpoch.TagHeader)

	info, err := New(uint64(uintptr(unsafe.Pointer(&trustedStruct))), Region{})
	if err != nil {
		t.Fatal(err)
	}

	// Tags added last are visited first
	it := info.Tags()
	for _, exp := range []TagID{TagEpoch, TagRSDP} {
		if !it.Next() {
			t.Fatalf("expected tag %s; chain ended early", exp)
		}

		if got := it.Tag().Identifier; got != exp {
			t.Fatalf("expected tag %s; got %s", exp, got)
		}
	}

	if it.Next() {
		t.Fatal("expected chain to end after two tags")
	}

	rsdpTag, err := info.RSDP()
	if err != nil {
		t.Fatal(err)
	}

	if rsdpTag != &trustedRSDP {
		t.Fatal("expected RSDP accessor to return a view of the tag and not a copy")
	}
}

func TestNilInfo(t *testing.T) {
	var info *Info

	if _, found, err := info.FindTag(TagMemoryMap); found || err != nil {
		t.Fatalf("expected a nil info to contain no tags; got found=%t, err=%v", found, err)
	}

	if tag, err := info.Framebuffer(); tag != nil || err != nil {
		t.Fatalf("expected framebuffer accessor to return nil; got %v, %v", tag, err)
	}

	if kv, err := info.BootCmdLine(); err != nil || len(kv) != 0 {
		t.Fatalf("expected an empty command line; got %v, %v", kv, err)
	}
}

func TestRegionContains(t *testing.T) {
	r := Region{Base: 0x1000, Size: 0x100}

	specs := []struct {
		addr, size uint64
		exp        bool
	}{
		{0x1000, 0, true},
		{0x1000, 0x100, true},
		{0x10f8, 8, true},
		{0x1100, 0, true},
		{0x10f8, 9, false},
		{0x1100, 1, false},
		{0xfff, 1, false},
		{0x1000, ^uint64(0), false},
		{^uint64(0), 2, false},
	}

	for specIndex, spec := range specs {
		if got := r.Contains(spec.addr, spec.size); got != spec.exp {
			t.Errorf("[spec %d] expected Contains(%#x, %d) to return %t", specIndex, spec.addr, spec.size, spec.exp)
		}
	}

	if !(Region{}).Contains(^uint64(0), ^uint64(0)) {
		t.Fatal("expected a trusted region to contain every range")
	}
}

func TestDefaultBootInfo(t *testing.T) {
	defer SetBootInfo(nil)

	if BootInfo() != nil {
		t.Fatal("expected no boot info to be registered")
	}

	info := &Info{}
	SetBootInfo(info)
	if BootInfo() != info {
		t.Fatal("expected BootInfo to return the registered info")
	}
}

func TestTagIDString(t *testing.T) {
	if exp, got := "memory map", TagMemoryMap.String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}

	if exp, got := "unknown", TagID(0xdead).String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}
