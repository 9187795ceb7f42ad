package bootimg

import (
	"bytes"
	"errors"
	"stivaleos/stivale2"
	"strings"
	"testing"
	"unsafe"
)

func TestBuilderLayout(t *testing.T) {
	b := NewBuilder(0x1000)
	rsdp := AddTag(b, stivale2.TagRSDP, stivale2.RSDPTag{RSDP: 0xe0000})
	pxe := AddTag(b, stivale2.TagPXEInfo, stivale2.PXEInfoTag{ServerIP: 1})
	uart := AddTag(b, stivale2.TagUART, stivale2.UARTTag{Addr: 0x3f8})

	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		addr, exp uint64
	}{
		{rsdp, 0x1000 + 136},
		{pxe, 0x1000 + 136 + 24},
		// PXE tag is 20 bytes long; the next tag is realigned
		{uart, 0x1000 + 136 + 24 + 24},
	}

	for specIndex, spec := range specs {
		if spec.addr != spec.exp {
			t.Errorf("[spec %d] expected tag at %#x; got %#x", specIndex, spec.exp, spec.addr)
		}
	}

	if exp, got := 136+24+24+24, len(img.Data); got != exp {
		t.Fatalf("expected image to be %d bytes long; got %d", exp, got)
	}

	hdr := (*stivale2.Struct)(unsafe.Pointer(&img.Data[0]))
	if hdr.FirstTag() != rsdp {
		t.Fatalf("expected first tag to be %#x; got %#x", rsdp, hdr.FirstTag())
	}

	tag := (*stivale2.TagHeader)(unsafe.Pointer(&img.Data[pxe-img.Base]))
	if tag.Identifier != stivale2.TagPXEInfo || tag.Next != uart {
		t.Fatalf("unexpected PXE tag header: %+v", *tag)
	}
}

func TestBuilderErrors(t *testing.T) {
	specs := []struct {
		build  func(b *Builder)
		expErr error
	}{
		{
			func(b *Builder) {
				AddTag(b, stivale2.TagMemoryMap, stivale2.MemoryMapTag{})
			},
			errRecordsRequired,
		},
		{
			func(b *Builder) {
				AddRecordTag(b, stivale2.TagRSDP, stivale2.RSDPTag{}, []uint64{1})
			},
			errNotRecordTag,
		},
		{
			func(b *Builder) {
				AddRecordTag(b, stivale2.TagID(0x42), stivale2.RSDPTag{}, []uint64{1})
			},
			errUnknownTag,
		},
		{
			func(b *Builder) {
				AddRecordTag(b, stivale2.TagSMP, stivale2.SMPTag{}, []stivale2.MemoryMapEntry{{}})
			},
			errStrideMismatch,
		},
		{
			func(b *Builder) {
				AddTag(b, stivale2.TagFramebuffer, stivale2.RSDPTag{})
			},
			errTagTooSmall,
		},
		{
			func(b *Builder) {
				AddTag(b, stivale2.TagRSDP, uint64(0))
			},
			errTagTooSmall,
		},
		{
			func(b *Builder) {
				b.SetNext(0x1234, 0)
			},
			errNoSuchTag,
		},
		{
			func(b *Builder) {
				b.SetBrand(strings.Repeat("x", 65))
			},
			stivale2.ErrStringTooLong,
		},
	}

	for specIndex, spec := range specs {
		b := NewBuilder(0x1000)
		spec.build(b)

		if _, err := b.Build(); !errors.Is(err, spec.expErr) {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestBuilderUnknownTag(t *testing.T) {
	type vendorTag struct {
		stivale2.TagHeader
		A, B uint64
	}

	b := NewBuilder(0x1000)
	addr := AddTag(b, stivale2.TagID(0x1122334455667788), vendorTag{A: 1, B: 2})
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if exp, got := 136+32, len(img.Data); got != exp {
		t.Fatalf("expected unknown tag to use its Go size; image is %d bytes long", got)
	}

	info, kerr := img.Info()
	if kerr != nil {
		t.Fatal(kerr)
	}

	if got, found, _ := info.FindTag(0x1122334455667788); !found || got != addr {
		t.Fatalf("expected vendor tag at %#x; got %#x", addr, got)
	}
}

func TestImageWriteTo(t *testing.T) {
	b := NewBuilder(0x8000)
	b.AddCString("console=ttyS0")
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := img.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if n != int64(len(img.Data)) || !bytes.Equal(buf.Bytes(), img.Data) {
		t.Fatal("expected WriteTo to emit the image contents verbatim")
	}

	loaded := Load(img.Base, buf.Bytes())
	if r := loaded.Region(); r.Base != 0x8000 || r.Size != uint64(len(img.Data)) {
		t.Fatalf("unexpected region for loaded image: %+v", r)
	}
}
