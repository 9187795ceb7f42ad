package kmain

import (
	"bytes"
	"io"
	"stivaleos/kernel"
	"stivaleos/kernel/hal"
	"stivaleos/stivale2"
	"stivaleos/stivale2/bootimg"
	"strings"
	"testing"
	"unsafe"

	"github.com/rs/zerolog"
)

func TestBoot(t *testing.T) {
	defer func() {
		detectHardwareFn = hal.DetectHardware
		stivale2.SetBootInfo(nil)
	}()

	var detected int
	detectHardwareFn = func(zerolog.Logger) { detected++ }

	b := bootimg.NewBuilder(0xffff800000100000)
	b.SetBrand("limine")
	b.SetVersion("2.0")
	bootimg.AddRecordTag(b, stivale2.TagMemoryMap, stivale2.MemoryMapTag{}, []stivale2.MemoryMapEntry{
		{Base: 0, Length: 0x1000, Type: stivale2.MemUsable},
		{Base: 0x1000, Length: 0x1000, Type: stivale2.MemReserved},
	})
	bootimg.AddRecordTag(b, stivale2.TagSMP, stivale2.SMPTag{}, make([]stivale2.SMPInfo, 2))
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := boot(img.Base, img.Region(), &buf); err != nil {
		t.Fatal(err)
	}

	if stivale2.BootInfo() == nil {
		t.Fatal("expected boot info to be registered")
	}

	if detected != 1 {
		t.Fatalf("expected hardware detection to run once; got %d", detected)
	}

	out := buf.String()
	for _, exp := range []string{"brand=limine", "version=2.0", "usable=4096", "total=8192", "cpus=2"} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected log output to contain %q; got:\n%s", exp, out)
		}
	}
}

func TestBootMalformed(t *testing.T) {
	defer func() {
		detectHardwareFn = hal.DetectHardware
		stivale2.SetBootInfo(nil)
	}()

	detectHardwareFn = func(zerolog.Logger) {
		t.Fatal("unexpected call to DetectHardware")
	}

	b := bootimg.NewBuilder(0x1000)
	addr := bootimg.AddTag(b, stivale2.TagEpoch, stivale2.EpochTag{})
	b.SetNext(addr, addr)
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	if err := boot(img.Base, img.Region(), io.Discard); err != stivale2.ErrTooManyTags {
		t.Fatalf("expected ErrTooManyTags; got %v", err)
	}

	if err := boot(0x10, img.Region(), io.Discard); err != stivale2.ErrStructOutsideRegion {
		t.Fatalf("expected ErrStructOutsideRegion; got %v", err)
	}
}

func TestBootLog(t *testing.T) {
	bootLog.Write([]byte("early output"))

	data, err := io.ReadAll(BootLog())
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "early output" {
		t.Fatalf("expected boot log contents; got %q", data)
	}
}

var kmainStruct stivale2.Struct

func TestKmain(t *testing.T) {
	defer func() {
		detectHardwareFn = hal.DetectHardware
		panicFn = kernel.Panic
		kernel.SetPanicOutput(nil)
		stivale2.SetBootInfo(nil)
	}()

	if err := kmainStruct.SetBootloaderBrand("limine"); err != nil {
		t.Fatal(err)
	}

	var (
		detected bool
		panicked any
	)
	detectHardwareFn = func(zerolog.Logger) { detected = true }
	panicFn = func(e any) { panicked = e }

	Kmain(uintptr(unsafe.Pointer(&kmainStruct)))

	if !detected {
		t.Fatal("expected Kmain to probe the hardware")
	}

	if panicked != errKmainReturned {
		t.Fatalf("expected Kmain to panic with errKmainReturned; got %v", panicked)
	}

	if got := stivale2.BootInfo().Struct().BootloaderBrand(); got != "limine" {
		t.Fatalf("expected boot info to describe the struct passed to Kmain; got brand %q", got)
	}
}
