package main

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stivaleos/stivale2"
)

const testConfig = `
base = "0xffff800000100000"
brand = "limine"
version = "2.0"
cmdline = "logLevel=debug bootSplash=off"
rsdp = 0xe0000
epoch = 1600000000
firmware_flags = 1
uart = 0x3f8
kernel_slide = 0

[smbios]
entry32 = 0xf0000
entry64 = 0xf1000

[kernel_base_address]
physical = 0x200000
virtual = "0xffffffff80000000"

[framebuffer]
width = 16
height = 8
bpp = 32

[[memmap]]
base = 0
length = 0x9f000
type = "usable"

[[memmap]]
base = 0x9f000
length = 0x61000
type = "reserved"

[[memmap]]
base = 0x100000
length = 0x100000
type = "kernel_and_modules"

[[module]]
name = "initrd"
data = "initrd contents"

[[module]]
name = "font"
file = "font.bin"

[smp]
bsp_lapic_id = 0
cpus = 4

[[pmr]]
base = "0xffffffff80000000"
length = 0x1000
permissions = "rx"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "font.bin"), []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "image.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func buildTestImage(t *testing.T) string {
	t.Helper()

	cfgPath := writeConfig(t, testConfig)
	imgPath := filepath.Join(filepath.Dir(cfgPath), "boot.img")
	if err := runTool([]string{"build", "-config", cfgPath, "-out", imgPath}, io.Discard); err != nil {
		t.Fatal(err)
	}

	return imgPath
}

func TestBuildAndDump(t *testing.T) {
	imgPath := buildTestImage(t)

	var out bytes.Buffer
	if err := runTool([]string{"dump", "-image", imgPath}, &out); err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"bootloader: limine 2.0",
		`cmdline: "logLevel=debug bootSplash=off"`,
		"0x000000000009f000-0x0000000000100000 reserved",
		"mode: 16x8x32 pitch: 64",
		`[0] "initrd"`,
		`[1] "font"`,
		"(4 bytes)",
		"rsdp: 0xe0000",
		"entry32: 0xf0000 entry64: 0xf1000",
		"epoch: 1600000000",
		"firmware: BIOS",
		"slide: 0x0",
		"[3] processor 3 lapic 3",
		"uart: 0x3f8",
		"r-x",
		"virtual: 0xffffffff80000000",
	} {
		if !strings.Contains(out.String(), exp) {
			t.Errorf("expected dump to contain %q; got:\n%s", exp, out.String())
		}
	}
}

func TestBuildToStdout(t *testing.T) {
	cfgPath := writeConfig(t, `brand = "x"`)

	var out bytes.Buffer
	if err := runTool([]string{"build", "-config", cfgPath}, &out); err != nil {
		t.Fatal(err)
	}

	if exp, got := int(136), out.Len(); got != exp {
		t.Fatalf("expected an image without tags to be %d bytes long; got %d", exp, got)
	}
}

func TestLoadImageConfigErrors(t *testing.T) {
	specs := []struct {
		contents string
		expErr   string
	}{
		{`base = -1`, "negative value"},
		{`base = "nope"`, "invalid number"},
		{"[[memmap]]\ntype = \"weird\"", `unknown type "weird"`},
		{"[framebuffer]\nbpp = 8", "unsupported framebuffer depth"},
		{"[[module]]\nfile = \"a\"\ndata = \"b\"", "mutually exclusive"},
		{`brand = `, "load image config"},
	}

	for specIndex, spec := range specs {
		_, err := loadImageConfig(writeConfig(t, spec.contents))
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	specs := []struct {
		contents string
		expErr   string
	}{
		{"[[module]]\nname = \"missing\"\nfile = \"missing.bin\"", "missing.bin"},
		{"[[module]]\nname = \"" + strings.Repeat("m", 128) + "\"", "name exceeds"},
		{"[[pmr]]\npermissions = \"rwz\"", errBadPermission.Error()},
		{`brand = "` + strings.Repeat("b", 65) + `"`, "brand"},
	}

	for specIndex, spec := range specs {
		cfg, err := loadImageConfig(writeConfig(t, spec.contents))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if _, err = cfg.build(); err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestRender(t *testing.T) {
	imgPath := buildTestImage(t)
	pngPath := filepath.Join(filepath.Dir(imgPath), "memmap.png")

	if err := runTool([]string{"render", "-image", imgPath, "-out", pngPath, "-width", "320", "-height", "120"}, io.Discard); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Width != 320 || cfg.Height != 120 {
		t.Fatalf("expected a 320x120 PNG; got %dx%d", cfg.Width, cfg.Height)
	}

	if err := runTool([]string{"render", "-image", imgPath, "-width", "0"}, io.Discard); err == nil {
		t.Fatal("expected an error for invalid dimensions")
	}
}

func TestSMP(t *testing.T) {
	imgPath := buildTestImage(t)

	err := runTool([]string{"smp", "-image", imgPath, "-cpu", "2", "-goto", "0xffffffff80001000", "-stack", "0xffff800000200000", "-arg", "42"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	img, err := openImage(imgPath, DefaultBase, false)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	info, err := img.info(0)
	if err != nil {
		t.Fatal(err)
	}

	tag, serr := info.SMP()
	if serr != nil {
		t.Fatal(serr)
	}

	for n, cpu := range tag.CPUs().All() {
		exp := stivale2.SMPInfo{ProcessorID: uint32(n), LAPICID: uint32(n)}
		if n == 2 {
			exp.TargetStack = 0xffff800000200000
			exp.GotoAddress = 0xffffffff80001000
			exp.ExtraArgument = 42
		}

		if cpu != exp {
			t.Errorf("[cpu %d] expected %+v; got %+v", n, exp, cpu)
		}
	}
}

func TestSMPErrors(t *testing.T) {
	imgPath := buildTestImage(t)

	specs := []struct {
		args   []string
		expErr error
	}{
		{[]string{"-cpu", "0", "-goto", "0x1000"}, errBootstrapCPU},
		{[]string{"-goto", "0x1000"}, errMissingFlag},
		{[]string{"-cpu", "1"}, errMissingFlag},
		{[]string{"-cpu", "9", "-goto", "0x1000"}, nil},
	}

	for specIndex, spec := range specs {
		err := runTool(append([]string{"smp", "-image", imgPath}, spec.args...), io.Discard)
		if err == nil {
			t.Errorf("[spec %d] expected an error", specIndex)
			continue
		}

		if spec.expErr != nil && !errors.Is(err, spec.expErr) {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	cfgPath := writeConfig(t, `brand = "no smp"`)
	noSMPPath := filepath.Join(filepath.Dir(cfgPath), "nosmp.img")
	if err := runTool([]string{"build", "-config", cfgPath, "-out", noSMPPath}, io.Discard); err != nil {
		t.Fatal(err)
	}

	if err := runTool([]string{"smp", "-image", noSMPPath, "-cpu", "1", "-goto", "0x1000"}, io.Discard); !errors.Is(err, errNoSMP) {
		t.Fatalf("expected errNoSMP; got %v", err)
	}
}

func TestOpenImageErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.img")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := openImage(empty, DefaultBase, false); !errors.Is(err, errEmptyImage) {
		t.Fatalf("expected errEmptyImage; got %v", err)
	}

	if err := runTool([]string{"dump"}, io.Discard); !errors.Is(err, errMissingFlag) {
		t.Fatalf("expected errMissingFlag; got %v", err)
	}

	imgPath := buildTestImage(t)
	if err := runTool([]string{"dump", "-image", imgPath, "-base", "0x1000"}, io.Discard); err != stivale2.ErrTagOutsideRegion {
		t.Fatalf("expected ErrTagOutsideRegion when decoding at the wrong base; got %v", err)
	}
}

func TestRunToolCommands(t *testing.T) {
	if err := runTool(nil, io.Discard); err != errMissingCommand {
		t.Fatalf("expected errMissingCommand; got %v", err)
	}

	if err := runTool([]string{"frobnicate"}, io.Discard); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestNumber(t *testing.T) {
	specs := []struct {
		input  any
		exp    number
		expErr bool
	}{
		{int64(42), 42, false},
		{"0xffff_8000_0000_0000", 0xffff800000000000, false},
		{" 0o17 ", 15, false},
		{int64(-1), 0, true},
		{"bogus", 0, true},
		{1.5, 0, true},
	}

	for specIndex, spec := range specs {
		var n number
		err := n.UnmarshalTOML(spec.input)
		if (err != nil) != spec.expErr {
			t.Errorf("[spec %d] expected error: %t; got %v", specIndex, spec.expErr, err)
			continue
		}

		if n != spec.exp {
			t.Errorf("[spec %d] expected %#x; got %#x", specIndex, uint64(spec.exp), uint64(n))
		}
	}
}
