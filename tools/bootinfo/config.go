package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"stivaleos/stivale2"
	"stivaleos/stivale2/bootimg"
)

// DefaultBase is the address where images are placed unless the config
// overrides it. It matches the higher half direct map used by the
// reference bootloader.
const DefaultBase = 0xffff800000100000

// number is an unsigned TOML value that may be written either as an
// integer or as a string; strings allow values that do not fit in a TOML
// integer such as higher half addresses.
type number uint64

func (n *number) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		if val < 0 {
			return fmt.Errorf("negative value %d", val)
		}
		*n = number(val)
	case string:
		parsed, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(val), "_", ""), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", val, err)
		}
		*n = number(parsed)
	default:
		return fmt.Errorf("unsupported number type %T", v)
	}

	return nil
}

// image.toml key mapping to the tags of a boot image.
type fileConfig struct {
	Base           number            `toml:"base"`
	Brand          string            `toml:"brand"`
	Version        string            `toml:"version"`
	CmdLine        string            `toml:"cmdline"`
	RSDP           number            `toml:"rsdp"`
	Epoch          number            `toml:"epoch"`
	FirmwareFlags  number            `toml:"firmware_flags"`
	EFISystemTable number            `toml:"efi_system_table"`
	KernelSlide    number            `toml:"kernel_slide"`
	UART           number            `toml:"uart"`
	VMap           number            `toml:"vmap"`
	SMBIOS         *smbiosConfig     `toml:"smbios"`
	KernelBase     *kernelBaseConfig `toml:"kernel_base_address"`
	Framebuffer    *fbConfig         `toml:"framebuffer"`
	Terminal       *terminalConfig   `toml:"terminal"`
	MemMap         []memMapConfig    `toml:"memmap"`
	Modules        []moduleConfig    `toml:"module"`
	SMP            *smpConfig        `toml:"smp"`
	PMRs           []pmrConfig       `toml:"pmr"`
}

type smbiosConfig struct {
	Entry32 number `toml:"entry32"`
	Entry64 number `toml:"entry64"`
}

type kernelBaseConfig struct {
	Physical number `toml:"physical"`
	Virtual  number `toml:"virtual"`
}

type fbConfig struct {
	Width  uint16 `toml:"width"`
	Height uint16 `toml:"height"`
	Bpp    uint16 `toml:"bpp"`
}

type terminalConfig struct {
	Cols  uint16 `toml:"cols"`
	Rows  uint16 `toml:"rows"`
	Write number `toml:"write"`
}

type memMapConfig struct {
	Base   number `toml:"base"`
	Length number `toml:"length"`
	Type   string `toml:"type"`
}

type moduleConfig struct {
	Name string `toml:"name"`
	File string `toml:"file"`
	Data string `toml:"data"`
}

type smpConfig struct {
	BSPLAPICID uint32 `toml:"bsp_lapic_id"`
	X2APIC     bool   `toml:"x2apic"`
	CPUs       uint32 `toml:"cpus"`
}

type pmrConfig struct {
	Base        number `toml:"base"`
	Length      number `toml:"length"`
	Permissions string `toml:"permissions"`
}

var memTypes = map[string]stivale2.MemoryEntryType{
	"usable":                 stivale2.MemUsable,
	"reserved":               stivale2.MemReserved,
	"acpi_reclaimable":       stivale2.MemACPIReclaimable,
	"acpi_nvs":               stivale2.MemACPINVS,
	"bad_memory":             stivale2.MemBadMemory,
	"bootloader_reclaimable": stivale2.MemBootloaderReclaimable,
	"kernel_and_modules":     stivale2.MemKernelAndModules,
	"framebuffer":            stivale2.MemFramebuffer,
}

// imageConfig is a validated image description.
type imageConfig struct {
	raw  fileConfig
	meta toml.MetaData

	// Directory used to resolve module files.
	dir string
}

// loadImageConfig reads an image description from path.
func loadImageConfig(path string) (*imageConfig, error) {
	cfg := &imageConfig{dir: filepath.Dir(path)}

	meta, err := toml.DecodeFile(path, &cfg.raw)
	if err != nil {
		return nil, fmt.Errorf("load image config: %w", err)
	}
	cfg.meta = meta

	if !meta.IsDefined("base") {
		cfg.raw.Base = DefaultBase
	}
	if !meta.IsDefined("brand") {
		cfg.raw.Brand = "stivaleos bootinfo"
	}

	for n, entry := range cfg.raw.MemMap {
		if _, ok := memTypes[entry.Type]; !ok {
			return nil, fmt.Errorf("load image config: memmap entry %d: unknown type %q", n, entry.Type)
		}
	}

	if fb := cfg.raw.Framebuffer; fb != nil {
		switch fb.Bpp {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("load image config: unsupported framebuffer depth %d", fb.Bpp)
		}
	}

	for n, mod := range cfg.raw.Modules {
		if mod.File != "" && mod.Data != "" {
			return nil, fmt.Errorf("load image config: module %d: file and data are mutually exclusive", n)
		}
	}

	return cfg, nil
}

// build lays out the image described by cfg. Tags are added in a fixed
// order so that identical configs produce identical images.
func (cfg *imageConfig) build() (*bootimg.Image, error) {
	raw := &cfg.raw
	b := bootimg.NewBuilder(uint64(raw.Base))
	b.SetBrand(raw.Brand)
	b.SetVersion(raw.Version)

	if cfg.meta.IsDefined("cmdline") {
		bootimg.AddTag(b, stivale2.TagCommandLine, stivale2.CommandLineTag{CmdLine: b.AddCString(raw.CmdLine)})
	}

	if len(raw.MemMap) != 0 {
		entries := make([]stivale2.MemoryMapEntry, len(raw.MemMap))
		for n, e := range raw.MemMap {
			entries[n] = stivale2.MemoryMapEntry{Base: uint64(e.Base), Length: uint64(e.Length), Type: memTypes[e.Type]}
		}
		bootimg.AddRecordTag(b, stivale2.TagMemoryMap, stivale2.MemoryMapTag{}, entries)
	}

	if fb := raw.Framebuffer; fb != nil {
		tag := framebufferTag(fb.Width, fb.Height, fb.Bpp)
		tag.Addr = b.AddBlob(make([]byte, int(tag.Pitch)*int(tag.Height)))
		bootimg.AddTag(b, stivale2.TagFramebuffer, tag)
	}

	if term := raw.Terminal; term != nil {
		bootimg.AddTag(b, stivale2.TagTerminal, stivale2.TerminalTag{Cols: term.Cols, Rows: term.Rows, TermWrite: uint64(term.Write)})
	}

	if len(raw.Modules) != 0 {
		mods, err := cfg.addModules(b)
		if err != nil {
			return nil, err
		}
		bootimg.AddRecordTag(b, stivale2.TagModules, stivale2.ModulesTag{}, mods)
	}

	if cfg.meta.IsDefined("rsdp") {
		bootimg.AddTag(b, stivale2.TagRSDP, stivale2.RSDPTag{RSDP: uint64(raw.RSDP)})
	}
	if s := raw.SMBIOS; s != nil {
		bootimg.AddTag(b, stivale2.TagSMBIOS, stivale2.SMBIOSTag{SMBIOSEntry32: uint64(s.Entry32), SMBIOSEntry64: uint64(s.Entry64)})
	}
	if cfg.meta.IsDefined("epoch") {
		bootimg.AddTag(b, stivale2.TagEpoch, stivale2.EpochTag{Epoch: uint64(raw.Epoch)})
	}
	if cfg.meta.IsDefined("firmware_flags") {
		bootimg.AddTag(b, stivale2.TagFirmware, stivale2.FirmwareTag{Flags: stivale2.FirmwareFlag(raw.FirmwareFlags)})
	}
	if cfg.meta.IsDefined("efi_system_table") {
		bootimg.AddTag(b, stivale2.TagEFISystemTable, stivale2.EFISystemTableTag{SystemTable: uint64(raw.EFISystemTable)})
	}
	if cfg.meta.IsDefined("kernel_slide") {
		bootimg.AddTag(b, stivale2.TagKernelSlide, stivale2.KernelSlideTag{KernelSlide: uint64(raw.KernelSlide)})
	}

	if smp := raw.SMP; smp != nil {
		var flags stivale2.SMPFlag
		if smp.X2APIC {
			flags |= stivale2.SMPX2APIC
		}

		cpus := make([]stivale2.SMPInfo, smp.CPUs)
		for n := range cpus {
			cpus[n] = stivale2.SMPInfo{ProcessorID: uint32(n), LAPICID: uint32(n)}
		}
		bootimg.AddRecordTag(b, stivale2.TagSMP, stivale2.SMPTag{Flags: flags, BSPLAPICID: smp.BSPLAPICID}, cpus)
	}

	if cfg.meta.IsDefined("uart") {
		bootimg.AddTag(b, stivale2.TagUART, stivale2.UARTTag{Addr: uint64(raw.UART)})
	}
	if cfg.meta.IsDefined("vmap") {
		bootimg.AddTag(b, stivale2.TagVMap, stivale2.VMapTag{Addr: uint64(raw.VMap)})
	}

	if len(raw.PMRs) != 0 {
		pmrs := make([]stivale2.PMR, len(raw.PMRs))
		for n, p := range raw.PMRs {
			perm, err := parsePermissions(p.Permissions)
			if err != nil {
				return nil, fmt.Errorf("pmr %d: %w", n, err)
			}
			pmrs[n] = stivale2.PMR{Base: uint64(p.Base), Length: uint64(p.Length), Permissions: perm}
		}
		bootimg.AddRecordTag(b, stivale2.TagPMRs, stivale2.PMRsTag{}, pmrs)
	}

	if kb := raw.KernelBase; kb != nil {
		bootimg.AddTag(b, stivale2.TagKernelBaseAddress, stivale2.KernelBaseAddressTag{
			PhysicalBaseAddress: uint64(kb.Physical),
			VirtualBaseAddress:  uint64(kb.Virtual),
		})
	}

	return b.Build()
}

// addModules appends the contents of every module to the image and returns
// the module records that describe them.
func (cfg *imageConfig) addModules(b *bootimg.Builder) ([]stivale2.Module, error) {
	mods := make([]stivale2.Module, len(cfg.raw.Modules))
	for n, mod := range cfg.raw.Modules {
		data := []byte(mod.Data)
		if mod.File != "" {
			path := mod.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.dir, path)
			}

			var err error
			if data, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("module %q: %w", mod.Name, err)
			}
		}

		if len(mod.Name) >= len(mods[n].String) {
			return nil, fmt.Errorf("module %q: name exceeds %d bytes", mod.Name, len(mods[n].String)-1)
		}

		begin := b.AddBlob(data)
		mods[n].Begin = begin
		mods[n].End = begin + uint64(len(data))
		copy(mods[n].String[:], mod.Name)
	}

	return mods, nil
}

// framebufferTag returns a tag describing a packed RGB framebuffer of the
// given depth.
func framebufferTag(width, height, bpp uint16) stivale2.FramebufferTag {
	tag := stivale2.FramebufferTag{
		Width:       width,
		Height:      height,
		Bpp:         bpp,
		Pitch:       width * ((bpp + 7) / 8),
		MemoryModel: stivale2.FramebufferRGB,
	}

	switch bpp {
	case 16:
		tag.RedMaskSize, tag.RedMaskShift = 5, 11
		tag.GreenMaskSize, tag.GreenMaskShift = 6, 5
		tag.BlueMaskSize, tag.BlueMaskShift = 5, 0
	default:
		tag.RedMaskSize, tag.RedMaskShift = 8, 16
		tag.GreenMaskSize, tag.GreenMaskShift = 8, 8
		tag.BlueMaskSize, tag.BlueMaskShift = 8, 0
	}

	return tag
}

var errBadPermission = errors.New("permissions must only contain the letters r, w and x")

func parsePermissions(s string) (stivale2.PMRPermission, error) {
	var perm stivale2.PMRPermission
	for _, ch := range s {
		switch ch {
		case 'r':
			perm |= stivale2.PMRReadable
		case 'w':
			perm |= stivale2.PMRWritable
		case 'x':
			perm |= stivale2.PMRExecutable
		default:
			return 0, errBadPermission
		}
	}

	return perm, nil
}
