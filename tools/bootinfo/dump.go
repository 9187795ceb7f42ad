package main

import (
	"fmt"
	"io"
	"stivaleos/stivale2"
)

// dumpInfo writes every tag in chain order along with its decoded contents.
// Tags that fail to decode are reported inline; only a broken chain is
// returned as an error.
func dumpInfo(w io.Writer, info *stivale2.Info) error {
	s := info.Struct()
	fmt.Fprintf(w, "bootloader: %s %s\n", s.BootloaderBrand(), s.BootloaderVersion())

	seen := make(map[stivale2.TagID]bool)
	it := info.Tags()
	for it.Next() {
		id := it.Tag().Identifier
		fmt.Fprintf(w, "%#016x %s (%#016x)\n", it.Addr(), id, uint64(id))

		if seen[id] {
			fmt.Fprintln(w, "\tshadowed by an earlier tag with the same identifier")
			continue
		}
		seen[id] = true

		if err := describeTag(w, info, id); err != nil {
			fmt.Fprintf(w, "\terror: %s\n", err)
		}
	}

	return kerr(it.Err())
}

// describeTag writes the decoded contents of the first tag with the given
// identifier.
func describeTag(w io.Writer, info *stivale2.Info, id stivale2.TagID) error {
	switch id {
	case stivale2.TagCommandLine:
		cmdLine, err := info.CommandLineString()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tcmdline: %q\n", cmdLine)
	case stivale2.TagMemoryMap:
		tag, err := info.MemoryMap()
		if err != nil {
			return err
		}
		for n, e := range tag.Entries().All() {
			fmt.Fprintf(w, "\t[%d] %#016x-%#016x %s\n", n, e.Base, e.End(), e.Type)
		}
	case stivale2.TagFramebuffer:
		tag, err := info.Framebuffer()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\taddr: %#x mode: %dx%dx%d pitch: %d\n", tag.Addr, tag.Width, tag.Height, tag.Bpp, tag.Pitch)
		fmt.Fprintf(w, "\tmasks: r%d@%d g%d@%d b%d@%d\n",
			tag.RedMaskSize, tag.RedMaskShift,
			tag.GreenMaskSize, tag.GreenMaskShift,
			tag.BlueMaskSize, tag.BlueMaskShift,
		)
	case stivale2.TagEDIDInfo:
		tag, err := info.EDIDInfo()
		if err != nil {
			return err
		}
		data := make([]byte, tag.Data().Len())
		tag.Data().CopyTo(data)
		fmt.Fprintf(w, "\tedid: % x\n", data)
	case stivale2.TagTerminal:
		tag, err := info.Terminal()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tterminal: %dx%d write: %#x max length: %d\n", tag.Cols, tag.Rows, tag.TermWrite, tag.MaxLength)
	case stivale2.TagModules:
		tag, err := info.Modules()
		if err != nil {
			return err
		}
		for n, mod := range tag.Modules().All() {
			fmt.Fprintf(w, "\t[%d] %q %#x-%#x (%d bytes)\n", n, mod.Name(), mod.Begin, mod.End, mod.Size())
		}
	case stivale2.TagRSDP:
		tag, err := info.RSDP()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\trsdp: %#x\n", tag.RSDP)
	case stivale2.TagSMBIOS:
		tag, err := info.SMBIOS()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tentry32: %#x entry64: %#x\n", tag.SMBIOSEntry32, tag.SMBIOSEntry64)
	case stivale2.TagEpoch:
		tag, err := info.Epoch()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tepoch: %d (%s)\n", tag.Epoch, tag.Time().UTC())
	case stivale2.TagFirmware:
		tag, err := info.Firmware()
		if err != nil {
			return err
		}
		fw := "UEFI"
		if tag.IsBIOS() {
			fw = "BIOS"
		}
		fmt.Fprintf(w, "\tfirmware: %s\n", fw)
	case stivale2.TagEFISystemTable:
		tag, err := info.EFISystemTable()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tsystem table: %#x\n", tag.SystemTable)
	case stivale2.TagKernelFile:
		tag, err := info.KernelFile()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tkernel file: %#x\n", tag.KernelFile)
	case stivale2.TagKernelFileV2:
		tag, err := info.KernelFileV2()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tkernel file: %#x (%d bytes)\n", tag.KernelFile, tag.KernelSize)
	case stivale2.TagKernelSlide:
		tag, err := info.KernelSlide()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tslide: %#x\n", tag.KernelSlide)
	case stivale2.TagSMP:
		tag, err := info.SMP()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tflags: %#x bsp lapic id: %d\n", uint64(tag.Flags), tag.BSPLAPICID)
		for n, cpu := range tag.CPUs().All() {
			fmt.Fprintf(w, "\t[%d] processor %d lapic %d stack %#x goto %#x arg %#x\n",
				n, cpu.ProcessorID, cpu.LAPICID, cpu.TargetStack, cpu.GotoAddress, cpu.ExtraArgument)
		}
	case stivale2.TagPXEInfo:
		tag, err := info.PXEInfo()
		if err != nil {
			return err
		}
		ip := tag.ServerAddr()
		fmt.Fprintf(w, "\tserver: %d.%d.%d.%d\n", ip[0], ip[1], ip[2], ip[3])
	case stivale2.TagUART:
		tag, err := info.UART()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tuart: %#x\n", tag.Addr)
	case stivale2.TagDeviceTree:
		tag, err := info.DeviceTree()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tdevice tree: %#x (%d bytes)\n", tag.Addr, tag.Size)
	case stivale2.TagVMap:
		tag, err := info.VMap()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tvmap: %#x\n", tag.Addr)
	case stivale2.TagPMRs:
		tag, err := info.PMRs()
		if err != nil {
			return err
		}
		for n, pmr := range tag.Entries().All() {
			fmt.Fprintf(w, "\t[%d] %#016x-%#016x %s\n", n, pmr.Base, pmr.Base+pmr.Length, permString(pmr.Permissions))
		}
	case stivale2.TagKernelBaseAddress:
		tag, err := info.KernelBaseAddress()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tphysical: %#x virtual: %#x\n", tag.PhysicalBaseAddress, tag.VirtualBaseAddress)
	case stivale2.TagMTRR:
		fmt.Fprintln(w, "\tdeprecated tag")
	default:
		fmt.Fprintln(w, "\tunknown tag")
	}

	return nil
}

func permString(perm stivale2.PMRPermission) string {
	out := []byte("---")
	if perm&stivale2.PMRReadable != 0 {
		out[0] = 'r'
	}
	if perm&stivale2.PMRWritable != 0 {
		out[1] = 'w'
	}
	if perm&stivale2.PMRExecutable != 0 {
		out[2] = 'x'
	}

	return string(out)
}
