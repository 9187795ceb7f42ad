package kmain

import (
	"io"
	"stivaleos/kernel"
	"stivaleos/kernel/hal"
	"stivaleos/kernel/kfmt"
	"stivaleos/stivale2"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// bootLog captures log output until a display driver is available.
	bootLog kfmt.RingBuffer

	detectHardwareFn = hal.DetectHardware
	panicFn          = kernel.Panic
)

// BootLog returns the log lines captured while booting.
func BootLog() io.Reader {
	return &bootLog
}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked by the rt0 assembly code once the
// bootloader hands over control.
//
// The rt0 code passes the address of the stivale2 struct. The boot data is
// identity mapped so it is accessed through a trusted region.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(structAddr uintptr) {
	kernel.SetPanicOutput(&bootLog)

	if err := boot(uint64(structAddr), stivale2.Region{}, &bootLog); err != nil {
		panicFn(err)
		return
	}

	panicFn(errKmainReturned)
}

// boot registers the boot information, logs a summary of it and probes the
// hardware.
func boot(structAddr uint64, region stivale2.Region, out io.Writer) *kernel.Error {
	info, err := stivale2.New(structAddr, region)
	if err != nil {
		return err
	}

	stivale2.SetBootInfo(info)
	logger := hal.NewLogger(out)

	s := info.Struct()
	logger.Info().
		Str("brand", s.BootloaderBrand()).
		Str("version", s.BootloaderVersion()).
		Msg("starting stivaleos")

	var usable, total uint64
	err = info.VisitMemRegions(func(entry *stivale2.MemoryMapEntry) bool {
		total += entry.Length
		if entry.Type == stivale2.MemUsable {
			usable += entry.Length
		}
		return true
	})
	if err != nil {
		return err
	}

	logger.Info().Uint64("usable", usable).Uint64("total", total).Msg("memory map")

	if tag, err := info.SMP(); err != nil {
		return err
	} else if tag != nil {
		logger.Info().Uint64("cpus", tag.CPUCount).Uint32("bsp_lapic_id", tag.BSPLAPICID).Msg("smp")
	}

	detectHardwareFn(logger)
	return nil
}
