// Package hal detects the hardware described by the boot information and
// initializes the matching device drivers.
package hal

import (
	"fmt"
	"io"
	"sort"
	"stivaleos/device"
	"stivaleos/device/video/fb"
	"stivaleos/kernel/klog"
	"stivaleos/stivale2"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
)

// Display is implemented by drivers that can render graphics.
type Display interface {
	device.Driver

	// Draw runs fn with a drawing context holding the current display
	// contents and presents the result.
	Draw(fn func(dc *gg.Context))
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeDisplay Display

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices

	getBootInfoFn = stivale2.BootInfo
)

// ActiveDisplay returns the currently active display or nil.
func ActiveDisplay() Display {
	return devices.activeDisplay
}

// ActiveDrivers returns the drivers that were successfully initialized.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// NewLogger returns a logger writing to out that honors the logLevel and
// logNoColor boot command line options.
func NewLogger(out io.Writer) zerolog.Logger {
	cfg := klog.DefaultConfig()
	kv, err := getBootInfoFn().BootCmdLine()
	klog.FromCmdLine(&cfg, kv)

	logger := klog.New(out, cfg)
	if err != nil {
		logger.Warn().Str("err", err.Message).Msg("ignoring malformed boot command line")
	}

	return logger
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware(logger zerolog.Logger) {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Sort(drivers)

	probe(klog.Module(logger, "hal"), drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(logger zerolog.Logger, driverInfoList device.DriverInfoList) {
	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		major, minor, patch := drv.DriverVersion()
		drvLogger := logger.With().
			Str("driver", drv.DriverName()).
			Str("version", fmt.Sprintf("%d.%d.%d", major, minor, patch)).
			Logger()

		if err := drv.DriverInit(drvLogger); err != nil {
			drvLogger.Error().Str("err", err.Message).Msg("init failed")
			continue
		}

		drvLogger.Info().Msg("initialized")
		onDriverInit(drvLogger, drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(logger zerolog.Logger, drv device.Driver) {
	switch drvImpl := drv.(type) {
	case Display:
		onDisplayInit(logger, drvImpl)
	}
}

// onDisplayInit is invoked whenever a display is initialized. The first
// display becomes the active display and shows the memory map splash unless
// the boot command line contains bootSplash=off.
func onDisplayInit(logger zerolog.Logger, disp Display) {
	if devices.activeDisplay != nil {
		return
	}

	devices.activeDisplay = disp

	info := getBootInfoFn()
	if kv, _ := info.BootCmdLine(); kv["bootSplash"] == "off" {
		return
	}

	var entries []stivale2.MemoryMapEntry
	err := info.VisitMemRegions(func(entry *stivale2.MemoryMapEntry) bool {
		entries = append(entries, *entry)
		return true
	})
	if err != nil {
		logger.Warn().Str("err", err.Message).Msg("skipping boot splash")
		return
	}

	logger.Debug().Int("regions", len(entries)).Msg("drawing memory map")
	disp.Draw(func(dc *gg.Context) {
		fb.DrawMemoryMap(dc, entries)
	})
}
