package device

import (
	"stivaleos/kernel"

	"github.com/rs/zerolog"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Drivers log any output
	// through the supplied logger which is already tagged with the
	// driver name and version.
	DriverInit(zerolog.Logger) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

// The list of supported detection orders.
const (
	// DetectOrderEarly is used by drivers that are needed before any
	// other driver, such as the boot framebuffer used for early output.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderBeforeACPI is used by drivers that consume boot
	// information tags directly.
	DetectOrderBeforeACPI DetectOrder = -127

	// DetectOrderACPI is used by drivers that depend on the ACPI tables
	// located through the RSDP tag.
	DetectOrderACPI DetectOrder = 0

	// DetectOrderLast is used by drivers that must be probed after
	// everything else.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is used to register a driver with the device package.
type DriverInfo struct {
	// Order specifies at which stage of the hardware detection process
	// the driver's probe function is invoked.
	Order DetectOrder

	// Probe returns a driver if the hardware is present.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

var (
	// registeredDrivers tracks the drivers registered via RegisterDriver.
	registeredDrivers DriverInfoList
)

// RegisterDriver adds the supplied driver info to the list of drivers that
// are probed by the hal package. Drivers call it from an init() block.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
