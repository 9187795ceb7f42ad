// Package fb drives the linear framebuffer that the bootloader sets up and
// reports through the stivale2 framebuffer tag.
package fb

import (
	"image"
	"image/color"
	"stivaleos/device"
	"stivaleos/kernel"
	"stivaleos/stivale2"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
)

var (
	errUnsupportedDepth = &kernel.Error{Module: "fb", Message: "unsupported framebuffer depth"}
	errNoBootInfo       = &kernel.Error{Module: "fb", Message: "no boot information available"}
	errBadPitch         = &kernel.Error{Module: "fb", Message: "framebuffer pitch is smaller than a scanline"}

	getFramebufferFn = func() (*stivale2.FramebufferTag, *kernel.Error) {
		return stivale2.BootInfo().Framebuffer()
	}

	mapFramebufferFn = func(addr, size uint64) ([]byte, *kernel.Error) {
		info := stivale2.BootInfo()
		if info == nil {
			return nil, errNoBootInfo
		}

		return info.Bytes(addr, size)
	}
)

// channel describes the position of a color component inside a pixel.
type channel struct {
	size, shift uint8
}

func (c channel) decode(v uint32) uint8 {
	if c.size == 0 {
		return 0
	}

	mask := uint32(1)<<c.size - 1
	raw := (v >> c.shift) & mask
	if c.size >= 8 {
		return uint8(raw >> (c.size - 8))
	}

	return uint8(raw * 255 / mask)
}

func (c channel) encode(v uint8) uint32 {
	if c.size == 0 {
		return 0
	}

	var raw uint32
	if c.size >= 8 {
		raw = uint32(v) << (c.size - 8)
	} else {
		raw = uint32(v) >> (8 - c.size)
	}

	return raw << c.shift
}

// Framebuffer is a linear RGB framebuffer.
type Framebuffer struct {
	addr          uint64
	width, height int
	pitch         int
	bytesPerPixel int

	red, green, blue channel

	fb []byte
}

// New returns a framebuffer driver for the mode described by tag.
func New(tag *stivale2.FramebufferTag) *Framebuffer {
	return &Framebuffer{
		addr:          tag.Addr,
		width:         int(tag.Width),
		height:        int(tag.Height),
		pitch:         int(tag.Pitch),
		bytesPerPixel: int(tag.Bpp+7) / 8,
		red:           channel{tag.RedMaskSize, tag.RedMaskShift},
		green:         channel{tag.GreenMaskSize, tag.GreenMaskShift},
		blue:          channel{tag.BlueMaskSize, tag.BlueMaskShift},
	}
}

// Dimensions returns the framebuffer size in pixels.
func (f *Framebuffer) Dimensions() (width, height int) {
	return f.width, f.height
}

// DriverName returns the name of this driver.
func (f *Framebuffer) DriverName() string {
	return "stivale2_fb"
}

// DriverVersion returns the version of this driver.
func (f *Framebuffer) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit maps the framebuffer memory.
func (f *Framebuffer) DriverInit(logger zerolog.Logger) *kernel.Error {
	switch f.bytesPerPixel {
	case 2, 3, 4:
	default:
		return errUnsupportedDepth
	}

	if f.pitch < f.width*f.bytesPerPixel {
		return errBadPitch
	}

	fb, err := mapFramebufferFn(f.addr, uint64(f.pitch*f.height))
	if err != nil {
		return err
	}

	f.fb = fb
	logger.Info().
		Uint64("addr", f.addr).
		Int("width", f.width).
		Int("height", f.height).
		Int("bpp", f.bytesPerPixel*8).
		Msg("mapped framebuffer")

	return nil
}

func (f *Framebuffer) pixel(off int) uint32 {
	var v uint32
	for n := 0; n < f.bytesPerPixel; n++ {
		v |= uint32(f.fb[off+n]) << (8 * n)
	}

	return v
}

func (f *Framebuffer) setPixel(off int, v uint32) {
	for n := 0; n < f.bytesPerPixel; n++ {
		f.fb[off+n] = uint8(v >> (8 * n))
	}
}

// Capture returns a copy of the framebuffer contents.
func (f *Framebuffer) Capture() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	if f.fb == nil {
		return img
	}

	for y := 0; y < f.height; y++ {
		row := y * f.pitch
		for x := 0; x < f.width; x++ {
			v := f.pixel(row + x*f.bytesPerPixel)
			img.SetRGBA(x, y, color.RGBA{
				R: f.red.decode(v),
				G: f.green.decode(v),
				B: f.blue.decode(v),
				A: 0xff,
			})
		}
	}

	return img
}

// Flush copies img to the framebuffer. Pixels outside the framebuffer are
// ignored.
func (f *Framebuffer) Flush(img image.Image) {
	if f.fb == nil {
		return
	}

	bounds := img.Bounds()
	width := min(bounds.Dx(), f.width)
	height := min(bounds.Dy(), f.height)

	for y := 0; y < height; y++ {
		row := y * f.pitch
		for x := 0; x < width; x++ {
			c := color.RGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			f.setPixel(row+x*f.bytesPerPixel, f.red.encode(c.R)|f.green.encode(c.G)|f.blue.encode(c.B))
		}
	}
}

// Draw runs fn with a drawing context that holds the current framebuffer
// contents and flushes the result back.
func (f *Framebuffer) Draw(fn func(dc *gg.Context)) {
	dc := gg.NewContextForRGBA(f.Capture())
	fn(dc)
	f.Flush(dc.Image())
}

// probeForFramebuffer checks whether the bootloader set up an RGB
// framebuffer.
func probeForFramebuffer() device.Driver {
	tag, err := getFramebufferFn()
	if err != nil || tag == nil || tag.MemoryModel != stivale2.FramebufferRGB {
		return nil
	}

	return New(tag)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForFramebuffer,
	})
}
