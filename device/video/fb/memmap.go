package fb

import (
	"fmt"
	"image/color"
	"stivaleos/stivale2"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Layout of the memory map rendering, in pixels.
const (
	mapMargin    = 8
	mapBarHeight = 16
	mapRowHeight = 16
	mapSwatch    = 10
)

var (
	mapBackground = color.RGBA{0x10, 0x10, 0x18, 0xff}
	mapText       = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}

	entryColors = map[stivale2.MemoryEntryType]color.RGBA{
		stivale2.MemUsable:                {0x3c, 0xb3, 0x71, 0xff},
		stivale2.MemReserved:              {0x80, 0x80, 0x80, 0xff},
		stivale2.MemACPIReclaimable:       {0x41, 0x69, 0xe1, 0xff},
		stivale2.MemACPINVS:               {0x1e, 0x3a, 0x8a, 0xff},
		stivale2.MemBadMemory:             {0xdc, 0x14, 0x3c, 0xff},
		stivale2.MemBootloaderReclaimable: {0xda, 0xa5, 0x20, 0xff},
		stivale2.MemKernelAndModules:      {0x93, 0x70, 0xdb, 0xff},
		stivale2.MemFramebuffer:           {0x20, 0xb2, 0xaa, 0xff},
	}
	unknownEntryColor = color.RGBA{0x55, 0x55, 0x55, 0xff}
)

// EntryColor returns the color used to render memory regions of type t.
func EntryColor(t stivale2.MemoryEntryType) color.RGBA {
	if c, ok := entryColors[t]; ok {
		return c
	}

	return unknownEntryColor
}

// DrawMemoryMap renders entries onto dc: a bar that spans the lowest to the
// highest address in the map followed by one labelled row per entry. Rows
// that do not fit are dropped.
func DrawMemoryMap(dc *gg.Context, entries []stivale2.MemoryMapEntry) {
	width, height := float64(dc.Width()), float64(dc.Height())

	dc.SetColor(mapBackground)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	if len(entries) == 0 {
		dc.SetColor(mapText)
		dc.DrawString("no memory map", mapMargin, mapMargin+mapRowHeight)
		return
	}

	lo, hi := entries[0].Base, entries[0].End()
	for _, e := range entries[1:] {
		lo = min(lo, e.Base)
		hi = max(hi, e.End())
	}

	span := float64(hi - lo)
	if span == 0 {
		span = 1
	}

	barWidth := width - 2*mapMargin
	for _, e := range entries {
		x := mapMargin + float64(e.Base-lo)/span*barWidth
		w := max(float64(e.Length)/span*barWidth, 1)

		dc.SetColor(EntryColor(e.Type))
		dc.DrawRectangle(x, mapMargin, w, mapBarHeight)
		dc.Fill()
	}

	y := float64(2*mapMargin + mapBarHeight)
	for _, e := range entries {
		if y+mapRowHeight > height {
			break
		}

		dc.SetColor(EntryColor(e.Type))
		dc.DrawRectangle(mapMargin, y+(mapRowHeight-mapSwatch)/2, mapSwatch, mapSwatch)
		dc.Fill()

		dc.SetColor(mapText)
		dc.DrawStringAnchored(
			fmt.Sprintf("%016x-%016x %s", e.Base, e.End(), e.Type),
			2*mapMargin+mapSwatch, y+mapRowHeight/2, 0, 0.5,
		)

		y += mapRowHeight
	}
}
