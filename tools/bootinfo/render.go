package main

import (
	"stivaleos/device/video/fb"
	"stivaleos/stivale2"

	"github.com/fogleman/gg"
)

// renderMemoryMap draws the memory map of info into a new width x height
// context.
func renderMemoryMap(info *stivale2.Info, width, height int) (*gg.Context, error) {
	var entries []stivale2.MemoryMapEntry
	err := info.VisitMemRegions(func(entry *stivale2.MemoryMapEntry) bool {
		entries = append(entries, *entry)
		return true
	})
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	fb.DrawMemoryMap(dc, entries)
	return dc, nil
}
