package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"stivaleos/kernel"
	"stivaleos/stivale2"
	"stivaleos/stivale2/bootimg"
)

var errEmptyImage = errors.New("image file is empty")

// mappedImage is a boot image file mapped into memory. Writes to a mapping
// opened for writing are visible in the file.
type mappedImage struct {
	*bootimg.Image
}

// openImage maps the image file at path. base is the address where the
// image was placed by the bootloader.
func openImage(path string, base uint64, writable bool) (*mappedImage, error) {
	flags, prot := os.O_RDONLY, unix.PROT_READ
	if writable {
		flags, prot = os.O_RDWR, unix.PROT_READ|unix.PROT_WRITE
	}

	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if st.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", path, errEmptyImage)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Int("size", len(data)).Bool("writable", writable).Msg("mapped image")
	return &mappedImage{Image: bootimg.Load(base, data)}, nil
}

// info returns the boot information at structAddr or at the start of the
// image if structAddr is 0.
func (m *mappedImage) info(structAddr uint64) (*stivale2.Info, error) {
	if structAddr == 0 {
		structAddr = m.Base
	}

	info, err := m.InfoAt(structAddr)
	if err != nil {
		return nil, err
	}

	return info, nil
}

// Close unmaps the image.
func (m *mappedImage) Close() error {
	return unix.Munmap(m.Data)
}

// kerr converts a *kernel.Error into an error without producing a non-nil
// interface holding a nil pointer.
func kerr(err *kernel.Error) error {
	if err == nil {
		return nil
	}

	return err
}
