//go:build linux

package led

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// WS2812 backend over /dev/spidevB.C. The data line of the pixel hangs off
// SPI MOSI; clock and chip-select are unused.

const (
	spiIocWrMode        = 0x40016B01
	spiIocWrBitsPerWord = 0x40016B03
	spiIocWrMaxSpeedHz  = 0x40046B04

	// 3 SPI bits per WS2812 bit at the nominal 800 kHz bit rate.
	spiSpeedHz = 2_400_000
)

func openPixel(devPath string) (pixelDriver, error) {
	devPath = filepath.Clean(devPath)
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("led: open %s: %w", devPath, err)
	}

	d := &spidevPixel{f: f, path: devPath}
	if err := d.configure(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

type spidevPixel struct {
	f    *os.File
	path string
}

func (d *spidevPixel) configure() error {
	mode := uint8(0)
	if err := d.ioctl(spiIocWrMode, unsafe.Pointer(&mode)); err != nil {
		return fmt.Errorf("led: set spi mode: %w", err)
	}
	bits := uint8(8)
	if err := d.ioctl(spiIocWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		return fmt.Errorf("led: set bits per word: %w", err)
	}
	speed := uint32(spiSpeedHz)
	if err := d.ioctl(spiIocWrMaxSpeedHz, unsafe.Pointer(&speed)); err != nil {
		return fmt.Errorf("led: set spi speed: %w", err)
	}
	return nil
}

func (d *spidevPixel) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *spidevPixel) SetColor(c Color) error {
	if d == nil || d.f == nil {
		return fmt.Errorf("led: spidev not initialized")
	}
	_, err := d.f.Write(encodeFrame(c))
	return err
}

func (d *spidevPixel) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	// Leave the pixel dark.
	_, _ = d.f.Write(encodeFrame(Color{}))
	err := d.f.Close()
	d.f = nil
	return err
}
